// Package docs is the swag-generated OpenAPI document for the admin HTTP
// surface (health, metrics). Regenerate with `swag init -g module.go -o
// internal/adminhttp/docs` whenever a handler's annotations change.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Always returns ok when the process is up",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/api/v1/health/metrics": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Aggregate counts and totals across the payments table",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Payments summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object"}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object"}}
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported swagger info, filled in by app bootstrap.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "",
	Schemes:          []string{},
	Title:            "payments-reconciler",
	Description:      "Operational surface for the payment reconciliation engine: liveness, payments summary, and metrics scraping.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
