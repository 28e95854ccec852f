package config

import (
	"go.uber.org/fx"
)

// AppConfig holds the application configuration.
type AppConfig struct {
	Port        string
	ServiceID   string
	SentryDSN   string
	Environment string
	ServiceName string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	DatabaseDSN     string
	DatabasePoolMin int
	DatabasePoolMax int

	AmqpConnection string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	ReconcileEnabled           bool
	CRMEnabled                 bool
	ReconcileIntervalSeconds   int
	ReconcileBatchSize         int
	ReconcileAttemptOffsets    []int
	ReconcilePollingProviders  []string
	AbandonedTimeoutMinutes    int
	HeartbeatIntervalSeconds   int

	CRMBaseURL        string
	CRMPagarPath      string
	CRMAuthBearer     string
	CRMTimeoutSeconds int
	CRMRetryBackoff   []int

	StripeAPIKey  string
	StripeAPIBase string

	PaypalClientID     string
	PaypalClientSecret string
	PaypalBaseURL      string

	WebpayStatusURLTemplate string
	WebpayAPIKeyID          string
	WebpayAPIKeySecret      string
	WebpayCommerceCode      string

	HealthAuthBearer string
	SwaggerUser      string
	SwaggerPassword  string
}

// NewAppConfig creates and returns a new AppConfig instance.
func NewAppConfig() *AppConfig {
	// Load environment variables from .env file
	LoadEnvVars()

	return &AppConfig{
		Port:        EnvPort(),
		ServiceID:   EnvServiceID(),
		SentryDSN:   EnvSentryDSN(),
		Environment: EnvironmentConfig(),
		ServiceName: EnvServiceName(),

		DBHost:     EnvDBHost(),
		DBPort:     EnvDBPort(),
		DBUser:     EnvDBUser(),
		DBPassword: EnvDBPassword(),
		DBName:     EnvDBName(),

		DatabaseDSN:     EnvDatabaseDSN(),
		DatabasePoolMin: EnvDatabasePoolMin(),
		DatabasePoolMax: EnvDatabasePoolMax(),

		AmqpConnection: EnvAmqpConnection(),

		RedisHost:     EnvRedisHost(),
		RedisPort:     EnvRedisPort(),
		RedisPassword: EnvRedisPassword(),
		RedisDB:       EnvRedisDB(),

		ReconcileEnabled:          EnvReconcileEnabled(),
		CRMEnabled:                EnvCRMEnabled(),
		ReconcileIntervalSeconds:  EnvReconcileIntervalSeconds(),
		ReconcileBatchSize:        EnvReconcileBatchSize(),
		ReconcileAttemptOffsets:   EnvReconcileAttemptOffsets(),
		ReconcilePollingProviders: EnvReconcilePollingProviders(),
		AbandonedTimeoutMinutes:   EnvAbandonedTimeoutMinutes(),
		HeartbeatIntervalSeconds:  EnvHeartbeatIntervalSeconds(),

		CRMBaseURL:        EnvCRMBaseURL(),
		CRMPagarPath:      EnvCRMPagarPath(),
		CRMAuthBearer:     EnvCRMAuthBearer(),
		CRMTimeoutSeconds: EnvCRMTimeoutSeconds(),
		CRMRetryBackoff:   EnvCRMRetryBackoff(),

		StripeAPIKey:  EnvStripeAPIKey(),
		StripeAPIBase: EnvStripeAPIBase(),

		PaypalClientID:     EnvPaypalClientID(),
		PaypalClientSecret: EnvPaypalClientSecret(),
		PaypalBaseURL:      EnvPaypalBaseURL(),

		WebpayStatusURLTemplate: EnvWebpayStatusURLTemplate(),
		WebpayAPIKeyID:          EnvWebpayAPIKeyID(),
		WebpayAPIKeySecret:      EnvWebpayAPIKeySecret(),
		WebpayCommerceCode:      EnvWebpayCommerceCode(),

		HealthAuthBearer: EnvHealthAuthBearer(),
		SwaggerUser:      EnvSwaggerUser(),
		SwaggerPassword:  EnvSwaggerPassword(),
	}
}

// Module provides the fx module for AppConfig.
var Module = fx.Module("config", fx.Provide(NewAppConfig))
