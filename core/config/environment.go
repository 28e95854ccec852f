package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ninja-merchant/payments-reconciler/core/entities"

	"github.com/joho/godotenv"
)

// GetEnv retrieves the value of the specified environment variable.
func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)

	if value != "" {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// csvToIntList parses a comma-separated list of integers, skipping blank
// entries. Grounded on original_source/src/settings.py's _csv_to_int_list.
func csvToIntList(raw string, defaultValue []int) []int {
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// csvToStrList parses a comma-separated list of strings, skipping blank
// entries. Grounded on original_source/src/settings.py's _csv_to_str_list.
func csvToStrList(raw string, defaultValue []string) []string {
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// EnvPort returns the port from environment variables.
func EnvPort() string {
	return GetEnv("PORT", "8000")
}

// EnvServiceID retrieves the service ID from the environment variables.
func EnvServiceID() string {
	return GetEnv("SERVICE_ID", "")
}

// EnvSentryDSN returns the Sentry DSN from environment variables.
func EnvSentryDSN() string {
	return GetEnv("SENTRY_DSN", "")
}

// EnvDBHost returns the database host from environment variables.
func EnvDBHost() string {
	return GetEnv("DB_HOST", "localhost")
}

// EnvDBPort returns the database port from environment variables.
func EnvDBPort() string {
	return GetEnv("DB_PORT", "5432")
}

// EnvDBUser returns the database user from environment variables.
func EnvDBUser() string {
	return GetEnv("DB_USER", "user")
}

// EnvDBPassword returns the database password from environment variables.
func EnvDBPassword() string {
	return GetEnv("DB_SECRET", "password")
}

// EnvDBName returns the database name from environment variables.
func EnvDBName() string {
	return GetEnv("DB_NAME", "payments_reconciler")
}

// EnvDatabaseDSN returns a full DSN, overriding the discrete DB_* fields
// when set.
func EnvDatabaseDSN() string {
	return GetEnv("DATABASE_DSN", "")
}

// EnvDatabasePoolMin returns the minimum pooled connection count.
func EnvDatabasePoolMin() int {
	return getEnvInt("DATABASE_POOL_MIN", 1)
}

// EnvDatabasePoolMax returns the maximum pooled connection count.
func EnvDatabasePoolMax() int {
	return getEnvInt("DATABASE_POOL_MAX", 10)
}

// EnvRedisHost returns the Redis host from environment variables.
func EnvRedisHost() string {
	return GetEnv("REDIS_HOST", "localhost")
}

// EnvRedisPort returns the Redis port from environment variables.
func EnvRedisPort() string {
	return GetEnv("REDIS_PORT", "6379")
}

// EnvRedisPassword returns the Redis password from environment variables.
func EnvRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

// EnvRedisDB returns the Redis database number from environment variables.
func EnvRedisDB() int {
	return getEnvInt("REDIS_DB", 0)
}

// EnvironmentConfig returns the environment configuration.
func EnvironmentConfig() string {
	return GetEnv("ENV", "development")
}

// EnvServiceName returns the service name from environment variables.
func EnvServiceName() string {
	return GetEnv("SERVICE_NAME", "payments-reconciler")
}

func envUserAmqp() string {
	return GetEnv("USER_AMQP", "guest")
}

func envPasswordAmqp() string {
	return GetEnv("PASSWORD_AMQP", "guest")
}

func envHostAmqp() string {
	return GetEnv("HOST_AMQP", "localhost:5672")
}

// EnvAmqpConnection returns the AMQP connection string from environment variables.
func EnvAmqpConnection() string {
	user := envUserAmqp()
	password := envPasswordAmqp()
	host := envHostAmqp()

	return fmt.Sprintf("amqp://%s:%s@%s/", user, password, host)
}

// EnvReconcileEnabled toggles the PSP poller loop.
func EnvReconcileEnabled() bool {
	return getEnvBool("RECONCILE_ENABLED", true)
}

// EnvCRMEnabled toggles the CRM sender loop.
func EnvCRMEnabled() bool {
	return getEnvBool("CRM_ENABLED", true)
}

// EnvReconcileIntervalSeconds is the period between poller/sender cycles.
func EnvReconcileIntervalSeconds() int {
	return getEnvInt("RECONCILE_INTERVAL_SECONDS", 30)
}

// EnvReconcileBatchSize bounds candidates selected per cycle.
func EnvReconcileBatchSize() int {
	return getEnvInt("RECONCILE_BATCH_SIZE", 50)
}

// EnvReconcileAttemptOffsets returns the elapsed-seconds-from-creation
// thresholds that gate each reconciliation attempt.
func EnvReconcileAttemptOffsets() []int {
	return csvToIntList(GetEnv("RECONCILE_ATTEMPT_OFFSETS", ""), []int{60, 180, 900, 1800})
}

// EnvReconcilePollingProviders is the provider allow-list the poller polls.
func EnvReconcilePollingProviders() []string {
	return csvToStrList(GetEnv("RECONCILE_POLLING_PROVIDERS", ""), []string{"webpay", "stripe", "paypal"})
}

// EnvAbandonedTimeoutMinutes is the age at which a still-PENDING payment
// is abandoned outright, whatever its attempt count.
func EnvAbandonedTimeoutMinutes() int {
	return getEnvInt("ABANDONED_TIMEOUT_MINUTES", 1440)
}

// EnvCRMBaseURL is the CRM service's base URL.
func EnvCRMBaseURL() string {
	return GetEnv("CRM_BASE_URL", "")
}

// EnvCRMPagarPath is the path appended to EnvCRMBaseURL for notifications.
func EnvCRMPagarPath() string {
	return GetEnv("CRM_PAGAR_PATH", "/pagar")
}

// EnvCRMAuthBearer is the bearer token sent with every CRM request, if set.
func EnvCRMAuthBearer() string {
	return GetEnv("CRM_AUTH_BEARER", "")
}

// EnvCRMTimeoutSeconds bounds a single CRM HTTP call.
func EnvCRMTimeoutSeconds() int {
	return getEnvInt("CRM_TIMEOUT_SECONDS", 10)
}

// EnvCRMRetryBackoff is the seconds-delay schedule applied to failed CRM
// sends, saturating at its last element.
func EnvCRMRetryBackoff() []int {
	return csvToIntList(GetEnv("CRM_RETRY_BACKOFF", ""), []int{60, 300, 1800})
}

// EnvHeartbeatIntervalSeconds throttles the poller/sender heartbeat log.
func EnvHeartbeatIntervalSeconds() int {
	return getEnvInt("HEARTBEAT_INTERVAL_SECONDS", 60)
}

// EnvStripeAPIKey is the Stripe secret key used for Basic auth.
func EnvStripeAPIKey() string {
	return GetEnv("STRIPE_API_KEY", "")
}

// EnvStripeAPIBase is the Stripe API base URL.
func EnvStripeAPIBase() string {
	return GetEnv("STRIPE_API_BASE", "https://api.stripe.com")
}

// EnvPaypalClientID is the PayPal OAuth client id.
func EnvPaypalClientID() string {
	return GetEnv("PAYPAL_CLIENT_ID", "")
}

// EnvPaypalClientSecret is the PayPal OAuth client secret.
func EnvPaypalClientSecret() string {
	return GetEnv("PAYPAL_CLIENT_SECRET", "")
}

// EnvPaypalBaseURL is the PayPal API base URL.
func EnvPaypalBaseURL() string {
	return GetEnv("PAYPAL_BASE_URL", "https://api-m.paypal.com")
}

// EnvWebpayStatusURLTemplate is the status-check URL, with "%s" standing
// in for the token (e.g. via fmt.Sprintf).
func EnvWebpayStatusURLTemplate() string {
	return GetEnv("WEBPAY_STATUS_URL_TEMPLATE", "")
}

// EnvWebpayAPIKeyID is the Tbk-Api-Key-Id header value.
func EnvWebpayAPIKeyID() string {
	return GetEnv("WEBPAY_API_KEY_ID", "")
}

// EnvWebpayAPIKeySecret is the Tbk-Api-Key-Secret header value.
func EnvWebpayAPIKeySecret() string {
	return GetEnv("WEBPAY_API_KEY_SECRET", "")
}

// EnvWebpayCommerceCode is the Tbk-Commerce-Code header value.
func EnvWebpayCommerceCode() string {
	return GetEnv("WEBPAY_COMMERCE_CODE", "")
}

// EnvHealthAuthBearer protects GET /api/v1/health/metrics.
func EnvHealthAuthBearer() string {
	return GetEnv("HEALTH_AUTH_BEARER", "")
}

// EnvSwaggerUser is the Swagger docs basic-auth username.
func EnvSwaggerUser() string {
	return GetEnv("SWAGGER_USER", "admin")
}

// EnvSwaggerPassword is the Swagger docs basic-auth password.
func EnvSwaggerPassword() string {
	return GetEnv("SWAGGER_PASSWORD", "")
}

// LoadEnvVars loads all environment variables required by the application.
func LoadEnvVars() {
	env := EnvironmentConfig()
	if env == entities.Environment.Production || env == entities.Environment.Staging {
		fmt.Printf("Not using .env file in production or staging")
		return
	}

	filename := fmt.Sprintf(".env.%s", env)

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		filename = ".env"
	}

	err := godotenv.Load(filename)

	if err != nil {
		fmt.Printf(".env file not loaded")
		os.Exit(1)
	}
}
