package config

// EnvPrefix scopes every environment variable read by Load.
const EnvPrefix = "uplevel"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared with tests and deploy tooling.
const (
	EnvAppEnv   = "UPLEVEL_APP_ENV"
	EnvPort     = "UPLEVEL_APP_PORT"
	EnvLogLevel = "UPLEVEL_LOG_LEVEL"

	EnvDBDSN  = "UPLEVEL_DB_DSN"
	EnvDBHost = "UPLEVEL_DB_HOST"
	EnvDBPort = "UPLEVEL_DB_PORT"
	EnvDBUser = "UPLEVEL_DB_USER"
	EnvDBName = "UPLEVEL_DB_NAME"

	EnvRedisURL = "UPLEVEL_REDIS_URL"

	EnvJWTSecret  = "UPLEVEL_JWT_SECRET"
	EnvJWTIssuer  = "UPLEVEL_JWT_ISSUER"
	EnvJWTExpMins = "UPLEVEL_JWT_EXPIRATION_MINUTES"

	EnvCommissionMaxDepth = "UPLEVEL_COMMISSION_MAX_DEPTH"

	EnvGCPProjectID     = "UPLEVEL_GCP_PROJECT_ID"
	EnvPubSubFactsTopic = "UPLEVEL_PUBSUB_FACTS_TOPIC"
	EnvPubSubFactsSub   = "UPLEVEL_PUBSUB_FACTS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
