package config

const (
	EnvPrefix = "SHOPFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "SHOPFRONT_APP_ENV"
	EnvPort        = "SHOPFRONT_APP_PORT"
	EnvLogLevel    = "SHOPFRONT_LOG_LEVEL"
	EnvFrontendURL = "SHOPFRONT_FRONTEND_URL"

	EnvDBDSN  = "SHOPFRONT_DB_DSN"
	EnvDBHost = "SHOPFRONT_DB_HOST"
	EnvDBPort = "SHOPFRONT_DB_PORT"
	EnvDBUser = "SHOPFRONT_DB_USER"
	EnvDBPass = "SHOPFRONT_DB_PASSWORD"
	EnvDBName = "SHOPFRONT_DB_NAME"

	EnvRedisURL = "SHOPFRONT_REDIS_URL"

	EnvJWTSecret               = "SHOPFRONT_JWT_SECRET"
	EnvJWTIssuer               = "SHOPFRONT_JWT_ISSUER"
	EnvJWTExpMins              = "SHOPFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "SHOPFRONT_REFRESH_TOKEN_TTL_MINUTES"
	EnvStripeAPIKey            = "SHOPFRONT_STRIPE_API_KEY"
	EnvStripeWebhookSecret     = "SHOPFRONT_STRIPE_WEBHOOK_SECRET"
	EnvPaymentsCurrency        = "SHOPFRONT_PAYMENTS_CURRENCY"
	EnvGCPProjectID            = "SHOPFRONT_GCP_PROJECT_ID"
	EnvPubSubDomainTopic       = "SHOPFRONT_PUBSUB_DOMAIN_TOPIC"
	EnvOutboxPublishBatchSize  = "SHOPFRONT_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPublishPollMillis = "SHOPFRONT_OUTBOX_PUBLISH_POLL_MS"
)
