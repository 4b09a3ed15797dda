package config

const (
	EnvSelfHostedWebhookURL        = "SELF_HOSTED_WEBHOOK_URL"
	EnvSelfHostedWebhookHMACSecret = "SELF_HOSTED_WEBHOOK_HMAC_SECRET"
	EnvUseDBAuthentication         = "USE_DB_AUTHENTICATION"
	EnvDatabaseURL                 = "DATABASE_URL"
	EnvProxyServer                 = "PROXY_SERVER"
	EnvProxyUsername               = "PROXY_USERNAME"
	EnvProxyPassword               = "PROXY_PASSWORD"
	EnvProxySkipTLSVerification    = "PROXY_SKIP_TLS_VERIFICATION"
	EnvSentryDSN                   = "SENTRY_DSN"
)

// JobIDPlaceholder is replaced with the job id in the self-hosted webhook url.
const JobIDPlaceholder = "{{JOB_ID}}"
