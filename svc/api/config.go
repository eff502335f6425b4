package api

type Config struct {
	// InternalToken guards /internal. The routes are not mounted when empty.
	InternalToken  string `env:"API_INTERNAL_TOKEN"`
	WebhookMaxBody int64  `env:"API_WEBHOOK_MAX_BODY" envDefault:"65536"`
}
