package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port    string `mapstructure:"PORT"`
	GinMode string `mapstructure:"GIN_MODE"`

	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	FirebaseWebAPIKey                string `mapstructure:"FIREBASE_WEB_API_KEY"`
	FirebaseStorageBucket            string `mapstructure:"FIREBASE_STORAGE_BUCKET"`

	ClientURL     string        `mapstructure:"CLIENT_URL"`
	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`

	RedisAddr           string        `mapstructure:"REDIS_ADDR"`
	RedisPassword       string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int           `mapstructure:"REDIS_DB"`
	MirrorTTL           time.Duration `mapstructure:"MIRROR_TTL"`
	MirrorEncryptionKey string        `mapstructure:"MIRROR_ENCRYPTION_KEY"` // Base64 encoded, 32 bytes

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	SMTPHost   string `mapstructure:"SMTP_HOST"`
	SMTPPort   string `mapstructure:"SMTP_PORT"`
	SMTPUser   string `mapstructure:"SMTP_USER"`
	SMTPPass   string `mapstructure:"SMTP_PASS"`
	MailSender string `mapstructure:"MAIL_SENDER"`

	GoogleClientID     string `mapstructure:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_OAUTH_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_OAUTH_REDIRECT_URL"`

	CatalogFile             string `mapstructure:"CATALOG_FILE"`
	PublicTestimonialsLimit int    `mapstructure:"PUBLIC_TESTIMONIALS_LIMIT"`
}

var appConfig *Config

var envKeys = []string{
	"PORT", "GIN_MODE",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"FIREBASE_WEB_API_KEY", "FIREBASE_STORAGE_BUCKET",
	"CLIENT_URL", "SESSION_SECRET", "SESSION_TTL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "MIRROR_TTL", "MIRROR_ENCRYPTION_KEY",
	"RABBITMQ_URL", "EVENTS_EXCHANGE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "MAIL_SENDER",
	"GOOGLE_OAUTH_CLIENT_ID", "GOOGLE_OAUTH_CLIENT_SECRET", "GOOGLE_OAUTH_REDIRECT_URL",
	"CATALOG_FILE", "PUBLIC_TESTIMONIALS_LIMIT",
}

// LoadConfig loads the server configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = cfg
	return appConfig, nil
}

// LoadFirebaseConfig loads the same environment but only requires what a Firestore client
// needs. Offline tools such as the seeder use it.
func LoadFirebaseConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateFirebase(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("SESSION_TTL", "2h")
	v.SetDefault("MIRROR_TTL", "720h")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EVENTS_EXCHANGE", "storefront.events")
	v.SetDefault("SMTP_PORT", "2525")
	v.SetDefault("PUBLIC_TESTIMONIALS_LIMIT", 20)

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	return &cfg, nil
}

// ValidateFirebase checks the fields every Firebase client needs.
func (c *Config) ValidateFirebase() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	return nil
}

// Validate checks the fields the server requires.
func (c *Config) Validate() error {
	if err := c.ValidateFirebase(); err != nil {
		return err
	}
	if c.FirebaseWebAPIKey == "" {
		return errors.New("FIREBASE_WEB_API_KEY is required")
	}
	if len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.PublicTestimonialsLimit <= 0 {
		return errors.New("PUBLIC_TESTIMONIALS_LIMIT must be positive")
	}
	return nil
}

// MailEnabled reports whether action links are delivered through our own SMTP relay
// instead of the provider's templates.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != "" && c.MailSender != ""
}

// GoogleOAuthEnabled reports whether the server-side Google redirect flow is configured.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// GetConfig returns the loaded application configuration.
// It will panic if LoadConfig has not been called successfully.
func GetConfig() *Config {
	if appConfig == nil {
		panic("config not loaded; call LoadConfig first")
	}
	return appConfig
}
