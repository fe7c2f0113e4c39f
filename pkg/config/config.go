package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BOUTIQUE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "BOUTIQUE_APP_ENV"
	EnvPort        = "BOUTIQUE_APP_PORT"
	EnvDBDSN       = "BOUTIQUE_DB_DSN"
	EnvDBHost      = "BOUTIQUE_DB_HOST"
	EnvDBUser      = "BOUTIQUE_DB_USER"
	EnvDBName      = "BOUTIQUE_DB_NAME"
	EnvRedisURL    = "BOUTIQUE_REDIS_URL"
	EnvJWTSecret   = "BOUTIQUE_JWT_SECRET"
	EnvJWTIssuer   = "BOUTIQUE_JWT_ISSUER"
	EnvStripeKey   = "BOUTIQUE_STRIPE_API_KEY"
	EnvStripePub   = "BOUTIQUE_STRIPE_PUBLIC_KEY"
	EnvStripeWH    = "BOUTIQUE_STRIPE_WH_SECRET"
	EnvGCPProject  = "BOUTIQUE_GCP_PROJECT_ID"
	EnvOrdersTopic = "BOUTIQUE_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOUTIQUE_APP_ENV" required:"true"`
	Port         string `envconfig:"BOUTIQUE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BOUTIQUE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOUTIQUE_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists storefront origins allowed to call the API with credentials.
	CORSOrigins []string `envconfig:"BOUTIQUE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"BOUTIQUE_DB_DSN"`
	SQLitePath string `envconfig:"BOUTIQUE_DB_SQLITE_PATH" default:"boutique.db"`

	LegacyHost     string `envconfig:"BOUTIQUE_DB_HOST"`
	LegacyPort     int    `envconfig:"BOUTIQUE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOUTIQUE_DB_USER"`
	LegacyPassword string `envconfig:"BOUTIQUE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOUTIQUE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOUTIQUE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOUTIQUE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOUTIQUE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOUTIQUE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOUTIQUE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOUTIQUE_REDIS_URL"`
	Address      string        `envconfig:"BOUTIQUE_REDIS_ADDR"`
	Password     string        `envconfig:"BOUTIQUE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOUTIQUE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOUTIQUE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOUTIQUE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOUTIQUE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOUTIQUE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOUTIQUE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies shopper identity tokens. Checkout works anonymously when no token is sent.
type JWTConfig struct {
	Secret            string `envconfig:"BOUTIQUE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BOUTIQUE_JWT_ISSUER" default:"boutique"`
	ExpirationMinutes int    `envconfig:"BOUTIQUE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey    string `envconfig:"BOUTIQUE_STRIPE_API_KEY"`
	PublicKey string `envconfig:"BOUTIQUE_STRIPE_PUBLIC_KEY"`
	Secret    string `envconfig:"BOUTIQUE_STRIPE_WH_SECRET"`
	Env       string `envconfig:"BOUTIQUE_STRIPE_ENV" default:"test"`
	Currency  string `envconfig:"BOUTIQUE_STRIPE_CURRENCY" default:"usd"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// CheckoutConfig tunes the browser session and the webhook reconciliation loop.
type CheckoutConfig struct {
	SessionTTL          time.Duration `envconfig:"BOUTIQUE_SESSION_TTL" default:"336h"`
	SessionCookie       string        `envconfig:"BOUTIQUE_SESSION_COOKIE" default:"boutique_session"`
	ReconcileAttempts   int           `envconfig:"BOUTIQUE_RECONCILE_ATTEMPTS" default:"5"`
	ReconcileRetryDelay time.Duration `envconfig:"BOUTIQUE_RECONCILE_RETRY_DELAY" default:"1s"`
	WebhookEventTTL     time.Duration `envconfig:"BOUTIQUE_WEBHOOK_EVENT_TTL" default:"72h"`
	WebhookClaimTTL     time.Duration `envconfig:"BOUTIQUE_WEBHOOK_CLAIM_TTL" default:"2m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOUTIQUE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOUTIQUE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BOUTIQUE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"BOUTIQUE_PUBSUB_ORDERS_TOPIC" default:"boutique-orders"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BOUTIQUE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BOUTIQUE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BOUTIQUE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsPort serves /metrics for the publisher binary; empty disables it.
	MetricsPort string `envconfig:"BOUTIQUE_OUTBOX_METRICS_PORT" default:"9091"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
