package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is passed to envconfig; every variable is fully qualified in the
// struct tags so the prefix itself stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Shippo       ShippoConfig
	Fees         FeeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CANVASLY_APP_ENV" required:"true"`
	Port         string `envconfig:"CANVASLY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CANVASLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CANVASLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CANVASLY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CANVASLY_DB_DSN"`
	Driver string `envconfig:"CANVASLY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CANVASLY_DB_HOST"`
	Port     int    `envconfig:"CANVASLY_DB_PORT" default:"5432"`
	User     string `envconfig:"CANVASLY_DB_USER"`
	Password string `envconfig:"CANVASLY_DB_PASSWORD"`
	Name     string `envconfig:"CANVASLY_DB_NAME"`
	SSLMode  string `envconfig:"CANVASLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CANVASLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CANVASLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CANVASLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CANVASLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if strings.TrimSpace(d.DSN) != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either CANVASLY_DB_DSN or host/user/name parts are required")
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	query := dsn.Query()
	query.Set("sslmode", d.SSLMode)
	dsn.RawQuery = query.Encode()
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CANVASLY_REDIS_URL" required:"true"`
	Password     string        `envconfig:"CANVASLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CANVASLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CANVASLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CANVASLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CANVASLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CANVASLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CANVASLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey        string        `envconfig:"CANVASLY_STRIPE_API_KEY"`
	WebhookSecret string        `envconfig:"CANVASLY_STRIPE_WEBHOOK_SECRET"`
	Env           string        `envconfig:"CANVASLY_STRIPE_ENV" default:"test"`
	CallTimeout   time.Duration `envconfig:"CANVASLY_STRIPE_CALL_TIMEOUT" default:"15s"`
}

func (s StripeConfig) Environment() string {
	return s.Env
}

type SquareConfig struct {
	AccessToken string        `envconfig:"CANVASLY_SQUARE_ACCESS_TOKEN"`
	Env         string        `envconfig:"CANVASLY_SQUARE_ENV" default:"sandbox"`
	CallTimeout time.Duration `envconfig:"CANVASLY_SQUARE_CALL_TIMEOUT" default:"15s"`
}

func (s SquareConfig) Environment() string {
	return s.Env
}

type ShippoConfig struct {
	APIToken    string        `envconfig:"CANVASLY_SHIPPO_API_TOKEN"`
	BaseURL     string        `envconfig:"CANVASLY_SHIPPO_BASE_URL" default:"https://api.goshippo.com"`
	CallTimeout time.Duration `envconfig:"CANVASLY_SHIPPO_CALL_TIMEOUT" default:"20s"`
}

type FeeConfig struct {
	PlatformFeeCents int64  `envconfig:"CANVASLY_PLATFORM_FEE_CENTS" default:"1000"`
	Currency         string `envconfig:"CANVASLY_CURRENCY" default:"usd"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CANVASLY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"CANVASLY_PUBSUB_DOMAIN_TOPIC" default:"canvasly-domain-events"`
	DomainSubscription string `envconfig:"CANVASLY_PUBSUB_DOMAIN_SUBSCRIPTION" default:"canvasly-domain-events-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CANVASLY_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CANVASLY_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CANVASLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CANVASLY_AUTO_MIGRATE" default:"false"`
}
