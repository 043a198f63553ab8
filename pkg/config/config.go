package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	APIKey       APIKeyConfig
	RateLimit    RateLimitConfig
	Commission   CommissionConfig
	Ledger       LedgerConfig
	Recon        ReconConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	cfg.Commission.clampDepth()
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"UPLEVEL_APP_ENV" required:"true"`
	Port         string `envconfig:"UPLEVEL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"UPLEVEL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"UPLEVEL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"UPLEVEL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"UPLEVEL_DB_DSN"`
	Driver string `envconfig:"UPLEVEL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"UPLEVEL_DB_HOST"`
	LegacyPort     int    `envconfig:"UPLEVEL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"UPLEVEL_DB_USER"`
	LegacyPassword string `envconfig:"UPLEVEL_DB_PASSWORD"`
	LegacyName     string `envconfig:"UPLEVEL_DB_NAME"`
	LegacySSLMode  string `envconfig:"UPLEVEL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"UPLEVEL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"UPLEVEL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"UPLEVEL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"UPLEVEL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"UPLEVEL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"UPLEVEL_REDIS_ADDR"`
	Password     string        `envconfig:"UPLEVEL_REDIS_PASSWORD"`
	DB           int           `envconfig:"UPLEVEL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"UPLEVEL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"UPLEVEL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"UPLEVEL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"UPLEVEL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"UPLEVEL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"UPLEVEL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"UPLEVEL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"UPLEVEL_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the admin token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// APIKeyConfig tunes the argon2id hashing of service-credential secrets.
type APIKeyConfig struct {
	ArgonMemoryKB    int `envconfig:"UPLEVEL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"UPLEVEL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"UPLEVEL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"UPLEVEL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"UPLEVEL_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	EventsWindow          time.Duration `envconfig:"UPLEVEL_RATE_LIMIT_EVENTS_WINDOW" default:"1m"`
	EventsCredentialLimit int           `envconfig:"UPLEVEL_RATE_LIMIT_EVENTS_CREDENTIAL_LIMIT" default:"600"`
	EventsIPLimit         int           `envconfig:"UPLEVEL_RATE_LIMIT_EVENTS_IP_LIMIT" default:"1200"`
}

type CommissionConfig struct {
	MaxDepth int `envconfig:"UPLEVEL_COMMISSION_MAX_DEPTH" default:"3"`
}

const (
	minCommissionDepth = 1
	maxCommissionDepth = 10
)

func (c *CommissionConfig) clampDepth() {
	if c.MaxDepth < minCommissionDepth {
		c.MaxDepth = minCommissionDepth
	}
	if c.MaxDepth > maxCommissionDepth {
		c.MaxDepth = maxCommissionDepth
	}
}

type LedgerConfig struct {
	StalePendingAfter time.Duration `envconfig:"UPLEVEL_LEDGER_STALE_PENDING_AFTER" default:"2m"`
	ApplyTimeout      time.Duration `envconfig:"UPLEVEL_LEDGER_APPLY_TIMEOUT" default:"10s"`
}

type ReconConfig struct {
	Interval time.Duration `envconfig:"UPLEVEL_RECON_INTERVAL" default:"1h"`
	PageSize int           `envconfig:"UPLEVEL_RECON_PAGE_SIZE" default:"500"`
	LockTTL  time.Duration `envconfig:"UPLEVEL_RECON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"UPLEVEL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"UPLEVEL_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"UPLEVEL_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"UPLEVEL_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"UPLEVEL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"UPLEVEL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FactsTopic        string `envconfig:"UPLEVEL_PUBSUB_FACTS_TOPIC" default:"ul-commission-facts"`
	FactsSubscription string `envconfig:"UPLEVEL_PUBSUB_FACTS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset               string `envconfig:"UPLEVEL_BIGQUERY_DATASET" default:"uplevel_analytics"`
	CommissionFactsTable  string `envconfig:"UPLEVEL_BIGQUERY_COMMISSION_FACTS_TABLE" default:"commission_facts"`
	DiscrepancyFactsTable string `envconfig:"UPLEVEL_BIGQUERY_DISCREPANCY_FACTS_TABLE" default:"wallet_discrepancy_facts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"UPLEVEL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"UPLEVEL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"UPLEVEL_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"UPLEVEL_OUTBOX_RETENTION_DAYS" default:"30"`
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
