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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Profile      ProfilePollConfig
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
	Env          string `envconfig:"CAREBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"CAREBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAREBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAREBRIDGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CAREBRIDGE_DB_DSN"`
	Driver string `envconfig:"CAREBRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CAREBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"CAREBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CAREBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"CAREBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CAREBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CAREBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAREBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAREBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAREBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAREBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAREBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAREBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"CAREBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAREBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAREBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAREBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAREBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAREBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAREBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CAREBRIDGE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CAREBRIDGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CAREBRIDGE_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"CAREBRIDGE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CAREBRIDGE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CAREBRIDGE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CAREBRIDGE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CAREBRIDGE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CAREBRIDGE_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CAREBRIDGE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CAREBRIDGE_STRIPE_API_KEY"`
	Secret string `envconfig:"CAREBRIDGE_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"CAREBRIDGE_STRIPE_ENV" default:"test"`

	BaseFeePriceID string `envconfig:"CAREBRIDGE_STRIPE_BASE_FEE_PRICE_ID"`
	SuccessURL     string `envconfig:"CAREBRIDGE_STRIPE_CHECKOUT_SUCCESS_URL"`
	CancelURL      string `envconfig:"CAREBRIDGE_STRIPE_CHECKOUT_CANCEL_URL"`

	WebhookIdempotencyTTL time.Duration `envconfig:"CAREBRIDGE_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CAREBRIDGE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CAREBRIDGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CAREBRIDGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ActivityTopic string `envconfig:"CAREBRIDGE_PUBSUB_ACTIVITY_TOPIC" default:"cb-activity-feed"`
}

// ProfilePollConfig bounds the read-after-write wait for profile documents
// materialized asynchronously after account creation.
type ProfilePollConfig struct {
	MaxAttempts int           `envconfig:"CAREBRIDGE_PROFILE_POLL_MAX_ATTEMPTS" default:"5"`
	Interval    time.Duration `envconfig:"CAREBRIDGE_PROFILE_POLL_INTERVAL" default:"1s"`
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
