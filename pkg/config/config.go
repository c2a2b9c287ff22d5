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
	Square       SquareConfig
	Sendgrid     SendgridConfig
	Bookings     BookingsConfig
	Cron         CronConfig
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
	Env          string `envconfig:"HARBORLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"HARBORLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HARBORLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HARBORLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HARBORLINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HARBORLINE_DB_DSN"`
	Driver string `envconfig:"HARBORLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HARBORLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"HARBORLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HARBORLINE_DB_USER"`
	LegacyPassword string `envconfig:"HARBORLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"HARBORLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"HARBORLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HARBORLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HARBORLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HARBORLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HARBORLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HARBORLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HARBORLINE_REDIS_ADDR"`
	Password     string        `envconfig:"HARBORLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"HARBORLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HARBORLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HARBORLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HARBORLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HARBORLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HARBORLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"HARBORLINE_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"HARBORLINE_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"HARBORLINE_SQUARE_LOCATION_ID"`
	Env           string `envconfig:"HARBORLINE_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"HARBORLINE_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"HARBORLINE_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"HARBORLINE_SENDGRID_FROM_NAME" default:"Harborline Excursions"`
}

type BookingsConfig struct {
	// DraftTTL is how long an admitted draft may sit without a payment
	// intent before the expiry job cancels it and releases its inventory.
	DraftTTL    time.Duration `envconfig:"HARBORLINE_BOOKING_DRAFT_TTL" default:"30m"`
	CodePrefix  string        `envconfig:"HARBORLINE_BOOKING_CODE_PREFIX" default:"HL"`
	AdminAPIKey string        `envconfig:"HARBORLINE_ADMIN_API_KEY"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"HARBORLINE_CRON_INTERVAL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HARBORLINE_AUTO_MIGRATE" default:"false"`
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
