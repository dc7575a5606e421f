package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = "bookshop"
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BOOKSHOP_DB_DSN"
	EnvDBHost = "BOOKSHOP_DB_HOST"
	EnvDBUser = "BOOKSHOP_DB_USER"
	EnvDBName = "BOOKSHOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Cache        CacheConfig
	RateLimit    RateLimitConfig
	Ratings      RatingsConfig
	Worker       WorkerConfig
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
	Env          string `envconfig:"BOOKSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOOKSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKSHOP_DB_DSN"`
	Driver string `envconfig:"BOOKSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOOKSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKSHOP_DB_USER"`
	LegacyPassword string `envconfig:"BOOKSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BOOKSHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BOOKSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BOOKSHOP_JWT_EXPIRATION_MINUTES" default:"30"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BOOKSHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BOOKSHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BOOKSHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BOOKSHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BOOKSHOP_ARGON_KEY_LEN" default:"32"`
}

type CacheConfig struct {
	BookTTL time.Duration `envconfig:"BOOKSHOP_CACHE_BOOK_TTL" default:"1h"`
	ListTTL time.Duration `envconfig:"BOOKSHOP_CACHE_LIST_TTL" default:"10m"`
}

type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BOOKSHOP_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginAccountLimit  int           `envconfig:"BOOKSHOP_RATE_LIMIT_LOGIN_ACCOUNT_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"BOOKSHOP_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"BOOKSHOP_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"BOOKSHOP_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"BOOKSHOP_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type RatingsConfig struct {
	BaseURL     string        `envconfig:"BOOKSHOP_RATINGS_BASE_URL" default:"https://www.goodreads.com"`
	Timeout     time.Duration `envconfig:"BOOKSHOP_RATINGS_TIMEOUT" default:"10s"`
	MaxRetries  int           `envconfig:"BOOKSHOP_RATINGS_MAX_RETRIES" default:"3"`
	Staleness   time.Duration `envconfig:"BOOKSHOP_RATINGS_STALENESS" default:"24h"`
	RefreshSize int           `envconfig:"BOOKSHOP_RATINGS_REFRESH_BATCH" default:"25"`
}

type WorkerConfig struct {
	Interval        time.Duration `envconfig:"BOOKSHOP_WORKER_INTERVAL" default:"24h"`
	LockTTL         time.Duration `envconfig:"BOOKSHOP_WORKER_LOCK_TTL" default:"25h"`
	GuestRetention  time.Duration `envconfig:"BOOKSHOP_WORKER_GUEST_RETENTION" default:"72h"`
	MetricsBindAddr string        `envconfig:"BOOKSHOP_WORKER_METRICS_ADDR" default:":9091"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BOOKSHOP_AUTO_MIGRATE" default:"false"`
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
