package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "NAOWATT_DB_DSN"
	EnvDBHost = "NAOWATT_DB_HOST"
	EnvDBUser = "NAOWATT_DB_USER"
	EnvDBName = "NAOWATT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Invitations  InvitationConfig
	Mailer       MailerConfig
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
	Env          string `envconfig:"NAOWATT_APP_ENV" required:"true"`
	Port         string `envconfig:"NAOWATT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NAOWATT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NAOWATT_LOG_WARN_STACK" default:"false"`
	PortalURL    string `envconfig:"NAOWATT_PORTAL_URL" default:"https://portal.naowatt.example"`
	CORSOrigins  []string `envconfig:"NAOWATT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NAOWATT_DB_DSN"`
	Driver string `envconfig:"NAOWATT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NAOWATT_DB_HOST"`
	LegacyPort     int    `envconfig:"NAOWATT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NAOWATT_DB_USER"`
	LegacyPassword string `envconfig:"NAOWATT_DB_PASSWORD"`
	LegacyName     string `envconfig:"NAOWATT_DB_NAME"`
	LegacySSLMode  string `envconfig:"NAOWATT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NAOWATT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NAOWATT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NAOWATT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NAOWATT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NAOWATT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NAOWATT_REDIS_ADDR"`
	Password     string        `envconfig:"NAOWATT_REDIS_PASSWORD"`
	DB           int           `envconfig:"NAOWATT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NAOWATT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NAOWATT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NAOWATT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NAOWATT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NAOWATT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"NAOWATT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"NAOWATT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"NAOWATT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"NAOWATT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"NAOWATT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"NAOWATT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"NAOWATT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"NAOWATT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"NAOWATT_ARGON_KEY_LEN" default:"32"`
}

type InvitationConfig struct {
	TTL           time.Duration `envconfig:"NAOWATT_INVITATION_TTL" default:"168h"`
	TokenBytes    int           `envconfig:"NAOWATT_INVITATION_TOKEN_BYTES" default:"32"`
	RetryAttempts int           `envconfig:"NAOWATT_MEMBERSHIP_RETRY_ATTEMPTS" default:"5"`
	RetryBaseWait time.Duration `envconfig:"NAOWATT_MEMBERSHIP_RETRY_BASE_WAIT" default:"25ms"`
}

type MailerConfig struct {
	APIBaseURL  string        `envconfig:"NAOWATT_MAILER_API_BASE_URL" default:"https://api.sendgrid.com"`
	APIKey      string        `envconfig:"NAOWATT_MAILER_API_KEY"`
	DefaultFrom string        `envconfig:"NAOWATT_MAILER_FROM_EMAIL" default:"no-reply@naowatt.example"`
	Timeout     time.Duration `envconfig:"NAOWATT_MAILER_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"NAOWATT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"NAOWATT_AUTO_MIGRATE" default:"false"`
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
