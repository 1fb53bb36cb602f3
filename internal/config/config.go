package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"academy-platform/pkg/utils"

	"github.com/spf13/viper"
)

// Config holds all configuration required by the API process.
// Values come from env (or an optional .env file in the working directory).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	Store   StoreConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Session SessionConfig
	Tenant  TenantConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// StoreConfig selects the persistence backend.
// Accepts: memory, postgres. memory is for local development and tests only.
type StoreConfig struct {
	Driver string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// Pool sizing. Zero means the utils.PostgresPoolConfig default.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// StatementTimeout caps every statement server-side. Zero leaves the
	// server default.
	StatementTimeout time.Duration
}

// RedisConfig is optional. When Host is empty the revocation cache is disabled.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// SessionMaxLifetime is the absolute token expiry, independent of activity.
	SessionMaxLifetime time.Duration
	// ClockSkew is the leeway applied to exp/iat/nbf checks.
	ClockSkew time.Duration
}

type SessionConfig struct {
	IdleTimeout   time.Duration
	TouchInterval time.Duration

	// FailOpenReads lets read-only requests proceed on token-only validity
	// when the session store is unavailable. Mutations always fail closed.
	FailOpenReads bool

	// MaxConcurrent caps active sessions per user. 0 means unlimited.
	MaxConcurrent int

	CookieName string
}

type TenantConfig struct {
	// BaseDomain is the parent domain for academy subdomains, e.g. academy.example.com.
	BaseDomain string
}

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine
	v.AutomaticEnv()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(v.GetString("APP_ENV"))
	{
		n, err := mustInt(v, "APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.Driver = strings.TrimSpace(v.GetString("STORE_DRIVER"))

	c.DB.Host = strings.TrimSpace(v.GetString("DB_HOST"))
	{
		n, err := optionalInt(v, "DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(v.GetString("DB_USER"))
	c.DB.Password = v.GetString("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(v.GetString("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(v.GetString("DB_SSLMODE"))
	{
		n, err := optionalInt(v, "DB_MAX_OPEN_CONNS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.MaxOpenConns = n
	}
	{
		n, err := optionalInt(v, "DB_MAX_IDLE_CONNS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.MaxIdleConns = n
	}
	c.DB.ConnMaxLifetime, parseErrs = appendDuration(parseErrs, v, "DB_CONN_MAX_LIFETIME")
	c.DB.ConnMaxIdleTime, parseErrs = appendDuration(parseErrs, v, "DB_CONN_MAX_IDLE_TIME")
	c.DB.StatementTimeout, parseErrs = appendDuration(parseErrs, v, "DB_STATEMENT_TIMEOUT")

	c.Redis.Host = strings.TrimSpace(v.GetString("REDIS_HOST"))
	{
		n, err := optionalInt(v, "REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = v.GetString("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(v.GetString("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(v.GetString("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.SessionMaxLifetime, parseErrs = appendDuration(parseErrs, v, "SESSION_MAX_LIFETIME")
	c.Auth.ClockSkew, parseErrs = appendDuration(parseErrs, v, "JWT_CLOCK_SKEW")

	c.Session.IdleTimeout, parseErrs = appendDuration(parseErrs, v, "SESSION_IDLE_TIMEOUT")
	c.Session.TouchInterval, parseErrs = appendDuration(parseErrs, v, "SESSION_TOUCH_INTERVAL")
	c.Session.FailOpenReads = v.GetBool("SESSION_FAIL_OPEN_READS")
	{
		n, err := optionalInt(v, "SESSION_MAX_CONCURRENT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Session.MaxConcurrent = n
	}
	c.Session.CookieName = strings.TrimSpace(v.GetString("SESSION_COOKIE_NAME"))

	c.Tenant.BaseDomain = strings.ToLower(strings.TrimSpace(v.GetString("TENANT_BASE_DOMAIN")))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverPostgres
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
		errs = append(errs, c.validateDB()...)
	case StoreDriverMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_DRIVER=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be one of memory, postgres, got %q", c.Store.Driver))
	}

	if c.Redis.Host != "" {
		if c.Redis.Port == 0 {
			c.Redis.Port = 6379
		}
		if c.Redis.Port < 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.SessionMaxLifetime <= 0 {
		c.Auth.SessionMaxLifetime = 12 * time.Hour
	}
	if c.Auth.ClockSkew <= 0 {
		c.Auth.ClockSkew = 30 * time.Second
	}
	if c.Session.IdleTimeout <= 0 {
		c.Session.IdleTimeout = 30 * time.Minute
	}
	if c.Session.TouchInterval <= 0 {
		c.Session.TouchInterval = time.Minute
	}
	if c.Session.IdleTimeout >= c.Auth.SessionMaxLifetime {
		errs = append(errs, errors.New("SESSION_IDLE_TIMEOUT must be less than SESSION_MAX_LIFETIME"))
	}
	if c.Session.TouchInterval >= c.Session.IdleTimeout {
		errs = append(errs, errors.New("SESSION_TOUCH_INTERVAL must be less than SESSION_IDLE_TIMEOUT"))
	}
	if c.Session.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_CONCURRENT must be >= 0, got %d", c.Session.MaxConcurrent))
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "session_token"
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	if c.DB.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 0, got %d", c.DB.MaxOpenConns))
	}
	if c.DB.MaxIdleConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_IDLE_CONNS must be >= 0, got %d", c.DB.MaxIdleConns))
	}
	if c.DB.MaxOpenConns > 0 && c.DB.MaxIdleConns > c.DB.MaxOpenConns {
		errs = append(errs, errors.New("DB_MAX_IDLE_CONNS must not exceed DB_MAX_OPEN_CONNS"))
	}
	if c.DB.StatementTimeout < 0 {
		errs = append(errs, errors.New("DB_STATEMENT_TIMEOUT must not be negative"))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) UsesPostgres() bool {
	return c.Store.Driver == StoreDriverPostgres
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// PostgresPool maps the DB_* pool settings for utils.OpenPostgres.
// appName tags connections in pg_stat_activity.
func (c Config) PostgresPool(appName string) utils.PostgresPoolConfig {
	return utils.PostgresPoolConfig{
		MaxOpenConns:     c.DB.MaxOpenConns,
		MaxIdleConns:     c.DB.MaxIdleConns,
		ConnMaxLifetime:  c.DB.ConnMaxLifetime,
		ConnMaxIdleTime:  c.DB.ConnMaxIdleTime,
		StatementTimeout: c.DB.StatementTimeout,
		ApplicationName:  appName,
	}
}

// PostgresURL is the URL form of the DSN, required by the migration runner.
func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.DB.SSLMode),
	}
	return u.String()
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(v *viper.Viper, key string) (int, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return n, nil
}

func optionalInt(v *viper.Viper, key string) (int, error) {
	if strings.TrimSpace(v.GetString(key)) == "" {
		return 0, nil
	}
	return mustInt(v, key)
}

func appendDuration(errs []error, v *viper.Viper, key string) (time.Duration, []error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, s))
	}
	return d, errs
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
