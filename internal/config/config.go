package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type CacheMode string

const (
	CacheOff    CacheMode = "off"
	CacheMemory CacheMode = "memory"
	CacheRedis  CacheMode = "redis"
)

type Config struct {
	Env       string
	Port      int
	DebugMode bool

	DBURL         string
	DBMaxConns    int32
	DBAutoMigrate bool

	JWTSecret    string
	JWTAlgorithm string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration

	AllowedHosts       []string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration

	UserCache    CacheMode
	UserCacheTTL time.Duration
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	OTLPEndpoint string
	ServiceName  string

	SeedUserEmail    string
	SeedUserPassword string
}

func Load() Config {
	return Config{
		Env:       getEnv("APP_ENV", "dev"),
		Port:      getEnvInt("PORT", 8080),
		DebugMode: getEnvBool("DEBUG_MODE", false),

		DBURL:         getEnv("DATABASE_URL", buildDBURL(getEnv("POSTGRES_DB", "todotask"))),
		DBMaxConns:    int32(getEnvInt("DB_MAX_CONNS", 5)),
		DBAutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),

		JWTSecret:    os.Getenv("JWT_SECRET_KEY"),
		JWTAlgorithm: getEnv("JWT_ALGORITHM", "HS256"),
		AccessTTL:    time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		RefreshTTL:   time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRE_MINUTES", 10080)) * time.Minute,

		AllowedHosts:       getEnvList("ALLOWED_HOSTS", []string{"127.0.0.1", "localhost"}),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 5)) * time.Second,

		UserCache:    CacheMode(strings.ToLower(getEnv("USER_CACHE", string(CacheOff)))),
		UserCacheTTL: time.Duration(getEnvInt("USER_CACHE_TTL_SECONDS", 60)) * time.Second,
		RedisAddr:    getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:      getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "todotask-api"),

		SeedUserEmail:    os.Getenv("SEED_USER_EMAIL"),
		SeedUserPassword: os.Getenv("SEED_USER_PASSWORD"),
	}
}

// TestDBURL is the DSN for integration tests: TEST_DB_DSN, or the regular
// connection parts pointed at POSTGRES_TEST_DB.
func TestDBURL() string {
	if dsn := os.Getenv("TEST_DB_DSN"); dsn != "" {
		return dsn
	}

	name := os.Getenv("POSTGRES_TEST_DB")

	if name == "" {
		return ""
	}

	return buildDBURL(name)
}

func buildDBURL(name string) string {
	host := getEnv("POSTGRES_HOST", "127.0.0.1")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "todotask")
	pass := getEnv("POSTGRES_PASSWORD", "todotask")
	ssl := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}

	return u.String()
}

var supportedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}

	if !supportedAlgorithms[c.JWTAlgorithm] {
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM %q is not supported", c.JWTAlgorithm))
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}

	switch c.UserCache {
	case CacheOff, CacheMemory, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("USER_CACHE %q must be off, memory or redis", c.UserCache))
	}

	if c.DBMaxConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be positive"))
	}

	return errors.Join(errs...)
}

func (c Config) IsDev() bool {
	return c.Env == "dev"
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an integer, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not a boolean, using %t\n", key, v, fallback)
			return fallback
		}

		return b
	}

	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)

	if !ok {
		return fallback
	}

	var out []string

	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}
