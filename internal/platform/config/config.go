package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FallbackJWTSecret signs tokens when JWT_SECRET is unset. It is public and
// only fit for local development.
const FallbackJWTSecret = "family-tree-dev-secret-change-me"

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	APIPort string
	AppEnv  string

	JWTKey           []byte
	JWTKeyIsFallback bool
	JWTExp           time.Duration
	BcryptCost       int

	// ProtectedPrefixes are the path prefixes whose non-GET requests need a session.
	ProtectedPrefixes []string

	StorageDriver string
	DataDir       string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	TokenRevocation bool

	LogLevel  string
	LogFormat string

	AdminUsername string
	AdminPassword string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	secret, hasSecret := os.LookupEnv("JWT_SECRET")
	if !hasSecret || secret == "" {
		secret = FallbackJWTSecret
	}

	cfg := &Config{
		APIPort:           getEnv("API_PORT", "8080"),
		AppEnv:            getEnv("APP_ENV", EnvDevelopment),
		JWTKey:            []byte(secret),
		JWTKeyIsFallback:  secret == FallbackJWTSecret,
		JWTExp:            time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		BcryptCost:        getEnvAsInt("BCRYPT_COST", 10),
		ProtectedPrefixes: getEnvAsList("PROTECTED_PREFIXES", []string{"/api/family"}),
		StorageDriver:     getEnv("STORAGE_DRIVER", StorageFile),
		DataDir:           getEnv("DATA_DIR", "data"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "user"),
		DBPassword:        getEnv("DB_PASSWORD", "password"),
		DBName:            getEnv("DB_NAME", "family_tree"),
		DBSslMode:         getEnv("DB_SSLMODE", "disable"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		TokenRevocation:   getEnvAsBool("TOKEN_REVOCATION", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTExp <= 0 {
		return errors.New("config: JWT_EXPIRATION_HOURS must be positive")
	}
	switch c.StorageDriver {
	case StorageFile, StoragePostgres:
	default:
		return errors.New("config: STORAGE_DRIVER must be \"file\" or \"postgres\"")
	}
	if c.TokenRevocation && c.RedisAddr == "" {
		return errors.New("config: TOKEN_REVOCATION requires REDIS_ADDR")
	}
	return nil
}

// IsProduction reports whether cookies must carry the Secure attribute.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
