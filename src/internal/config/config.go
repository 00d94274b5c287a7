package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the service reads
const EnvPrefix = "CASRECIPES"

// Load loads configuration from .env, environment variables and config files
func Load() (*viper.Viper, error) {
	// A missing .env is the normal case outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.AddConfigPath(".")
	v.AddConfigPath("/etc/casrecipes")
	v.SetConfigName("config")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	resolvePaths(v)

	// Generate secret key if not set
	if v.GetString("security.secret_key") == "" {
		key, err := generateSecretKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate secret key: %w", err)
		}
		v.Set("security.secret_key", key)
	}

	return v, nil
}

// SetDefaults applies the built-in defaults to v. Tests use it to build a
// configuration without touching the environment.
func SetDefaults(v *viper.Viper) {
	setDefaults(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("paths.data", "./data")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.body_limit", "8M")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "{paths.data}/casrecipes.db?_pragma=foreign_keys(1)")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_time", 300)

	// Security defaults
	v.SetDefault("security.secret_key", "")
	v.SetDefault("security.token_ttl", "72h")
	v.SetDefault("security.hsts", false)

	// Pagination defaults
	v.SetDefault("pagination.page_size", 5)
	v.SetDefault("pagination.max_page_size", 100)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.key_prefix", "casrecipes:")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Rate limiting defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 20)
	v.SetDefault("ratelimit.burst", 40)

	// Media defaults
	v.SetDefault("media.path", "{paths.data}/media")
	v.SetDefault("media.url_prefix", "/media")
	v.SetDefault("media.max_dimension", 1280)
	v.SetDefault("media.max_upload_bytes", 5242880) // 5MB decoded

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", "GET,POST,PATCH,DELETE,OPTIONS")
	v.SetDefault("cors.allowed_headers", "Authorization,Content-Type,X-Request-ID")
	v.SetDefault("cors.exposed_headers", "Content-Disposition,X-Request-ID")
	v.SetDefault("cors.max_age", 86400)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func resolvePaths(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if !strings.Contains(value, "{") || !strings.Contains(value, "}") {
			continue
		}

		resolved := value
		for _, varKey := range v.AllKeys() {
			varPattern := fmt.Sprintf("{%s}", varKey)
			if strings.Contains(resolved, varPattern) {
				resolved = strings.ReplaceAll(resolved, varPattern, v.GetString(varKey))
			}
		}
		v.Set(key, resolved)
	}
}

func generateSecretKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// Validate validates the configuration
func Validate(v *viper.Viper) error {
	dbType := v.GetString("database.type")
	switch dbType {
	case "sqlite", "":
	case "postgres", "postgresql", "mysql":
		if v.GetString("database.dsn") == "" {
			return fmt.Errorf("database.dsn is required for %s", dbType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}

	port := v.GetInt("server.port")
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	if v.GetString("security.secret_key") == "" {
		return fmt.Errorf("security.secret_key is required")
	}

	if v.GetInt("pagination.page_size") < 1 {
		return fmt.Errorf("pagination.page_size must be positive")
	}
	if v.GetInt("pagination.max_page_size") < v.GetInt("pagination.page_size") {
		return fmt.Errorf("pagination.max_page_size must not be below pagination.page_size")
	}

	return nil
}
