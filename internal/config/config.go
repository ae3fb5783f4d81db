package config

import (
	"fmt"
	"strings"
	"time"

	"unilink-backend/internal/database"
	"unilink-backend/pkg/constants"
	pkgdb "unilink-backend/pkg/database"
	"unilink-backend/pkg/env"
)

// Config holds all call-service configuration loaded from the environment
type Config struct {
	Env  string
	Port string

	Cockroach *pkgdb.CockroachConfig
	Cassandra *pkgdb.CassandraConfig
	Redis     *database.RedisConfig

	JWTSecret string

	RTCAPIKey    string
	RTCAPISecret string
	RTCServerURL string
	RTCTokenTTL  time.Duration
}

// Load reads configuration from environment variables, with Docker-secret
// file indirection for credentials
func Load() (*Config, error) {
	cfg := &Config{
		Env:  env.GetString("ENV", "development"),
		Port: env.GetString("PORT", "8084"),

		Cockroach: &pkgdb.CockroachConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "unilink"),
			SSLMode:  env.GetString("DB_SSLMODE", "disable"),
		},

		Cassandra: &pkgdb.CassandraConfig{
			Hosts:    strings.Split(env.GetString("CASSANDRA_HOSTS", "localhost"), ","),
			Keyspace: env.GetString("CASSANDRA_KEYSPACE", "unilink"),
			Username: env.GetString("CASSANDRA_USER", ""),
			Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
			Timeout:  env.GetDuration("CASSANDRA_TIMEOUT", 10*time.Second),
		},

		Redis: &database.RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},

		JWTSecret: env.GetStringFromFile("JWT_SECRET", ""),

		RTCAPIKey:    env.GetString("RTC_API_KEY", ""),
		RTCAPISecret: env.GetStringFromFile("RTC_API_SECRET", ""),
		RTCServerURL: env.GetString("RTC_SERVER_URL", "ws://localhost:7880"),
		RTCTokenTTL:  env.GetDuration("RTC_TOKEN_TTL", constants.RTCTokenTTL),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if cfg.IsProduction() && (cfg.RTCAPIKey == "" || cfg.RTCAPISecret == "") {
		return nil, fmt.Errorf("RTC_API_KEY and RTC_API_SECRET are required in production")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
