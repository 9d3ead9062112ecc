package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string
	LogMode string

	DBDriver   string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	SQLitePath string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	RateLimitMax    int
	RateLimitWindow time.Duration

	RetentionDays     int
	RetentionInterval time.Duration

	// Origins allowed for CORS and socket upgrades. "*" allows any.
	AllowedOrigins []string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:           getEnv("APP_PORT", "8080"),
		AppMode:           getEnv("APP_MODE", "debug"),
		LogMode:           getEnv("LOG_MODE", "development"),
		DBDriver:          getEnv("DB_DRIVER", "sqlite"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "team_poll"),
		DBPort:            getEnv("DB_PORT", "5432"),
		SQLitePath:        getEnv("SQLITE_PATH", "data/polls.db"),
		RedisHost:         getEnv("REDIS_HOST", ""),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		RateLimitMax:      getEnvAsInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		RetentionDays:     getEnvAsInt("RETENTION_DAYS", 30),
		RetentionInterval: getEnvAsDuration("RETENTION_INTERVAL", time.Hour),
		AllowedOrigins:    getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
	}
}

// RedisEnabled reports whether a Redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func (c *Config) RetentionHorizon() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
