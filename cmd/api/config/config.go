package config

import (
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       zerolog.Level

	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string

	GenAIAPIKey  string
	ArticleModel string
	ChatModel    string

	AuthJWTSecret string
	AuthJWKSURL   string

	GCSBucketName string
}

// Load reads the configuration from the environment, filling in defaults for
// everything except the provider key and token verification settings.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "3000"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:       parseLevel(os.Getenv("LOG_LEVEL")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         getEnv("DB_NAME", "english_lab"),
		DBPort:         getEnv("DB_PORT", "5432"),
		GenAIAPIKey:    os.Getenv("GOOGLE_AI_STUDIO_API_KEY"),
		ArticleModel:   getEnv("ARTICLE_MODEL", "gemini-1.5-pro-001"),
		ChatModel:      getEnv("CHAT_MODEL", "gemini-1.5-flash-001"),
		AuthJWTSecret:  os.Getenv("AUTH_JWT_SECRET"),
		AuthJWKSURL:    os.Getenv("AUTH_JWKS_URL"),
		GCSBucketName:  os.Getenv("GCS_BUCKET_NAME"),
	}

	if cfg.GenAIAPIKey == "" {
		return nil, errors.New("GOOGLE_AI_STUDIO_API_KEY is not set in the environment")
	}
	if cfg.AuthJWTSecret == "" && cfg.AuthJWKSURL == "" {
		return nil, errors.New("one of AUTH_JWT_SECRET or AUTH_JWKS_URL must be set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}
