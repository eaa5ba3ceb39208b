package config

import (
	"os"
	"strconv"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	DB     PostgresConfig
	Auth   AuthConfig
	Gemini GeminiConfig
	Stripe StripeConfig
	Upload UploadConfig
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
}

type AuthConfig struct {
	SupabaseURL string
	JWTSecret   string
	JWKSURL     string
	Issuer      string
	Audience    string
}

type GeminiConfig struct {
	APIKey        string
	PrimaryModel  string
	FallbackModel string
	Endpoint      string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	FrontendURL   string
	PriceID       string
}

type UploadConfig struct {
	Dir       string
	FreeLimit int
}

const (
	defaultPrimaryModel  = "gemini-2.0-flash-lite-preview-02-05"
	defaultFallbackModel = "gemini-flash-latest"
	defaultFreeLimit     = 3
)

func LoadConfig() (*Config, error) {
	freeLimit := defaultFreeLimit
	if v := os.Getenv("FREE_ANALYSIS_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			freeLimit = parsed
		}
	}

	cfg := &Config{
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
		},
		Auth: AuthConfig{
			SupabaseURL: os.Getenv("SUPABASE_URL"),
			JWTSecret:   os.Getenv("SUPABASE_JWT_SECRET"),
			JWKSURL:     os.Getenv("AUTH_JWKS_URL"),
			Issuer:      os.Getenv("AUTH_ISSUER"),
			Audience:    os.Getenv("AUTH_AUDIENCE"),
		},
		Gemini: GeminiConfig{
			APIKey:        os.Getenv("GOOGLE_API_KEY"),
			PrimaryModel:  envOr("GEMINI_PRIMARY_MODEL", defaultPrimaryModel),
			FallbackModel: envOr("GEMINI_FALLBACK_MODEL", defaultFallbackModel),
			Endpoint:      os.Getenv("GEMINI_ENDPOINT"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			FrontendURL:   os.Getenv("FRONTEND_URL"),
			PriceID:       os.Getenv("STRIPE_PRICE_ID"),
		},
		Upload: UploadConfig{
			Dir:       envOr("UPLOAD_DIR", "uploads"),
			FreeLimit: freeLimit,
		},
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
