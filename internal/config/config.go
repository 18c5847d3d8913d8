package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	AppPort   string
	AppEnv    string
	JWTSecret string

	AllowedOrigin     string
	InternalSecretKey string

	Gateway  GatewayConfig
	Telegram TelegramConfig
}

type GatewayConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	APIVersion    string
	WebhookSecret string
	ReturnURL     string

	// Timeout bounds every gateway call; RefundTimeout is the tighter
	// bound used on the cancellation path.
	Timeout       time.Duration
	RefundTimeout time.Duration
}

type TelegramConfig struct {
	Token       string
	AdminChatID int64
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     cast.ToString(getOrReturnDefault("DB_PORT", "5432")),
		DBSSLMode:  cast.ToString(getOrReturnDefault("DB_SSLMODE", "disable")),
		AppPort:    cast.ToString(getOrReturnDefault("APP_PORT", "8080")),
		AppEnv:     os.Getenv("APP_ENV"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		AllowedOrigin:     cast.ToString(getOrReturnDefault("ALLOWED_ORIGIN", "http://localhost:3000")),
		InternalSecretKey: os.Getenv("INTERNAL_SECRET_KEY"),

		Gateway: GatewayConfig{
			BaseURL:       cast.ToString(getOrReturnDefault("PG_BASE_URL", "https://sandbox.cashfree.com")),
			ClientID:      os.Getenv("PG_CLIENT_ID"),
			ClientSecret:  os.Getenv("PG_CLIENT_SECRET"),
			APIVersion:    cast.ToString(getOrReturnDefault("PG_API_VERSION", "2023-08-01")),
			WebhookSecret: os.Getenv("PG_WEBHOOK_SECRET"),
			ReturnURL:     os.Getenv("PG_RETURN_URL"),
			Timeout:       cast.ToDuration(getOrReturnDefault("PG_TIMEOUT", "15s")),
			RefundTimeout: cast.ToDuration(getOrReturnDefault("PG_REFUND_TIMEOUT", "10s")),
		},
		Telegram: TelegramConfig{
			Token:       os.Getenv("ADMIN_BOT_TOKEN"),
			AdminChatID: cast.ToInt64(getOrReturnDefault("ADMIN_CHAT_ID", 0)),
		},
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
