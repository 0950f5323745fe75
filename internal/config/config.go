package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string

	LogLevel  string
	LogFormat string

	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	LLMMaxTokens     int
	LLMTimeout       time.Duration

	PendingActionTTL time.Duration
	CurrencySymbol   string

	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioWhatsAppFrom       string
	WebhookPublicURL         string
	WebhookValidateSignature bool

	AdminAPIToken string

	Storage StorageConfig

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	IdempotencyTTL time.Duration
}

// StorageConfig describes the object store that receives rendered documents.
type StorageConfig struct {
	Driver            string // s3 or memory
	Bucket            string
	Region            string
	Endpoint          string
	AccessKey         string
	SecretKey         string
	UsePathStyle      bool
	PublicBaseURL     string
	PresignExpiration time.Duration
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./assistant.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "assistant"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
		LLMMaxTokens:     getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTimeout:       getEnvDuration("LLM_TIMEOUT", 20*time.Second),

		PendingActionTTL: getEnvDuration("PENDING_ACTION_TTL", 10*time.Minute),
		CurrencySymbol:   getEnv("CURRENCY_SYMBOL", "K"),

		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:       getEnv("TWILIO_WHATSAPP_FROM", ""),
		WebhookPublicURL:         getEnv("WEBHOOK_PUBLIC_URL", ""),
		WebhookValidateSignature: getEnvBool("WEBHOOK_VALIDATE_SIGNATURE", false),

		AdminAPIToken: getEnv("ADMIN_API_TOKEN", ""),

		Storage: StorageConfig{
			Driver:            getEnv("STORAGE_DRIVER", "memory"),
			Bucket:            getEnv("STORAGE_BUCKET", "documents"),
			Region:            getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:          getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:         getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:         getEnv("STORAGE_SECRET_KEY", ""),
			UsePathStyle:      getEnvBool("STORAGE_USE_PATH_STYLE", true),
			PublicBaseURL:     getEnv("STORAGE_PUBLIC_BASE_URL", ""),
			PresignExpiration: getEnvDuration("STORAGE_PRESIGN_EXPIRATION", 7*24*time.Hour),
		},

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	}
}

// Validate reports every missing setting for the selected drivers at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case "postgres":
		if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
			errs = append(errs, errors.New("DB_HOST, DB_NAME and DB_USER are required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}

	switch c.Storage.Driver {
	case "memory":
	case "s3":
		if c.Storage.Bucket == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			errs = append(errs, errors.New("STORAGE_BUCKET, STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver))
	}

	if c.WebhookValidateSignature && (c.TwilioAuthToken == "" || c.WebhookPublicURL == "") {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN and WEBHOOK_PUBLIC_URL are required when WEBHOOK_VALIDATE_SIGNATURE is set"))
	}

	if c.PendingActionTTL <= 0 {
		errs = append(errs, errors.New("PENDING_ACTION_TTL must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// PostgresDSN builds the connection string for gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Warning: invalid integer for %s, using %d", key, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Warning: invalid boolean for %s, using %t", key, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Warning: invalid duration for %s, using %s", key, fallback)
		return fallback
	}
	return d
}
