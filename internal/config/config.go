package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	DefaultCurrency string

	// IntentTTL bounds how long a payment intent stays collectible before the
	// expiry sweep marks it expired.
	IntentTTL time.Duration

	// ProviderTimeout applies to every outbound initiate/verify call.
	ProviderTimeout time.Duration

	Paystack PaystackConfig
	Mpesa    MpesaConfig
	Bank     BankConfig

	SchedulerInterval time.Duration
	ReceiptBaseURL    string

	LogLevel  string
	LogFormat string
}

// PaystackConfig configures the card gateway rail.
type PaystackConfig struct {
	SecretKey string
	BaseURL   string
}

// MpesaConfig configures the mobile money rail.
type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	BaseURL        string
}

// BankConfig configures the manual bank transfer rail.
type BankConfig struct {
	AccountName   string
	AccountNumber string
	BankName      string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "tenancy"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tenancy"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		DefaultCurrency: strings.ToUpper(getenv("DEFAULT_CURRENCY", "KES")),

		IntentTTL:       getenvDuration("PAYMENT_INTENT_TTL", 30*time.Minute),
		ProviderTimeout: getenvDuration("PROVIDER_TIMEOUT", 10*time.Second),

		Paystack: PaystackConfig{
			SecretKey: strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", "")),
			BaseURL:   getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		},
		Mpesa: MpesaConfig{
			ConsumerKey:    strings.TrimSpace(getenv("MPESA_CONSUMER_KEY", "")),
			ConsumerSecret: strings.TrimSpace(getenv("MPESA_CONSUMER_SECRET", "")),
			ShortCode:      strings.TrimSpace(getenv("MPESA_SHORT_CODE", "")),
			BaseURL:        getenv("MPESA_BASE_URL", "https://api.safaricom.co.ke"),
		},
		Bank: BankConfig{
			AccountName:   getenv("BANK_ACCOUNT_NAME", ""),
			AccountNumber: getenv("BANK_ACCOUNT_NUMBER", ""),
			BankName:      getenv("BANK_NAME", ""),
		},

		SchedulerInterval: getenvDuration("SCHEDULER_INTERVAL", 5*time.Minute),
		ReceiptBaseURL:    getenv("RECEIPT_BASE_URL", "https://receipts.tenancy.local"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
