package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-ordering/models"
)

type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	RestaurantName string
	PublicBaseURL  string
	UploadDir      string
	AllowedOrigin  string

	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Payment  PaymentConfig
	Midtrans MidtransConfig

	RateLimit string
}

type DBConfig struct {
	Driver string
	DSN    string
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

type PaymentConfig struct {
	QRISProvider      string
	QRISStaticPayload string
	QRISExpiry        time.Duration
	TransferExpiry    time.Duration
	CashExpiry        time.Duration
	BankAccounts      []models.BankAccount
	ExpiryCheckEvery  time.Duration
	CashVariance      decimal.Decimal
}

type MidtransConfig struct {
	ServerKey   string
	ClientKey   string
	Environment string
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("REDIS_DB: %w", err)
	}

	variance, err := decimal.NewFromString(getEnv("CASH_VARIANCE_THRESHOLD", "5000"))
	if err != nil {
		return Config{}, fmt.Errorf("CASH_VARIANCE_THRESHOLD: %w", err)
	}

	accounts, err := ParseBankAccounts(getEnv("BANK_ACCOUNTS", "BCA:1234567890:PT Resto Nusantara"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RestaurantName: getEnv("RESTAURANT_NAME", "Restaurant"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		UploadDir:      getEnv("UPLOAD_DIR", "public/uploads"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		RateLimit:      getEnv("RATE_LIMIT", "120-M"),
		DB: DBConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			DSN:    getEnv("DB_DSN", "restaurant.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Prefix:   getEnv("REDIS_PREFIX", "resto:"),
			CartTTL:  getDuration("REDIS_CART_TTL", 12*time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenTTL:      getDuration("TOKEN_TTL", 24*time.Hour),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Payment: PaymentConfig{
			QRISProvider:      getEnv("QRIS_PROVIDER", "static"),
			QRISStaticPayload: getEnv("QRIS_STATIC_PAYLOAD", ""),
			QRISExpiry:        getDuration("QRIS_EXPIRY", 15*time.Minute),
			TransferExpiry:    getDuration("TRANSFER_EXPIRY", 24*time.Hour),
			CashExpiry:        getDuration("CASH_EXPIRY", 24*time.Hour),
			BankAccounts:      accounts,
			ExpiryCheckEvery:  getDuration("EXPIRY_CHECK_INTERVAL", time.Minute),
			CashVariance:      variance,
		},
		Midtrans: MidtransConfig{
			ServerKey:   getEnv("MIDTRANS_SERVER_KEY", ""),
			ClientKey:   getEnv("MIDTRANS_CLIENT_KEY", ""),
			Environment: getEnv("MIDTRANS_ENV", "sandbox"),
		},
	}

	if cfg.Payment.QRISProvider == "midtrans" && cfg.Midtrans.ServerKey == "" {
		return Config{}, fmt.Errorf("QRIS_PROVIDER=midtrans requires MIDTRANS_SERVER_KEY")
	}
	return cfg, nil
}

// ParseBankAccounts parses "BANK:NUMBER:HOLDER;BANK:NUMBER:HOLDER".
func ParseBankAccounts(raw string) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("BANK_ACCOUNTS: malformed entry %q", entry)
		}
		accounts = append(accounts, models.BankAccount{
			Bank:   strings.TrimSpace(parts[0]),
			Number: strings.TrimSpace(parts[1]),
			Holder: strings.TrimSpace(parts[2]),
		})
	}
	return accounts, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
