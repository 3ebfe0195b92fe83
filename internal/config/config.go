package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string
	Env      string
	LogLevel string
	AppName  string

	StoreDriver string
	DB          DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	JWTSecret   string

	Wallet WalletConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a Redis host was configured.
func (c RedisConfig) Enabled() bool { return c.Host != "" }

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// WalletConfig carries the money-handling knobs of the engine.
type WalletConfig struct {
	Currency             string
	Location             *time.Location
	DailyLimit           decimal.Decimal
	MonthlyLimit         decimal.Decimal
	LockTimeout          time.Duration
	StaleProcessingAfter time.Duration
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

// NewViper returns a viper instance bound to the environment with every
// default set.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_NAME", "kalpe-wallet")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "kalpe")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 30*time.Minute)

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", 30*time.Second)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "wallet.transactions")
	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("WALLET_CURRENCY", "XOF")
	v.SetDefault("WALLET_TIMEZONE", "Africa/Abidjan")
	v.SetDefault("WALLET_DAILY_LIMIT", "500000")
	v.SetDefault("WALLET_MONTHLY_LIMIT", "5000000")
	v.SetDefault("LOCK_TIMEOUT", 5*time.Second)
	v.SetDefault("STALE_PROCESSING_AFTER", 15*time.Minute)
	return v
}

// Load reads the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("WALLET_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid WALLET_TIMEZONE: %w", err)
	}
	daily, err := decimal.NewFromString(v.GetString("WALLET_DAILY_LIMIT"))
	if err != nil {
		return nil, fmt.Errorf("invalid WALLET_DAILY_LIMIT: %w", err)
	}
	monthly, err := decimal.NewFromString(v.GetString("WALLET_MONTHLY_LIMIT"))
	if err != nil {
		return nil, fmt.Errorf("invalid WALLET_MONTHLY_LIMIT: %w", err)
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Env:         v.GetString("ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		AppName:     v.GetString("APP_NAME"),
		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
		DB: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("REDIS_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		JWTSecret: v.GetString("JWT_SECRET"),
		Wallet: WalletConfig{
			Currency:             strings.ToUpper(v.GetString("WALLET_CURRENCY")),
			Location:             loc,
			DailyLimit:           daily,
			MonthlyLimit:         monthly,
			LockTimeout:          v.GetDuration("LOCK_TIMEOUT"),
			StaleProcessingAfter: v.GetDuration("STALE_PROCESSING_AFTER"),
		},
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
