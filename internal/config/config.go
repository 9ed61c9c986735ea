// Package config loads runtime settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/pkg/utils"

	"github.com/joho/godotenv"
)

// Order price policies.
const (
	PricePolicyLog    = models.PricePolicyLog
	PricePolicyReject = models.PricePolicyReject
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port string

	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	DBSchemaPath string

	JWTSecret string
	JWTTTL    time.Duration

	CORSAllowedOrigins []string

	StorageRoot      string
	StorageURLPrefix string

	Location          *time.Location
	LowStockThreshold int
	OrderPricePolicy  string
	SeedDefaultUsers  bool

	CafeName      string
	CurrencyLabel string

	LogLevel  string
	LogPretty bool
	GinMode   string
}

// DSN returns the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Port:             utils.Getenv("PORT", "8080"),
		DBHost:           utils.Getenv("DB_HOST", "localhost"),
		DBPort:           utils.Getenv("DB_PORT", "5432"),
		DBUser:           utils.Getenv("DB_USER", "cafeteria"),
		DBPassword:       utils.Getenv("DB_PASSWORD", "cafeteria"),
		DBName:           utils.Getenv("DB_NAME", "cafeteria"),
		DBSSLMode:        utils.Getenv("DB_SSLMODE", "disable"),
		DBSchemaPath:     utils.Getenv("DB_SCHEMA_PATH", ""),
		JWTSecret:        utils.Getenv("JWT_SECRET", ""),
		StorageRoot:      utils.Getenv("STORAGE_ROOT", "storage/public"),
		StorageURLPrefix: utils.Getenv("STORAGE_URL_PREFIX", "/storage"),
		OrderPricePolicy: strings.ToLower(utils.Getenv("ORDER_PRICE_POLICY", PricePolicyLog)),
		SeedDefaultUsers: utils.GetenvBool("SEED_DEFAULT_USERS", false),
		CafeName:         utils.Getenv("CAFE_NAME", "Green Cafeteria"),
		CurrencyLabel:    utils.Getenv("CURRENCY_LABEL", "Tk"),
		LogLevel:         utils.Getenv("LOG_LEVEL", "info"),
		LogPretty:        utils.GetenvBool("LOG_PRETTY", true),
		GinMode:          utils.Getenv("GIN_MODE", "release"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	ttl, err := time.ParseDuration(utils.Getenv("JWT_TTL", "24h"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid JWT_TTL: %q", utils.Getenv("JWT_TTL", ""))
	}
	cfg.JWTTTL = ttl

	// The zone name is passed to PostgreSQL, so it must be an IANA name.
	zone := strings.TrimSpace(utils.Getenv("APP_TIMEZONE", "UTC"))
	if zone == "" || strings.EqualFold(zone, "Local") {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: use an IANA zone name such as Asia/Dhaka", zone)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	threshold, err := strconv.Atoi(utils.Getenv("LOW_STOCK_THRESHOLD", "5"))
	if err != nil || threshold < 0 {
		return nil, fmt.Errorf("invalid LOW_STOCK_THRESHOLD: %q", utils.Getenv("LOW_STOCK_THRESHOLD", ""))
	}
	cfg.LowStockThreshold = threshold

	if cfg.OrderPricePolicy != PricePolicyLog && cfg.OrderPricePolicy != PricePolicyReject {
		return nil, fmt.Errorf("invalid ORDER_PRICE_POLICY %q: want %q or %q", cfg.OrderPricePolicy, PricePolicyLog, PricePolicyReject)
	}

	cfg.CORSAllowedOrigins = splitList(utils.Getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
