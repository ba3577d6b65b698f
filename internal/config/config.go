package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration. It is read once at startup and
// never changes afterwards.
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	JWTSecret     string
	LedgerSealKey string

	MinCreditScore     int
	Cooldown           time.Duration
	MinLoanAmount      decimal.Decimal
	MaxLoanAmount      decimal.Decimal
	MaxLoanCap         decimal.Decimal
	PoolInitialBalance decimal.Decimal

	SettlementURL     string
	SettlementTimeout time.Duration
	ReconcileAfter    time.Duration
	ReconcileSchedule string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	AlertEmail   string
}

// NewConfig loads configuration from environment variables. A .env file in
// the working directory is loaded first if present.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DBConn:            getEnv("DB_CONN", ""),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		LedgerSealKey:     getEnv("LEDGER_SEAL_KEY", ""),
		SettlementURL:     getEnv("SETTLEMENT_URL", ""),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1m"),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SenderEmail:       getEnv("SENDER_EMAIL", ""),
		AlertEmail:        getEnv("ALERT_EMAIL", ""),
	}

	var err error
	if cfg.MinCreditScore, err = getEnvInt("MIN_CREDIT_SCORE", 700); err != nil {
		return nil, err
	}
	cooldownSeconds, err := getEnvInt("COOLDOWN_SECONDS", 86400)
	if err != nil {
		return nil, err
	}
	cfg.Cooldown = time.Duration(cooldownSeconds) * time.Second
	if cfg.MinLoanAmount, err = getEnvDecimal("MIN_LOAN_AMOUNT", "50"); err != nil {
		return nil, err
	}
	if cfg.MaxLoanAmount, err = getEnvDecimal("MAX_LOAN_AMOUNT", "2000"); err != nil {
		return nil, err
	}
	if cfg.MaxLoanCap, err = getEnvDecimal("MAX_LOAN_CAP", "2000"); err != nil {
		return nil, err
	}
	if cfg.PoolInitialBalance, err = getEnvDecimal("POOL_INITIAL_BALANCE", "10000"); err != nil {
		return nil, err
	}
	if cfg.SettlementTimeout, err = getEnvDuration("SETTLEMENT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconcileAfter, err = getEnvDuration("RECONCILE_AFTER", 15*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.LedgerSealKey == "" {
		return fmt.Errorf("LEDGER_SEAL_KEY is required")
	}
	if c.MinCreditScore < 300 || c.MinCreditScore > 850 {
		return fmt.Errorf("MIN_CREDIT_SCORE must be between 300 and 850, got %d", c.MinCreditScore)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("COOLDOWN_SECONDS cannot be negative")
	}
	if !c.MinLoanAmount.IsPositive() {
		return fmt.Errorf("MIN_LOAN_AMOUNT must be positive")
	}
	if c.MaxLoanAmount.LessThan(c.MinLoanAmount) {
		return fmt.Errorf("MAX_LOAN_AMOUNT %s is below MIN_LOAN_AMOUNT %s", c.MaxLoanAmount, c.MinLoanAmount)
	}
	if c.PoolInitialBalance.IsNegative() {
		return fmt.Errorf("POOL_INITIAL_BALANCE cannot be negative")
	}
	if c.SettlementTimeout <= 0 {
		return fmt.Errorf("SETTLEMENT_TIMEOUT must be positive")
	}
	if c.ReconcileAfter < c.SettlementTimeout {
		return fmt.Errorf("RECONCILE_AFTER must not be shorter than SETTLEMENT_TIMEOUT")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDecimal(key, defaultVal string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, defaultVal))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
