package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"os"
	"sync"
	"time"
)

const (
	defaultServerAddress      = ":8080"
	defaultDatabaseDSN        = ""
	defaultLogLevel           = "debug"
	defaultTokenKey           = ""
	defaultRedisAddr          = ""
	defaultMinWithdrawal      = "500"
	defaultGatewayTimeout     = 15 * time.Second
	defaultRefundPollInterval = time.Minute
	defaultRazorpayAPIURL     = "https://api.razorpay.com"
	defaultReceiptPrefix      = "rcpt"
)

type Config struct {
	ServerAddr         string          `env:"RUN_ADDRESS"`
	DatabaseDSN        string          `env:"DATABASE_URI"`
	LogLevel           string          `env:"LOG_LEVEL"`
	TokenKey           string          `env:"AUTH_TOKEN_KEY"`
	RedisAddr          string          `env:"REDIS_ADDR"`
	MinWithdrawal      decimal.Decimal `env:"MIN_WITHDRAWAL"`
	GatewayTimeout     time.Duration   `env:"GATEWAY_TIMEOUT"`
	RefundPollInterval time.Duration   `env:"REFUND_POLL_INTERVAL"`
	RazorpayAPIURL     string          `env:"RAZORPAY_API_URL"`
	// PayU URLs are derived from the gateway test mode when empty
	PayUPaymentURL string `env:"PAYU_PAYMENT_URL"`
	PayUInfoURL    string `env:"PAYU_INFO_URL"`
	ReceiptPrefix  string `env:"RECEIPT_PREFIX"`
}

var (
	once      sync.Once
	singleton *Config
	errLoad   error
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		singleton, errLoad = parse(flag.CommandLine, os.Args[1:], nil)
	})

	return singleton, errLoad
}

// parse reads flags from args, then overrides them with environment variables.
// A nil environ means the process environment.
func parse(fs *flag.FlagSet, args []string, environ map[string]string) (*Config, error) {
	cfg := Config{
		MinWithdrawal: decimal.RequireFromString(defaultMinWithdrawal),
	}

	// initialize flags
	fs.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "server address")
	fs.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "database DSN, in-memory storage when empty")
	fs.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
	fs.StringVar(&cfg.TokenKey, "k", defaultTokenKey, "hex encoded auth token key")
	fs.StringVar(&cfg.RedisAddr, "redis", defaultRedisAddr, "redis address for rate limiting, in-memory when empty")
	fs.TextVar(&cfg.MinWithdrawal, "min-withdrawal", cfg.MinWithdrawal, "minimum withdrawal amount")
	fs.DurationVar(&cfg.GatewayTimeout, "gateway-timeout", defaultGatewayTimeout, "payment gateway request timeout")
	fs.DurationVar(&cfg.RefundPollInterval, "refund-poll", defaultRefundPollInterval, "refund reconciliation interval")
	fs.StringVar(&cfg.RazorpayAPIURL, "razorpay-url", defaultRazorpayAPIURL, "razorpay API base URL")
	fs.StringVar(&cfg.PayUPaymentURL, "payu-payment-url", "", "payu payment form URL")
	fs.StringVar(&cfg.PayUInfoURL, "payu-info-url", "", "payu merchant API URL")
	fs.StringVar(&cfg.ReceiptPrefix, "receipt-prefix", defaultReceiptPrefix, "payment order receipt prefix")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// if environment variable is set, then using it
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if !c.MinWithdrawal.IsPositive() {
		return errors.New("minimum withdrawal must be positive")
	}
	if c.GatewayTimeout <= 0 {
		return errors.New("gateway timeout must be positive")
	}
	if c.RefundPollInterval <= 0 {
		return errors.New("refund poll interval must be positive")
	}
	if _, err := c.TokenKeyBytes(); err != nil {
		return err
	}
	return nil
}

// TokenKeyBytes returns decoded auth token key
func (c *Config) TokenKeyBytes() ([]byte, error) {
	if c.TokenKey == "" {
		return nil, errors.New("auth token key is required")
	}
	key, err := hex.DecodeString(c.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("decode token key: %w", err)
	}
	if len(key) < 16 {
		return nil, errors.New("token key must be at least 16 bytes")
	}
	return key, nil
}
