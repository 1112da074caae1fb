package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const maxConfirmTimeout = 12 * time.Second

type Config struct {
	Amazon   AmazonConfig
	Browser  BrowserConfig
	Cart     CartConfig
	Checkout CheckoutConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type AmazonConfig struct {
	Email       string
	Password    string
	BaseURL     string
	SearchTerm  string
	MaxProducts int
}

type BrowserConfig struct {
	Headless bool
	Timeout  time.Duration
	Install  bool
}

type CartConfig struct {
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
	ClickDelayMin   time.Duration
	ClickDelayMax   time.Duration
}

type CheckoutConfig struct {
	Timeout       time.Duration
	NotifyTimeout time.Duration
	InspectLinger time.Duration
}

type StorageConfig struct {
	DebugDir string
}

// RedisConfig is optional. An empty Addr disables event publishing.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// ServerConfig is optional. An empty StatusAddr disables the status API.
type ServerConfig struct {
	StatusAddr      string
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the optional env files (".env" when none are given) and then the
// process environment. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Amazon: AmazonConfig{
			Email:       os.Getenv("AMAZON_EMAIL"),
			Password:    os.Getenv("AMAZON_PASSWORD"),
			BaseURL:     getEnvOrDefault("AMAZON_BASE_URL", "https://www.amazon.in"),
			SearchTerm:  getEnvOrDefault("PRODUCT_TO_SEARCH", "laptop"),
			MaxProducts: getIntOrDefault("MAX_PRODUCTS", 2),
		},
		Browser: BrowserConfig{
			Headless: getBoolOrDefault("BROWSER_HEADLESS", false),
			Timeout:  getDurationOrDefault("BROWSER_TIMEOUT", 20*time.Second),
			Install:  getBoolOrDefault("BROWSER_INSTALL", false),
		},
		Cart: CartConfig{
			ConfirmTimeout:  getDurationOrDefault("CONFIRM_TIMEOUT", maxConfirmTimeout),
			ConfirmInterval: getDurationOrDefault("CONFIRM_INTERVAL", 500*time.Millisecond),
			ClickDelayMin:   getDurationOrDefault("CLICK_DELAY_MIN", 400*time.Millisecond),
			ClickDelayMax:   getDurationOrDefault("CLICK_DELAY_MAX", 900*time.Millisecond),
		},
		Checkout: CheckoutConfig{
			Timeout:       getDurationOrDefault("CHECKOUT_TIMEOUT", 20*time.Second),
			NotifyTimeout: getDurationOrDefault("NOTIFY_TIMEOUT", 5*time.Minute),
			InspectLinger: getDurationOrDefault("INSPECT_LINGER", 60*time.Second),
		},
		Storage: StorageConfig{
			DebugDir: getEnvOrDefault("DEBUG_DIR", "."),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:cart_agent"),
		},
		Server: ServerConfig{
			StatusAddr:      os.Getenv("STATUS_ADDR"),
			ShutdownTimeout: getDurationOrDefault("STATUS_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Amazon.Email == "" || c.Amazon.Password == "" {
		return fmt.Errorf("AMAZON_EMAIL and AMAZON_PASSWORD must be set")
	}

	if c.Amazon.MaxProducts < 1 {
		return fmt.Errorf("MAX_PRODUCTS must be at least 1")
	}

	if c.Cart.ClickDelayMin > c.Cart.ClickDelayMax {
		return fmt.Errorf("CLICK_DELAY_MIN cannot be greater than CLICK_DELAY_MAX")
	}

	if c.Cart.ConfirmTimeout <= 0 || c.Cart.ConfirmTimeout > maxConfirmTimeout {
		return fmt.Errorf("CONFIRM_TIMEOUT must be between 0 and %s", maxConfirmTimeout)
	}

	if c.Cart.ConfirmInterval <= 0 || c.Cart.ConfirmInterval > c.Cart.ConfirmTimeout {
		return fmt.Errorf("CONFIRM_INTERVAL must be positive and not exceed CONFIRM_TIMEOUT")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
