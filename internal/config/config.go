package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name        string  `yaml:"name"`
	Env         string  `yaml:"env"`
	Port        string  `yaml:"port"`
	FrontendURL string  `yaml:"frontend_url"`
	BackendURL  string  `yaml:"backend_url"`
	LogLevel    string  `yaml:"log_level"`
	ShippingFee float64 `yaml:"shipping_fee"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	Schema          string        `yaml:"schema"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

type PaystackConfig struct {
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
	Currency  string `yaml:"currency"`
}

type MpesaConfig struct {
	ConsumerKey     string `yaml:"consumer_key"`
	ConsumerSecret  string `yaml:"consumer_secret"`
	ShortCode       string `yaml:"shortcode"`
	Passkey         string `yaml:"passkey"`
	BaseURL         string `yaml:"base_url"`
	TransactionDesc string `yaml:"transaction_desc"`
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Folder    string `yaml:"folder"`
}

// Configured reports whether all three credentials are present.
func (c CloudinaryConfig) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type AdminConfig struct {
	APIToken      string `yaml:"api_token"`
	Email         string `yaml:"email"`
	PasswordHash  string `yaml:"password_hash"`
	SessionSecret string `yaml:"session_secret"`
}

type Config struct {
	App        AppConfig        `yaml:"app"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Paystack   PaystackConfig   `yaml:"paystack"`
	Mpesa      MpesaConfig      `yaml:"mpesa"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	Admin      AdminConfig      `yaml:"admin"`
}

// Load reads configuration from an optional .env file, an optional YAML
// file at path and the process environment, in that order of precedence
// (environment wins).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:        "storefront",
			Env:         "development",
			Port:        "5000",
			FrontendURL: "http://localhost:3000",
			BackendURL:  "http://localhost:5000",
		},
		Postgres: PostgresConfig{
			Port:            "5432",
			SSLMode:         "disable",
			Schema:          "storefront",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MigrationsPath:  "migrations",
		},
		Paystack: PaystackConfig{
			BaseURL:  "https://api.paystack.co",
			Currency: "KES",
		},
		Mpesa: MpesaConfig{
			BaseURL:         "https://sandbox.safaricom.co.ke",
			TransactionDesc: "DeeDees Health & Wellness Purchase",
		},
		Cloudinary: CloudinaryConfig{
			Folder: "deedees-health",
		},
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Name, "APP_NAME")
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.Port, "APP_PORT", "PORT")
	setString(&cfg.App.FrontendURL, "FRONTEND_URL")
	setString(&cfg.App.BackendURL, "BACKEND_URL")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	if err := setFloat(&cfg.App.ShippingFee, "SHIPPING_FEE"); err != nil {
		return err
	}

	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.Port, "DB_PORT")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "DB_NAME")
	setString(&cfg.Postgres.SSLMode, "DB_SSLMODE")
	setString(&cfg.Postgres.Schema, "DB_SCHEMA")
	setString(&cfg.Postgres.MigrationsPath, "DB_MIGRATIONS_PATH")
	if err := setInt32(&cfg.Postgres.MaxConns, "DB_MAX_CONNS"); err != nil {
		return err
	}
	if err := setInt32(&cfg.Postgres.MinConns, "DB_MIN_CONNS"); err != nil {
		return err
	}
	if v := os.Getenv("DB_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DB_MAX_CONN_LIFETIME %q: %w", v, err)
		}
		cfg.Postgres.MaxConnLifetime = d
	}

	setString(&cfg.Paystack.SecretKey, "PAYSTACK_SECRET_KEY")
	setString(&cfg.Paystack.BaseURL, "PAYSTACK_BASE_URL")
	setString(&cfg.Paystack.Currency, "PAYSTACK_CURRENCY")

	setString(&cfg.Mpesa.ConsumerKey, "MPESA_CONSUMER_KEY")
	setString(&cfg.Mpesa.ConsumerSecret, "MPESA_CONSUMER_SECRET")
	setString(&cfg.Mpesa.ShortCode, "MPESA_SHORTCODE")
	setString(&cfg.Mpesa.Passkey, "MPESA_PASSKEY")
	setString(&cfg.Mpesa.BaseURL, "MPESA_BASE_URL")
	setString(&cfg.Mpesa.TransactionDesc, "MPESA_TRANSACTION_DESC")

	// Both naming conventions are in use across deployments.
	setString(&cfg.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME", "CLOUDINARY_NAME")
	setString(&cfg.Cloudinary.APIKey, "CLOUDINARY_API_KEY", "CLOUDINARY_KEY")
	setString(&cfg.Cloudinary.APISecret, "CLOUDINARY_API_SECRET", "CLOUDINARY_SECRET")
	setString(&cfg.Cloudinary.Folder, "CLOUDINARY_FOLDER")

	setString(&cfg.Admin.APIToken, "ADMIN_API_TOKEN")
	setString(&cfg.Admin.Email, "ADMIN_EMAIL")
	setString(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&cfg.Admin.SessionSecret, "SESSION_SECRET")

	if cfg.App.LogLevel == "" {
		if cfg.App.Env == "development" {
			cfg.App.LogLevel = "debug"
		} else {
			cfg.App.LogLevel = "info"
		}
	}

	return nil
}

func (c *Config) validate() error {
	if c.Postgres.Host == "" {
		return errors.New("DB_HOST is required")
	}
	if c.Postgres.User == "" {
		return errors.New("DB_USER is required")
	}
	if c.Postgres.DBName == "" {
		return errors.New("DB_NAME is required")
	}
	if c.App.Port == "" {
		return errors.New("APP_PORT is required")
	}
	return nil
}

// setString assigns the first non-empty variable among keys.
func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func setInt32(dst *int32, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = int32(n)
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = f
	return nil
}
