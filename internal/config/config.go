package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the whole application configuration, populated from
// environment variables.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Registry   RegistryConfig
	Controller ControllerConfig
	Owner      OwnerConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry int // minutes
}

// RegistryConfig seeds the registry settings row on first boot. After that
// the database copy is authoritative; these values are ignored.
type RegistryConfig struct {
	DurationDays      int
	ExpiryEnforcement bool
	MetadataBase      string
}

// ControllerConfig pins the deployment's chain id and seeds the controller
// state row (signer key and fee schedule) on first boot.
type ControllerConfig struct {
	ChainID           uint64
	SignerPublicKey   string // hex ed25519 public key
	MintFee           string // decimal string
	RenewalFeePerYear string // decimal string
	CallerID          string // capability the registry authorizes mutations for
}

// OwnerConfig is the single administrative account. The password travels as
// a bcrypt hash; the plaintext never reaches the process.
type OwnerConfig struct {
	Email        string
	PasswordHash string
}

// Load reads config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Identity Registry API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "identity_registry"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenExpiry: getEnvInt("JWT_ACCESS_EXPIRY", 15), // 15 minutes
		},
		Registry: RegistryConfig{
			DurationDays:      getEnvInt("REGISTRY_DURATION_DAYS", 365),
			ExpiryEnforcement: getEnvBool("REGISTRY_EXPIRY_ENFORCEMENT", false),
			MetadataBase:      getEnv("REGISTRY_METADATA_BASE", "https://metadata.example.com/identity/"),
		},
		Controller: ControllerConfig{
			ChainID:           getEnvUint64("CONTROLLER_CHAIN_ID", 1),
			SignerPublicKey:   getEnv("CONTROLLER_SIGNER_PUBLIC_KEY", ""),
			MintFee:           getEnv("CONTROLLER_MINT_FEE", "0"),
			RenewalFeePerYear: getEnv("CONTROLLER_RENEWAL_FEE_PER_YEAR", "0"),
			CallerID:          getEnv("CONTROLLER_CALLER_ID", "issuance-controller"),
		},
		Owner: OwnerConfig{
			Email:        getEnv("OWNER_EMAIL", "owner@example.com"),
			PasswordHash: getEnv("OWNER_PASSWORD_HASH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for fatal misconfigurations.
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.Owner.PasswordHash == "" {
			return fmt.Errorf("OWNER_PASSWORD_HASH must be set in production")
		}
		if c.Controller.SignerPublicKey == "" {
			return fmt.Errorf("CONTROLLER_SIGNER_PUBLIC_KEY must be set in production")
		}
	}

	if c.Registry.DurationDays < 1 {
		return fmt.Errorf("REGISTRY_DURATION_DAYS must be at least 1")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
