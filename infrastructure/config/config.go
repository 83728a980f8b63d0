package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anmolarora1/em/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development staging production test"`

	// Logging
	LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`

	// Storage
	DataDir     string `yaml:"dataDir"`
	LocalStore  string `yaml:"localStore" validate:"oneof=badger memory"`
	RemoteStore string `yaml:"remoteStore" validate:"oneof=dynamodb memory none"`

	// AWS configuration
	AWSRegion     string `yaml:"awsRegion"`
	DynamoDBTable string `yaml:"dynamoDBTable"`
	EventBusName  string `yaml:"eventBusName"`

	// Authentication
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`

	// Sync
	ClientID              string        `yaml:"clientId"`
	DisableThoughtHashing bool          `yaml:"disableThoughtHashing"`
	DataIntegrityCheck    bool          `yaml:"dataIntegrityCheck"`
	RemotePollInterval    time.Duration `yaml:"remotePollInterval" validate:"gte=0"`
	RetryInterval         time.Duration `yaml:"retryInterval" validate:"gte=0"`
	RetryMaxAttempts      int           `yaml:"retryMaxAttempts" validate:"gte=0"`

	// SettingsFile is the YAML file backing the settings mirror
	SettingsFile string `yaml:"settingsFile"`

	// ConfigFile is the overlay read at startup; it is watched for DynamicConfig changes
	ConfigFile string `yaml:"-"`

	// Feature flags
	EnableMetrics bool   `yaml:"enableMetrics"`
	EnableTracing bool   `yaml:"enableTracing"`
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	EnableCORS    bool   `yaml:"enableCORS"`
}

// defaults returns the configuration used when neither a file nor the environment sets a key
func defaults() *Config {
	return &Config{
		ServerAddress:      ":8080",
		Environment:        "development",
		LogLevel:           "info",
		DataDir:            "./data",
		LocalStore:         "badger",
		RemoteStore:        "memory",
		AWSRegion:          "us-west-2",
		DynamoDBTable:      "em",
		EventBusName:       "em-events",
		JWTIssuer:          "em",
		RemotePollInterval: 2 * time.Second,
		RetryInterval:      5 * time.Second,
		RetryMaxAttempts:   5,
		EnableCORS:         true,
	}
}

// LoadConfig loads configuration from the optional CONFIG_FILE overlay and then from
// environment variables, which take precedence
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg.ConfigFile = path
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.LocalStore = getEnv("LOCAL_STORE", c.LocalStore)
	c.RemoteStore = getEnv("REMOTE_STORE", c.RemoteStore)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("DYNAMODB_TABLE", c.DynamoDBTable)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.ClientID = getEnv("CLIENT_ID", c.ClientID)
	c.DisableThoughtHashing = getEnvBool("DISABLE_THOUGHT_HASHING", c.DisableThoughtHashing)
	c.DataIntegrityCheck = getEnvBool("DATA_INTEGRITY_CHECK", c.DataIntegrityCheck)
	c.RemotePollInterval = getEnvDuration("REMOTE_POLL_INTERVAL", c.RemotePollInterval)
	c.RetryInterval = getEnvDuration("RETRY_INTERVAL", c.RetryInterval)
	c.RetryMaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.SettingsFile = getEnv("SETTINGS_FILE", c.SettingsFile)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.RemoteStore == "dynamodb" && c.DynamoDBTable == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required when REMOTE_STORE=dynamodb")
	}
	if c.LocalStore == "badger" && c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required when LOCAL_STORE=badger")
	}

	return nil
}

// Dynamic returns the hot-reloadable part of the configuration
func (c *Config) Dynamic() DynamicConfig {
	return DynamicConfig{LogLevel: c.LogLevel, DataIntegrityCheck: c.DataIntegrityCheck}
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration parses values like "5s" or "250ms"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
