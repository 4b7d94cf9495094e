package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "path-backend/domain/config"
)

// Storage backends
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Storage configuration
	StorageBackend   string `yaml:"storage_backend"`
	SQLitePath       string `yaml:"sqlite_path"`
	AWSRegion        string `yaml:"aws_region"`
	DynamoDBTable    string `yaml:"dynamodb_table"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint"` // DynamoDB Local
	CompressBlobs    bool   `yaml:"compress_blobs"`

	// Points registered at startup
	SeedPoints []string `yaml:"seed_points"`

	// Event bus; empty logs events instead
	EventBusName string `yaml:"event_bus_name"`

	// Cache; an empty address uses the in-process cache
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Lambda configuration
	IsLambda           bool   `yaml:"is_lambda"`
	ColdStartTimeout   int    `yaml:"cold_start_timeout"` // milliseconds
	LambdaFunctionName string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Requests per minute; zero disables the limit
	IPRateLimit   int `yaml:"ip_rate_limit"`
	UserRateLimit int `yaml:"user_rate_limit"`

	// Feature flags
	EnableMetrics  bool     `yaml:"enable_metrics"`
	EnableTracing  bool     `yaml:"enable_tracing"`
	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Memo policy overrides; zero keeps the environment default
	ReservationTTL   time.Duration `yaml:"reservation_ttl"`
	DraftTTL         time.Duration `yaml:"draft_ttl"`
	MaxMemosPerPoint int           `yaml:"max_memos_per_point"`
}

// defaultConfig returns the configuration used when nothing is set
func defaultConfig() *Config {
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		StorageBackend:   BackendDynamoDB,
		SQLitePath:       "memo.db",
		AWSRegion:        "us-west-2",
		DynamoDBTable:    "path-memos",
		CompressBlobs:    true,
		ColdStartTimeout: 3000,
		LogLevel:         "info",
		JWTIssuer:        "path-backend",
		IPRateLimit:      100,
		UserRateLimit:    200,
		EnableCORS:       true,
		AllowedOrigins:   []string{"*"},
	}
}

// LoadConfig loads configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnvironmentVariables()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path on the configuration
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// loadEnvironmentVariables overlays environment variables, the highest
// priority source
func (c *Config) loadEnvironmentVariables() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.StorageBackend = getEnv("STORAGE_BACKEND", c.StorageBackend)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDBEndpoint)
	c.CompressBlobs = getEnvBool("COMPRESS_BLOBS", c.CompressBlobs)

	if points := os.Getenv("SEED_POINTS"); points != "" {
		c.SeedPoints = strings.Split(points, ",")
	}

	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	// Lambda configuration
	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", "")
	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || c.LambdaFunctionName != "")
	c.ColdStartTimeout = getEnvInt("COLD_START_TIMEOUT", c.ColdStartTimeout)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.IPRateLimit = getEnvInt("IP_RATE_LIMIT", c.IPRateLimit)
	c.UserRateLimit = getEnvInt("USER_RATE_LIMIT", c.UserRateLimit)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = strings.Split(origins, ",")
	}

	c.ReservationTTL = getEnvDuration("RESERVATION_TTL", c.ReservationTTL)
	c.DraftTTL = getEnvDuration("DRAFT_TTL", c.DraftTTL)
	c.MaxMemosPerPoint = getEnvInt("MAX_MEMOS_PER_POINT", c.MaxMemosPerPoint)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("the memory storage backend cannot run in production")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required in production")
		}
	}

	return c.MemoPolicy().Validate()
}

// MemoPolicy returns the memo policy of the environment with the configured
// overrides applied
func (c *Config) MemoPolicy() *domainconfig.MemoPolicy {
	policy := domainconfig.LoadMemoPolicy(c.Environment)
	if c.ReservationTTL > 0 {
		policy.ReservationTTL = c.ReservationTTL
	}
	if c.DraftTTL > 0 {
		policy.DraftTTL = c.DraftTTL
	}
	if c.MaxMemosPerPoint > 0 {
		policy.MaxMemosPerPoint = c.MaxMemosPerPoint
	}
	return policy
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
