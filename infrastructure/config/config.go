package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot backends
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendSupabase = "supabase"
)

// Config holds all application configuration. Values come from the
// defaults, then the YAML file named by CONFIG_FILE, then the environment
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion        string `yaml:"aws_region"`
	TableName        string `yaml:"table_name"`
	ConnectionsTable string `yaml:"connections_table"`
	EventBusName     string `yaml:"event_bus_name"`

	// Persistence
	SnapshotBackend  string        `yaml:"snapshot_backend"`
	SupabaseURL      string        `yaml:"supabase_url"`
	SupabaseKey      string        `yaml:"supabase_key"`
	// AutosaveDebounce overrides the canvas default when positive
	AutosaveDebounce time.Duration `yaml:"autosave_debounce"`

	// Generation
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	OpenAIModel       string        `yaml:"openai_model"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	MockDelay         time.Duration `yaml:"mock_delay"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	// WebSocket configuration
	WebSocketEndpoint string `yaml:"websocket_endpoint"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Observability
	MetricsNamespace string `yaml:"metrics_namespace"`

	// Feature flags
	EnableMetrics     bool     `yaml:"enable_metrics"`
	EnableTracing     bool     `yaml:"enable_tracing"`
	EnableCORS        bool     `yaml:"enable_cors"`
	EnableEventBridge bool     `yaml:"enable_eventbridge"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerAddress:     ":8080",
		Environment:       "development",
		AWSRegion:         "us-west-2",
		TableName:         "ideacanvas",
		ConnectionsTable:  "ideacanvas-connections",
		EventBusName:      "ideacanvas-events",
		SnapshotBackend:   BackendMemory,
		GenerationTimeout: 60 * time.Second,
		LogLevel:          "info",
		MetricsNamespace:  "IdeaCanvas",
		EnableMetrics:     true,
		EnableCORS:        true,
		CORSOrigins:       []string{"*"},
	}
}

// LoadConfig loads configuration from the optional file and the environment
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
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

// Load is an alias for LoadConfig
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

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.TableName = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.TableName))
	c.ConnectionsTable = getEnv("CONNECTIONS_TABLE", c.ConnectionsTable)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.SnapshotBackend = getEnv("SNAPSHOT_BACKEND", c.SnapshotBackend)
	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseKey = getEnv("SUPABASE_KEY", getEnv("SUPABASE_ANON_KEY", c.SupabaseKey))
	c.AutosaveDebounce = getEnvDuration("AUTOSAVE_DEBOUNCE", c.AutosaveDebounce)

	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.GenerationTimeout = getEnvDuration("GENERATION_TIMEOUT", c.GenerationTimeout)
	c.MockDelay = getEnvDuration("MOCK_DELAY", c.MockDelay)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")
	c.WebSocketEndpoint = getEnv("WEBSOCKET_ENDPOINT", c.WebSocketEndpoint)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.EnableEventBridge = getEnvBool("ENABLE_EVENTBRIDGE", c.EnableEventBridge)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.SnapshotBackend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb snapshot backend")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required for the supabase snapshot backend")
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.SnapshotBackend)
	}

	if c.AutosaveDebounce < 0 {
		return fmt.Errorf("AUTOSAVE_DEBOUNCE must not be negative")
	}

	if c.Environment == "production" {
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in production")
		}
		if c.SnapshotBackend == BackendMemory {
			return fmt.Errorf("a persistent snapshot backend is required in production")
		}
		if c.EnableEventBridge && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UseMockGenerator reports whether generation runs without a model
func (c *Config) UseMockGenerator() bool {
	return c.OpenAIAPIKey == ""
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

// getEnvDuration accepts Go durations ("800ms") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms := getEnvInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
