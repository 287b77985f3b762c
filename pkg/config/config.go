package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration for the agency system.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Security  SecurityConfig  `yaml:"security"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig configures subscription storage
type DatabaseConfig struct {
	Type string `yaml:"type"` // "memory", "postgres"
	DSN  string `yaml:"dsn"`  // For Postgres
}

// RedisConfig configures the usage tracker backend
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig configures the JetStream event bridge
type NATSConfig struct {
	Enabled    bool          `yaml:"enabled"`
	URL        string        `yaml:"url"`
	StreamName string        `yaml:"stream_name"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DispatchConfig controls the distribution loop
type DispatchConfig struct {
	Strategy        string        `yaml:"strategy"` // "capability", "least_loaded", "round_robin"
	Interval        time.Duration `yaml:"interval"`
	EventBufferSize int           `yaml:"event_buffer_size"`
}

// SecurityConfig configures authentication
type SecurityConfig struct {
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS
}

// TelemetryConfig configures OpenTelemetry export
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// LoadConfigFromFile loads configuration from a YAML file at the specified path.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g. ${AGENCY_JWT_SECRET}) before parsing YAML
	expanded := os.ExpandEnv(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Type: "memory",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		NATS: NATSConfig{
			Enabled:    false,
			URL:        "nats://localhost:4222",
			StreamName: "AGENCY",
			Timeout:    5 * time.Second,
		},
		Dispatch: DispatchConfig{
			Strategy:        "capability",
			Interval:        5 * time.Second,
			EventBufferSize: 1000,
		},
		Security: SecurityConfig{
			JWTSecret:      "",
			AllowedOrigins: []string{"*"},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "agencyd",
		},
	}
}
