package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for IntuiTherm Pattern Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	Community CommunityConfig `yaml:"community"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// EngineConfig contains the matching and learning policy knobs.
// These are deliberately configuration, not code constants: the exact
// thresholds are a deterministic but tunable policy.
type EngineConfig struct {
	// AcceptThreshold is the minimum match score for a candidate to be
	// reported for a role.
	AcceptThreshold float64 `yaml:"accept_threshold"`

	// ConfidenceStep is added to a learned pattern's weight on confirmation.
	ConfidenceStep float64 `yaml:"confidence_step"`

	// ConfidenceCap bounds a learned pattern's weight from above.
	ConfidenceCap float64 `yaml:"confidence_cap"`

	// InitialConfidence is the starting weight for newly learned patterns.
	InitialConfidence float64 `yaml:"initial_confidence"`

	// PruneMargin: learned patterns whose failures exceed successes by more
	// than this are pruned on compaction.
	PruneMargin int `yaml:"prune_margin"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// CommunityConfig contains community pattern-sharing settings.
// Sharing is opt-in and entirely fire-and-forget; a missing or failing
// channel never degrades local matching or learning.
type CommunityConfig struct {
	Enabled bool `yaml:"enabled"`

	// Topic is the MQTT topic submissions are published to.
	Topic string `yaml:"topic"`

	// SigningKey signs submission envelopes (HS256) so the aggregation
	// backend can verify payload integrity.
	SigningKey string `yaml:"signing_key"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	// APIKey is the pre-shared bearer key the host platform presents on
	// every service call.
	APIKey string `yaml:"api_key"`

	// MaxBodyBytes limits request body size on the HTTP API.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INTUITHERM_SECTION_KEY
// For example: INTUITHERM_DATABASE_PATH, INTUITHERM_API_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			AcceptThreshold:   0.4,
			ConfidenceStep:    0.05,
			ConfidenceCap:     0.95,
			InitialConfidence: 0.5,
			PruneMargin:       3,
		},
		Database: DatabaseConfig{
			Path:        "./data/patterncore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "intuitherm-pattern-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Community: CommunityConfig{
			Topic: "intuitherm/community/patterns",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			MaxBodyBytes: 1 << 20,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: INTUITHERM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("INTUITHERM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("INTUITHERM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INTUITHERM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INTUITHERM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("INTUITHERM_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("INTUITHERM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - API key (IMPORTANT: always override in production)
	if v := os.Getenv("INTUITHERM_API_KEY"); v != "" {
		cfg.Security.APIKey = v
	}

	// Community signing key
	if v := os.Getenv("INTUITHERM_COMMUNITY_SIGNING_KEY"); v != "" {
		cfg.Community.SigningKey = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Engine validation
	if c.Engine.AcceptThreshold < 0 || c.Engine.AcceptThreshold > 1 {
		errs = append(errs, "engine.accept_threshold must be between 0.0 and 1.0")
	}
	if c.Engine.ConfidenceCap > 1 {
		errs = append(errs, "engine.confidence_cap must not exceed 1.0")
	}
	if c.Engine.InitialConfidence < 0 || c.Engine.InitialConfidence > 1 {
		errs = append(errs, "engine.initial_confidence must be between 0.0 and 1.0")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation - the API key is REQUIRED. The engine's service
	// calls delete persisted state; an unauthenticated surface would let
	// anything on the network wipe learned patterns.
	const minAPIKeyLength = 16
	if c.Security.APIKey == "" {
		errs = append(errs, "security.api_key is required (set INTUITHERM_API_KEY environment variable)")
	} else if len(c.Security.APIKey) < minAPIKeyLength {
		errs = append(errs, "security.api_key must be at least 16 characters")
	}

	// Community validation
	if c.Community.Enabled {
		if c.Community.Topic == "" {
			errs = append(errs, "community.topic is required when community sharing is enabled")
		}
		const minSigningKeyLength = 32
		if len(c.Community.SigningKey) < minSigningKeyLength {
			errs = append(errs, "community.signing_key must be at least 32 characters when sharing is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
