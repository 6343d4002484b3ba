package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Reserved driver port band. A driver agent must listen inside this range.
const (
	DriverPortMin = 8600
	DriverPortMax = 8799
)

// Config is the root configuration structure shared by the driver agent and
// the authority service. Each binary validates the sections it uses.
type Config struct {
	Driver    DriverConfig    `yaml:"driver" toml:"driver"`
	Authority AuthorityConfig `yaml:"authority" toml:"authority"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt" toml:"mqtt"`
	Events    EventsConfig    `yaml:"events" toml:"events"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb" toml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// DriverConfig describes this driver instance and the attribute schema it declares.
type DriverConfig struct {
	Name        string `yaml:"name" toml:"name"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
	// Host is the address advertised to the authority. Resolved from the
	// local interfaces when empty.
	Host        string `yaml:"host" toml:"host"`
	Port        int    `yaml:"port" toml:"port"`
	Description string `yaml:"description" toml:"description"`

	DriverAttributes []AttributeConfig `yaml:"driver_attributes" toml:"driver_attributes"`
	PointAttributes  []AttributeConfig `yaml:"point_attributes" toml:"point_attributes"`

	Registration RegistrationConfig `yaml:"registration" toml:"registration"`
	Schedule     ScheduleConfig     `yaml:"schedule" toml:"schedule"`
}

// AttributeConfig declares one attribute definition.
type AttributeConfig struct {
	Name        string `yaml:"name" toml:"name"`
	DisplayName string `yaml:"display_name" toml:"display_name"`
	Type        string `yaml:"type" toml:"type"`
	Value       string `yaml:"value" toml:"value"`
	Description string `yaml:"description" toml:"description"`
}

// RegistrationConfig controls the startup registration retry loop.
type RegistrationConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval" toml:"retry_interval"`
	MaxAttempts   int           `yaml:"max_attempts" toml:"max_attempts"`
}

// ScheduleConfig controls the polling loop and the driver's custom schedule hook.
type ScheduleConfig struct {
	ReadEnabled    bool          `yaml:"read_enabled" toml:"read_enabled"`
	ReadInterval   time.Duration `yaml:"read_interval" toml:"read_interval"`
	CustomEnabled  bool          `yaml:"custom_enabled" toml:"custom_enabled"`
	CustomInterval time.Duration `yaml:"custom_interval" toml:"custom_interval"`
}

// AuthorityConfig tells the agent how to reach the configuration authority.
type AuthorityConfig struct {
	URL         string               `yaml:"url" toml:"url"`
	TokenSecret string               `yaml:"token_secret" toml:"token_secret"`
	Timeout     time.Duration        `yaml:"timeout" toml:"timeout"`
	RateLimit   float64              `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst   int                  `yaml:"rate_burst" toml:"rate_burst"`
	Breaker     CircuitBreakerConfig `yaml:"breaker" toml:"breaker"`
}

// CircuitBreakerConfig contains circuit breaker thresholds for authority calls.
type CircuitBreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" toml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout"`
}

// ServerConfig contains the authority HTTP listener settings.
type ServerConfig struct {
	Host        string        `yaml:"host" toml:"host"`
	Port        int           `yaml:"port" toml:"port"`
	TokenSecret string        `yaml:"token_secret" toml:"token_secret"`
	ReadTimeout time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	IdleTimeout time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" toml:"path"`
	WALMode     bool   `yaml:"wal_mode" toml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout" toml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker" toml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth" toml:"auth"`
	QoS       int                 `yaml:"qos" toml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect" toml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay" toml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts" toml:"max_attempts"`
}

// EventsConfig selects the change-notification payload codec.
type EventsConfig struct {
	Codec string `yaml:"codec" toml:"codec"` // json, cbor
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	URL           string `yaml:"url" toml:"url"`
	Token         string `yaml:"token" toml:"token"`
	Org           string `yaml:"org" toml:"org"`
	Bucket        string `yaml:"bucket" toml:"bucket"`
	BatchSize     int    `yaml:"batch_size" toml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval" toml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// Load reads configuration from a YAML or TOML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values (override defaults); ".toml" files are decoded as TOML, anything else as YAML
//  3. Environment variables (override file values)
//
// Role-specific validation is left to the caller (ValidateAgent, ValidateAuthority)
// because both binaries share this file format.
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - *Config: Loaded configuration
//   - error: If the file cannot be read or parsed
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing toml config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Driver: DriverConfig{
			Port: DriverPortMin,
			Registration: RegistrationConfig{
				RetryInterval: 5 * time.Second,
				MaxAttempts:   10,
			},
			Schedule: ScheduleConfig{
				ReadEnabled:    true,
				ReadInterval:   10 * time.Second,
				CustomEnabled:  true,
				CustomInterval: 30 * time.Second,
			},
		},
		Authority: AuthorityConfig{
			URL:       "http://localhost:8400",
			Timeout:   10 * time.Second,
			RateLimit: 50,
			RateBurst: 10,
			Breaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
			},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8400,
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/authority.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-driver",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Events: EventsConfig{
			Codec: "json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Driver
	if v := os.Getenv("GRAYLOGIC_DRIVER_HOST"); v != "" {
		cfg.Driver.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_DRIVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Driver.Port = port
		}
	}

	// Authority
	if v := os.Getenv("GRAYLOGIC_AUTHORITY_URL"); v != "" {
		cfg.Authority.URL = v
	}
	if v := os.Getenv("GRAYLOGIC_AUTHORITY_TOKEN_SECRET"); v != "" {
		cfg.Authority.TokenSecret = v
		cfg.Server.TokenSecret = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// ValidateAgent checks the sections the driver agent depends on.
//
// Identity format (name pattern, port band) is validated again by the
// registrar at registration time; here we only reject configurations that
// could never start.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) ValidateAgent() error {
	var errs []string

	if c.Driver.Name == "" {
		errs = append(errs, "driver.name is required")
	}
	if c.Driver.ServiceName == "" {
		errs = append(errs, "driver.service_name is required")
	}
	if c.Driver.Port < DriverPortMin || c.Driver.Port > DriverPortMax {
		errs = append(errs, fmt.Sprintf("driver.port must be between %d and %d", DriverPortMin, DriverPortMax))
	}
	if c.Driver.Registration.MaxAttempts < 1 {
		errs = append(errs, "driver.registration.max_attempts must be at least 1")
	}
	if c.Driver.Registration.RetryInterval <= 0 {
		errs = append(errs, "driver.registration.retry_interval must be positive")
	}
	if c.Driver.Schedule.ReadEnabled && c.Driver.Schedule.ReadInterval <= 0 {
		errs = append(errs, "driver.schedule.read_interval must be positive")
	}
	if c.Driver.Schedule.CustomEnabled && c.Driver.Schedule.CustomInterval <= 0 {
		errs = append(errs, "driver.schedule.custom_interval must be positive")
	}
	errs = append(errs, validateAttributes("driver.driver_attributes", c.Driver.DriverAttributes)...)
	errs = append(errs, validateAttributes("driver.point_attributes", c.Driver.PointAttributes)...)

	if c.Authority.URL == "" {
		errs = append(errs, "authority.url is required")
	}
	errs = append(errs, c.validateShared()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateAuthority checks the sections the authority service depends on.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) ValidateAuthority() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	errs = append(errs, c.validateShared()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateShared() []string {
	var errs []string
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	switch strings.ToLower(c.Events.Codec) {
	case "json", "cbor":
	default:
		errs = append(errs, "events.codec must be json or cbor")
	}
	return errs
}

// validateAttributes rejects unnamed and duplicated attribute declarations.
func validateAttributes(section string, attrs []AttributeConfig) []string {
	var errs []string
	seen := make(map[string]bool, len(attrs))
	for i, a := range attrs {
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("%s[%d].name is required", section, i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate attribute %q", section, a.Name))
		}
		seen[a.Name] = true
		if a.Type == "" {
			errs = append(errs, fmt.Sprintf("%s.%s.type is required", section, a.Name))
		}
	}
	return errs
}

// Addr returns the authority listener address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
