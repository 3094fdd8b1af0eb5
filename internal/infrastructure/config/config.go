package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Transport types.
const (
	TransportMQTT   = "mqtt"
	TransportSerial = "serial"
	TransportNATS   = "nats"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "DALIGEAR_CONFIG"

// DefaultPath is the config file used when neither flag nor environment set one.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for the DALI gear daemon.
type Config struct {
	Gear      GearConfig      `yaml:"gear"`
	Transport TransportConfig `yaml:"transport"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GearConfig describes the emulated control gear.
type GearConfig struct {
	// ID keys persisted state and MQTT topics. Generated when empty.
	ID string `yaml:"id"`

	// TickInterval is how often the fading engine is advanced.
	TickInterval time.Duration `yaml:"tick_interval"`

	// StatePublishInterval rate-limits retained state messages.
	StatePublishInterval time.Duration `yaml:"state_publish_interval"`

	// HealthInterval is how often the health message is published.
	HealthInterval time.Duration `yaml:"health_interval"`

	Identity IdentityConfig `yaml:"identity"`
}

// IdentityConfig is the manufacturer data exposed in memory bank 0.
type IdentityConfig struct {
	DeviceType       int    `yaml:"device_type"`
	PhysicalMinLevel int    `yaml:"physical_min_level"`
	LightSourceType  int    `yaml:"light_source_type"`
	GTIN             uint64 `yaml:"gtin"`
	Serial           uint64 `yaml:"serial"`

	// FirmwareVersion and HardwareVersion use "major.minor" notation.
	FirmwareVersion string `yaml:"firmware_version"`
	HardwareVersion string `yaml:"hardware_version"`
}

// TransportConfig selects how forward and backward frames reach the bus.
type TransportConfig struct {
	Type   string       `yaml:"type"`
	Serial SerialConfig `yaml:"serial"`
	NATS   NATSConfig   `yaml:"nats"`
}

// SerialConfig configures a USB/serial DALI interface.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// NATSConfig configures the NATS frame transport.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	MaxReconnects int    `yaml:"max_reconnects"`
}

// DatabaseConfig locates the SQLite file holding parameters and the audit trail.
// BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig is the broker link used for state, events, health and, with
// the mqtt transport, for frames.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig addresses the broker. ClientID also names the presence topic.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds optional broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds paho's reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig enables level and status telemetry. FlushInterval is in
// seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level, format (json|text) and output (stdout|stderr).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the daemon config: defaults, then the YAML file at path, then
// DALIGEAR_* environment variables. An empty gear id is replaced with a
// generated one before validation.
//
// Returns:
//   - *Config: validated configuration
//   - error: unreadable or malformed file, or every validation failure joined
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

	if cfg.Gear.ID == "" {
		cfg.Gear.ID = "gear-" + uuid.NewString()[:8]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ResolvePath returns flagPath if set, then $DALIGEAR_CONFIG, then DefaultPath.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return DefaultPath
}

// defaultConfig is a bench setup: mqtt transport against a local broker,
// telemetry off.
func defaultConfig() *Config {
	return &Config{
		Gear: GearConfig{
			TickInterval:         10 * time.Millisecond,
			StatePublishInterval: time.Second,
			HealthInterval:       30 * time.Second,
			Identity: IdentityConfig{
				DeviceType:       6,
				PhysicalMinLevel: 1,
				LightSourceType:  6,
				FirmwareVersion:  "1.0",
				HardwareVersion:  "1.0",
			},
		},
		Transport: TransportConfig{
			Type: TransportMQTT,
			Serial: SerialConfig{
				Device: "/dev/ttyUSB0",
				Baud:   115200,
			},
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				SubjectPrefix: "dali",
				MaxReconnects: -1,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/daligear.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "daligear",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// envOverrides maps DALIGEAR_* variables onto string fields. Secrets and
// deployment-specific hosts are the usual candidates.
func envOverrides(cfg *Config) map[string]*string {
	return map[string]*string{
		"DALIGEAR_GEAR_ID":        &cfg.Gear.ID,
		"DALIGEAR_TRANSPORT_TYPE": &cfg.Transport.Type,
		"DALIGEAR_SERIAL_DEVICE":  &cfg.Transport.Serial.Device,
		"DALIGEAR_NATS_URL":       &cfg.Transport.NATS.URL,
		"DALIGEAR_DATABASE_PATH":  &cfg.Database.Path,
		"DALIGEAR_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"DALIGEAR_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"DALIGEAR_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"DALIGEAR_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"DALIGEAR_LOG_LEVEL":      &cfg.Logging.Level,
	}
}

// applyEnvOverrides replaces fields whose variable is set and non-empty.
func applyEnvOverrides(cfg *Config) {
	for name, field := range envOverrides(cfg) {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
}

// Validate checks every section and reports all failures in one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Gear.ID == "" {
		errs = append(errs, "gear.id is required")
	}
	if c.Gear.TickInterval <= 0 {
		errs = append(errs, "gear.tick_interval must be positive")
	}
	errs = append(errs, c.Gear.Identity.validate()...)

	switch c.Transport.Type {
	case TransportMQTT:
	case TransportSerial:
		if c.Transport.Serial.Device == "" {
			errs = append(errs, "transport.serial.device is required for serial transport")
		}
		if c.Transport.Serial.Baud <= 0 {
			errs = append(errs, "transport.serial.baud must be positive")
		}
	case TransportNATS:
		if c.Transport.NATS.URL == "" {
			errs = append(errs, "transport.nats.url is required for nats transport")
		}
	default:
		errs = append(errs, fmt.Sprintf("transport.type %q must be mqtt, serial or nats", c.Transport.Type))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (i IdentityConfig) validate() []string {
	var errs []string
	if i.DeviceType < 0 || i.DeviceType > 254 {
		errs = append(errs, "gear.identity.device_type must be between 0 and 254")
	}
	if i.PhysicalMinLevel < 1 || i.PhysicalMinLevel > 254 {
		errs = append(errs, "gear.identity.physical_min_level must be between 1 and 254")
	}
	if i.LightSourceType < 0 || i.LightSourceType > 255 {
		errs = append(errs, "gear.identity.light_source_type must be between 0 and 255")
	}
	if i.GTIN > 0xFFFFFFFFFFFF {
		errs = append(errs, "gear.identity.gtin must fit in 48 bits")
	}
	if _, _, err := ParseVersion(i.FirmwareVersion); err != nil {
		errs = append(errs, "gear.identity.firmware_version: "+err.Error())
	}
	if _, _, err := ParseVersion(i.HardwareVersion); err != nil {
		errs = append(errs, "gear.identity.hardware_version: "+err.Error())
	}
	return errs
}

// ParseVersion parses "major.minor" with both parts in 0-255.
func ParseVersion(s string) (major, minor byte, err error) {
	left, right, ok := strings.Cut(s, ".")
	if !ok {
		return 0, 0, fmt.Errorf("version %q is not major.minor", s)
	}
	ma, err := strconv.ParseUint(left, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("version %q: bad major: %w", s, err)
	}
	mi, err := strconv.ParseUint(right, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("version %q: bad minor: %w", s, err)
	}
	return byte(ma), byte(mi), nil
}
