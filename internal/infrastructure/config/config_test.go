package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
gear:
  id: "kitchen-downlight"
  tick_interval: 5ms
  identity:
    gtin: 123456789
    physical_min_level: 40
    firmware_version: "2.3"
transport:
  type: "serial"
  serial:
    device: "/dev/ttyACM0"
    baud: 38400
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gear.ID != "kitchen-downlight" {
		t.Errorf("Gear.ID = %q, want %q", cfg.Gear.ID, "kitchen-downlight")
	}
	if cfg.Gear.TickInterval != 5*time.Millisecond {
		t.Errorf("Gear.TickInterval = %v, want 5ms", cfg.Gear.TickInterval)
	}
	if cfg.Gear.Identity.GTIN != 123456789 {
		t.Errorf("Identity.GTIN = %d, want 123456789", cfg.Gear.Identity.GTIN)
	}
	if cfg.Gear.Identity.PhysicalMinLevel != 40 {
		t.Errorf("Identity.PhysicalMinLevel = %d, want 40", cfg.Gear.Identity.PhysicalMinLevel)
	}
	// Unset identity fields keep their defaults.
	if cfg.Gear.Identity.DeviceType != 6 {
		t.Errorf("Identity.DeviceType = %d, want 6", cfg.Gear.Identity.DeviceType)
	}
	if cfg.Transport.Type != TransportSerial || cfg.Transport.Serial.Baud != 38400 {
		t.Errorf("Transport = %+v, want serial at 38400", cfg.Transport)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
}

func TestLoad_GeneratesGearID(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  path: /tmp/test.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasPrefix(cfg.Gear.ID, "gear-") || len(cfg.Gear.ID) != len("gear-")+8 {
		t.Errorf("generated Gear.ID = %q", cfg.Gear.ID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
gear:
  id: "g1"
  identity:
    physical_min_level: 0
transport:
  type: "carrier-pigeon"
`))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every problem is reported at once.
	for _, want := range []string{"physical_min_level", "transport.type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing gear id", func(c *Config) { c.Gear.ID = "" }, true},
		{"zero tick interval", func(c *Config) { c.Gear.TickInterval = 0 }, true},
		{"device type mask", func(c *Config) { c.Gear.Identity.DeviceType = 255 }, true},
		{"light source out of range", func(c *Config) { c.Gear.Identity.LightSourceType = 256 }, true},
		{"gtin too wide", func(c *Config) { c.Gear.Identity.GTIN = 1 << 48 }, true},
		{"bad firmware version", func(c *Config) { c.Gear.Identity.FirmwareVersion = "v1" }, true},
		{"hardware minor overflow", func(c *Config) { c.Gear.Identity.HardwareVersion = "1.300" }, true},
		{"serial without device", func(c *Config) {
			c.Transport.Type = TransportSerial
			c.Transport.Serial.Device = ""
		}, true},
		{"serial zero baud", func(c *Config) {
			c.Transport.Type = TransportSerial
			c.Transport.Serial.Baud = 0
		}, true},
		{"nats without url", func(c *Config) {
			c.Transport.Type = TransportNATS
			c.Transport.NATS.URL = ""
		}, true},
		{"nats", func(c *Config) { c.Transport.Type = TransportNATS }, false},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Gear.ID = "gear-test"
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in           string
		major, minor byte
		wantErr      bool
	}{
		{"1.0", 1, 0, false},
		{"2.15", 2, 15, false},
		{"255.255", 255, 255, false},
		{"1", 0, 0, true},
		{"a.b", 0, 0, true},
		{"1.256", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		major, minor, err := ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if major != tt.major || minor != tt.minor {
			t.Errorf("ParseVersion(%q) = %d.%d, want %d.%d", tt.in, major, minor, tt.major, tt.minor)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DALIGEAR_GEAR_ID", "env-gear")
	t.Setenv("DALIGEAR_TRANSPORT_TYPE", "nats")
	t.Setenv("DALIGEAR_NATS_URL", "nats://bus:4222")
	t.Setenv("DALIGEAR_DATABASE_PATH", "/env/path.db")
	t.Setenv("DALIGEAR_MQTT_HOST", "mqtt.example.com")
	t.Setenv("DALIGEAR_MQTT_PASSWORD", "secret")
	t.Setenv("DALIGEAR_LOG_LEVEL", "debug")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Gear.ID != "env-gear" {
		t.Errorf("Gear.ID = %q, want %q", cfg.Gear.ID, "env-gear")
	}
	if cfg.Transport.Type != TransportNATS {
		t.Errorf("Transport.Type = %q, want nats", cfg.Transport.Type)
	}
	if cfg.Transport.NATS.URL != "nats://bus:4222" {
		t.Errorf("NATS.URL = %q", cfg.Transport.NATS.URL)
	}
	if cfg.Database.Path != "/env/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/env/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "secret")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/flag.yaml"); got != "/flag.yaml" {
		t.Errorf("ResolvePath(flag) = %q", got)
	}
	t.Setenv(EnvConfigPath, "/env.yaml")
	if got := ResolvePath(""); got != "/env.yaml" {
		t.Errorf("ResolvePath(env) = %q", got)
	}
	t.Setenv(EnvConfigPath, "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("ResolvePath(default) = %q, want %q", got, DefaultPath)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Gear.TickInterval != 10*time.Millisecond {
		t.Errorf("default Gear.TickInterval = %v, want 10ms", cfg.Gear.TickInterval)
	}
	if cfg.Transport.Type != TransportMQTT {
		t.Errorf("default Transport.Type = %q, want mqtt", cfg.Transport.Type)
	}
	if cfg.Transport.NATS.SubjectPrefix != "dali" {
		t.Errorf("default NATS.SubjectPrefix = %q, want dali", cfg.Transport.NATS.SubjectPrefix)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.InfluxDB.Enabled {
		t.Error("default InfluxDB.Enabled = true, want false")
	}
}
