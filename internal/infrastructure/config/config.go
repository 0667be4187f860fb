package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Chuango bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Cloud     CloudConfig     `yaml:"cloud"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// AccountConfig identifies the cloud account the bridge logs in as.
type AccountConfig struct {
	// Region is the two-letter locale used for zone lookup (e.g. "DE").
	Region string `yaml:"region"`

	// CountryCode is the dialling prefix sent with login (e.g. "+49").
	CountryCode string `yaml:"country_code"`

	Email string `yaml:"email"`

	// Password may be the clear password or its MD5 hex digest.
	// Only the digest is ever sent or persisted.
	Password string `yaml:"password"`
}

// CloudConfig contains settings for the vendor REST API.
type CloudConfig struct {
	ZoneBaseURL string `yaml:"zone_base_url"`

	// RequestTimeout is the per-request timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// RefreshInterval is the shared-device poll interval in minutes.
	RefreshInterval int `yaml:"refresh_interval"`

	App AppIdentityConfig `yaml:"app"`
}

// AppIdentityConfig is the mobile app identity presented to the cloud.
type AppIdentityConfig struct {
	OS          string `yaml:"os"`
	OSVersion   string `yaml:"os_version"`
	Package     string `yaml:"package"`
	Version     string `yaml:"version"`
	PhoneBrand  string `yaml:"phone_brand"`
	Lang        string `yaml:"lang"`
	BrandHeader string `yaml:"brand_header"`
	UserAgent   string `yaml:"user_agent"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains settings shared by every per-device MQTT session.
type MQTTConfig struct {
	QoS            int                 `yaml:"qos"`
	KeepAlive      int                 `yaml:"keep_alive"`
	ConnectTimeout int                 `yaml:"connect_timeout"`
	PublishTimeout int                 `yaml:"publish_timeout"`
	Reconnect      MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTReconnectConfig contains per-device reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains settings for bearer tokens accepted by the local API.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CHUANGO_SECTION_KEY
// For example: CHUANGO_ACCOUNT_EMAIL, CHUANGO_DATABASE_PATH
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
		Account: AccountConfig{
			Region:      "DE",
			CountryCode: "+49",
		},
		Cloud: CloudConfig{
			ZoneBaseURL:     "https://psb1.iotdreamcatcher.net:12443",
			RequestTimeout:  20,
			RefreshInterval: 360,
			App: AppIdentityConfig{
				OS:          "android",
				OSVersion:   "29",
				Package:     "com.dc.dreamcatcherlife",
				Version:     "2.2.1",
				PhoneBrand:  "GOOGLE",
				Lang:        "en",
				BrandHeader: "dreamcatcher",
				UserAgent:   "Dalvik/2.1.0 (Linux; U; Android 10; Android SDK built for arm64 Build/QSR1.211112.010)",
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/chuango.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			QoS:            1,
			KeepAlive:      60,
			ConnectTimeout: 10,
			PublishTimeout: 10,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 5,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60 * 24 * 30,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CHUANGO_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Account
	if v := os.Getenv("CHUANGO_ACCOUNT_REGION"); v != "" {
		cfg.Account.Region = v
	}
	if v := os.Getenv("CHUANGO_ACCOUNT_EMAIL"); v != "" {
		cfg.Account.Email = v
	}
	if v := os.Getenv("CHUANGO_ACCOUNT_PASSWORD"); v != "" {
		cfg.Account.Password = v
	}

	// Database
	if v := os.Getenv("CHUANGO_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("CHUANGO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret for the local API
	if v := os.Getenv("CHUANGO_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Account.Region == "" {
		errs = append(errs, "account.region is required")
	}
	if c.Account.CountryCode == "" {
		errs = append(errs, "account.country_code is required")
	}
	if c.Account.Email == "" {
		errs = append(errs, "account.email is required (set CHUANGO_ACCOUNT_EMAIL environment variable)")
	}
	if c.Account.Password == "" {
		errs = append(errs, "account.password is required (set CHUANGO_ACCOUNT_PASSWORD environment variable)")
	}

	if c.Cloud.ZoneBaseURL == "" {
		errs = append(errs, "cloud.zone_base_url is required")
	}
	if c.Cloud.RefreshInterval < 1 {
		errs = append(errs, "cloud.refresh_interval must be at least 1 minute")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1 second")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be less than initial_delay")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// The API can arm and disarm an intrusion alarm; it is never served
		// without bearer authentication.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when the API is enabled (set CHUANGO_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the cloud request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Cloud.RequestTimeout) * time.Second
}

// GetRefreshInterval returns the shared-device poll interval as a Duration.
func (c *Config) GetRefreshInterval() time.Duration {
	return time.Duration(c.Cloud.RefreshInterval) * time.Minute
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
