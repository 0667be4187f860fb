package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

// validConfig returns a config that passes Validate.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Account.Email = "user@example.com"
	cfg.Account.Password = "hunter2"
	cfg.Security.JWT.Secret = validJWTSecret
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
account:
  region: "FR"
  country_code: "+33"
  email: "user@example.com"
  password: "5f4dcc3b5aa765d61d8327deb882cf99"
cloud:
  refresh_interval: 30
database:
  path: "/tmp/test.db"
mqtt:
  qos: 1
  reconnect:
    initial_delay: 5
    max_delay: 60
api:
  enabled: true
  port: 8099
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Account.Region != "FR" {
		t.Errorf("Account.Region = %q, want %q", cfg.Account.Region, "FR")
	}

	if cfg.Account.CountryCode != "+33" {
		t.Errorf("Account.CountryCode = %q, want %q", cfg.Account.CountryCode, "+33")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if got := cfg.GetRefreshInterval(); got != 30*time.Minute {
		t.Errorf("GetRefreshInterval() = %v, want 30m", got)
	}

	// Defaults survive a partial file.
	if cfg.Cloud.App.Package != "com.dc.dreamcatcherlife" {
		t.Errorf("Cloud.App.Package = %q, want default", cfg.Cloud.App.Package)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
account:
  email: ""
api:
  enabled: false
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing email",
			mutate:  func(c *Config) { c.Account.Email = "" },
			wantErr: true,
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Account.Password = "" },
			wantErr: true,
		},
		{
			name:    "missing region",
			mutate:  func(c *Config) { c.Account.Region = "" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "max delay below initial delay",
			mutate:  func(c *Config) { c.MQTT.Reconnect.MaxDelay = 2 },
			wantErr: true,
		},
		{
			name:    "zero refresh interval",
			mutate:  func(c *Config) { c.Cloud.RefreshInterval = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing JWT secret with API enabled",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: true,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
		{
			name: "missing JWT secret with API disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.Security.JWT.Secret = ""
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Cloud: CloudConfig{RequestTimeout: 20},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetRequestTimeout().Seconds(); got != 20 {
		t.Errorf("GetRequestTimeout() = %v, want 20", got)
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("CHUANGO_ACCOUNT_REGION", "IT")
	t.Setenv("CHUANGO_ACCOUNT_EMAIL", "env@example.com")
	t.Setenv("CHUANGO_ACCOUNT_PASSWORD", "env-pass")
	t.Setenv("CHUANGO_DATABASE_PATH", "/custom/path.db")
	t.Setenv("CHUANGO_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("CHUANGO_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Account.Region != "IT" {
		t.Errorf("Account.Region = %q, want %q", cfg.Account.Region, "IT")
	}

	if cfg.Account.Email != "env@example.com" {
		t.Errorf("Account.Email = %q, want %q", cfg.Account.Email, "env@example.com")
	}

	if cfg.Account.Password != "env-pass" {
		t.Errorf("Account.Password = %q, want %q", cfg.Account.Password, "env-pass")
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Cloud.ZoneBaseURL == "" {
		t.Error("defaultConfig should have non-empty Cloud.ZoneBaseURL")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Reconnect.InitialDelay != 5 {
		t.Errorf("defaultConfig MQTT.Reconnect.InitialDelay = %d, want 5", cfg.MQTT.Reconnect.InitialDelay)
	}

	if cfg.MQTT.Reconnect.MaxDelay != 60 {
		t.Errorf("defaultConfig MQTT.Reconnect.MaxDelay = %d, want 60", cfg.MQTT.Reconnect.MaxDelay)
	}

	if got := cfg.GetRefreshInterval(); got != 6*time.Hour {
		t.Errorf("defaultConfig GetRefreshInterval() = %v, want 6h", got)
	}
}
