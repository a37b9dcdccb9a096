package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("STAYBOOKING_TEST_DB", "data/test.db")

	yamlContent := `
database:
  path: "${STAYBOOKING_TEST_DB}"
api:
  http:
    enabled: true
  auth:
    enabled: true
    api_keys:
      - key: "k1"
        extra: "e1"
        name: "gateway"
geocoding:
  provider: static
  static:
    - address: "1 Market St, San Francisco"
      lat: 37.7936
      lon: -122.3958
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "data/test.db" {
		t.Errorf("expected expanded database path, got %s", cfg.Database.Path)
	}
	if len(cfg.Geocoding.Static) != 1 || cfg.Geocoding.Static[0].Latitude != 37.7936 {
		t.Errorf("expected 1 static address, got %+v", cfg.Geocoding.Static)
	}
	if cfg.Search.DefaultRadiusKm != 50 {
		t.Errorf("expected default radius 50, got %v", cfg.Search.DefaultRadiusKm)
	}
	if cfg.API.IdentityHeader != "X-User-ID" {
		t.Errorf("expected default identity header, got %s", cfg.API.IdentityHeader)
	}
	if cfg.Geocoding.MinPlaceRank != 26 {
		t.Errorf("expected default min place rank 26, got %d", cfg.Geocoding.MinPlaceRank)
	}
	if cfg.Redis.GeoKey != "stays:geo" {
		t.Errorf("expected default geo key, got %s", cfg.Redis.GeoKey)
	}
	if cfg.GeoSync.MaxRetries != 5 {
		t.Errorf("expected default max retries 5, got %d", cfg.GeoSync.MaxRetries)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() Config {
		c := Config{
			Database:  DatabaseConfig{Path: "path"},
			Geocoding: GeocodingConfig{Provider: "static"},
		}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Geocoding.Provider = "magic" }, wantErr: true},
		{name: "nominatim without url", mutate: func(c *Config) { c.Geocoding.Provider = "nominatim" }, wantErr: true},
		{
			name: "nominatim with url",
			mutate: func(c *Config) {
				c.Geocoding.Provider = "nominatim"
				c.Geocoding.BaseURL = "https://nominatim.openstreetmap.org"
			},
		},
		{
			name: "duplicate static address",
			mutate: func(c *Config) {
				c.Geocoding.Static = []StaticAddress{{Address: "A"}, {Address: " a "}}
			},
			wantErr: true,
		},
		{
			name:    "static address out of range",
			mutate:  func(c *Config) { c.Geocoding.Static = []StaticAddress{{Address: "A", Latitude: 100}} },
			wantErr: true,
		},
		{name: "max radius below default", mutate: func(c *Config) { c.Search.MaxRadiusKm = 10 }, wantErr: true},
		{name: "kafka without topic", mutate: func(c *Config) { c.Kafka.Brokers = []string{"localhost:9092"} }, wantErr: true},
		{name: "telegram without chat", mutate: func(c *Config) { c.Telegram.BotToken = "token" }, wantErr: true},
		{
			name: "auth without keys",
			mutate: func(c *Config) {
				c.API.HTTP.Enabled = true
				c.API.Auth.Enabled = true
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
