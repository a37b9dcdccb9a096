package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"staybooking/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Geocoding    GeocodingConfig    `yaml:"geocoding"`
	Search       SearchConfig       `yaml:"search"`
	Reservations ReservationsConfig `yaml:"reservations"`
	GeoSync      GeoSyncConfig      `yaml:"geo_sync"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	SeedPath     string             `yaml:"seed_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	// IdentityHeader carries the caller id set by the upstream gateway.
	IdentityHeader string `yaml:"identity_header"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	GeoKey   string `yaml:"geo_key"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Interval      string `yaml:"interval"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// GeocodingConfig selects the address geocoder.
// Provider "static" resolves addresses from Static only; "nominatim" calls BaseURL.
type GeocodingConfig struct {
	Provider       string          `yaml:"provider"`
	BaseURL        string          `yaml:"base_url"`
	UserAgent      string          `yaml:"user_agent"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	MinPlaceRank   int             `yaml:"min_place_rank"`
	Static         []StaticAddress `yaml:"static"`
}

type StaticAddress struct {
	Address   string  `yaml:"address"`
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lon"`
}

type SearchConfig struct {
	DefaultRadiusKm float64 `yaml:"default_radius_km"`
	MaxRadiusKm     float64 `yaml:"max_radius_km"`
}

type ReservationsConfig struct {
	MaxBookingDays int `yaml:"max_booking_days"`
}

type GeoSyncConfig struct {
	MaxRetries          int `yaml:"max_retries"`
	InitialDelaySeconds int `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int `yaml:"max_delay_seconds"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch c.Geocoding.Provider {
	case "static":
		if err := ValidateStaticAddresses(c.Geocoding.Static); err != nil {
			return err
		}
	case "nominatim":
		if c.Geocoding.BaseURL == "" {
			return errors.New("geocoding.base_url is required for nominatim provider")
		}
	default:
		return fmt.Errorf("unknown geocoding provider %q", c.Geocoding.Provider)
	}

	if c.Search.DefaultRadiusKm <= 0 {
		return errors.New("search.default_radius_km must be positive")
	}
	if c.Search.MaxRadiusKm > 0 && c.Search.MaxRadiusKm < c.Search.DefaultRadiusKm {
		return errors.New("search.max_radius_km must not be less than default_radius_km")
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when bot_token is set")
	}

	if c.API.Auth.Enabled && c.API.HTTP.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api.auth is enabled but no api_keys are configured")
	}

	return nil
}

func ValidateStaticAddresses(entries []StaticAddress) error {
	seen := make(map[string]bool)
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Address))
		if key == "" {
			return errors.New("static geocoding entry has empty address")
		}
		if seen[key] {
			return fmt.Errorf("duplicate static geocoding address: %s", e.Address)
		}
		if e.Latitude < -90 || e.Latitude > 90 || e.Longitude < -180 || e.Longitude > 180 {
			return fmt.Errorf("static geocoding entry %q has out of range coordinates", e.Address)
		}
		seen[key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "staybooking"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.IdentityHeader == "" {
		c.API.IdentityHeader = "X-User-ID"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Redis.GeoKey == "" {
		c.Redis.GeoKey = "stays:geo"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	if c.Geocoding.Provider == "" {
		c.Geocoding.Provider = "static"
	}
	if c.Geocoding.TimeoutSeconds == 0 {
		c.Geocoding.TimeoutSeconds = 10
	}
	if c.Geocoding.MinPlaceRank == 0 {
		// 26 = улица, всё грубее считаем неполным совпадением
		c.Geocoding.MinPlaceRank = 26
	}
	if c.Geocoding.UserAgent == "" {
		c.Geocoding.UserAgent = c.App.Name
	}

	if c.Search.DefaultRadiusKm == 0 {
		c.Search.DefaultRadiusKm = models.DefaultSearchRadiusKm
	}
	if c.Reservations.MaxBookingDays == 0 {
		c.Reservations.MaxBookingDays = models.DefaultMaxBookingDays
	}

	if c.GeoSync.MaxRetries == 0 {
		c.GeoSync.MaxRetries = 5
	}
	if c.GeoSync.InitialDelaySeconds == 0 {
		c.GeoSync.InitialDelaySeconds = 2
	}
	if c.GeoSync.MaxDelaySeconds == 0 {
		c.GeoSync.MaxDelaySeconds = 60
	}
	if c.GeoSync.PollIntervalSeconds == 0 {
		c.GeoSync.PollIntervalSeconds = 2
	}

	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = c.App.Name
	}
}
