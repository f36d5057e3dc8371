package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port           string `yaml:"port"`
		JWTSecret      string `yaml:"jwt_secret"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"server"`
	Database struct {
		Type string `yaml:"type"` // "sqlite" or "postgres"
		URL  string `yaml:"url"`  // SQLite path or PostgreSQL URL
	} `yaml:"database"`
	GeoIP struct {
		BaseURL        string `yaml:"base_url"`
		Token          string `yaml:"token"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"geoip"`
	DNS struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"dns"`
	Anomaly struct {
		DefaultContamination float64 `yaml:"default_contamination"`
		Trees                int     `yaml:"trees"`
		SampleSize           int     `yaml:"sample_size"`
	} `yaml:"anomaly"`
	Notifications struct {
		Enabled          bool   `yaml:"enabled"`
		TelegramBotToken string `yaml:"telegram_bot_token"`
		ChatID           int64  `yaml:"chat_id"`
	} `yaml:"notifications"`
}

// ErrMissingJWTSecret is returned when neither the file nor IPDR_JWT_SECRET
// provides a token signing key.
var ErrMissingJWTSecret = errors.New("server.jwt_secret is not set")

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if config.Server.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	return config, nil
}

// Path returns the config file location, honouring IPDR_CONFIG.
func Path() string {
	if p := os.Getenv("IPDR_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yml"
}

func (c *Config) applyEnv() {
	if token := os.Getenv("IPINFO_TOKEN"); token != "" {
		c.GeoIP.Token = token
	}
	if secret := os.Getenv("IPDR_JWT_SECRET"); secret != "" {
		c.Server.JWTSecret = secret
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 64 << 20
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.URL == "" && c.Database.Type == "sqlite" {
		c.Database.URL = "ipdr_data.db"
	}
	if c.GeoIP.BaseURL == "" {
		c.GeoIP.BaseURL = "https://ipinfo.io"
	}
	if c.GeoIP.TimeoutSeconds == 0 {
		c.GeoIP.TimeoutSeconds = 5
	}
	if c.DNS.TimeoutSeconds == 0 {
		c.DNS.TimeoutSeconds = 5
	}
	if c.Anomaly.DefaultContamination == 0 {
		c.Anomaly.DefaultContamination = 0.10
	}
	if c.Anomaly.Trees == 0 {
		c.Anomaly.Trees = 100
	}
	if c.Anomaly.SampleSize == 0 {
		c.Anomaly.SampleSize = 256
	}
}

// GeoIPTimeout is the per-call geolocation timeout.
func (c *Config) GeoIPTimeout() time.Duration {
	return time.Duration(c.GeoIP.TimeoutSeconds) * time.Second
}

// DNSTimeout is the per-call reverse lookup timeout.
func (c *Config) DNSTimeout() time.Duration {
	return time.Duration(c.DNS.TimeoutSeconds) * time.Second
}
