package configs

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type NotificationConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type AppConfig struct {
	Host         string             `yaml:"host"`
	Port         string             `yaml:"port"`
	Database     DatabaseConfig     `yaml:"database"`
	Sweeper      SweeperConfig      `yaml:"sweeper"`
	Notification NotificationConfig `yaml:"notification"`
}

func (c *AppConfig) Listen() string {
	return c.Host + ":" + c.Port
}

// NewProductionConfig loads CONFIG_PATH (default configs/app.yml) and applies
// environment overrides so container deploys can skip the file entirely.
func NewProductionConfig() (*AppConfig, error) {
	cfg := AppConfig{
		Port: "8081",
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		Sweeper: SweeperConfig{
			Interval: 5 * time.Minute,
		},
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "configs/app.yml"
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err = yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if hook := os.Getenv("NOTIFICATION_WEBHOOK_URL"); hook != "" {
		cfg.Notification.WebhookURL = hook
	}

	return &cfg, nil
}
