package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/earnplay/cardbattle/go/internal/dbconfig"
	"github.com/earnplay/cardbattle/go/internal/game/bus"
	"github.com/earnplay/cardbattle/go/internal/game/engine"
)

// Config is the server's YAML configuration. DB_* environment variables
// override the database section so secrets can stay out of the file.
type Config struct {
	Port     string          `yaml:"port"`
	Engine   engine.Config   `yaml:"engine"`
	Bus      bus.Config      `yaml:"bus"`
	Database dbconfig.Config `yaml:"database"`
}

func defaultServerConfig() Config {
	return Config{
		Port:     getEnv("PORT", "8080"),
		Engine:   engine.DefaultConfig(),
		Bus:      bus.DefaultConfig(),
		Database: dbconfig.Default(),
	}
}

func loadConfig(path string) (Config, error) {
	config := defaultServerConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	config.Database = config.Database.WithEnvOverrides()
	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
