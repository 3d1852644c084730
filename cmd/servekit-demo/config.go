package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// demoConfig aggregates the runtime settings for the demo server.
type demoConfig struct {
	Port            uint16 `mapstructure:"port"`
	Workers         int    `mapstructure:"workers"`
	LogLevel        string `mapstructure:"log_level"`
	LogFormat       string `mapstructure:"log_format"`
	DevServerURL    string `mapstructure:"dev_server_url"`
	Metrics         bool   `mapstructure:"metrics"`
	Database        string `mapstructure:"database"`
	ConnectionsFile string `mapstructure:"connections_file"`
	RefreshSpec     string `mapstructure:"refresh_spec"`
}

// loadConfig reads defaults, an optional config.yaml, and SERVEKIT_*
// environment variables into demoConfig.
func loadConfig() (*demoConfig, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("workers", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("dev_server_url", "http://localhost:5173")
	v.SetDefault("metrics", true)
	v.SetDefault("database", "pricing")
	v.SetDefault("connections_file", "connections.json")
	v.SetDefault("refresh_spec", "@hourly")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/servekit/")

	v.SetEnvPrefix("SERVEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg demoConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
