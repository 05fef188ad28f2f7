// Package config handles subtest configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (SUBTEST_*)
//  2. Config file (~/.config/subtest/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultKillDelay is the grace period between SIGTERM and SIGKILL.
	DefaultKillDelay = 2 * time.Second
	// DefaultReportFormat is the exec report format.
	DefaultReportFormat = "text"
	// DefaultLogLevel is the ambient log level.
	DefaultLogLevel = "warn"
)

// Config holds the subtest configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	// Set defaults. A zero exec timeout means no deadline.
	v.SetDefault("exec.timeout", time.Duration(0))
	v.SetDefault("exec.kill_delay", DefaultKillDelay)
	v.SetDefault("exec.report", DefaultReportFormat)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", "")

	// Config file location
	home, err := os.UserHomeDir()
	if err == nil {
		configDir := filepath.Join(home, ".config", "subtest")
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("SUBTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, but warn on other errors)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetDuration returns a configuration value as a duration.
func (c *Config) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value interface{}) error {
	c.v.Set(key, value)

	// Ensure config directory exists
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".config", "subtest")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// Timeout returns the default exec timeout (0 means none).
func (c *Config) Timeout() time.Duration {
	return c.GetDuration("exec.timeout")
}

// KillDelay returns the SIGTERM-to-SIGKILL grace period.
func (c *Config) KillDelay() time.Duration {
	return c.GetDuration("exec.kill_delay")
}

// ReportFormat returns the exec report format.
func (c *Config) ReportFormat() string {
	return c.GetString("exec.report")
}

// LogLevel returns the ambient log level.
func (c *Config) LogLevel() string {
	return c.GetString("log.level")
}

// LogFile returns the log sink path, empty when unset.
func (c *Config) LogFile() string {
	return c.GetString("log.file")
}
