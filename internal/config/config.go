// Package config provides configuration management for musekit
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Stream StreamConfig `mapstructure:"stream"`
	Avatar AvatarConfig `mapstructure:"avatar"`
	Sound  SoundConfig  `mapstructure:"sound"`
	Log    LogConfig    `mapstructure:"log"`
}

// StreamConfig configures the chat stream client
type StreamConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
}

// AvatarConfig configures animation behavior
type AvatarConfig struct {
	IdleAnimation      bool          `mapstructure:"idle_animation"`
	BlinkMinGap        time.Duration `mapstructure:"blink_min_gap"`
	BlinkMaxGap        time.Duration `mapstructure:"blink_max_gap"`
	BlinkDuration      time.Duration `mapstructure:"blink_duration"`
	TransitionDuration time.Duration `mapstructure:"transition_duration"`
	// DefaultHold is the fallback hold duration for emotions whose profile
	// does not carry one of its own.
	DefaultHold time.Duration `mapstructure:"default_hold"`
	// HoldOverride, when positive, replaces every per-emotion hold with one
	// global duration.
	HoldOverride  time.Duration `mapstructure:"hold_override"`
	MouseTracking bool          `mapstructure:"mouse_tracking"`
}

// SoundConfig configures audio cues
type SoundConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Volume  float64 `mapstructure:"volume"` // 0.0-1.0
}

// LogConfig configures logging
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			URL:            "ws://localhost:8080/api/chat/stream",
			ReconnectDelay: 5 * time.Second,
			MaxReconnects:  10,
			ReadTimeout:    60 * time.Second,
		},
		Avatar: AvatarConfig{
			IdleAnimation:      true,
			BlinkMinGap:        2 * time.Second,
			BlinkMaxGap:        6 * time.Second,
			BlinkDuration:      180 * time.Millisecond,
			TransitionDuration: 500 * time.Millisecond,
			DefaultHold:        3 * time.Second,
			MouseTracking:      true,
		},
		Sound: SoundConfig{
			Enabled: true,
			Volume:  0.8,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("MUSEKIT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("stream", cfg.Stream)
	viper.Set("avatar", cfg.Avatar)
	viper.Set("sound", cfg.Sound)
	viper.Set("log", cfg.Log)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// Watch re-reads the config file on change and hands the fresh Config to fn.
// Unparseable edits are ignored; the previous configuration stays active.
func Watch(fn func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		fn(cfg)
	})
	viper.WatchConfig()
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".musekit"), nil
}
