// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultDevicePath is used when no device node is configured.
const DefaultDevicePath = "/dev/dri/card0"

// Config represents the application configuration
type Config struct {
	// Device configuration
	Device DeviceConfig `mapstructure:"device"`

	// Hotplug monitor configuration
	Hotplug HotplugConfig `mapstructure:"hotplug"`

	// Service (D-Bus) configuration
	Service ServiceConfig `mapstructure:"service"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// DeviceConfig contains DRM device settings
type DeviceConfig struct {
	Path string `mapstructure:"path"` // DRM device node, e.g. /dev/dri/card0
}

// HotplugConfig contains hotplug monitor settings
type HotplugConfig struct {
	Netlink      bool          `mapstructure:"netlink"`       // Use the kernel uevent socket when available
	PollInterval time.Duration `mapstructure:"poll_interval"` // Connector poll period when falling back to polling
}

// ServiceConfig contains D-Bus service settings
type ServiceConfig struct {
	SystemBus bool `mapstructure:"system_bus"` // Register on the system bus instead of the session bus
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Device: DeviceConfig{
			Path: DefaultDevicePath,
		},
		Hotplug: HotplugConfig{
			Netlink:      true,
			PollInterval: 2 * time.Second,
		},
		Service: ServiceConfig{
			SystemBus: false,
		},
		Logging: LoggingConfig{
			LogLevel: "",
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("drmfb")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath("/etc/drmfb")
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "drmfb"))
		}
		viper.AddConfigPath(".")
	}

	viper.SetDefault("device.path", DefaultConfig.Device.Path)
	viper.SetDefault("hotplug.netlink", DefaultConfig.Hotplug.Netlink)
	viper.SetDefault("hotplug.poll_interval", DefaultConfig.Hotplug.PollInterval)
	viper.SetDefault("service.system_bus", DefaultConfig.Service.SystemBus)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	// The device node can be pointed elsewhere through DRMFB_DEVICE_PATH
	// without touching the config file.
	viper.SetEnvPrefix("drmfb")
	if err := viper.BindEnv("device.path", "DRMFB_DEVICE_PATH"); err != nil {
		return fmt.Errorf("failed to bind device path env var: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}
	return "/etc/drmfb/drmfb.toml"
}
