package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initWithFile(t *testing.T, content string) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		cfg = nil
		configPathOverride = ""
	})

	path := filepath.Join(t.TempDir(), "drmfb.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	SetConfigPath(path)
	require.NoError(t, Init())
	return Get()
}

func TestDefaults(t *testing.T) {
	cfg := initWithFile(t, "")

	assert.Equal(t, DefaultDevicePath, cfg.Device.Path)
	assert.True(t, cfg.Hotplug.Netlink)
	assert.Equal(t, 2*time.Second, cfg.Hotplug.PollInterval)
	assert.False(t, cfg.Service.SystemBus)
	assert.Empty(t, cfg.Logging.LogLevel)
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	cfg := initWithFile(t, `
[device]
path = "/dev/dri/card1"

[hotplug]
netlink = false
poll_interval = "5s"

[logging]
log_level = "debug"
`)

	assert.Equal(t, "/dev/dri/card1", cfg.Device.Path)
	assert.False(t, cfg.Hotplug.Netlink)
	assert.Equal(t, 5*time.Second, cfg.Hotplug.PollInterval)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestDevicePathEnvOverride(t *testing.T) {
	t.Setenv("DRMFB_DEVICE_PATH", "/dev/dri/card2")
	cfg := initWithFile(t, "")

	assert.Equal(t, "/dev/dri/card2", cfg.Device.Path)
}

func TestGetWithoutInit(t *testing.T) {
	viper.Reset()
	cfg = nil

	assert.Equal(t, DefaultDevicePath, Get().Device.Path)
}
