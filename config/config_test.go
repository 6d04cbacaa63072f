package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("WIFICLOCK_CONFIG_PATH", p)
	return p
}

func TestLoadConfig_CreatesDefaults(t *testing.T) {
	p := useTempConfig(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "London", cfg.Weather.City)
	assert.Equal(t, 128, cfg.Display.Brightness)
	assert.Equal(t, [3]uint8{255, 255, 255}, cfg.Display.TextColor)
	assert.Equal(t, DefaultPortalSSID, cfg.Portal.SSID)
	assert.Equal(t, uint16(0x68), cfg.RTC.Address)
	assert.NotEmpty(t, cfg.Device.ID)
	assert.False(t, cfg.WiFiConfigured())
	assert.False(t, cfg.WeatherConfigured())

	_, err = os.Stat(p)
	assert.NoError(t, err, "load must write the merged config back")
}

func TestLoadConfig_MergesPartialFile(t *testing.T) {
	p := useTempConfig(t)
	require.NoError(t, os.WriteFile(p, []byte(`{"weather":{"city":"Paris"},"display":{"brightness":42,"text_color":[1,2,3]}}`), 0644))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "Paris", cfg.Weather.City)
	assert.Equal(t, PlaceholderAPIKey, cfg.Weather.APIKey)
	assert.Equal(t, 600, cfg.Weather.RefreshSeconds)
	assert.Equal(t, 42, cfg.Display.Brightness)
	assert.Equal(t, [3]uint8{1, 2, 3}, cfg.Display.TextColor)
	assert.Equal(t, 64, cfg.Display.Width)
	assert.Equal(t, 22, cfg.Hub75.Pins.CLK)
}

func TestLoadConfig_CorruptFileFallsBackToDefaults(t *testing.T) {
	p := useTempConfig(t)
	require.NoError(t, os.WriteFile(p, []byte(`{"weather":{"city":"Par`), 0644))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "London", cfg.Weather.City)
}

func TestLoadConfig_KeepsDeviceID(t *testing.T) {
	useTempConfig(t)

	first, err := LoadConfig()
	require.NoError(t, err)
	second, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, first.Device.ID, second.Device.ID)
}

func TestReset(t *testing.T) {
	p := useTempConfig(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.Weather.City = "Tokyo"
	require.NoError(t, cfg.Save())

	require.NoError(t, Reset())
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "London", cfg.Weather.City)

	require.NoError(t, Reset())
	assert.Error(t, Reset(), "deleting a missing file is reported")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"brightness high", func(c *Config) { c.Display.Brightness = 256 }, false},
		{"brightness negative", func(c *Config) { c.Display.Brightness = -1 }, false},
		{"odd height", func(c *Config) { c.Display.Height = 31 }, false},
		{"timezone", func(c *Config) { c.Display.TimezoneOffset = 15 }, false},
		{"negative timezone", func(c *Config) { c.Display.TimezoneOffset = -5 }, true},
		{"sensor", func(c *Config) { c.Sensor.Type = "bme280" }, false},
		{"backend", func(c *Config) { c.Display.Backend = "oled" }, false},
		{"port", func(c *Config) { c.Server.Port = 70000 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(c)
			err := c.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestConfigured(t *testing.T) {
	c := DefaultConfig()
	c.WiFi.SSID = "home"
	c.Weather.APIKey = "abc"
	assert.True(t, c.WiFiConfigured())
	assert.True(t, c.WeatherConfigured())

	c.Weather.City = " "
	assert.False(t, c.WeatherConfigured())
}

func TestColorConversion(t *testing.T) {
	assert.Equal(t, "#ff8000", RGBToHex([3]uint8{255, 128, 0}))

	rgb, err := HexToRGB("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{255, 128, 0}, rgb)

	rgb, err = HexToRGB("00ff10")
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{0, 255, 16}, rgb)

	for _, bad := range []string{"", "#fff", "#gg0000", "#1234567"} {
		_, err := HexToRGB(bad)
		assert.ErrorIs(t, err, ErrInvalidColor, bad)
	}
}
