package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// 占位值：出厂配置里的 WiFi/天气 Key 都是这些字符串，视为“未配置”
const (
	PlaceholderSSID     = "Your-Wi-Fi-SSID"
	PlaceholderPassword = "Your-Wi-Fi-Password"
	PlaceholderAPIKey   = "YOUR_OPENWEATHERMAP_API_KEY"
)

// DefaultPortalSSID 首次启动/联网失败时开启的配网热点名称
const DefaultPortalSSID = "WIFICLOCK-Config"

// DefaultDeviceName 默认设备名称，可在编译时覆盖：
//
//	go build -ldflags "-X 'wifi-clock/config.DefaultDeviceName=Desk Clock'"
var DefaultDeviceName = "WiFi Clock"

// 显示后端
const (
	BackendHub75  = "hub75"
	BackendFB     = "fb"
	BackendSDL    = "sdl"
	BackendMemory = "memory"
)

// 温湿度传感器型号
const (
	SensorDHT11 = "dht11"
	SensorDHT22 = "dht22"
)

// Config 应用配置
type Config struct {
	Device   DeviceConfig   `json:"device"`
	WiFi     WiFiConfig     `json:"wifi"`
	Portal   PortalConfig   `json:"portal"`
	Weather  WeatherConfig  `json:"weather"`
	Sensor   SensorConfig   `json:"sensor"`
	Display  DisplayConfig  `json:"display"`
	Hub75    Hub75Config    `json:"hub75"`
	RTC      RTCConfig      `json:"rtc"`
	NTP      NTPConfig      `json:"ntp"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
}

// DeviceConfig 设备信息
type DeviceConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WiFiConfig 工作 WiFi（STA）
type WiFiConfig struct {
	SSID      string `json:"ssid"`
	Password  string `json:"password"`
	Interface string `json:"interface"` // wlan0
}

// PortalConfig 配网热点（AP）
type PortalConfig struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// WeatherConfig OpenWeatherMap 配置
type WeatherConfig struct {
	City           string `json:"city"`
	APIKey         string `json:"api_key"`
	Units          string `json:"units"`
	RefreshSeconds int    `json:"refresh_seconds"`
}

// SensorConfig DHT 温湿度传感器
type SensorConfig struct {
	Type            string `json:"type"` // dht11, dht22
	Pin             int    `json:"pin"`
	IIODevice       string `json:"iio_device"` // 为空则自动探测 /sys/bus/iio/devices
	IntervalSeconds int    `json:"interval_seconds"`
}

// DisplayConfig 显示设置
type DisplayConfig struct {
	Backend        string   `json:"backend"`
	Brightness     int      `json:"brightness"` // 0-255
	TextColor      [3]uint8 `json:"text_color"`
	TimezoneOffset int      `json:"timezone_offset"` // 小时
	Width          int      `json:"width"`
	Height         int      `json:"height"`
}

// Hub75Pins Hub75 接口 GPIO 编号
type Hub75Pins struct {
	R1  int `json:"r1"`
	G1  int `json:"g1"`
	B1  int `json:"b1"`
	R2  int `json:"r2"`
	G2  int `json:"g2"`
	B2  int `json:"b2"`
	A   int `json:"a"`
	B   int `json:"b"`
	C   int `json:"c"`
	D   int `json:"d"`
	E   int `json:"e"`
	LAT int `json:"lat"`
	OE  int `json:"oe"`
	CLK int `json:"clk"`
}

// Hub75Config LED 点阵驱动配置
type Hub75Config struct {
	Pins Hub75Pins `json:"pins"`
}

// RTCConfig DS1307 配置
type RTCConfig struct {
	Enabled bool   `json:"enabled"`
	Bus     string `json:"bus"` // 为空则使用第一条 I2C 总线
	Address uint16 `json:"address"`
}

// NTPConfig 校时服务器
type NTPConfig struct {
	Server string `json:"server"`
}

// MQTTConfig 读数上报（可选）
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Server      string `json:"server"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig 历史读数库
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AuthConfig 管理接口认证
type AuthConfig struct {
	PasswordHash string `json:"password_hash"` // bcrypt hash，为空时默认密码 admin
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: DefaultDeviceName,
		},
		WiFi: WiFiConfig{
			SSID:      PlaceholderSSID,
			Password:  PlaceholderPassword,
			Interface: "wlan0",
		},
		Portal: PortalConfig{
			SSID:     DefaultPortalSSID,
			Password: "password123",
		},
		Weather: WeatherConfig{
			City:           "London",
			APIKey:         PlaceholderAPIKey,
			Units:          "metric",
			RefreshSeconds: 600,
		},
		Sensor: SensorConfig{
			Type:            SensorDHT22,
			Pin:             4,
			IntervalSeconds: 2,
		},
		Display: DisplayConfig{
			Backend:        BackendHub75,
			Brightness:     128,
			TextColor:      [3]uint8{255, 255, 255},
			TimezoneOffset: 0,
			Width:          64,
			Height:         32,
		},
		Hub75: Hub75Config{
			Pins: Hub75Pins{
				R1: 2, G1: 15, B1: 4,
				R2: 16, G2: 27, B2: 17,
				A: 5, B: 18, C: 19, D: 21, E: 12,
				LAT: 26, OE: 25, CLK: 22,
			},
		},
		RTC: RTCConfig{
			Enabled: true,
			Address: 0x68,
		},
		NTP: NTPConfig{
			Server: "pool.ntp.org",
		},
		MQTT: MQTTConfig{
			Port:        1883,
			TopicPrefix: "wificlock",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 80,
		},
		Database: DatabaseConfig{
			Path: defaultDBPath(),
		},
	}
}

func defaultConfigPath() string {
	if runtime.GOOS == "linux" {
		return "/etc/wificlock/config.json"
	}
	if wd, err := os.Getwd(); err == nil && strings.TrimSpace(wd) != "" {
		return filepath.Join(wd, "config.json")
	}
	return filepath.Join(os.TempDir(), "wificlock", "config.json")
}

func defaultDBPath() string {
	if runtime.GOOS == "linux" {
		return "/var/wificlock/clock.db"
	}
	if wd, err := os.Getwd(); err == nil && strings.TrimSpace(wd) != "" {
		return filepath.Join(wd, "data", "clock.db")
	}
	return filepath.Join(os.TempDir(), "wificlock", "clock.db")
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	if p := strings.TrimSpace(os.Getenv("WIFICLOCK_CONFIG_PATH")); p != "" {
		return p
	}
	return defaultConfigPath()
}

// LoadConfig 加载配置：以默认值为底，叠加文件内容，然后回写。
// 文件不存在或损坏时使用默认值（不报错），只有回写失败才返回错误。
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	path := GetConfigPath()

	if data, err := os.ReadFile(path); err == nil {
		var fileCfg Config
		// 先解析到临时对象：JSON 损坏时不能把默认值改一半
		if err := json.Unmarshal(data, &fileCfg); err == nil {
			_ = json.Unmarshal(data, cfg)
		}
	}

	cfg.normalize()
	if err := cfg.Save(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize 补齐缺失/零值字段
func (c *Config) normalize() {
	def := DefaultConfig()
	if strings.TrimSpace(c.Device.ID) == "" {
		c.Device.ID = uuid.NewString()
	}
	if strings.TrimSpace(c.Device.Name) == "" {
		c.Device.Name = def.Device.Name
	}
	if strings.TrimSpace(c.WiFi.Interface) == "" {
		c.WiFi.Interface = def.WiFi.Interface
	}
	if strings.TrimSpace(c.Portal.SSID) == "" {
		c.Portal.SSID = def.Portal.SSID
	}
	if strings.TrimSpace(c.Weather.Units) == "" {
		c.Weather.Units = def.Weather.Units
	}
	if c.Weather.RefreshSeconds <= 0 {
		c.Weather.RefreshSeconds = def.Weather.RefreshSeconds
	}
	if c.Sensor.IntervalSeconds <= 0 {
		c.Sensor.IntervalSeconds = def.Sensor.IntervalSeconds
	}
	if strings.TrimSpace(c.Sensor.Type) == "" {
		c.Sensor.Type = def.Sensor.Type
	}
	if strings.TrimSpace(c.Display.Backend) == "" {
		c.Display.Backend = def.Display.Backend
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		c.Display.Width = def.Display.Width
		c.Display.Height = def.Display.Height
	}
	if c.RTC.Address == 0 {
		c.RTC.Address = def.RTC.Address
	}
	if strings.TrimSpace(c.NTP.Server) == "" {
		c.NTP.Server = def.NTP.Server
	}
	if c.MQTT.Port <= 0 {
		c.MQTT.Port = def.MQTT.Port
	}
	if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if c.Server.Port <= 0 {
		c.Server.Port = def.Server.Port
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = def.Database.Path
	}
}

// Save 保存配置
func (c *Config) Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Reset 删除配置文件，下一次 LoadConfig 会得到出厂配置
func Reset() error {
	if err := os.Remove(GetConfigPath()); err != nil {
		return fmt.Errorf("删除配置文件失败: %w", err)
	}
	return nil
}

// Clone 深拷贝（所有字段都是值类型）
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// WiFiConfigured 是否填写了真实的 WiFi 信息
func (c *Config) WiFiConfigured() bool {
	ssid := strings.TrimSpace(c.WiFi.SSID)
	return ssid != "" && ssid != PlaceholderSSID
}

// WeatherConfigured 是否可以请求天气
func (c *Config) WeatherConfigured() bool {
	key := strings.TrimSpace(c.Weather.APIKey)
	return key != "" && key != PlaceholderAPIKey && strings.TrimSpace(c.Weather.City) != ""
}

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("配置无效")

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: 服务器端口无效: %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Display.Brightness < 0 || c.Display.Brightness > 255 {
		return fmt.Errorf("%w: 亮度必须在 0-255 之间: %d", ErrInvalidConfig, c.Display.Brightness)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 || c.Display.Height%2 != 0 {
		return fmt.Errorf("%w: 屏幕尺寸无效: %dx%d", ErrInvalidConfig, c.Display.Width, c.Display.Height)
	}
	if c.Display.TimezoneOffset < -12 || c.Display.TimezoneOffset > 14 {
		return fmt.Errorf("%w: 时区偏移无效: %d", ErrInvalidConfig, c.Display.TimezoneOffset)
	}
	switch c.Sensor.Type {
	case SensorDHT11, SensorDHT22:
	default:
		return fmt.Errorf("%w: 未知传感器型号: %s", ErrInvalidConfig, c.Sensor.Type)
	}
	switch c.Display.Backend {
	case BackendHub75, BackendFB, BackendSDL, BackendMemory:
	default:
		return fmt.Errorf("%w: 未知显示后端: %s", ErrInvalidConfig, c.Display.Backend)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: 数据库路径不能为空", ErrInvalidConfig)
	}
	return nil
}
