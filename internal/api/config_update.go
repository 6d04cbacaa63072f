package api

import (
	"strings"

	"wifi-clock/config"
)

// maskedSecret GET /config 中密钥的占位；原样提交回来时不覆盖
const maskedSecret = "***"

// configUpdate 配网页与 JSON API 共用的部分更新；nil 表示不修改
type configUpdate struct {
	DeviceName     *string `json:"device_name"`
	SSID           *string `json:"ssid"`
	Password       *string `json:"password"`
	City           *string `json:"city"`
	APIKey         *string `json:"api_key"`
	Units          *string `json:"units"`
	SensorPin      *int    `json:"dht_pin"`
	TimezoneOffset *int    `json:"timezone_offset"`
	Brightness     *int    `json:"brightness"`
	TextColor      *string `json:"text_color"`
	NTPServer      *string `json:"ntp_server"`
}

func (u *configUpdate) empty() bool {
	return *u == configUpdate{}
}

// apply 写入 cfg，返回 WiFi 凭据是否变化
func (u *configUpdate) apply(cfg *config.Config) (wifiChanged bool, err error) {
	if u.DeviceName != nil && strings.TrimSpace(*u.DeviceName) != "" {
		cfg.Device.Name = strings.TrimSpace(*u.DeviceName)
	}
	if u.SSID != nil && *u.SSID != cfg.WiFi.SSID {
		cfg.WiFi.SSID = *u.SSID
		wifiChanged = true
	}
	if u.Password != nil && *u.Password != maskedSecret && *u.Password != cfg.WiFi.Password {
		cfg.WiFi.Password = *u.Password
		wifiChanged = true
	}
	if u.City != nil {
		cfg.Weather.City = strings.TrimSpace(*u.City)
	}
	if u.APIKey != nil && *u.APIKey != maskedSecret {
		cfg.Weather.APIKey = strings.TrimSpace(*u.APIKey)
	}
	if u.Units != nil && strings.TrimSpace(*u.Units) != "" {
		cfg.Weather.Units = strings.TrimSpace(*u.Units)
	}
	if u.SensorPin != nil {
		cfg.Sensor.Pin = *u.SensorPin
	}
	if u.TimezoneOffset != nil {
		cfg.Display.TimezoneOffset = *u.TimezoneOffset
	}
	if u.Brightness != nil {
		cfg.Display.Brightness = *u.Brightness
	}
	if u.TextColor != nil {
		rgb, err := config.HexToRGB(*u.TextColor)
		if err != nil {
			return wifiChanged, err
		}
		cfg.Display.TextColor = rgb
	}
	if u.NTPServer != nil && strings.TrimSpace(*u.NTPServer) != "" {
		cfg.NTP.Server = strings.TrimSpace(*u.NTPServer)
	}
	return wifiChanged, cfg.Validate()
}
