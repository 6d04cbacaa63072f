package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/logger"

	"github.com/gin-gonic/gin"
)

//go:embed templates/portal.html
var templatesFS embed.FS

var portalTmpl = template.Must(template.ParseFS(templatesFS, "templates/portal.html"))

type portalView struct {
	Name           string
	DeviceID       string
	SSID           string
	Password       string
	City           string
	SensorPin      int
	APIKey         string
	TimezoneOffset int
	Brightness     int
	TextColor      string
}

func newPortalView(cfg *config.Config) portalView {
	return portalView{
		Name:           cfg.Device.Name,
		DeviceID:       cfg.Device.ID,
		SSID:           cfg.WiFi.SSID,
		Password:       cfg.WiFi.Password,
		City:           cfg.Weather.City,
		SensorPin:      cfg.Sensor.Pin,
		APIKey:         cfg.Weather.APIKey,
		TimezoneOffset: cfg.Display.TimezoneOffset,
		Brightness:     cfg.Display.Brightness,
		TextColor:      config.RGBToHex(cfg.Display.TextColor),
	}
}

// handlePortal 配置表单
func (s *Server) handlePortal(c *gin.Context) {
	var buf bytes.Buffer
	if err := portalTmpl.Execute(&buf, newPortalView(s.currentConfig())); err != nil {
		logger.Error("渲染配置页失败: %v", err)
		c.String(http.StatusInternalServerError, "render error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// parsePortalForm 非法的整数/颜色直接忽略，越界的亮度与时区同样忽略
func parsePortalForm(form url.Values) configUpdate {
	var u configUpdate
	str := func(key string) *string {
		if _, ok := form[key]; !ok {
			return nil
		}
		v := form.Get(key)
		return &v
	}
	num := func(key string, lo, hi int) *int {
		if _, ok := form[key]; !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(form.Get(key)))
		if err != nil || n < lo || n > hi {
			return nil
		}
		return &n
	}

	u.SSID = str("ssid")
	u.Password = str("password")
	u.City = str("city")
	u.APIKey = str("api_key")
	u.SensorPin = num("dht_pin", 0, 1<<16)
	u.Brightness = num("brightness", 0, 255)
	u.TimezoneOffset = num("timezone_offset", -12, 14)
	if v := str("text_color"); v != nil {
		if _, err := config.HexToRGB(*v); err == nil {
			u.TextColor = v
		}
	}
	return u
}

// handlePortalSave 表单提交：读盘、更新、保存、应用，303 回到表单
func (s *Server) handlePortalSave(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64*1024))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		c.Status(http.StatusBadRequest)
		return
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	cfg := s.currentConfig()
	upd := parsePortalForm(form)
	wifiChanged, err := upd.apply(cfg)
	if err != nil {
		logger.Warn("配置页提交无效: %v", err)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if err := s.saveAndApply(cfg); err != nil {
		logger.Error("保存配置失败: %v", err)
	}
	if wifiChanged {
		logger.Info("WiFi 凭据已更新（重启后生效）: %s", cfg.WiFi.SSID)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handlePortalReset 删除配置文件
func (s *Server) handlePortalReset(c *gin.Context) {
	if err := config.Reset(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("重置配置失败: %v", err)
	} else {
		logger.Info("配置已重置为默认值")
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handlePortalRestart 先回 303，1 秒后重启
func (s *Server) handlePortalRestart(c *gin.Context) {
	logger.Info("通过配置页重启设备")
	c.Redirect(http.StatusSeeOther, "/")
	s.restart(time.Second)
}
