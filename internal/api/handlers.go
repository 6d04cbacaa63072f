package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/display"
	"wifi-clock/internal/logger"
	"wifi-clock/internal/system"
	"wifi-clock/models"
	"wifi-clock/utils"

	"github.com/gin-gonic/gin"
)

// 屏幕提示时长限制（秒）
const (
	defaultMessageSeconds = 5
	maxMessageSeconds     = 60
	snapshotScale         = 8
	testPatternDuration   = 3 * time.Second
)

func (s *Server) cfgSnapshot() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// handleLogin 处理登录请求
func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, "参数错误: "+err.Error()))
		return
	}

	cfg := s.cfgSnapshot()
	if req.Username != "admin" || !utils.CheckAdminPassword(req.Password, cfg.Auth.PasswordHash) {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse(401, "用户名或密码错误"))
		return
	}

	token, err := utils.GenerateJWT(cfg.Device.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(500, "生成Token失败"))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"token":      token,
		"expires_in": int(utils.TokenTTL.Seconds()),
	}))
}

// handleChangePassword 处理修改密码请求
func (s *Server) handleChangePassword(c *gin.Context) {
	var req struct {
		OldPassword     string `json:"old_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
		ConfirmPassword string `json:"confirm_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, "参数错误: "+err.Error()))
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, "新密码和确认密码不匹配"))
		return
	}

	// 以磁盘配置为底，命令行覆盖项（-display/-port）不落盘
	disk := s.currentConfig()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !utils.CheckAdminPassword(req.OldPassword, s.config.Auth.PasswordHash) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, "旧密码错误"))
		return
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(500, "密码加密失败"))
		return
	}
	disk.Auth.PasswordHash = hash
	if err := disk.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(500, "保存配置失败"))
		return
	}
	next := s.config.Clone()
	next.Auth.PasswordHash = hash
	s.config = next
	c.JSON(http.StatusOK, models.SuccessResponse(nil))
}

// handleStatus 时间、天气、室内读数、网络（无需登录）
func (s *Server) handleStatus(c *gin.Context) {
	cfg := s.cfgSnapshot()
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"device": gin.H{
			"device_id": cfg.Device.ID,
			"name":      cfg.Device.Name,
		},
		"state":              s.rt.State(),
		"wifi_configured":    cfg.WiFiConfigured(),
		"weather_configured": cfg.WeatherConfigured(),
	}))
}

// handleConfigGet 敏感字段脱敏
func (s *Server) handleConfigGet(c *gin.Context) {
	cfg := s.cfgSnapshot()
	mask := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return ""
		}
		return maskedSecret
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"device": gin.H{
			"device_id": cfg.Device.ID,
			"name":      cfg.Device.Name,
		},
		"wifi": gin.H{
			"ssid":      cfg.WiFi.SSID,
			"password":  mask(cfg.WiFi.Password),
			"interface": cfg.WiFi.Interface,
		},
		"portal": gin.H{
			"ssid":     cfg.Portal.SSID,
			"password": mask(cfg.Portal.Password),
		},
		"weather": gin.H{
			"city":            cfg.Weather.City,
			"api_key":         mask(cfg.Weather.APIKey),
			"units":           cfg.Weather.Units,
			"refresh_seconds": cfg.Weather.RefreshSeconds,
		},
		"sensor": cfg.Sensor,
		"display": gin.H{
			"backend":         cfg.Display.Backend,
			"brightness":      cfg.Display.Brightness,
			"text_color":      config.RGBToHex(cfg.Display.TextColor),
			"timezone_offset": cfg.Display.TimezoneOffset,
			"width":           cfg.Display.Width,
			"height":          cfg.Display.Height,
		},
		"rtc": cfg.RTC,
		"ntp": cfg.NTP,
		"mqtt": gin.H{
			"enabled":      cfg.MQTT.Enabled,
			"server":       cfg.MQTT.Server,
			"port":         cfg.MQTT.Port,
			"username":     cfg.MQTT.Username,
			"password":     mask(cfg.MQTT.Password),
			"topic_prefix": cfg.MQTT.TopicPrefix,
		},
	}))
}

// handleConfigUpdate 部分更新；WiFi 变化需要重启生效
func (s *Server) handleConfigUpdate(c *gin.Context) {
	var upd configUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, "参数错误: "+err.Error()))
		return
	}
	if upd.empty() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, "没有需要更新的字段"))
		return
	}

	cfg := s.currentConfig()
	wifiChanged, err := upd.apply(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, err.Error()))
		return
	}
	if err := s.saveAndApply(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(500, "保存配置失败: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"restart_required": wifiChanged,
	}))
}

// handleTimeSync 立即 NTP 校时
func (s *Server) handleTimeSync(c *gin.Context) {
	if err := s.rt.SyncTime(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse(502, "校时失败: "+err.Error()))
		return
	}
	st := s.rt.State()
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"time":   st.Time,
		"source": st.TimeSource,
	}))
}

// handleDisplayTest 显示测试图 3 秒
func (s *Server) handleDisplayTest(c *gin.Context) {
	s.rt.Display().ShowTestPattern(testPatternDuration)
	c.JSON(http.StatusOK, models.MessageResponse("测试图已显示"))
}

// handleDisplayMessage 屏幕提示
func (s *Server) handleDisplayMessage(c *gin.Context) {
	var req struct {
		Text    string `json:"text" binding:"required"`
		Seconds int    `json:"seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, "参数错误: "+err.Error()))
		return
	}
	if req.Seconds <= 0 {
		req.Seconds = defaultMessageSeconds
	}
	if req.Seconds > maxMessageSeconds {
		req.Seconds = maxMessageSeconds
	}
	s.rt.ShowMessage(req.Text, time.Duration(req.Seconds)*time.Second)
	c.JSON(http.StatusOK, models.MessageResponse("已显示"))
}

// handleDisplaySnapshot 当前画面 PNG（默认放大 8 倍）
func (s *Server) handleDisplaySnapshot(c *gin.Context) {
	frame := s.rt.Display().Snapshot()
	if frame == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(503, "尚未渲染画面"))
		return
	}
	scale := snapshotScale
	if v, err := strconv.Atoi(c.Query("scale")); err == nil && v >= 1 && v <= 16 {
		scale = v
	}
	png, err := display.EncodePNG(display.ScaleNearest(frame, scale))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(500, err.Error()))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// handleHistory ?kind=weather|sensor&limit=N
func (s *Server) handleHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	kind := c.DefaultQuery("kind", "weather")
	rows, err := s.rt.History(kind, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(400, err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"kind":    kind,
		"records": rows,
	}))
}

// handleNetworkStatus 处理获取网络状态请求
func (s *Server) handleNetworkStatus(c *gin.Context) {
	nm := s.rt.Network()
	if nm == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(503, "网络管理不可用"))
		return
	}
	status, err := nm.GetNetworkStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(status))
}

// handleWiFiScan 扫描附近 WiFi
func (s *Server) handleWiFiScan(c *gin.Context) {
	nm := s.rt.Network()
	if nm == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse(503, "网络管理不可用"))
		return
	}
	networks, err := nm.ScanWiFi()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(500, err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"networks": networks,
	}))
}

// handleSystemInfo 主机信息
func (s *Server) handleSystemInfo(c *gin.Context) {
	info := system.CollectInfo(200 * time.Millisecond)
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"system":      info,
		"log_path":    logger.CurrentLogPath(),
		"ws_clients":  s.hub.Count(),
		"time_source": s.rt.Clock().Source(),
	}))
}

// handleSystemRestart 1 秒后重启
func (s *Server) handleSystemRestart(c *gin.Context) {
	logger.Info("通过 API 重启设备")
	c.JSON(http.StatusOK, models.MessageResponse("设备将在 1 秒后重启"))
	s.restart(time.Second)
}
