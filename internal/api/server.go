package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/clock"
	"wifi-clock/internal/realtime"
	"wifi-clock/internal/system"
	"wifi-clock/models"

	"github.com/gin-gonic/gin"
)

// Server API服务器：配网页 + JSON API + WebSocket + /metrics
type Server struct {
	mu      sync.Mutex
	config  *config.Config
	rt      *clock.Runtime
	hub     *realtime.Hub
	router  *gin.Engine
	restart func(time.Duration)
}

// NewServer 创建API服务器；hub 为 nil 时使用进程级单例
func NewServer(cfg *config.Config, rt *clock.Runtime, hub *realtime.Hub) *Server {
	if hub == nil {
		hub = realtime.Default()
	}
	s := &Server{
		config:  cfg,
		rt:      rt,
		hub:     hub,
		restart: system.RestartAfter,
	}
	s.initRouter()
	return s
}

// Router 获取路由
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	// 配网页（不鉴权：热点上的任何人都能配网）
	s.router.GET("/", s.handlePortal)
	s.router.POST("/", s.handlePortalSave)
	s.router.POST("/reset", s.handlePortalReset)
	s.router.POST("/restart", s.handlePortalRestart)

	api := s.router.Group("/api/v1")
	{
		api.POST("/auth/login", s.handleLogin)
		api.POST("/auth/change-password", s.authMiddleware(), s.handleChangePassword)

		api.GET("/status", s.handleStatus)

		api.GET("/config", s.authMiddleware(), s.handleConfigGet)
		api.POST("/config", s.authMiddleware(), s.handleConfigUpdate)

		api.POST("/time/sync", s.authMiddleware(), s.handleTimeSync)

		api.POST("/display/test", s.authMiddleware(), s.handleDisplayTest)
		api.POST("/display/message", s.authMiddleware(), s.handleDisplayMessage)
		api.GET("/display/snapshot.png", s.authMiddleware(), s.handleDisplaySnapshot)

		api.GET("/history", s.authMiddleware(), s.handleHistory)

		api.GET("/network/status", s.authMiddleware(), s.handleNetworkStatus)
		api.GET("/network/wifi/scan", s.authMiddleware(), s.handleWiFiScan)

		api.GET("/system/info", s.authMiddleware(), s.handleSystemInfo)
		api.POST("/system/restart", s.authMiddleware(), s.handleSystemRestart)
	}

	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/metrics", gin.WrapH(s.rt.Metrics().Handler()))

	// 热点模式下手机会探测任意 URL，GET 一律回配置页
	s.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || strings.HasPrefix(c.Request.URL.Path, "/ws") {
			c.JSON(http.StatusNotFound, models.ErrorResponse(404, "not found"))
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, models.ErrorResponse(404, "not found"))
			return
		}
		s.handlePortal(c)
	})
}

// currentConfig 磁盘上的配置；读取失败时用内存中的
func (s *Server) currentConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err == nil && cfg != nil {
		return cfg
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// saveAndApply 保存并应用到运行中的时钟
func (s *Server) saveAndApply(cfg *config.Config) error {
	if err := cfg.Save(); err != nil {
		return err
	}
	s.mu.Lock()
	s.config = cfg.Clone()
	s.mu.Unlock()
	return s.rt.ApplyConfig(cfg)
}
