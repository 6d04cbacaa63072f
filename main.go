package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/api"
	"wifi-clock/internal/clock"
	"wifi-clock/internal/database"
	"wifi-clock/internal/display"
	"wifi-clock/internal/envfile"
	"wifi-clock/internal/logger"
	"wifi-clock/internal/metrics"
	"wifi-clock/internal/mqtt"
	"wifi-clock/internal/network"
	"wifi-clock/internal/realtime"
	"wifi-clock/internal/rtc"
	"wifi-clock/internal/sensor"
	"wifi-clock/internal/timesync"
	"wifi-clock/internal/weather"

	"periph.io/x/conn/v3/i2c"
)

// openRTC 打开 DS1307；失败时退回系统时钟
func openRTC(cfg *config.Config) (timesync.RTC, i2c.BusCloser) {
	if !cfg.RTC.Enabled {
		return nil, nil
	}
	bus, err := rtc.OpenBus(cfg.RTC.Bus)
	if err != nil {
		logger.Warn("RTC 不可用，使用系统时钟: %v", err)
		return nil, nil
	}
	dev := rtc.New(bus, cfg.RTC.Address, timesync.Zone(cfg.Display.TimezoneOffset))
	// 停振的芯片照样使用，随后由校时写入
	if _, err := dev.Read(); err != nil && !errors.Is(err, rtc.ErrNotRunning) {
		logger.Warn("读取 RTC 失败，使用系统时钟: %v", err)
		_ = bus.Close()
		return nil, nil
	}
	logger.Info("RTC 已就绪: %s", rtc.FormatAddr(cfg.RTC.Address))
	return dev, bus
}

// openSensor 配置了 iio_device 直接使用，否则自动探测
func openSensor(cfg *config.Config) sensor.Source {
	dir := strings.TrimSpace(cfg.Sensor.IIODevice)
	if dir == "" {
		found, err := sensor.Discover(sensor.DefaultIIORoot)
		if err != nil {
			logger.Warn("温湿度传感器不可用: %v", err)
			return nil
		}
		dir = found
	}
	logger.Info("温湿度传感器: %s (%s, pin %d)", dir, cfg.Sensor.Type, cfg.Sensor.Pin)
	return sensor.NewIIOSource(dir)
}

// bringUpNetwork 连接已保存的 WiFi；未配置或失败时开启配网热点
func bringUpNetwork(ctx context.Context, cfg *config.Config, nm network.Manager) bool {
	if cfg.WiFiConfigured() {
		ok, err := nm.ConnectWiFi(ctx, cfg.WiFi.SSID, cfg.WiFi.Password)
		if ok {
			logger.Info("WiFi 已连接: %s", cfg.WiFi.SSID)
			return true
		}
		logger.Error("WiFi 连接失败: ssid=%s err=%v", cfg.WiFi.SSID, err)
	} else {
		logger.Info("WiFi 未配置，进入配网模式")
	}

	if err := nm.StartAccessPoint(cfg.Portal.SSID, cfg.Portal.Password); err != nil {
		logger.Error("开启配网热点失败: %v", err)
		return false
	}
	logger.Info("配网热点已开启: %s（浏览器访问 http://%s/）", cfg.Portal.SSID, network.APAddress)
	return false
}

func main() {
	backend := flag.String("display", "", "显示后端 hub75|fb|sdl|memory（覆盖配置文件）")
	port := flag.Int("port", 0, "HTTP 端口（覆盖配置文件）")
	debug := flag.Bool("debug", false, "输出调试日志")
	flag.Parse()

	envfile.Bootstrap()

	if err := logger.InitLogger(); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Close()
	logger.SetDebug(*debug)
	logger.Info("启动 WiFi 时钟...")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("保存配置失败（继续使用内存配置）: %v", err)
	}
	if *backend != "" {
		cfg.Display.Backend = *backend
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("配置无效: %v", err)
	}

	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		logger.Error("初始化历史库失败，历史记录不可用: %v", err)
		db = nil
	}

	// 显示先起来：后续 WiFi/NTP 的提示都要上屏
	disp, err := display.NewDisplay(cfg)
	if err != nil {
		logger.Fatal("初始化显示失败: %v", err)
	}

	rtcDev, rtcBus := openRTC(cfg)
	clk := timesync.NewClock(rtcDev, cfg.Display.TimezoneOffset)

	hub := realtime.Default()
	m := metrics.New()
	pub := mqtt.New(cfg.MQTT, cfg.Device.ID)
	rt, err := clock.New(clock.Options{
		Config:  cfg,
		Display: disp,
		Clock:   clk,
		NTP:     timesync.NewNTPClient(),
		Weather: weather.NewOpenWeatherMap(""),
		Sensor:  openSensor(cfg),
		DB:      db,
		Hub:     hub,
		MQTT:    pub,
		Metrics: m,
	})
	if err != nil {
		logger.Fatal("初始化时钟失败: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 上电测试图
	rt.Display().FlashTestPattern(ctx, 3*time.Second)

	nm := network.NewManager(cfg.WiFi.Interface, rt.Display())
	rt.SetNetwork(nm)
	if bringUpNetwork(ctx, cfg, nm) {
		if ok, err := rt.Syncer().EnsureValid(ctx); err != nil {
			logger.Warn("校时失败: %v", err)
		} else if ok {
			logger.Info("时间已校准: %s", rt.Clock().Now().Format(time.RFC3339))
		}
	} else if rtcDev == nil {
		logger.Warn("无网络且无 RTC，时间可能不准确")
	}

	apiServer := api.NewServer(cfg, rt, hub)
	httpServer := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        apiServer.Router(),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 12,
	}
	go func() {
		logger.Info("HTTP服务器启动在端口 %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP服务器启动失败: %v", err)
			cancel()
		}
	}()

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("时钟运行错误: %v", err)
	}
	logger.Info("正在关闭服务...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP服务器关闭失败: %v", err)
	}
	hub.Close()

	if err := rt.Close(); err != nil {
		logger.Error("关闭时钟失败: %v", err)
	}
	if rtcBus != nil {
		_ = rtcBus.Close()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("关闭数据库失败: %v", err)
		}
	}
	logger.Info("服务已关闭")
}
