package clock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"
	"sync"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/database"
	"wifi-clock/internal/display"
	"wifi-clock/internal/logger"
	"wifi-clock/internal/metrics"
	"wifi-clock/internal/mqtt"
	"wifi-clock/internal/network"
	"wifi-clock/internal/realtime"
	"wifi-clock/internal/sensor"
	"wifi-clock/internal/timesync"
	"wifi-clock/internal/weather"

	"golang.org/x/sync/errgroup"
)

// 调度周期
const (
	WeatherTick    = 5 * time.Second
	NetworkTick    = 30 * time.Second
	PruneTick      = time.Hour
	HistoryRetains = 7 * 24 * time.Hour
)

// Options 运行时依赖；DB/Sensor/MQTT/Network/Hub/Metrics 可为 nil
type Options struct {
	Config  *config.Config
	Display display.Display
	Clock   *timesync.Clock
	NTP     timesync.NTPClient
	Weather weather.Provider
	Sensor  sensor.Source
	DB      *sql.DB
	Hub     *realtime.Hub
	MQTT    mqtt.Publisher
	Metrics *metrics.Metrics
	Network network.Manager
}

// State 对外快照（/api/v1/status、WebSocket、MQTT）
type State struct {
	Time       time.Time              `json:"time"`
	TimeSource string                 `json:"time_source"`
	Timezone   string                 `json:"timezone"`
	Weather    *weather.Reading       `json:"weather,omitempty"`
	Indoor     *sensor.Reading        `json:"indoor,omitempty"`
	TextColor  string                 `json:"text_color"`
	Brightness int                    `json:"brightness"`
	Message    string                 `json:"message,omitempty"`
	LastSync   *time.Time             `json:"last_sync,omitempty"`
	Network    *network.NetworkStatus `json:"network,omitempty"`
}

// Runtime 时钟主程序：渲染、天气、传感器、校时、历史清理
type Runtime struct {
	mu  sync.RWMutex
	cfg *config.Config

	disp    *display.Manager
	clock   *timesync.Clock
	syncer  *timesync.Syncer
	poller  *weather.Poller
	reader  *sensor.Reader
	db      *sql.DB
	hub     *realtime.Hub
	pub     mqtt.Publisher
	metrics *metrics.Metrics
	net     network.Manager

	netStatus  *network.NetworkStatus
	lastFrames uint64

	weatherTick time.Duration
	networkTick time.Duration
	resyncTick  time.Duration
	pruneTick   time.Duration
	now         func() time.Time
}

// New 组装运行时；显示管理器以 Runtime 作为画面来源
func New(opts Options) (*Runtime, error) {
	if opts.Config == nil {
		return nil, errors.New("缺少配置")
	}
	if opts.Display == nil {
		return nil, errors.New("缺少显示设备")
	}
	cfg := opts.Config.Clone()

	clk := opts.Clock
	if clk == nil {
		clk = timesync.NewClock(nil, cfg.Display.TimezoneOffset)
	}
	ntp := opts.NTP
	if ntp == nil {
		ntp = timesync.NewNTPClient()
	}
	provider := opts.Weather
	if provider == nil {
		provider = weather.NewOpenWeatherMap("")
	}
	pub := opts.MQTT
	if pub == nil {
		pub = mqtt.New(config.MQTTConfig{}, cfg.Device.ID)
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	rt := &Runtime{
		cfg:         cfg,
		clock:       clk,
		db:          opts.DB,
		hub:         opts.Hub,
		pub:         pub,
		metrics:     m,
		net:         opts.Network,
		weatherTick: WeatherTick,
		networkTick: NetworkTick,
		resyncTick:  timesync.ResyncInterval,
		pruneTick:   PruneTick,
		now:         time.Now,
	}
	rt.disp = display.NewManager(opts.Display, rt)
	rt.syncer = timesync.NewSyncer(ntp, cfg.NTP.Server, clk, rt.disp)
	rt.poller = weather.NewPoller(provider, weatherLocation(cfg), time.Duration(cfg.Weather.RefreshSeconds)*time.Second, cfg.WeatherConfigured())
	if opts.Sensor != nil {
		rt.reader = sensor.NewReader(opts.Sensor, time.Duration(cfg.Sensor.IntervalSeconds)*time.Second)
	}
	m.Brightness.Set(float64(cfg.Display.Brightness))
	return rt, nil
}

func weatherLocation(cfg *config.Config) weather.Location {
	return weather.Location{City: strings.TrimSpace(cfg.Weather.City), APIKey: strings.TrimSpace(cfg.Weather.APIKey), Units: cfg.Weather.Units}
}

func textColor(rgb [3]uint8) color.RGBA {
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

// Display 显示管理器（开机提示、测试图）
func (r *Runtime) Display() *display.Manager { return r.disp }

// Syncer NTP 校时器
func (r *Runtime) Syncer() *timesync.Syncer { return r.syncer }

// Clock 当前时钟
func (r *Runtime) Clock() *timesync.Clock { return r.clock }

// Metrics 指标
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Network 网络管理器（可能为 nil）
func (r *Runtime) Network() network.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.net
}

// SetNetwork 设置网络管理器，需在 Run 之前调用
func (r *Runtime) SetNetwork(nm network.Manager) {
	r.mu.Lock()
	r.net = nm
	r.mu.Unlock()
}

// DB 历史库（可能为 nil）
func (r *Runtime) DB() *sql.DB { return r.db }

// Config 运行中配置的副本
func (r *Runtime) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Clone()
}

// ClockFace 实现 display.FaceSource
func (r *Runtime) ClockFace() display.ClockFace {
	r.mu.RLock()
	c := textColor(r.cfg.Display.TextColor)
	r.mu.RUnlock()

	face := display.ClockFace{Now: r.clock.Now(), Color: c}
	if w := r.poller.Latest(); w != nil {
		v := w.Temperature
		face.WeatherTemp = &v
	}
	if r.reader != nil {
		if in := r.reader.Latest(); in != nil {
			v := in.Temperature
			face.IndoorTemp = &v
		}
	}
	return face
}

// State 当前快照
func (r *Runtime) State() State {
	r.mu.RLock()
	cfg := r.cfg
	st := State{
		TextColor:  config.RGBToHex(cfg.Display.TextColor),
		Brightness: cfg.Display.Brightness,
		Network:    r.netStatus,
	}
	r.mu.RUnlock()

	st.Time = r.clock.Now()
	st.TimeSource = r.clock.Source()
	st.Timezone = r.clock.Location().String()
	st.Weather = r.poller.Latest()
	if r.reader != nil {
		st.Indoor = r.reader.Latest()
	}
	st.Message = r.disp.Message()
	if ls := r.syncer.LastSync(); !ls.IsZero() {
		st.LastSync = &ls
	}
	return st
}

// Run 启动全部循环，ctx 取消后返回
func (r *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.disp.Run(ctx) })
	g.Go(func() error { return r.every(ctx, r.weatherTick, true, r.weatherStep) })
	if r.reader != nil {
		g.Go(func() error { return r.every(ctx, r.reader.Interval(), true, r.sensorStep) })
	}
	if r.Network() != nil {
		g.Go(func() error { return r.every(ctx, r.networkTick, true, r.networkStep) })
	}
	g.Go(func() error {
		return r.every(ctx, r.resyncTick, false, func(ctx context.Context) { _ = r.SyncTime(ctx) })
	})
	if r.db != nil {
		g.Go(func() error { return r.every(ctx, r.pruneTick, true, r.pruneStep) })
	}

	logger.Info("时钟运行时已启动")
	err := g.Wait()
	logger.Info("时钟运行时已停止")
	return err
}

func (r *Runtime) every(ctx context.Context, d time.Duration, immediate bool, fn func(context.Context)) error {
	if immediate {
		fn(ctx)
	}
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn(ctx)
		}
	}
}

func (r *Runtime) weatherStep(ctx context.Context) {
	frames := r.disp.Frames()
	r.mu.Lock()
	delta := frames - r.lastFrames
	r.lastFrames = frames
	r.mu.Unlock()
	r.metrics.FramesRendered.Add(float64(delta))

	if !r.poller.Due(r.now()) {
		return
	}
	if _, err := r.RefreshWeather(ctx); err != nil && !errors.Is(err, weather.ErrNotConfigured) {
		logger.Warn("天气更新失败: %v", err)
	}
}

// RefreshWeather 立即请求天气并分发
func (r *Runtime) RefreshWeather(ctx context.Context) (weather.Reading, error) {
	start := time.Now()
	w, err := r.poller.Refresh(ctx)
	if errors.Is(err, weather.ErrNotConfigured) {
		return w, err
	}
	r.metrics.ObserveWeather(start, w.Temperature, err)
	if err != nil {
		return w, err
	}
	logger.Info("天气: %s %.1f°C %s", w.City, w.Temperature, w.Description)

	if r.db != nil {
		if _, err := database.InsertWeather(r.db, database.WeatherRecord{
			City:        w.City,
			Temperature: w.Temperature,
			FeelsLike:   w.FeelsLike,
			Humidity:    int(math.Round(w.Humidity)),
			Pressure:    int(math.Round(w.Pressure)),
			Description: w.Description,
			RecordedAt:  w.Timestamp,
		}); err != nil {
			logger.Warn("%v", err)
		}
	}
	r.broadcast(realtime.EventWeather, w)
	r.publishState()
	return w, nil
}

func (r *Runtime) sensorStep(context.Context) {
	in, fresh, err := r.reader.Read()
	// 间隔内的缓存读数已经入库推送过
	if !fresh {
		return
	}
	r.metrics.ObserveSensor(in.Temperature, in.Humidity, err)
	if err != nil {
		if !errors.Is(err, sensor.ErrNotReady) {
			logger.Warn("读取温湿度失败: %v", err)
		}
		return
	}
	if r.db != nil {
		if _, err := database.InsertSensor(r.db, database.SensorRecord{
			Temperature: in.Temperature,
			Humidity:    in.Humidity,
			RecordedAt:  in.Timestamp,
		}); err != nil {
			logger.Warn("%v", err)
		}
	}
	r.broadcast(realtime.EventIndoor, in)
	r.publishState()
}

func (r *Runtime) networkStep(context.Context) {
	st, err := r.Network().GetNetworkStatus()
	if err != nil {
		logger.Debug("获取网络状态失败: %v", err)
		return
	}
	r.mu.Lock()
	r.netStatus = st
	r.mu.Unlock()
}

func (r *Runtime) pruneStep(context.Context) {
	n, err := database.Prune(r.db, r.now().Add(-HistoryRetains))
	if err != nil {
		logger.Warn("清理历史失败: %v", err)
		return
	}
	if n > 0 {
		logger.Info("已清理 %d 条过期历史", n)
	}
}

// SyncTime NTP 校时（屏幕提示 NTP Sync! / Time Set! / Sync Error!）
func (r *Runtime) SyncTime(ctx context.Context) error {
	err := r.syncer.SyncRTC(ctx)
	r.metrics.ObserveNTP(err)
	if err == nil {
		r.broadcast(realtime.EventClockState, r.State())
	}
	return err
}

func (r *Runtime) broadcast(event string, data interface{}) {
	if r.hub == nil {
		return
	}
	r.hub.Broadcast(event, data)
	if event != realtime.EventClockState {
		r.hub.Broadcast(realtime.EventClockState, r.State())
	}
	r.metrics.WebSocketClients.Set(float64(r.hub.Count()))
}

func (r *Runtime) publishState() {
	if err := r.pub.Publish(r.pub.StateTopic(), r.State()); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			logger.Debug("MQTT 未连接，跳过上报")
			return
		}
		logger.Warn("MQTT 上报失败: %v", err)
	}
}

// ShowMessage 屏幕提示（API / 配网）
func (r *Runtime) ShowMessage(text string, d time.Duration) {
	r.disp.ShowMessage(text, d)
	r.broadcast(realtime.EventMessage, map[string]interface{}{"text": text, "seconds": d.Seconds()})
}

// ApplyConfig 应用新配置：亮度、颜色、时区、天气、NTP 服务器
func (r *Runtime) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("配置为空")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	next := cfg.Clone()

	r.mu.Lock()
	prev := r.cfg
	r.cfg = next
	r.mu.Unlock()

	if err := r.disp.SetBrightness(next.Display.Brightness); err != nil {
		logger.Warn("设置亮度失败: %v", err)
	}
	r.metrics.Brightness.Set(float64(next.Display.Brightness))
	if prev.Display.TimezoneOffset != next.Display.TimezoneOffset {
		r.clock.SetOffset(next.Display.TimezoneOffset)
		logger.Info("时区已更新: %s", timesync.Zone(next.Display.TimezoneOffset))
	}
	r.poller.Update(weatherLocation(next), time.Duration(next.Weather.RefreshSeconds)*time.Second, next.WeatherConfigured())
	r.syncer.SetServer(next.NTP.Server)

	if r.hub != nil {
		r.hub.Broadcast(realtime.EventConfig, map[string]interface{}{
			"brightness":      next.Display.Brightness,
			"text_color":      config.RGBToHex(next.Display.TextColor),
			"timezone_offset": next.Display.TimezoneOffset,
			"city":            next.Weather.City,
		})
	}
	logger.Info("配置已应用: city=%s brightness=%d tz=%+d color=%s",
		next.Weather.City, next.Display.Brightness, next.Display.TimezoneOffset, config.RGBToHex(next.Display.TextColor))
	return nil
}

// History 历史读数（kind: weather / sensor）
func (r *Runtime) History(kind string, limit int) (interface{}, error) {
	if r.db == nil {
		return nil, errors.New("历史库未启用")
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "weather":
		return database.RecentWeather(r.db, limit)
	case "sensor", "indoor":
		return database.RecentSensor(r.db, limit)
	default:
		return nil, fmt.Errorf("未知历史类型: %s", kind)
	}
}

// Close 关闭显示与 MQTT
func (r *Runtime) Close() error {
	var errs []error
	if err := r.pub.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.disp.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
