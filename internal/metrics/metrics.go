package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 时钟运行指标，每个实例一个独立 registry
type Metrics struct {
	registry *prometheus.Registry

	WeatherTemperature prometheus.Gauge
	WeatherFetches     *prometheus.CounterVec
	WeatherFetchTime   prometheus.Histogram
	IndoorTemperature  prometheus.Gauge
	IndoorHumidity     prometheus.Gauge
	SensorErrors       prometheus.Counter
	FramesRendered     prometheus.Counter
	NTPSyncs           *prometheus.CounterVec
	Brightness         prometheus.Gauge
	WebSocketClients   prometheus.Gauge
}

// New 注册全部指标（含 go/process collector）
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		WeatherTemperature: f.NewGauge(prometheus.GaugeOpts{
			Name: "wificlock_weather_temperature_celsius",
			Help: "Last fetched outdoor temperature",
		}),
		WeatherFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wificlock_weather_fetches_total",
			Help: "Weather fetch attempts by result",
		}, []string{"result"}),
		WeatherFetchTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wificlock_weather_fetch_duration_seconds",
			Help:    "Duration of weather API requests",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		IndoorTemperature: f.NewGauge(prometheus.GaugeOpts{
			Name: "wificlock_indoor_temperature_celsius",
			Help: "Last indoor sensor temperature",
		}),
		IndoorHumidity: f.NewGauge(prometheus.GaugeOpts{
			Name: "wificlock_indoor_humidity_percent",
			Help: "Last indoor sensor relative humidity",
		}),
		SensorErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "wificlock_sensor_errors_total",
			Help: "Failed indoor sensor reads",
		}),
		FramesRendered: f.NewCounter(prometheus.CounterOpts{
			Name: "wificlock_frames_rendered_total",
			Help: "Frames pushed to the display",
		}),
		NTPSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wificlock_ntp_syncs_total",
			Help: "NTP synchronisations by result",
		}, []string{"result"}),
		Brightness: f.NewGauge(prometheus.GaugeOpts{
			Name: "wificlock_display_brightness",
			Help: "Configured display brightness (0-255)",
		}),
		WebSocketClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "wificlock_websocket_clients",
			Help: "Connected WebSocket clients",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveWeather 记录一次天气请求；成功时更新温度
func (m *Metrics) ObserveWeather(start time.Time, temp float64, err error) {
	m.WeatherFetchTime.Observe(time.Since(start).Seconds())
	m.WeatherFetches.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.WeatherTemperature.Set(temp)
	}
}

// ObserveSensor 记录一次传感器读数
func (m *Metrics) ObserveSensor(temp, humidity float64, err error) {
	if err != nil {
		m.SensorErrors.Inc()
		return
	}
	m.IndoorTemperature.Set(temp)
	m.IndoorHumidity.Set(humidity)
}

// ObserveNTP 记录一次校时
func (m *Metrics) ObserveNTP(err error) {
	m.NTPSyncs.WithLabelValues(result(err)).Inc()
}

// Registry 供测试读取
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
