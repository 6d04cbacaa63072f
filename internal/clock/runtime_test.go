package clock

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/database"
	"wifi-clock/internal/display"
	"wifi-clock/internal/metrics"
	"wifi-clock/internal/network"
	"wifi-clock/internal/realtime"
	"wifi-clock/internal/sensor"
	"wifi-clock/internal/timesync"
	"wifi-clock/internal/weather"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	temp  float64
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Fetch(_ context.Context, loc weather.Location) (weather.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return weather.Reading{}, f.err
	}
	return weather.Reading{Temperature: f.temp, Humidity: 60.4, Pressure: 1013, Description: "clear", City: loc.City}, nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSensor struct {
	reading sensor.Reading
	err     error
	calls   int
}

func (f *fakeSensor) Read() (sensor.Reading, error) {
	f.calls++
	return f.reading, f.err
}

type fakeNTP struct{ t time.Time }

func (f *fakeNTP) Time(string) (time.Time, error) { return f.t, nil }

type fakePublisher struct {
	mu       sync.Mutex
	payloads []interface{}
}

func (p *fakePublisher) Publish(_ string, v interface{}) error {
	p.mu.Lock()
	p.payloads = append(p.payloads, v)
	p.mu.Unlock()
	return nil
}
func (p *fakePublisher) StateTopic() string  { return "wificlock/test/state" }
func (p *fakePublisher) StatusTopic() string { return "wificlock/test/status" }
func (p *fakePublisher) IsConnected() bool   { return true }
func (p *fakePublisher) Close() error        { return nil }

func (p *fakePublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type fixture struct {
	rt       *Runtime
	mem      *display.MemoryDisplay
	provider *fakeProvider
	sensor   *fakeSensor
	pub      *fakePublisher
	db       *sql.DB
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, mutate func(c *config.Config)) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Device.ID = "test"
	cfg.Weather.APIKey = "key"
	if mutate != nil {
		mutate(cfg)
	}

	mem := display.NewMemoryDisplay(64, 32)
	require.NoError(t, mem.Init())

	t.Setenv("WIFICLOCK_DB_PATH", "")
	db, err := database.InitDB(filepath.Join(t.TempDir(), "clock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	f := &fixture{
		mem:      mem,
		provider: &fakeProvider{temp: 12.5},
		sensor:   &fakeSensor{reading: sensor.Reading{Temperature: 21.3, Humidity: 40}},
		pub:      &fakePublisher{},
		db:       db,
		metrics:  metrics.New(),
	}
	f.rt, err = New(Options{
		Config:  cfg,
		Display: mem,
		Clock:   timesync.NewClock(nil, cfg.Display.TimezoneOffset),
		NTP:     &fakeNTP{t: time.Now().Add(time.Hour)},
		Weather: f.provider,
		Sensor:  f.sensor,
		DB:      db,
		Hub:     hub,
		MQTT:    f.pub,
		Metrics: f.metrics,
	})
	require.NoError(t, err)
	return f
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Config: config.DefaultConfig()})
	assert.Error(t, err)
}

func TestClockFace_Empty(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Display.TextColor = [3]uint8{10, 20, 30} })
	face := f.rt.ClockFace()
	assert.Nil(t, face.WeatherTemp)
	assert.Nil(t, face.IndoorTemp)
	assert.Equal(t, uint8(10), face.Color.R)
	assert.Equal(t, uint8(255), face.Color.A)
	assert.WithinDuration(t, time.Now(), face.Now, 5*time.Second)
}

func TestRefreshWeather(t *testing.T) {
	f := newFixture(t, nil)

	w, err := f.rt.RefreshWeather(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.5, w.Temperature)

	face := f.rt.ClockFace()
	require.NotNil(t, face.WeatherTemp)
	assert.Equal(t, 12.5, *face.WeatherTemp)

	rows, err := database.RecentWeather(f.db, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "London", rows[0].City)
	assert.Equal(t, 60, rows[0].Humidity)

	assert.Equal(t, 1, f.pub.Count())
	assert.Equal(t, 12.5, testutil.ToFloat64(f.metrics.WeatherTemperature))
}

func TestRefreshWeather_ErrorKeepsOldReading(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.rt.RefreshWeather(context.Background())
	require.NoError(t, err)

	f.provider.err = errors.New("down")
	_, err = f.rt.RefreshWeather(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 12.5, f.rt.State().Weather.Temperature)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WeatherFetches.WithLabelValues("error")))
}

func TestRefreshWeather_NotConfigured(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Weather.APIKey = config.PlaceholderAPIKey })
	_, err := f.rt.RefreshWeather(context.Background())
	assert.ErrorIs(t, err, weather.ErrNotConfigured)
	assert.Equal(t, 0, f.provider.Calls())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.WeatherFetches.WithLabelValues("error")))
}

func TestSensorStep(t *testing.T) {
	f := newFixture(t, nil)
	f.rt.sensorStep(context.Background())

	face := f.rt.ClockFace()
	require.NotNil(t, face.IndoorTemp)
	assert.Equal(t, 21.3, *face.IndoorTemp)

	rows, err := database.RecentSensor(f.db, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 40.0, rows[0].Humidity)
	assert.Equal(t, 21.3, testutil.ToFloat64(f.metrics.IndoorTemperature))
}

func TestSensorStep_CachedReadingStoredOnce(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Sensor.IntervalSeconds = 60 })
	f.rt.sensorStep(context.Background())
	f.rt.sensorStep(context.Background())
	f.rt.sensorStep(context.Background())

	assert.Equal(t, 1, f.sensor.calls)
	rows, err := database.RecentSensor(f.db, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "one row per sample")
	assert.Equal(t, 1, f.pub.Count())
	require.NotNil(t, f.rt.ClockFace().IndoorTemp)
}

func TestSensorStep_Error(t *testing.T) {
	f := newFixture(t, nil)
	f.sensor.err = sensor.ErrChecksum
	f.rt.sensorStep(context.Background())

	assert.Nil(t, f.rt.ClockFace().IndoorTemp)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SensorErrors))
	assert.Equal(t, 0, f.pub.Count())
}

func TestApplyConfig(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.rt.RefreshWeather(context.Background())
	require.NoError(t, err)
	assert.False(t, f.rt.poller.Due(time.Now()))

	next := f.rt.Config()
	next.Display.Brightness = 40
	next.Display.TimezoneOffset = -5
	next.Display.TextColor = [3]uint8{255, 0, 0}
	next.Weather.City = "Paris"
	require.NoError(t, f.rt.ApplyConfig(next))

	assert.Equal(t, 40, f.mem.Brightness())
	assert.Equal(t, -5, f.rt.Clock().Offset())
	assert.True(t, f.rt.poller.Due(time.Now()), "city change forces a refresh")
	assert.Equal(t, "#ff0000", f.rt.State().TextColor)
	assert.Equal(t, 40.0, testutil.ToFloat64(f.metrics.Brightness))

	bad := f.rt.Config()
	bad.Display.Brightness = 300
	assert.Error(t, f.rt.ApplyConfig(bad))
	assert.Equal(t, 40, f.rt.Config().Display.Brightness)
}

func TestApplyConfig_DisableWeatherClearsReading(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.rt.RefreshWeather(context.Background())
	require.NoError(t, err)

	next := f.rt.Config()
	next.Weather.APIKey = ""
	require.NoError(t, f.rt.ApplyConfig(next))
	assert.Nil(t, f.rt.ClockFace().WeatherTemp)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.rt.RefreshWeather(context.Background())
	require.NoError(t, err)
	f.rt.sensorStep(context.Background())

	w, err := f.rt.History("weather", 5)
	require.NoError(t, err)
	assert.Len(t, w, 1)

	s, err := f.rt.History("sensor", 5)
	require.NoError(t, err)
	assert.Len(t, s, 1)

	_, err = f.rt.History("pressure", 5)
	assert.Error(t, err)
}

func TestPruneStep(t *testing.T) {
	f := newFixture(t, nil)
	_, err := database.InsertSensor(f.db, database.SensorRecord{Temperature: 1, Humidity: 1, RecordedAt: time.Now().Add(-30 * 24 * time.Hour)})
	require.NoError(t, err)
	f.rt.pruneStep(context.Background())

	rows, err := database.RecentSensor(f.db, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSyncTime_NoRTCSetsSkew(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.rt.SyncTime(context.Background()))

	assert.WithinDuration(t, time.Now().Add(time.Hour), f.rt.Clock().Now(), 5*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NTPSyncs.WithLabelValues("ok")))
	assert.NotNil(t, f.rt.State().LastSync)
}

func TestRun_FetchesAndStops(t *testing.T) {
	f := newFixture(t, nil)
	f.rt.weatherTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rt.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.provider.Calls() >= 1 && f.rt.ClockFace().IndoorTemp != nil && f.mem.Updates() > 0
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runtime did not stop")
	}
	assert.Equal(t, 1, f.provider.Calls(), "weather is fetched once per refresh period")
}

func TestShowMessage(t *testing.T) {
	f := newFixture(t, nil)
	f.rt.ShowMessage("Hello", time.Second)
	assert.Equal(t, "Hello", f.rt.State().Message)
}

type fakeNetwork struct {
	network.Manager
	status *network.NetworkStatus
}

func (f *fakeNetwork) GetNetworkStatus() (*network.NetworkStatus, error) { return f.status, nil }

func TestNetworkStep_CachesStatus(t *testing.T) {
	f := newFixture(t, nil)
	assert.Nil(t, f.rt.Network())
	assert.Nil(t, f.rt.State().Network)

	nm := &fakeNetwork{status: &network.NetworkStatus{Mode: "station", SSID: "HomeNet", IP: "10.0.0.5"}}
	f.rt.SetNetwork(nm)
	f.rt.networkStep(context.Background())

	st := f.rt.State()
	require.NotNil(t, st.Network)
	assert.Equal(t, "10.0.0.5", st.Network.IP)
	assert.Equal(t, "HomeNet", st.Network.SSID)
}
