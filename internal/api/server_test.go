package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/clock"
	"wifi-clock/internal/display"
	"wifi-clock/internal/realtime"
	"wifi-clock/internal/timesync"
	"wifi-clock/internal/weather"
	"wifi-clock/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }
func (stubProvider) Fetch(_ context.Context, loc weather.Location) (weather.Reading, error) {
	return weather.Reading{Temperature: 9, City: loc.City}, nil
}

type stubNTP struct{}

func (stubNTP) Time(string) (time.Time, error) { return time.Now(), nil }

type testEnv struct {
	srv      *Server
	rt       *clock.Runtime
	cfgPath  string
	mu       sync.Mutex
	restarts []time.Duration
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("WIFICLOCK_CONFIG_PATH", cfgPath)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	mem := display.NewMemoryDisplay(64, 32)
	require.NoError(t, mem.Init())

	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	rt, err := clock.New(clock.Options{
		Config:  cfg,
		Display: mem,
		Clock:   timesync.NewClock(nil, cfg.Display.TimezoneOffset),
		NTP:     stubNTP{},
		Weather: stubProvider{},
		Hub:     hub,
	})
	require.NoError(t, err)

	env := &testEnv{rt: rt, cfgPath: cfgPath}
	env.srv = NewServer(cfg, rt, hub)
	env.srv.restart = func(d time.Duration) {
		env.mu.Lock()
		env.restarts = append(env.restarts, d)
		env.mu.Unlock()
	}
	return env
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	} else if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"admin"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := gjson.Get(w.Body.String(), "data.token").String()
	require.NotEmpty(t, token)
	return token
}

func TestPortal_Get(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, `name="ssid"`)
	assert.Contains(t, body, `name="api_key"`)
	assert.Contains(t, body, `action="/reset"`)
}

func TestPortal_UnknownPathServesForm(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/generate_204", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="ssid"`)

	w = env.do(http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPortal_UnknownPathPostIsJSON404(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/generate_204", "a=b", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.NotContains(t, w.Body.String(), `name="ssid"`)
	assert.Equal(t, int64(404), gjson.Get(w.Body.String(), "code").Int())
}

func TestPortal_Save(t *testing.T) {
	env := newTestEnv(t)
	form := url.Values{
		"ssid":            {"HomeNet"},
		"password":        {"secret123"},
		"city":            {"Paris"},
		"dht_pin":         {"not-a-number"},
		"api_key":         {"abc"},
		"timezone_offset": {"2"},
		"brightness":      {"300"},
		"text_color":      {"#00FF00"},
	}
	w := env.do(http.MethodPost, "/", form.Encode(), "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	def := config.DefaultConfig()
	assert.Equal(t, "HomeNet", cfg.WiFi.SSID)
	assert.Equal(t, "secret123", cfg.WiFi.Password)
	assert.Equal(t, "Paris", cfg.Weather.City)
	assert.Equal(t, "abc", cfg.Weather.APIKey)
	assert.Equal(t, 2, cfg.Display.TimezoneOffset)
	assert.Equal(t, def.Sensor.Pin, cfg.Sensor.Pin)
	assert.Equal(t, def.Display.Brightness, cfg.Display.Brightness)
	assert.Equal(t, [3]uint8{0, 255, 0}, cfg.Display.TextColor)

	// 运行中的时钟立即生效
	assert.Equal(t, 2, env.rt.Clock().Offset())
	assert.Equal(t, "#00ff00", env.rt.State().TextColor)
}

func TestPortal_SaveEmptyBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPortal_Reset(t *testing.T) {
	env := newTestEnv(t)
	_, err := os.Stat(env.cfgPath)
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/reset", "", "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	_, err = os.Stat(env.cfgPath)
	assert.True(t, os.IsNotExist(err))

	// 文件已不存在时再次重置仍然 303
	w = env.do(http.MethodPost, "/reset", "", "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestPortal_Restart(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/restart", "", "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	env.mu.Lock()
	defer env.mu.Unlock()
	assert.Equal(t, []time.Duration{time.Second}, env.restarts)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := env.login(t)
	claims, err := utils.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, env.rt.Config().Device.ID, claims["device_id"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/v1/config", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "未授权", gjson.Get(w.Body.String(), "message").String())

	w = env.do(http.MethodGet, "/api/v1/config", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/v1/status", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "data.state.time").Exists())
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.do(http.MethodPost, "/api/v1/auth/change-password",
		`{"old_password":"admin","new_password":"n3w","confirm_password":"other"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/auth/change-password",
		`{"old_password":"admin","new_password":"n3w","confirm_password":"n3w"}`, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"admin"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"n3w"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChangePassword_KeepsFlagOverridesOffDisk(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	// 模拟 main 里 -display/-port 的内存覆盖
	env.srv.mu.Lock()
	env.srv.config.Server.Port = 9999
	env.srv.config.Display.Backend = "memory"
	env.srv.mu.Unlock()

	w := env.do(http.MethodPost, "/api/v1/auth/change-password",
		`{"old_password":"admin","new_password":"n3w","confirm_password":"n3w"}`, token)
	require.Equal(t, http.StatusOK, w.Code)

	disk, err := config.LoadConfig()
	require.NoError(t, err)
	def := config.DefaultConfig()
	assert.Equal(t, def.Server.Port, disk.Server.Port)
	assert.Equal(t, def.Display.Backend, disk.Display.Backend)
	assert.True(t, utils.CheckAdminPassword("n3w", disk.Auth.PasswordHash))

	mem := env.srv.cfgSnapshot()
	assert.Equal(t, 9999, mem.Server.Port, "in-memory override survives")
	assert.True(t, utils.CheckAdminPassword("n3w", mem.Auth.PasswordHash))
}

func TestConfigGetMasksSecrets(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.do(http.MethodPost, "/api/v1/config", `{"ssid":"Net","password":"pw12345678","api_key":"k"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "data.restart_required").Bool())

	w = env.do(http.MethodGet, "/api/v1/config", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "Net", gjson.Get(body, "data.wifi.ssid").String())
	assert.Equal(t, maskedSecret, gjson.Get(body, "data.wifi.password").String())
	assert.Equal(t, maskedSecret, gjson.Get(body, "data.weather.api_key").String())
	assert.NotContains(t, body, "pw12345678")

	// 回传占位值不覆盖真实密码
	w = env.do(http.MethodPost, "/api/v1/config", `{"password":"***","city":"Oslo"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "data.restart_required").Bool())
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "pw12345678", cfg.WiFi.Password)
	assert.Equal(t, "Oslo", cfg.Weather.City)
}

func TestConfigUpdate_Invalid(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.do(http.MethodPost, "/api/v1/config", `{}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/api/v1/config", `{"brightness":999}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/api/v1/config", `{"text_color":"blue"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisplayMessage(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.do(http.MethodPost, "/api/v1/display/message", `{"text":"Hi"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hi", env.rt.Display().Message())

	w = env.do(http.MethodPost, "/api/v1/display/message", `{}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisplaySnapshot(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	require.NoError(t, env.rt.Display().RenderOnce())
	w := env.do(http.MethodGet, "/api/v1/display/snapshot.png?scale=2", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestHistory_NoDatabase(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	w := env.do(http.MethodGet, "/api/v1/history?kind=weather", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNetwork_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	w := env.do(http.MethodGet, "/api/v1/network/status", "", token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = env.do(http.MethodGet, "/api/v1/network/wifi/scan", "", token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSystemRestart(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	w := env.do(http.MethodPost, "/api/v1/system/restart", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	env.mu.Lock()
	defer env.mu.Unlock()
	assert.Len(t, env.restarts, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestWebSocket_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/ws", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResponseEnvelope(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/v1/status", "", "")
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 200, resp["code"])
	assert.Contains(t, resp, "data")
}
