package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleBody = `{"weather":[{"id":500,"main":"Rain","description":"light rain"}],
"main":{"temp":12.34,"feels_like":11.1,"temp_min":10,"temp_max":14,"pressure":1012,"humidity":81},
"dt":1717236000,"name":"London","cod":200}`

func TestOpenWeatherMapFetch(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{"q": q.Get("q"), "appid": q.Get("appid"), "units": q.Get("units")}
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	p := NewOpenWeatherMap(srv.URL)
	r, err := p.Fetch(context.Background(), Location{City: "New York", APIKey: "k&y"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"q": "New York", "appid": "k&y", "units": "metric"}, gotQuery)
	assert.InDelta(t, 12.34, r.Temperature, 1e-9)
	assert.InDelta(t, 11.1, r.FeelsLike, 1e-9)
	assert.Equal(t, 81.0, r.Humidity)
	assert.Equal(t, 1012.0, r.Pressure)
	assert.Equal(t, "light rain", r.Description)
	assert.Equal(t, "London", r.City)
	assert.Equal(t, int64(1717236000), r.Timestamp.Unix())
}

func TestOpenWeatherMapErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "unauthorized":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
		case "notemp":
			_, _ = w.Write([]byte(`{"name":"x","main":{}}`))
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()
	p := NewOpenWeatherMap(srv.URL)

	_, err := p.Fetch(context.Background(), Location{City: "unauthorized", APIKey: "k"})
	assert.ErrorContains(t, err, "401")
	assert.ErrorContains(t, err, "Invalid API key")

	_, err = p.Fetch(context.Background(), Location{City: "notemp", APIKey: "k"})
	assert.ErrorContains(t, err, "main.temp")

	_, err = p.Fetch(context.Background(), Location{City: "garbage", APIKey: "k"})
	assert.Error(t, err)

	_, err = p.Fetch(context.Background(), Location{City: "", APIKey: "k"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRequestURLDefault(t *testing.T) {
	u := NewOpenWeatherMap("").RequestURL(Location{City: "London", APIKey: "abc"})
	assert.Equal(t, "http://api.openweathermap.org/data/2.5/weather?appid=abc&q=London&units=metric", u)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Fetch(ctx context.Context, loc Location) (Reading, error) {
	args := m.Called(ctx, loc)
	return args.Get(0).(Reading), args.Error(1)
}

func TestPollerKeepsLastOnFailure(t *testing.T) {
	loc := Location{City: "London", APIKey: "k"}
	mp := &mockProvider{}
	mp.On("Fetch", mock.Anything, loc).Return(Reading{Temperature: 10}, nil).Once()
	mp.On("Fetch", mock.Anything, loc).Return(Reading{}, errors.New("timeout")).Once()
	mp.On("Fetch", mock.Anything, loc).Return(Reading{Temperature: 11}, nil).Once()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPoller(mp, loc, 0, true)
	p.now = func() time.Time { return now }

	assert.True(t, p.Due(now))
	r, err := p.RefreshIfDue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 10.0, r.Temperature)

	// 10 分钟内不请求
	now = now.Add(5 * time.Minute)
	r, err = p.RefreshIfDue(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, r)

	// 到期后失败：保留旧值，下次仍到期
	now = now.Add(6 * time.Minute)
	_, err = p.RefreshIfDue(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 10.0, p.Latest().Temperature)
	assert.Error(t, p.LastError())
	assert.True(t, p.Due(now.Add(5*time.Second)))

	now = now.Add(5 * time.Second)
	r, err = p.RefreshIfDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11.0, r.Temperature)
	assert.NoError(t, p.LastError())
	assert.Equal(t, now, p.LastSuccess())
	mp.AssertExpectations(t)
}

func TestPollerNotConfiguredAndUpdate(t *testing.T) {
	mp := &mockProvider{}
	p := NewPoller(mp, Location{}, time.Minute, false)

	_, err := p.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	mp.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)

	loc := Location{City: "Paris", APIKey: "k"}
	mp.On("Fetch", mock.Anything, loc).Return(Reading{Temperature: 20}, nil)
	p.Update(loc, 0, true)
	_, err = p.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, p.Due(time.Now()))

	// 城市变化：立即到期
	p.Update(Location{City: "Rome", APIKey: "k"}, 0, true)
	assert.True(t, p.Due(time.Now()))
	require.NotNil(t, p.Latest(), "old reading stays until the next success")

	p.Update(Location{}, 0, false)
	assert.Nil(t, p.Latest())
}
