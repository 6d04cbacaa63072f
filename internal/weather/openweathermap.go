package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultBaseURL OpenWeatherMap 当前天气接口
const DefaultBaseURL = "http://api.openweathermap.org/data/2.5/weather"

// OpenWeatherMap 天气提供者
type OpenWeatherMap struct {
	BaseURL string
	Client  *http.Client
	now     func() time.Time
}

// NewOpenWeatherMap 创建提供者；baseURL 为空时使用官方地址
func NewOpenWeatherMap(baseURL string) *OpenWeatherMap {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenWeatherMap{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

func (o *OpenWeatherMap) Name() string { return "openweathermap" }

// RequestURL 构造请求地址
func (o *OpenWeatherMap) RequestURL(loc Location) string {
	units := loc.Units
	if units == "" {
		units = "metric"
	}
	q := url.Values{}
	q.Set("q", loc.City)
	q.Set("appid", loc.APIKey)
	q.Set("units", units)
	return o.BaseURL + "?" + q.Encode()
}

// Fetch 请求当前天气
func (o *OpenWeatherMap) Fetch(ctx context.Context, loc Location) (Reading, error) {
	if strings.TrimSpace(loc.City) == "" || strings.TrimSpace(loc.APIKey) == "" {
		return Reading{}, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.RequestURL(loc), nil)
	if err != nil {
		return Reading{}, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("请求天气失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Reading{}, fmt.Errorf("读取天气响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "message").String()
		return Reading{}, fmt.Errorf("天气接口返回状态码 %d: %s", resp.StatusCode, msg)
	}
	return o.parse(body)
}

func (o *OpenWeatherMap) parse(body []byte) (Reading, error) {
	if !gjson.ValidBytes(body) {
		return Reading{}, fmt.Errorf("天气响应不是合法 JSON")
	}
	res := gjson.GetManyBytes(body,
		"main.temp", "main.feels_like", "main.humidity", "main.pressure",
		"weather.0.description", "name", "dt",
	)
	if !res[0].Exists() {
		return Reading{}, fmt.Errorf("天气响应缺少 main.temp")
	}
	ts := o.now()
	if res[6].Exists() && res[6].Int() > 0 {
		ts = time.Unix(res[6].Int(), 0)
	}
	return Reading{
		Temperature: res[0].Float(),
		FeelsLike:   res[1].Float(),
		Humidity:    res[2].Float(),
		Pressure:    res[3].Float(),
		Description: res[4].String(),
		City:        res[5].String(),
		Timestamp:   ts,
	}, nil
}
