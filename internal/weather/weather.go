package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured 城市或 API Key 未配置
var ErrNotConfigured = errors.New("天气未配置（城市或 API Key 为空/占位值）")

// Location 查询位置
type Location struct {
	City   string
	APIKey string
	Units  string // metric / imperial / standard
}

// Reading 一次天气读数
type Reading struct {
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	Description string    `json:"description"`
	City        string    `json:"city"`
	Timestamp   time.Time `json:"timestamp"`
}

// Provider 天气数据源
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (Reading, error)
}
