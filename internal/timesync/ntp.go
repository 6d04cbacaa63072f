package timesync

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// NTPClient 网络校时
type NTPClient interface {
	Time(server string) (time.Time, error)
}

// BeevikClient 基于 beevik/ntp 的 SNTP 查询
type BeevikClient struct {
	Timeout time.Duration
}

// NewNTPClient 默认 5 秒超时
func NewNTPClient() *BeevikClient {
	return &BeevikClient{Timeout: 5 * time.Second}
}

// Time 查询服务器并返回校正后的当前 UTC 时间
func (c *BeevikClient) Time(server string) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: c.Timeout})
	if err != nil {
		return time.Time{}, fmt.Errorf("NTP 查询 %s 失败: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("NTP 响应无效: %w", err)
	}
	return time.Now().Add(resp.ClockOffset).UTC(), nil
}
