package timesync

import (
	"fmt"
	"sync"
	"time"

	"wifi-clock/internal/logger"
)

// RTC 硬件时钟（DS1307）
type RTC interface {
	Read() (time.Time, error)
	Set(t time.Time) error
	SetLocation(loc *time.Location)
}

// Zone 整小时时区偏移
func Zone(offsetHours int) *time.Location {
	if offsetHours == 0 {
		return time.FixedZone("UTC", 0)
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

// Clock 墙上时间：有 RTC 时读 RTC，否则系统时间 + 时区偏移
type Clock struct {
	mu     sync.RWMutex
	rtc    RTC
	offset int
	zone   *time.Location
	skew   time.Duration // 无 RTC 时，NTP 与系统时间的差
	now    func() time.Time
}

// NewClock rtc 可为 nil
func NewClock(rtc RTC, offsetHours int) *Clock {
	c := &Clock{rtc: rtc, now: time.Now}
	c.SetOffset(offsetHours)
	return c
}

// SetOffset 修改时区偏移（小时）。
// DS1307 存的是本地墙上时间，偏移变化时按旧时区读出、按新时区写回。
func (c *Clock) SetOffset(hours int) {
	c.mu.Lock()
	changed := c.zone != nil && c.offset != hours
	c.offset = hours
	c.zone = Zone(hours)
	rtc := c.rtc
	zone := c.zone
	c.mu.Unlock()
	if rtc == nil {
		return
	}

	var t time.Time
	var err error
	if changed {
		t, err = rtc.Read()
	}
	rtc.SetLocation(zone)
	if !changed || err != nil {
		return
	}
	if err := rtc.Set(t); err != nil {
		logger.Warn("按新时区写入 RTC 失败: %v", err)
	}
}

// Offset 当前时区偏移
func (c *Clock) Offset() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Location 当前时区
func (c *Clock) Location() *time.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zone
}

// HasRTC 是否接了 RTC
func (c *Clock) HasRTC() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rtc != nil
}

// SetSkew 记录 NTP 校正量（无 RTC 时使用）
func (c *Clock) SetSkew(d time.Duration) {
	c.mu.Lock()
	c.skew = d
	c.mu.Unlock()
}

// Now 当前本地时间
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	rtc, zone, skew, now := c.rtc, c.zone, c.skew, c.now
	c.mu.RUnlock()

	if rtc != nil {
		if t, err := rtc.Read(); err == nil {
			return t.In(zone)
		}
	}
	return now().Add(skew).In(zone)
}

// Source 当前时间来源
func (c *Clock) Source() string {
	c.mu.RLock()
	rtc := c.rtc
	c.mu.RUnlock()
	if rtc != nil {
		if _, err := rtc.Read(); err == nil {
			return "rtc"
		}
	}
	return "system"
}
