package timesync

import (
	"context"
	"sync"
	"time"

	"wifi-clock/internal/logger"
	"wifi-clock/internal/rtc"
)

// 屏幕提示
const (
	MsgSyncing   = "NTP Sync!"
	MsgTimeSet   = "Time Set!"
	MsgSyncError = "Sync Error!"

	messageDuration = time.Second
)

// ResyncInterval 周期性校时间隔
const ResyncInterval = 24 * time.Hour

// Notifier 屏幕提示（阻塞 d）
type Notifier interface {
	Flash(ctx context.Context, text string, d time.Duration)
}

// Syncer NTP -> RTC
type Syncer struct {
	mu       sync.Mutex
	ntp      NTPClient
	server   string
	clock    *Clock
	notifier Notifier
	lastSync time.Time
	lastErr  error
}

// NewSyncer notifier 可为 nil
func NewSyncer(ntp NTPClient, server string, clock *Clock, notifier Notifier) *Syncer {
	return &Syncer{ntp: ntp, server: server, clock: clock, notifier: notifier}
}

// SetServer 修改 NTP 服务器
func (s *Syncer) SetServer(server string) {
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()
}

func (s *Syncer) notify(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.Flash(ctx, text, messageDuration)
	}
}

// SyncRTC 从 NTP 获取时间写入 RTC；无 RTC 时记录系统时间偏差
func (s *Syncer) SyncRTC(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	s.notify(ctx, MsgSyncing)
	utc, err := s.ntp.Time(server)
	if err == nil && s.clock.rtc != nil {
		err = s.clock.rtc.Set(utc)
	}
	if err != nil {
		logger.Error("NTP 校时失败: %v", err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.notify(ctx, MsgSyncError)
		return err
	}
	if s.clock.rtc == nil {
		s.clock.SetSkew(utc.Sub(s.clock.now()))
	}

	local := utc.In(s.clock.Location())
	logger.Info("时间已同步: %s", local.Format("2006-01-02 15:04:05 -07:00"))
	s.mu.Lock()
	s.lastSync = time.Now()
	s.lastErr = nil
	s.mu.Unlock()
	s.notify(ctx, MsgTimeSet)
	return nil
}

// EnsureValid RTC 不可读、停振或年份过早时校时；返回是否执行了校时
func (s *Syncer) EnsureValid(ctx context.Context) (bool, error) {
	if s.clock.rtc == nil {
		return true, s.SyncRTC(ctx)
	}
	t, err := s.clock.rtc.Read()
	if err == nil && rtc.Valid(t) {
		logger.Info("RTC 时间有效: %s", t.Format("2006-01-02 15:04:05"))
		return false, nil
	}
	if err != nil {
		logger.Warn("RTC 读取失败，需要校时: %v", err)
	} else {
		logger.Warn("RTC 时间无效 (%s)，需要校时", t.Format("2006-01-02"))
	}
	return true, s.SyncRTC(ctx)
}

// LastSync 上次成功校时时间
func (s *Syncer) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// LastError 上次校时错误
func (s *Syncer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
