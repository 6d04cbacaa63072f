package weather

import (
	"context"
	"sync"
	"time"

	"wifi-clock/internal/logger"
)

// DefaultRefresh 天气刷新周期（10 分钟）
const DefaultRefresh = 600 * time.Second

// Poller 保存最新天气；失败时保留旧读数，且不推进上次成功时间
type Poller struct {
	mu          sync.Mutex
	provider    Provider
	loc         Location
	refresh     time.Duration
	latest      *Reading
	lastSuccess time.Time
	lastErr     error
	configured  bool
	now         func() time.Time
}

// NewPoller 创建轮询器；configured=false 时 Refresh 返回 ErrNotConfigured
func NewPoller(p Provider, loc Location, refresh time.Duration, configured bool) *Poller {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Poller{provider: p, loc: loc, refresh: refresh, configured: configured, now: time.Now}
}

// Due 从未成功，或距上次成功超过刷新周期
func (p *Poller) Due(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess.IsZero() || now.Sub(p.lastSuccess) > p.refresh
}

// Refresh 立即请求一次
func (p *Poller) Refresh(ctx context.Context) (Reading, error) {
	p.mu.Lock()
	loc, configured := p.loc, p.configured
	p.mu.Unlock()

	if !configured {
		return Reading{}, ErrNotConfigured
	}
	r, err := p.provider.Fetch(ctx, loc)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.lastErr = err
		return Reading{}, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = p.now()
	}
	p.latest = &r
	p.lastSuccess = p.now()
	p.lastErr = nil
	return r, nil
}

// RefreshIfDue 到期才请求；返回是否拿到了新读数
func (p *Poller) RefreshIfDue(ctx context.Context) (*Reading, error) {
	if !p.Due(p.now()) {
		return nil, nil
	}
	r, err := p.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("天气更新: %s %.1f°C %s", r.City, r.Temperature, r.Description)
	return &r, nil
}

// Latest 最近一次成功读数
func (p *Poller) Latest() *Reading {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return nil
	}
	cp := *p.latest
	return &cp
}

// LastError 最近一次失败原因（成功后清空）
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// LastSuccess 上次成功时间
func (p *Poller) LastSuccess() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess
}

// Update 城市/Key 变化时重置计时，使下一次检查立即请求
func (p *Poller) Update(loc Location, refresh time.Duration, configured bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := loc != p.loc || configured != p.configured
	p.loc = loc
	p.configured = configured
	if refresh > 0 {
		p.refresh = refresh
	}
	if changed {
		p.lastSuccess = time.Time{}
		if !configured {
			p.latest = nil
		}
	}
}
