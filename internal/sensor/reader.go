package sensor

import (
	"sync"
	"time"
)

// DefaultInterval DHT 两次读取的最小间隔
const DefaultInterval = 2 * time.Second

// Reader 带最小间隔的读取器：间隔内返回缓存，失败时清空缓存
type Reader struct {
	mu       sync.Mutex
	src      Source
	interval time.Duration
	now      func() time.Time

	last     *Reading
	lastRead time.Time
	lastErr  error
}

// NewReader 创建读取器；interval<=0 使用默认 2 秒
func NewReader(src Source, interval time.Duration) *Reader {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reader{src: src, interval: interval, now: time.Now}
}

// Read 返回最近一次读数（必要时触发真实读取）；fresh 表示本次确实读了传感器
func (r *Reader) Read() (reading Reading, fresh bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.lastRead.IsZero() && now.Sub(r.lastRead) < r.interval {
		if r.last != nil {
			return *r.last, false, nil
		}
		return Reading{}, false, r.lastErr
	}

	r.lastRead = now
	reading, err = r.src.Read()
	if err != nil {
		r.last = nil
		r.lastErr = err
		return Reading{}, true, err
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = now
	}
	r.last = &reading
	r.lastErr = nil
	return reading, true, nil
}

// Latest 缓存中的读数，没有则为 nil
func (r *Reader) Latest() *Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

// Interval 最小读取间隔
func (r *Reader) Interval() time.Duration {
	return r.interval
}
