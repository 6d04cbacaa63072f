package hub75

import (
	"sync"
	"time"

	"wifi-clock/internal/logger"
)

// Flipper 能把一帧扫描出去的设备
type Flipper interface {
	Flip(fb *Framebuffer) error
}

// Refresher 后台持续重扫最新一帧，面板在两次渲染之间保持点亮
type Refresher struct {
	panel    Flipper
	interval time.Duration

	mu    sync.Mutex
	frame *Framebuffer
	flips uint64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewRefresher 创建并启动刷新协程；interval 为两次扫描之间的休眠
func NewRefresher(panel Flipper, interval time.Duration) *Refresher {
	r := &Refresher{
		panel:    panel,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

// Present 换入新的一帧（拷贝，调用方可继续修改 fb）
func (r *Refresher) Present(fb *Framebuffer) {
	cp := fb.Clone()
	r.mu.Lock()
	r.frame = cp
	r.mu.Unlock()
}

// Flips 已完成的扫描次数
func (r *Refresher) Flips() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flips
}

// Stop 停止刷新并等待协程退出
func (r *Refresher) Stop() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Refresher) loop() {
	defer close(r.done)
	failing := false
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		r.mu.Lock()
		fb := r.frame
		r.mu.Unlock()

		if fb != nil {
			if err := r.panel.Flip(fb); err != nil {
				if !failing {
					logger.Error("Hub75 刷新失败: %v", err)
				}
				failing = true
			} else {
				if failing {
					logger.Info("Hub75 刷新恢复")
				}
				failing = false
				r.mu.Lock()
				r.flips++
				r.mu.Unlock()
			}
		}

		wait := r.interval
		if fb == nil || failing {
			wait = 50 * time.Millisecond
		}
		if wait > 0 {
			select {
			case <-r.stop:
				return
			case <-time.After(wait):
			}
		}
	}
}
