package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"wifi-clock/internal/logger"
)

// FrameInterval 渲染周期（10 Hz）
const FrameInterval = 100 * time.Millisecond

// ErrQuit 预览窗口被关闭
var ErrQuit = errors.New("显示窗口已关闭")

// FaceSource 提供时钟画面数据
type FaceSource interface {
	ClockFace() ClockFace
}

// FaceSourceFunc 函数适配
type FaceSourceFunc func() ClockFace

// ClockFace 实现 FaceSource
func (f FaceSourceFunc) ClockFace() ClockFace { return f() }

// overlay 临时覆盖时钟画面的内容
type overlay struct {
	text    string
	color   color.RGBA
	pattern bool
	until   time.Time
}

// Manager 显示管理器
type Manager struct {
	mu       sync.Mutex
	display  Display
	graphics *Graphics
	source   FaceSource
	now      func() time.Time

	overlay    *overlay
	brightness int
	last       *image.RGBA
	frames     uint64
	failing    bool
}

// NewManager 创建显示管理器
func NewManager(disp Display, source FaceSource) *Manager {
	return &Manager{
		display:    disp,
		graphics:   NewGraphics(disp.GetBackBuffer()),
		source:     source,
		now:        time.Now,
		brightness: -1,
	}
}

// Display 底层显示
func (m *Manager) Display() Display { return m.display }

// Run 运行显示循环，ctx 取消后返回 nil
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(FrameInterval)
	defer ticker.Stop()

	poller, _ := m.display.(EventPoller)
	for {
		if poller != nil && poller.PollEvents() {
			logger.Info("收到退出事件（PollEvents=true）")
			return ErrQuit
		}
		if err := m.RenderOnce(); err != nil {
			// 单帧失败不退出，下一帧重试
			m.mu.Lock()
			if !m.failing {
				logger.Error("渲染失败: %v", err)
			}
			m.failing = true
			m.mu.Unlock()
		} else {
			m.mu.Lock()
			m.failing = false
			m.mu.Unlock()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RenderOnce 按当前状态渲染一帧并刷新到屏幕
func (m *Manager) RenderOnce() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renderLocked()
}

func (m *Manager) renderLocked() error {
	now := m.now()
	if m.overlay != nil && !now.Before(m.overlay.until) {
		m.overlay = nil
	}

	switch {
	case m.overlay != nil && m.overlay.pattern:
		RenderTestPattern(m.graphics)
	case m.overlay != nil:
		RenderMessage(m.graphics, m.overlay.text, m.overlay.color)
	case m.source != nil:
		RenderClock(m.graphics, m.source.ClockFace())
	default:
		m.graphics.Clear()
	}

	if err := m.display.Update(); err != nil {
		return fmt.Errorf("更新显示失败: %w", err)
	}
	m.frames++
	m.last = cloneRGBA(m.graphics.Buffer())
	return nil
}

// ShowMessage 在 d 时间内用提示信息覆盖时钟画面（立即刷新）
func (m *Manager) ShowMessage(text string, d time.Duration) {
	m.ShowMessageColor(text, ColorWhite, d)
}

// ShowMessageColor 指定颜色的提示信息
func (m *Manager) ShowMessageColor(text string, c color.RGBA, d time.Duration) {
	logger.Info("DISPLAY: %s", text)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = &overlay{text: text, color: c, until: m.now().Add(d)}
	if err := m.renderLocked(); err != nil {
		logger.Warn("显示提示信息失败: %v", err)
	}
}

// ShowTestPattern 显示测试图 d 时间
func (m *Manager) ShowTestPattern(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = &overlay{pattern: true, until: m.now().Add(d)}
	if err := m.renderLocked(); err != nil {
		logger.Warn("显示测试图失败: %v", err)
	}
}

// Flash 显示提示信息并阻塞 d（ctx 取消时提前返回）
func (m *Manager) Flash(ctx context.Context, text string, d time.Duration) {
	m.ShowMessage(text, d)
	sleepCtx(ctx, d)
}

// FlashTestPattern 显示测试图并阻塞 d
func (m *Manager) FlashTestPattern(ctx context.Context, d time.Duration) {
	m.ShowTestPattern(d)
	sleepCtx(ctx, d)
}

// ClearMessage 立即结束提示信息
func (m *Manager) ClearMessage() {
	m.mu.Lock()
	m.overlay = nil
	m.mu.Unlock()
}

// Message 当前提示信息（没有则为空）
func (m *Manager) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay == nil || !m.now().Before(m.overlay.until) {
		return ""
	}
	if m.overlay.pattern {
		return "test-pattern"
	}
	return m.overlay.text
}

// SetBrightness 设置亮度，未变化时不重复下发
func (m *Manager) SetBrightness(level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level == m.brightness {
		return nil
	}
	if err := m.display.SetBrightness(level); err != nil {
		return err
	}
	m.brightness = level
	return nil
}

// Snapshot 最后一帧画面的拷贝（还未渲染过时为 nil）
func (m *Manager) Snapshot() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRGBA(m.last)
}

// Frames 已渲染帧数
func (m *Manager) Frames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Close 关闭底层显示
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
