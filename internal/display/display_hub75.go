package display

import (
	"fmt"
	"image"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/hub75"
)

// refreshInterval 两次整屏扫描之间的间隔
const refreshInterval = 2 * time.Millisecond

// hub75Display 后缓冲 -> hub75 帧 -> 后台刷新协程
type hub75Display struct {
	pins   config.Hub75Pins
	width  int
	height int

	panel      *hub75.Panel
	frame      *hub75.Framebuffer
	refresher  *hub75.Refresher
	backBuffer *image.RGBA
}

func newHub75Display(pins config.Hub75Pins, width, height int) *hub75Display {
	return &hub75Display{pins: pins, width: width, height: height}
}

// NewHub75Display 使用已创建的面板（测试或自定义引脚）
func NewHub75Display(panel *hub75.Panel) Display {
	return &hub75Display{panel: panel, width: panel.Width(), height: panel.Height()}
}

func (d *hub75Display) Init() error {
	if d.panel == nil {
		p, err := hub75.OpenPanel(d.pins, d.width, d.height)
		if err != nil {
			return fmt.Errorf("打开 Hub75 面板失败: %w", err)
		}
		d.panel = p
	}
	d.frame = hub75.NewFramebuffer(d.width, d.height)
	d.backBuffer = image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	d.refresher = hub75.NewRefresher(d.panel, refreshInterval)
	return nil
}

func (d *hub75Display) Close() error {
	if d.refresher != nil {
		d.refresher.Stop()
	}
	if d.panel != nil {
		return d.panel.Blank()
	}
	return nil
}

func (d *hub75Display) GetWidth() int { return d.width }

func (d *hub75Display) GetHeight() int { return d.height }

func (d *hub75Display) GetBackBuffer() *image.RGBA { return d.backBuffer }

func (d *hub75Display) Update() error {
	d.frame.CopyFrom(d.backBuffer)
	d.refresher.Present(d.frame)
	return nil
}

func (d *hub75Display) SetBrightness(level int) error {
	return d.panel.SetBrightness(level)
}
