package display

import (
	"image"
	"sync"
)

// MemoryDisplay 无屏运行用的内存显示，保留最后一帧
type MemoryDisplay struct {
	mu         sync.Mutex
	width      int
	height     int
	backBuffer *image.RGBA
	front      *image.RGBA
	brightness int
	updates    int
}

// NewMemoryDisplay 创建内存显示（需调用 Init）
func NewMemoryDisplay(width, height int) *MemoryDisplay {
	return &MemoryDisplay{width: width, height: height, brightness: 255}
}

func (d *MemoryDisplay) Init() error {
	d.backBuffer = image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	d.front = image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	return nil
}

func (d *MemoryDisplay) Close() error { return nil }

func (d *MemoryDisplay) GetWidth() int { return d.width }

func (d *MemoryDisplay) GetHeight() int { return d.height }

func (d *MemoryDisplay) GetBackBuffer() *image.RGBA { return d.backBuffer }

func (d *MemoryDisplay) Update() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.front.Pix, d.backBuffer.Pix)
	d.updates++
	return nil
}

func (d *MemoryDisplay) SetBrightness(level int) error {
	d.mu.Lock()
	d.brightness = level
	d.mu.Unlock()
	return nil
}

// Brightness 最近一次设置的亮度
func (d *MemoryDisplay) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

// Updates Update 调用次数
func (d *MemoryDisplay) Updates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates
}

// Frame 最后一次 Update 的画面拷贝
func (d *MemoryDisplay) Frame() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneRGBA(d.front)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	cp := image.NewRGBA(src.Rect)
	copy(cp.Pix, src.Pix)
	return cp
}
