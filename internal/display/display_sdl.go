//go:build preview

package display

import (
	"fmt"
	"image"
	"strings"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
)

// sdlScale 预览窗口放大倍数（64x32 太小）
const sdlScale = 10

type sdlDisplay struct {
	window     *sdl.Window
	renderer   *sdl.Renderer
	texture    *sdl.Texture
	title      string
	width      int
	height     int
	backBuffer *image.RGBA
	brightness uint8
}

func newSDLDisplay(title string, width, height int) Display {
	return &sdlDisplay{
		title:      title,
		width:      width,
		height:     height,
		brightness: 255,
	}
}

func (d *sdlDisplay) Init() error {
	// 初始化 SDL
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("SDL 初始化失败: %v", err)
	}

	// 创建窗口
	winTitle := d.title
	if strings.TrimSpace(winTitle) == "" {
		winTitle = "WiFi Clock Preview"
	}
	scale := int32(sdlScale)
	if d.width >= 128 {
		scale = 2
	}
	window, err := sdl.CreateWindow(
		winTitle,
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		int32(d.width)*scale,
		int32(d.height)*scale,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		return fmt.Errorf("创建窗口失败: %v", err)
	}
	d.window = window

	// 创建渲染器
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		return fmt.Errorf("创建渲染器失败: %v", err)
	}
	d.renderer = renderer
	// 像素风：最近邻放大
	sdl.SetHint(sdl.HINT_RENDER_SCALE_QUALITY, "0")

	// 创建纹理
	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(d.width),
		int32(d.height),
	)
	if err != nil {
		return fmt.Errorf("创建纹理失败: %v", err)
	}
	d.texture = texture

	// 创建离屏缓冲区
	d.backBuffer = image.NewRGBA(image.Rect(0, 0, d.width, d.height))

	return nil
}

func (d *sdlDisplay) Close() error {
	if d.texture != nil {
		d.texture.Destroy()
	}
	if d.renderer != nil {
		d.renderer.Destroy()
	}
	if d.window != nil {
		d.window.Destroy()
	}
	sdl.Quit()
	return nil
}

func (d *sdlDisplay) GetWidth() int { return d.width }

func (d *sdlDisplay) GetHeight() int { return d.height }

func (d *sdlDisplay) GetBackBuffer() *image.RGBA { return d.backBuffer }

func (d *sdlDisplay) Update() error {
	// 将 backBuffer 复制到纹理（使用 unsafe.Pointer）
	pitch := d.backBuffer.Stride
	rect := &sdl.Rect{X: 0, Y: 0, W: int32(d.width), H: int32(d.height)}

	if err := d.texture.Update(rect, unsafe.Pointer(&d.backBuffer.Pix[0]), pitch); err != nil {
		return fmt.Errorf("更新纹理失败: %v", err)
	}
	// 亮度用颜色调制模拟
	_ = d.texture.SetColorMod(d.brightness, d.brightness, d.brightness)

	// 渲染纹理到窗口
	_ = d.renderer.Clear()
	_ = d.renderer.Copy(d.texture, nil, nil)
	d.renderer.Present()

	return nil
}

func (d *sdlDisplay) SetBrightness(level int) error {
	if level < 0 {
		level = 0
	}
	if level > 255 {
		level = 255
	}
	d.brightness = uint8(level)
	return nil
}

func (d *sdlDisplay) PollEvents() (shouldQuit bool) {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return true
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				return true
			}
		}
	}
	return false
}
