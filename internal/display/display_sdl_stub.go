//go:build !preview

package display

import (
	"errors"
	"image"
)

// sdlDisplay 未带 preview 标签编译时的占位
type sdlDisplay struct{}

func newSDLDisplay(title string, width, height int) Display { return &sdlDisplay{} }

func (d *sdlDisplay) Init() error {
	return errors.New("SDL 预览需要使用 -tags preview 编译")
}

func (d *sdlDisplay) Close() error               { return nil }
func (d *sdlDisplay) GetWidth() int              { return 0 }
func (d *sdlDisplay) GetHeight() int             { return 0 }
func (d *sdlDisplay) GetBackBuffer() *image.RGBA { return nil }
func (d *sdlDisplay) Update() error              { return nil }
func (d *sdlDisplay) SetBrightness(int) error    { return nil }
