//go:build !linux

package display

import (
	"errors"
	"image"
)

type fbDisplay struct{}

func newFBDisplay(width, height int) Display { return &fbDisplay{} }

func (d *fbDisplay) Init() error {
	return errors.New("framebuffer 显示仅支持 Linux")
}

func (d *fbDisplay) Close() error               { return nil }
func (d *fbDisplay) GetWidth() int              { return 0 }
func (d *fbDisplay) GetHeight() int             { return 0 }
func (d *fbDisplay) GetBackBuffer() *image.RGBA { return nil }
func (d *fbDisplay) Update() error              { return nil }
func (d *fbDisplay) SetBrightness(int) error    { return nil }
