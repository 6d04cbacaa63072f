package hub75

import (
	"image"
	"image/color"
)

// Framebuffer 每像素 3 字节 RGB
type Framebuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewFramebuffer 创建全黑帧
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// Fill 整屏填充
func (fb *Framebuffer) Fill(c color.RGBA) {
	for i := 0; i+2 < len(fb.Pix); i += 3 {
		fb.Pix[i] = c.R
		fb.Pix[i+1] = c.G
		fb.Pix[i+2] = c.B
	}
}

// SetPixel 越界静默忽略
func (fb *Framebuffer) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return
	}
	i := (y*fb.Width + x) * 3
	fb.Pix[i] = c.R
	fb.Pix[i+1] = c.G
	fb.Pix[i+2] = c.B
}

// At 读像素，越界返回黑色
func (fb *Framebuffer) At(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return color.RGBA{A: 255}
	}
	i := (y*fb.Width + x) * 3
	return color.RGBA{R: fb.Pix[i], G: fb.Pix[i+1], B: fb.Pix[i+2], A: 255}
}

// CopyFrom 从 image 拷贝（左上角对齐，超出部分裁掉）
func (fb *Framebuffer) CopyFrom(src image.Image) {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < fb.Height && y < b.Dy(); y++ {
			row := rgba.Pix[(y)*rgba.Stride:]
			for x := 0; x < fb.Width && x < b.Dx(); x++ {
				s := x * 4
				d := (y*fb.Width + x) * 3
				fb.Pix[d] = row[s]
				fb.Pix[d+1] = row[s+1]
				fb.Pix[d+2] = row[s+2]
			}
		}
		return
	}
	for y := 0; y < fb.Height && y < b.Dy(); y++ {
		for x := 0; x < fb.Width && x < b.Dx(); x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			fb.SetPixel(x, y, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 255})
		}
	}
}

// Clone 深拷贝
func (fb *Framebuffer) Clone() *Framebuffer {
	cp := &Framebuffer{Width: fb.Width, Height: fb.Height, Pix: make([]uint8, len(fb.Pix))}
	copy(cp.Pix, fb.Pix)
	return cp
}
