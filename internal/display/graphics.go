package display

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/math/fixed"
)

// Graphics 图形绘制库（直接按像素坐标绘制）
type Graphics struct {
	buffer *image.RGBA
}

// NewGraphics 创建图形库实例
func NewGraphics(buffer *image.RGBA) *Graphics {
	return &Graphics{buffer: buffer}
}

// Width 画布宽度
func (g *Graphics) Width() int { return g.buffer.Bounds().Dx() }

// Height 画布高度
func (g *Graphics) Height() int { return g.buffer.Bounds().Dy() }

// Buffer 底层缓冲
func (g *Graphics) Buffer() *image.RGBA { return g.buffer }

// Clear 清成黑色
func (g *Graphics) Clear() {
	g.Fill(color.RGBA{A: 255})
}

// Fill 整屏填充
func (g *Graphics) Fill(c color.Color) {
	draw.Draw(g.buffer, g.buffer.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
}

// SetPixel 越界忽略
func (g *Graphics) SetPixel(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(g.buffer.Bounds()) {
		return
	}
	g.buffer.Set(x, y, c)
}

// FillRect 填充矩形（自动裁剪）
func (g *Graphics) FillRect(x, y, w, h int, c color.Color) {
	if w <= 0 || h <= 0 {
		return
	}
	rect := image.Rect(x, y, x+w, y+h).Intersect(g.buffer.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(g.buffer, rect, &image.Uniform{c}, image.Point{}, draw.Src)
}

// DrawText 用位图字体绘制文字，返回最后一个字符之后的 x
func (g *Graphics) DrawText(x, y int, text string, f *BitmapFont, c color.Color) int {
	cx := x
	for _, r := range text {
		gl, ok := f.Lookup(r)
		if !ok {
			cx += f.MissingAdvance
			continue
		}
		for row := 0; row < gl.Height && row < len(gl.Rows); row++ {
			bits := gl.Rows[row]
			for col := 0; col < gl.Width; col++ {
				if (bits>>(gl.Width-1-col))&1 == 1 {
					g.SetPixel(cx+col, y+row, c)
				}
			}
		}
		cx += gl.Width + 1
	}
	return cx
}

// TextWidth 位图文字总宽度（含每个字符后的 1 像素间隔）
func TextWidth(text string, f *BitmapFont) int {
	w := 0
	for _, r := range text {
		w += f.Advance(r)
	}
	return w
}

// DrawTTF 用 TrueType 字体绘制，(x, y) 为文字左上角，size 为像素字号
func (g *Graphics) DrawTTF(text string, x, y int, c color.Color, size float64) error {
	ttf := MonoFont()
	if ttf == nil {
		// 回退到位图字体
		g.DrawText(x, y, text, SmallFont, c)
		return nil
	}
	if size < 1 {
		size = 1
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(ttf)
	ctx.SetFontSize(size)
	ctx.SetClip(g.buffer.Bounds())
	ctx.SetDst(g.buffer)
	ctx.SetSrc(&image.Uniform{c})

	// 基线 = 顶部 + 上升高度
	ascent := ttfAscent(ttf, size)
	pt := freetype.Pt(x, y+ascent)
	_, err := ctx.DrawString(text, pt)
	return err
}

// MeasureTTF 测量 TrueType 文字宽度
func MeasureTTF(text string, size float64) int {
	ttf := MonoFont()
	if ttf == nil {
		return TextWidth(text, SmallFont)
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: size, DPI: 72})
	defer face.Close()

	width := fixed.Int26_6(0)
	for _, ch := range text {
		advance, ok := face.GlyphAdvance(ch)
		if !ok {
			width += fixed.Int26_6(int(size) * 64 / 2)
			continue
		}
		width += advance
	}
	return width.Ceil()
}

func ttfAscent(f *truetype.Font, size float64) int {
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72})
	defer face.Close()
	a := face.Metrics().Ascent.Ceil()
	if a <= 0 {
		a = int(math.Round(size))
	}
	return a
}
