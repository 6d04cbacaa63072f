package display

import (
	"bytes"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// ScaleNearest 最近邻放大（像素风截图）
func ScaleNearest(src *image.RGBA, factor int) *image.RGBA {
	if factor <= 1 {
		return cloneRGBA(src)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// EncodePNG 截图编码为 PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
