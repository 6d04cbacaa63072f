package display

import (
	"encoding/binary"
	"image"
)

// fbLayout 32bpp 下各通道的位偏移
type fbLayout struct {
	red, green, blue, alpha uint32
	hasAlpha                bool
}

// scaleInto 把 src 最近邻缩放写入 framebuffer 内存
func scaleInto(dst []byte, dstW, dstH, stride, bpp int, layout fbLayout, src *image.RGBA) {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return
	}
	bytesPP := bpp / 8
	for dy := 0; dy < dstH; dy++ {
		sy := dy * srcH / dstH
		srcRow := sy * src.Stride
		dstRow := dy * stride
		if dstRow+dstW*bytesPP > len(dst) {
			return
		}
		for dx := 0; dx < dstW; dx++ {
			sx := dx * srcW / dstW
			si := srcRow + sx*4
			r, g, b := src.Pix[si], src.Pix[si+1], src.Pix[si+2]
			di := dstRow + dx*bytesPP
			switch bpp {
			case 16:
				binary.LittleEndian.PutUint16(dst[di:], rgb565(r, g, b))
			case 32:
				v := uint32(r)<<layout.red | uint32(g)<<layout.green | uint32(b)<<layout.blue
				if layout.hasAlpha {
					v |= 0xFF << layout.alpha
				}
				binary.LittleEndian.PutUint32(dst[di:], v)
			}
		}
	}
}

func rgb565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}
