package display

import (
	"sync"

	"wifi-clock/internal/logger"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gomono"
)

var (
	monoFont     *truetype.Font
	monoFontOnce sync.Once
)

// MonoFont 高分辨率屏幕使用的等宽 TrueType 字体（Go Mono）
func MonoFont() *truetype.Font {
	monoFontOnce.Do(func() {
		f, err := truetype.Parse(gomono.TTF)
		if err != nil {
			logger.Error("Go Mono 字体加载失败: %v", err)
			return
		}
		monoFont = f
	})
	return monoFont
}
