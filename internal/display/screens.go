package display

import (
	"fmt"
	"image/color"
	"sync/atomic"
	"time"

	"wifi-clock/internal/logger"
)

// HighResWidth 宽度不小于该值的屏幕使用 TrueType 渲染
const HighResWidth = 128

// 时间行位置（以 32 行高度为基准）
const (
	timeRowY = 10
	baseRows = 32
)

var (
	// ColorGreen 测试图上半屏
	ColorGreen = color.RGBA{G: 255, A: 255}
	// ColorBlue 测试图下半屏
	ColorBlue = color.RGBA{B: 255, A: 255}
	// ColorWhite 默认文字颜色
	ColorWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ClockFace 时钟画面需要的数据
type ClockFace struct {
	Now         time.Time
	WeatherTemp *float64 // 室外（天气接口），nil 显示 N/A
	IndoorTemp  *float64 // 室内（DHT），nil 显示 N/A
	Color       color.RGBA
}

// FormatTemp 一位小数，nil 为 N/A
func FormatTemp(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *v)
}

// TemperatureLine 第一行："<室外>C | <室内>C"
func TemperatureLine(f ClockFace) string {
	return fmt.Sprintf("%sC | %sC", FormatTemp(f.WeatherTemp), FormatTemp(f.IndoorTemp))
}

// TimeString 第二行：HH:MM
func TimeString(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// RenderClock 绘制时钟主画面
func RenderClock(g *Graphics, f ClockFace) {
	g.Clear()
	c := f.Color
	if c.A == 0 {
		c.A = 255
	}
	line1 := TemperatureLine(f)
	line2 := TimeString(f.Now)

	if g.Width() >= HighResWidth {
		renderClockTTF(g, line1, line2, c)
		return
	}

	g.DrawText(0, 0, line1, SmallFont, c)

	// 时间居中
	startX := (g.Width() - TextWidth(line2, TimeFont)) / 2
	g.DrawText(startX, timeRowY, line2, TimeFont, c)
}

// renderClockTTF 高分辨率屏：按 32 行布局等比放大
func renderClockTTF(g *Graphics, line1, line2 string, c color.RGBA) {
	scale := float64(g.Height()) / baseRows
	smallSize := 6 * scale
	timeSize := 14 * scale

	logTTFError(g.DrawTTF(line1, 0, 0, c, smallSize))

	w := MeasureTTF(line2, timeSize)
	x := (g.Width() - w) / 2
	y := int(timeRowY * scale)
	logTTFError(g.DrawTTF(line2, x, y, c, timeSize))
}

// ttfErrLogged 渲染 10 Hz，同样的字形错误只记一次
var ttfErrLogged atomic.Bool

func logTTFError(err error) {
	if err == nil {
		return
	}
	if ttfErrLogged.CompareAndSwap(false, true) {
		logger.Error("TrueType 文字绘制失败: %v", err)
	}
}

// RenderMessage 整屏提示信息（左上角）
func RenderMessage(g *Graphics, text string, c color.RGBA) {
	g.Clear()
	if c.A == 0 {
		c.A = 255
	}
	if g.Width() >= HighResWidth {
		scale := float64(g.Height()) / baseRows
		logTTFError(g.DrawTTF(text, 0, 0, c, 6*scale))
		return
	}
	g.DrawText(0, 0, text, SmallFont, c)
}

// RenderTestPattern 上半屏绿色，下半屏蓝色
func RenderTestPattern(g *Graphics) {
	g.Clear()
	half := g.Height() / 2
	g.FillRect(0, 0, g.Width(), half, ColorGreen)
	g.FillRect(0, half, g.Width(), g.Height()-half, ColorBlue)
}
