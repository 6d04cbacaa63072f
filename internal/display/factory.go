package display

import (
	"fmt"

	"wifi-clock/config"
	"wifi-clock/internal/logger"
)

// NewDisplay 按 display.backend 创建并初始化显示
func NewDisplay(cfg *config.Config) (Display, error) {
	w, h := cfg.Display.Width, cfg.Display.Height
	var disp Display
	switch cfg.Display.Backend {
	case config.BackendHub75:
		disp = newHub75Display(cfg.Hub75.Pins, w, h)
	case config.BackendFB:
		disp = newFBDisplay(w, h)
	case config.BackendSDL:
		disp = newSDLDisplay(cfg.Device.Name, w, h)
	case config.BackendMemory:
		disp = NewMemoryDisplay(w, h)
	default:
		return nil, fmt.Errorf("未知显示后端: %s", cfg.Display.Backend)
	}
	if err := disp.Init(); err != nil {
		return nil, fmt.Errorf("初始化显示 %s 失败: %w", cfg.Display.Backend, err)
	}
	if err := disp.SetBrightness(cfg.Display.Brightness); err != nil {
		logger.Warn("设置亮度失败: %v", err)
	}
	logger.Info("显示已就绪: %s %dx%d", cfg.Display.Backend, disp.GetWidth(), disp.GetHeight())
	return disp, nil
}
