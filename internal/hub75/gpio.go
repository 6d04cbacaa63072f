package hub75

import (
	"fmt"

	"wifi-clock/config"
	"wifi-clock/internal/system"

	"periph.io/x/conn/v3/gpio/gpioreg"
)

// ResolvePins 按 GPIO 编号查找 periph 引脚（名称 GPIO<n>）
func ResolvePins(cfg config.Hub75Pins) (Pins, error) {
	if err := system.InitHardware(); err != nil {
		return Pins{}, fmt.Errorf("hub75: 初始化 periph 失败: %w", err)
	}
	var firstErr error
	get := func(label string, n int) Pin {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if p == nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("hub75: 找不到 %s 引脚 GPIO%d", label, n)
			}
			return nil
		}
		return p
	}
	pins := Pins{
		R1: get("r1", cfg.R1), G1: get("g1", cfg.G1), B1: get("b1", cfg.B1),
		R2: get("r2", cfg.R2), G2: get("g2", cfg.G2), B2: get("b2", cfg.B2),
		A: get("a", cfg.A), B: get("b", cfg.B), C: get("c", cfg.C), D: get("d", cfg.D), E: get("e", cfg.E),
		LAT: get("lat", cfg.LAT), OE: get("oe", cfg.OE), CLK: get("clk", cfg.CLK),
	}
	return pins, firstErr
}

// OpenPanel 从配置打开真实面板
func OpenPanel(cfg config.Hub75Pins, width, height int) (*Panel, error) {
	pins, err := ResolvePins(cfg)
	if err != nil {
		return nil, err
	}
	return NewPanel(pins, width, height)
}
