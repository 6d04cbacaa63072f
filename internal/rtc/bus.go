package rtc

import (
	"fmt"

	"wifi-clock/internal/system"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// OpenBus 打开 I2C 总线；name 为空时使用第一条
func OpenBus(name string) (i2c.BusCloser, error) {
	if err := system.InitHardware(); err != nil {
		return nil, fmt.Errorf("初始化 periph 失败: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("打开 I2C 总线 %q 失败: %w", name, err)
	}
	return b, nil
}
