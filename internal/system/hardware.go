package system

import (
	"sync"

	"periph.io/x/host/v3"
)

var (
	hwOnce sync.Once
	hwErr  error
)

// InitHardware 加载 periph 主机驱动（GPIO/I2C），进程内只做一次
func InitHardware() error {
	hwOnce.Do(func() {
		_, hwErr = host.Init()
	})
	return hwErr
}
