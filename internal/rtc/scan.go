package rtc

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// 7 位地址中可用的范围，0x00-0x07 与 0x78-0x7F 为保留地址
const (
	scanFirst uint16 = 0x08
	scanLast  uint16 = 0x77
)

// Scan 逐个地址读 1 字节，返回有应答的设备地址
func Scan(bus i2c.Bus) []uint16 {
	var found []uint16
	buf := make([]byte, 1)
	for addr := scanFirst; addr <= scanLast; addr++ {
		if err := bus.Tx(addr, nil, buf); err == nil {
			found = append(found, addr)
		}
	}
	return found
}

// FormatAddr 0x68 形式
func FormatAddr(addr uint16) string {
	return fmt.Sprintf("0x%02x", addr)
}
