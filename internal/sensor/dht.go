package sensor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChecksum DHT 数据帧校验失败
	ErrChecksum = errors.New("DHT 校验和错误")
	// ErrNotReady 传感器未响应（驱动超时/IO 错误），下次再读
	ErrNotReady = errors.New("DHT 传感器未就绪")
	// ErrUnknownType 型号不是 dht11/dht22
	ErrUnknownType = errors.New("未知 DHT 型号")
)

// 型号
const (
	DHT11 = "dht11"
	DHT22 = "dht22"
)

// Reading 一次温湿度读数
type Reading struct {
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // %RH
	Timestamp   time.Time `json:"timestamp"`
}

// Source 读数来源
type Source interface {
	Read() (Reading, error)
}

// Decode 解析 DHT 的 5 字节数据帧：[湿度高, 湿度低, 温度高, 温度低, 校验]
func Decode(frame [5]byte, typ string) (Reading, error) {
	sum := byte(frame[0] + frame[1] + frame[2] + frame[3])
	if sum != frame[4] {
		return Reading{}, fmt.Errorf("%w: 期望 %#02x 实际 %#02x", ErrChecksum, frame[4], sum)
	}

	var r Reading
	switch typ {
	case DHT11:
		r.Humidity = float64(frame[0]) + float64(frame[1])/10
		r.Temperature = float64(frame[2]) + float64(frame[3])/10
	case DHT22:
		r.Humidity = float64(uint16(frame[0])<<8|uint16(frame[1])) / 10
		t := float64(uint16(frame[2]&0x7F)<<8|uint16(frame[3])) / 10
		if frame[2]&0x80 != 0 {
			t = -t
		}
		r.Temperature = t
	default:
		return Reading{}, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return r, nil
}
