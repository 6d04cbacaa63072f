package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultIIORoot 内核 IIO 设备目录
const DefaultIIORoot = "/sys/bus/iio/devices"

// IIOSource 通过内核 dht11 驱动读取（DHT22 也由该驱动处理）
type IIOSource struct {
	Dir string // /sys/bus/iio/devices/iio:deviceN
	now func() time.Time
}

// NewIIOSource 使用指定的 IIO 设备目录
func NewIIOSource(dir string) *IIOSource {
	return &IIOSource{Dir: dir, now: time.Now}
}

// Discover 在 root 下查找 name 为 dht11 的 IIO 设备
func Discover(root string) (string, error) {
	if root == "" {
		root = DefaultIIORoot
	}
	entries, err := filepath.Glob(filepath.Join(root, "iio:device*"))
	if err != nil {
		return "", err
	}
	for _, dir := range entries {
		raw, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(raw)) == "dht11" {
			return dir, nil
		}
	}
	return "", fmt.Errorf("未找到 dht11 IIO 设备（确认已加载 dht11 设备树 overlay）: %s", root)
}

// Read 读取温度和湿度；驱动按毫单位输出
func (s *IIOSource) Read() (Reading, error) {
	temp, err := readMilli(filepath.Join(s.Dir, "in_temp_input"))
	if err != nil {
		return Reading{}, err
	}
	hum, err := readMilli(filepath.Join(s.Dir, "in_humidityrelative_input"))
	if err != nil {
		return Reading{}, err
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return Reading{Temperature: temp, Humidity: hum, Timestamp: now()}, nil
}

func readMilli(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, syscall.EIO) || errors.Is(err, syscall.ETIMEDOUT) || errors.Is(err, syscall.EAGAIN) {
			return 0, fmt.Errorf("%w: %v", ErrNotReady, err)
		}
		return 0, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return float64(v) / 1000, nil
}
