package rtc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddress DS1307 固定 I2C 地址
const DefaultAddress uint16 = 0x68

// MinValidYear 早于该年份的时间视为未校准
const MinValidYear = 2023

const (
	regSeconds = 0x00
	chBit      = 0x80 // 秒寄存器 bit7：时钟停止
)

var (
	// ErrNotRunning 振荡器停止（CH=1），时间不可信
	ErrNotRunning = errors.New("DS1307 时钟未运行")
	// ErrYearOutOfRange DS1307 只能保存 2000-2099
	ErrYearOutOfRange = errors.New("年份超出 DS1307 范围 (2000-2099)")
)

// DS1307 I2C 实时时钟
type DS1307 struct {
	mu  sync.Mutex
	dev *i2c.Dev
	loc *time.Location
}

// New 在 bus 上创建 DS1307；芯片保存的是本地时间，loc 为解释该时间用的时区
func New(bus i2c.Bus, addr uint16, loc *time.Location) *DS1307 {
	if addr == 0 {
		addr = DefaultAddress
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DS1307{
		dev: &i2c.Dev{Bus: bus, Addr: addr},
		loc: loc,
	}
}

// SetLocation 更换时区（时区偏移配置变化时）
func (d *DS1307) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	d.mu.Lock()
	d.loc = loc
	d.mu.Unlock()
}

func (d *DS1307) readRegs() ([7]byte, error) {
	var regs [7]byte
	if err := d.dev.Tx([]byte{regSeconds}, regs[:]); err != nil {
		return regs, fmt.Errorf("读取 DS1307 失败（检查接线和上拉电阻）: %w", err)
	}
	return regs, nil
}

// Read 读取当前时间（秒级精度）
func (d *DS1307) Read() (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs, err := d.readRegs()
	if err != nil {
		return time.Time{}, err
	}
	if regs[0]&chBit != 0 {
		return time.Time{}, ErrNotRunning
	}
	return decodeTime(regs, d.loc), nil
}

// Halted 振荡器是否停止
func (d *DS1307) Halted() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs, err := d.readRegs()
	if err != nil {
		return false, err
	}
	return regs[0]&chBit != 0, nil
}

// Set 写入时间并清除 CH 位（启动振荡器）；使用 t 在芯片时区下的字段
func (d *DS1307) Set(t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t = t.In(d.loc)
	if t.Year() < 2000 || t.Year() > 2099 {
		return fmt.Errorf("%w: %d", ErrYearOutOfRange, t.Year())
	}
	buf := encodeTime(t)
	if err := d.dev.Tx(buf[:], nil); err != nil {
		return fmt.Errorf("写入 DS1307 失败: %w", err)
	}
	return nil
}

// Valid 时间是否可信（年份 >= 2023）
func Valid(t time.Time) bool {
	return !t.IsZero() && t.Year() >= MinValidYear
}

func decodeTime(regs [7]byte, loc *time.Location) time.Time {
	sec := BCDToInt(regs[0] & 0x7F)
	min := BCDToInt(regs[1] & 0x7F)
	hour := BCDToInt(regs[2] & 0x3F)
	day := BCDToInt(regs[4] & 0x3F)
	month := BCDToInt(regs[5] & 0x1F)
	year := BCDToInt(regs[6]) + 2000
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, loc)
}

// encodeTime 寄存器 0 起始的一次性写入：[reg, sec, min, hour, wday, day, month, year]
func encodeTime(t time.Time) [8]byte {
	// DS1307 星期为 1-7，周一为 1
	wday := int(t.Weekday())
	if wday == 0 {
		wday = 7
	}
	return [8]byte{
		regSeconds,
		IntToBCD(t.Second()) &^ chBit,
		IntToBCD(t.Minute()),
		IntToBCD(t.Hour()),
		IntToBCD(wday),
		IntToBCD(t.Day()),
		IntToBCD(int(t.Month())),
		IntToBCD(t.Year() - 2000),
	}
}
