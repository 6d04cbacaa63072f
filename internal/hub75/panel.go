package hub75

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Pin Hub75 需要的最小输出能力
type Pin interface {
	Out(l gpio.Level) error
}

// PWMPin 支持硬件 PWM 的输出脚（OE 调光）
type PWMPin interface {
	Pin
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// PWMFrequency OE 调光频率
const PWMFrequency = 1 * physic.KiloHertz

// Pins 14 根信号线
type Pins struct {
	R1, G1, B1 Pin
	R2, G2, B2 Pin
	A, B, C, D, E Pin
	LAT, OE, CLK Pin
}

func (p Pins) all() []Pin {
	return []Pin{p.R1, p.G1, p.B1, p.R2, p.G2, p.B2, p.A, p.B, p.C, p.D, p.E, p.LAT, p.OE, p.CLK}
}

// Panel Hub75 行扫描驱动
type Panel struct {
	mu         sync.Mutex
	pins       Pins
	width      int
	height     int
	brightness int
	pwm        bool // OE 是否可用 PWM
}

// NewPanel 创建驱动；height 必须为偶数（上下两半同时扫描）
func NewPanel(pins Pins, width, height int) (*Panel, error) {
	if width <= 0 || height <= 0 || height%2 != 0 {
		return nil, fmt.Errorf("hub75: 无效尺寸 %dx%d", width, height)
	}
	// 5 根地址线最多 32 行扫描
	if height/2 > 32 {
		return nil, fmt.Errorf("hub75: 高度 %d 超出 A-E 地址范围", height)
	}
	for i, p := range pins.all() {
		if p == nil {
			return nil, fmt.Errorf("hub75: 第 %d 根引脚未配置", i)
		}
	}
	p := &Panel{pins: pins, width: width, height: height, brightness: 255}
	_, p.pwm = pins.OE.(PWMPin)
	// 上电先关输出，避免花屏
	if err := pins.OE.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("hub75: 初始化 OE 失败: %w", err)
	}
	return p, nil
}

// Width 列数
func (p *Panel) Width() int { return p.width }

// Height 行数
func (p *Panel) Height() int { return p.height }

// Duty 亮度 0-255 -> OE 占空比（满量程 1024，OE 低有效）
func Duty(level int) int {
	if level < 0 {
		level = 0
	}
	if level > 255 {
		level = 255
	}
	d := 1023 - level*4
	if d < 0 {
		d = 0
	}
	return d
}

// SetBrightness 设置亮度 0-255
func (p *Panel) SetBrightness(level int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if level < 0 {
		level = 0
	}
	if level > 255 {
		level = 255
	}
	p.brightness = level
	return p.enableOutputLocked()
}

// Brightness 当前亮度
func (p *Panel) Brightness() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.brightness
}

// enableOutputLocked 按亮度打开输出
func (p *Panel) enableOutputLocked() error {
	if p.pwm {
		duty := gpio.Duty(int64(gpio.DutyMax) * int64(Duty(p.brightness)) / 1024)
		err := p.pins.OE.(PWMPin).PWM(duty, PWMFrequency)
		if err == nil {
			return nil
		}
		// 该引脚没有 PWM：降级为开关
		p.pwm = false
	}
	if p.brightness == 0 {
		return p.pins.OE.Out(gpio.High)
	}
	return p.pins.OE.Out(gpio.Low)
}

// Flip 把一帧扫描到面板：关输出，逐行送数据并锁存，最后按亮度打开输出
func (p *Panel) Flip(fb *Framebuffer) error {
	if fb == nil || fb.Width != p.width || fb.Height != p.height {
		return errors.New("hub75: 帧尺寸与面板不一致")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pins := p.pins
	if err := pins.OE.Out(gpio.High); err != nil {
		return err
	}

	half := p.height / 2
	addr := []Pin{pins.A, pins.B, pins.C, pins.D, pins.E}
	var firstErr error
	set := func(pin Pin, on bool) {
		if err := pin.Out(gpio.Level(on)); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for row := 0; row < half; row++ {
		for bit, pin := range addr {
			set(pin, (row>>bit)&1 == 1)
		}
		for col := 0; col < p.width; col++ {
			top := (row*p.width + col) * 3
			bottom := ((row+half)*p.width + col) * 3

			set(pins.R1, fb.Pix[top] > 128)
			set(pins.G1, fb.Pix[top+1] > 128)
			set(pins.B1, fb.Pix[top+2] > 128)

			set(pins.R2, fb.Pix[bottom] > 128)
			set(pins.G2, fb.Pix[bottom+1] > 128)
			set(pins.B2, fb.Pix[bottom+2] > 128)

			set(pins.CLK, true)
			set(pins.CLK, false)
		}
		set(pins.LAT, true)
		set(pins.LAT, false)
		if firstErr != nil {
			return fmt.Errorf("hub75: 扫描第 %d 行失败: %w", row, firstErr)
		}
	}

	return p.enableOutputLocked()
}

// Blank 关闭输出
func (p *Panel) Blank() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pins.OE.Out(gpio.High)
}
