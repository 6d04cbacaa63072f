//go:build linux

package display

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"unsafe"

	"wifi-clock/internal/logger"
	"wifi-clock/internal/system"

	"golang.org/x/sys/unix"
)

// FBDevice framebuffer 设备路径
var FBDevice = "/dev/fb0"

type fbDisplay struct {
	fbFile *os.File
	fbMem  []byte
	// width/height: 时钟画面的逻辑分辨率（如 64x32）
	width  int
	height int
	// fbWidth/fbHeight: /dev/fb0 的真实分辨率
	fbWidth    int
	fbHeight   int
	fbBpp      int
	fbStride   int
	layout     fbLayout
	backBuffer *image.RGBA

	bl *system.Backlight
}

// fbVarScreenInfoRaw:
// FBIOGET_VSCREENINFO 会写入完整的 struct fb_var_screeninfo，
// 用足够大的原始 buffer 接收，再解析关心的字段。
type fbVarScreenInfoRaw [160]byte

const (
	fbioGetVScreenInfo = 0x4600
)

func newFBDisplay(width, height int) Display {
	return &fbDisplay{width: width, height: height}
}

func (d *fbDisplay) Init() error {
	// 打开 framebuffer 设备
	fbFile, err := os.OpenFile(FBDevice, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("打开 %s 失败: %w", FBDevice, err)
	}
	d.fbFile = fbFile

	// 获取 framebuffer 信息
	var fbInfo fbVarScreenInfoRaw
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		fbFile.Fd(),
		uintptr(fbioGetVScreenInfo),
		uintptr(unsafe.Pointer(&fbInfo[0])),
	)
	if errno != 0 {
		_ = fbFile.Close()
		return fmt.Errorf("获取 framebuffer 信息失败: %v", errno)
	}

	le := binary.LittleEndian
	d.fbWidth = int(le.Uint32(fbInfo[0:4]))
	d.fbHeight = int(le.Uint32(fbInfo[4:8]))
	virtW := int(le.Uint32(fbInfo[8:12]))
	d.fbBpp = int(le.Uint32(fbInfo[24:28]))
	d.layout = fbLayout{
		red:      le.Uint32(fbInfo[32:36]),
		green:    le.Uint32(fbInfo[44:48]),
		blue:     le.Uint32(fbInfo[56:60]),
		alpha:    le.Uint32(fbInfo[68:72]),
		hasAlpha: le.Uint32(fbInfo[72:76]) > 0,
	}
	if virtW < d.fbWidth {
		virtW = d.fbWidth
	}
	d.fbStride = virtW * d.fbBpp / 8

	if d.fbBpp != 16 && d.fbBpp != 32 {
		_ = fbFile.Close()
		return fmt.Errorf("不支持的色深: %d bpp", d.fbBpp)
	}

	// 如果外部没有指定逻辑分辨率，则跟随真实 framebuffer
	if d.width <= 0 || d.height <= 0 {
		d.width = d.fbWidth
		d.height = d.fbHeight
	}

	// 映射 framebuffer 内存
	fbSize := d.fbStride * d.fbHeight
	fbMem, err := unix.Mmap(int(fbFile.Fd()), 0, fbSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = fbFile.Close()
		return fmt.Errorf("映射 framebuffer 内存失败: %w", err)
	}
	d.fbMem = fbMem

	// 创建离屏缓冲区
	d.backBuffer = image.NewRGBA(image.Rect(0, 0, d.width, d.height))

	// 背光（best-effort）
	if bl, err := system.DiscoverBacklight(); err == nil {
		d.bl = bl
	} else {
		logger.Debug("未找到背光设备: %v", err)
	}
	logger.Info("framebuffer %dx%d %dbpp，逻辑分辨率 %dx%d", d.fbWidth, d.fbHeight, d.fbBpp, d.width, d.height)
	return nil
}

func (d *fbDisplay) Close() error {
	if d.fbMem != nil {
		_ = unix.Munmap(d.fbMem)
		d.fbMem = nil
	}
	if d.fbFile != nil {
		_ = d.fbFile.Close()
		d.fbFile = nil
	}
	return nil
}

func (d *fbDisplay) GetWidth() int { return d.width }

func (d *fbDisplay) GetHeight() int { return d.height }

func (d *fbDisplay) GetBackBuffer() *image.RGBA { return d.backBuffer }

// Update 最近邻缩放到真实分辨率，按色深打包
func (d *fbDisplay) Update() error {
	if d.fbMem == nil {
		return fmt.Errorf("framebuffer 未初始化")
	}
	scaleInto(d.fbMem, d.fbWidth, d.fbHeight, d.fbStride, d.fbBpp, d.layout, d.backBuffer)
	return nil
}

func (d *fbDisplay) SetBrightness(level int) error {
	if d.bl == nil {
		return nil
	}
	return d.bl.SetLevel(level)
}
