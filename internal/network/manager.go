package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"wifi-clock/internal/logger"
)

// 屏幕提示
const (
	MsgConnecting = "Connecting..."
	MsgConnected  = "Connected!"
	MsgConfigMode = "Config Mode"
)

// ConnectTimeout 等待 DHCP 分到 IPv4 的最长时间
const ConnectTimeout = 20 * time.Second

// ErrUnsupported 当前系统不支持该操作
var ErrUnsupported = errors.New("当前系统不支持")

// Manager 网络管理器接口
type Manager interface {
	GetInterfaces() ([]Interface, error)
	// ConnectWiFi 连接并等待 IPv4，返回是否连上
	ConnectWiFi(ctx context.Context, ssid, password string) (bool, error)
	StartAccessPoint(ssid, password string) error
	StopAccessPoint() error
	ScanWiFi() ([]WiFiNetwork, error)
	GetNetworkStatus() (*NetworkStatus, error)
}

// Notifier 屏幕提示
type Notifier interface {
	ShowMessage(text string, d time.Duration)
}

// WiFiNetwork WiFi网络信息
type WiFiNetwork struct {
	SSID     string `json:"ssid"`
	Signal   int    `json:"signal"`   // 0-100
	Security string `json:"security"` // WPA2/WPA3/OPEN...
	InUse    bool   `json:"in_use"`
}

// Interface 网络接口
type Interface struct {
	Name    string `json:"name"`
	Type    string `json:"type"`   // ethernet, wifi
	Status  string `json:"status"` // up, down
	IP      string `json:"ip"`
	Netmask string `json:"netmask"`
	MAC     string `json:"mac"`
}

// NetworkStatus 网络状态
type NetworkStatus struct {
	Mode             string `json:"mode"` // station, ap, offline
	CurrentInterface string `json:"current_interface"`
	SSID             string `json:"ssid,omitempty"`
	IP               string `json:"ip"`
	Gateway          string `json:"gateway"`
	Status           string `json:"status"` // connected, disconnected
}

type cmdFunc func(ctx context.Context, name string, args ...string) (string, error)

// networkManager 网络管理器实现
type networkManager struct {
	iface    string
	notifier Notifier

	goos     string
	tmpDir   string
	dnsDir   string // NetworkManager 共享模式 dnsmasq 的附加配置目录
	exec     cmdFunc
	lookPath func(string) (string, error)
	poll     time.Duration
	wait     time.Duration

	mu       sync.Mutex
	apActive bool
	apSSID   string
	apMode   string // nmcli / hostapd
	staSSID  string
}

// NewManager iface 为空时默认 wlan0；notifier 可为 nil
func NewManager(iface string, notifier Notifier) Manager {
	return newManager(iface, notifier)
}

func newManager(iface string, notifier Notifier) *networkManager {
	iface = strings.TrimSpace(iface)
	if iface == "" {
		iface = "wlan0"
	}
	return &networkManager{
		iface:    iface,
		notifier: notifier,
		goos:     runtime.GOOS,
		tmpDir:   os.TempDir(),
		dnsDir:   nmSharedDNSDir,
		exec:     execCommand,
		lookPath: exec.LookPath,
		poll:     100 * time.Millisecond,
		wait:     ConnectTimeout,
	}
}

func execCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (nm *networkManager) show(text string, d time.Duration) {
	if nm.notifier != nil {
		nm.notifier.ShowMessage(text, d)
	}
}

func (nm *networkManager) runCmd(timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := nm.exec(ctx, name, args...)
	s = strings.TrimSpace(s)
	if ctx.Err() == context.DeadlineExceeded {
		return s, fmt.Errorf("命令超时: %s %v", name, args)
	}
	if err != nil {
		if s != "" {
			return s, fmt.Errorf("命令失败: %s %v: %v: %s", name, args, err, s)
		}
		return s, fmt.Errorf("命令失败: %s %v: %v", name, args, err)
	}
	return s, nil
}

func (nm *networkManager) hasCmd(name string) bool {
	_, err := nm.lookPath(name)
	return err == nil
}

// GetInterfaces 列出非 loopback 网卡
func (nm *networkManager) GetInterfaces() ([]Interface, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("获取网络接口失败: %v", err)
	}

	result := make([]Interface, 0, len(interfaces))
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		it := Interface{
			Name:   iface.Name,
			Type:   interfaceType(iface.Name),
			Status: "down",
			MAC:    iface.HardwareAddr.String(),
		}
		if iface.Flags&net.FlagUp != 0 {
			it.Status = "up"
		}
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
					it.IP = ipnet.IP.String()
					it.Netmask = net.IP(ipnet.Mask).String()
					break
				}
			}
		}
		result = append(result, it)
	}
	return result, nil
}

func interfaceType(name string) string {
	low := strings.ToLower(name)
	if strings.HasPrefix(low, "wl") {
		return "wifi"
	}
	return "ethernet"
}

// ConnectWiFi 连接 WiFi，最多等待 ConnectTimeout 拿到 IPv4
func (nm *networkManager) ConnectWiFi(ctx context.Context, ssid, password string) (bool, error) {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return false, fmt.Errorf("SSID 不能为空")
	}
	if nm.goos != "linux" {
		return false, fmt.Errorf("%w: %s", ErrUnsupported, nm.goos)
	}

	logger.Info("连接 WiFi: %s (%s)", ssid, nm.iface)
	nm.show(MsgConnecting, nm.wait)

	var err error
	if nm.hasCmd("nmcli") {
		err = nm.connectWiFiLinuxNmcli(ssid, password)
	} else {
		err = nm.connectWiFiLinuxFallback(ctx, ssid, password)
	}
	if err != nil {
		logger.Warn("WiFi连接失败: %v", err)
		return false, err
	}

	ip, err := nm.waitIPv4(ctx)
	if err != nil {
		logger.Warn("WiFi已关联但未获取到地址: %v", err)
		return false, err
	}

	nm.mu.Lock()
	nm.staSSID = ssid
	nm.mu.Unlock()

	logger.Info("WiFi已连接: %s ip=%s", ssid, ip)
	nm.show(MsgConnected, 2*time.Second)
	return true, nil
}

func (nm *networkManager) waitIPv4(ctx context.Context) (string, error) {
	deadline := time.Now().Add(nm.wait)
	for {
		if ip := nm.linuxIPv4OfIface(nm.iface); ip != "" {
			return ip, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("等待 IPv4 超时（%s）", nm.wait)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(nm.poll):
		}
	}
}

func (nm *networkManager) linuxIPv4OfIface(iface string) string {
	iface = strings.TrimSpace(iface)
	if iface == "" || !nm.hasCmd("ip") {
		return ""
	}
	out, err := nm.runCmd(2*time.Second, "ip", "-4", "-o", "addr", "show", "dev", iface)
	if err != nil {
		return ""
	}
	return parseIPv4Addr(out)
}

// parseIPv4Addr 解析 `ip -4 -o addr show`：3: wlan0    inet 192.168.2.127/24 brd ...
func parseIPv4Addr(out string) string {
	fields := strings.Fields(out)
	for i := 0; i < len(fields)-1; i++ {
		if fields[i] == "inet" {
			ip, _, _ := strings.Cut(fields[i+1], "/")
			return strings.TrimSpace(ip)
		}
	}
	return ""
}

// parseDefaultRoute 解析 `ip route show default`：default via 192.168.1.1 dev eth0 ...
func parseDefaultRoute(out string) (dev, gw string) {
	fields := strings.Fields(out)
	for i := 0; i < len(fields)-1; i++ {
		switch fields[i] {
		case "via":
			if gw == "" {
				gw = fields[i+1]
			}
		case "dev":
			if dev == "" {
				dev = fields[i+1]
			}
		}
	}
	return dev, gw
}

func (nm *networkManager) getDefaultRouteDeviceAndGateway() (string, string, error) {
	if nm.goos != "linux" {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupported, nm.goos)
	}
	out, err := nm.runCmd(3*time.Second, "ip", "route", "show", "default")
	if err != nil {
		return "", "", err
	}
	dev, gw := parseDefaultRoute(out)
	if dev == "" && gw == "" {
		return "", "", fmt.Errorf("未找到默认路由信息")
	}
	return dev, gw, nil
}

// GetNetworkStatus 当前模式（station/ap/offline）与地址
func (nm *networkManager) GetNetworkStatus() (*NetworkStatus, error) {
	nm.mu.Lock()
	apActive, apSSID, staSSID := nm.apActive, nm.apSSID, nm.staSSID
	nm.mu.Unlock()

	status := &NetworkStatus{Mode: "offline", Status: "disconnected", CurrentInterface: nm.iface}
	if apActive {
		status.Mode = "ap"
		status.SSID = apSSID
		status.Status = "connected"
		status.IP = nm.linuxIPv4OfIface(nm.iface)
		if status.IP == "" {
			status.IP = APAddress
		}
		return status, nil
	}

	if dev, gw, err := nm.getDefaultRouteDeviceAndGateway(); err == nil && dev != "" {
		if ip := nm.linuxIPv4OfIface(dev); ip != "" {
			status.CurrentInterface = dev
			status.IP = ip
			status.Gateway = gw
			status.Status = "connected"
			status.Mode = "station"
			if dev == nm.iface {
				status.SSID = staSSID
			}
			return status, nil
		}
	}
	if ip := nm.linuxIPv4OfIface(nm.iface); ip != "" {
		status.IP = ip
		status.Status = "connected"
		status.Mode = "station"
		status.SSID = staSSID
	}
	return status, nil
}

// ScanWiFi 扫描WiFi网络（信号降序）
func (nm *networkManager) ScanWiFi() ([]WiFiNetwork, error) {
	if nm.goos != "linux" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, nm.goos)
	}
	if nm.hasCmd("nmcli") {
		return nm.scanWiFiLinuxNmcli()
	}
	return nm.scanWiFiLinuxFallback()
}
