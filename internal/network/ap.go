package network

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wifi-clock/internal/logger"
)

// 配网热点地址段
const (
	APAddress   = "192.168.4.1"
	apPrefix    = 24
	apPoolStart = "192.168.4.10"
	apPoolEnd   = "192.168.4.100"

	apConnName = "wificlock-ap"

	nmSharedDNSDir = "/etc/NetworkManager/dnsmasq-shared.d"
)

// StartAccessPoint 开启配网热点：优先 nmcli hotspot，否则 hostapd + udhcpd/dnsmasq
func (nm *networkManager) StartAccessPoint(ssid, password string) error {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return fmt.Errorf("热点 SSID 不能为空")
	}
	if nm.goos != "linux" {
		return fmt.Errorf("%w: %s", ErrUnsupported, nm.goos)
	}
	// WPA2 口令至少 8 位，不足时开放热点
	if password != "" && len(password) < 8 {
		logger.Warn("热点密码少于 8 位，改为开放热点")
		password = ""
	}

	mode := "hostapd"
	var err error
	if nm.hasCmd("nmcli") {
		mode = "nmcli"
		err = nm.startHotspotNmcli(ssid, password)
	} else {
		err = nm.startHotspotHostapd(ssid, password)
	}
	if err != nil {
		return err
	}

	nm.mu.Lock()
	nm.apActive = true
	nm.apSSID = ssid
	nm.apMode = mode
	nm.staSSID = ""
	nm.mu.Unlock()

	logger.Info("配网热点已开启: %s (%s, %s)", ssid, mode, APAddress)
	nm.show(MsgConfigMode, 3*time.Second)
	return nil
}

func (nm *networkManager) startHotspotNmcli(ssid, password string) error {
	args := []string{"dev", "wifi", "hotspot", "ifname", nm.iface, "con-name", apConnName, "ssid", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	if _, err := nm.runCmd(20*time.Second, "nmcli", args...); err != nil {
		return fmt.Errorf("开启热点失败（nmcli）: %w", err)
	}

	// nmcli 默认 10.42.0.1，固定到配网地址并让共享 dnsmasq 把所有域名指向本机
	nm.writeSharedDNS()
	addr := fmt.Sprintf("%s/%d", APAddress, apPrefix)
	if _, err := nm.runCmd(5*time.Second, "nmcli", "connection", "modify", apConnName,
		"ipv4.method", "shared", "ipv4.addresses", addr); err != nil {
		return fmt.Errorf("设置热点地址失败（nmcli）: %w", err)
	}
	if _, err := nm.runCmd(20*time.Second, "nmcli", "connection", "up", apConnName); err != nil {
		return fmt.Errorf("重启热点失败（nmcli）: %w", err)
	}
	return nil
}

func (nm *networkManager) writeSharedDNS() {
	if nm.dnsDir == "" {
		return
	}
	if fi, err := os.Stat(nm.dnsDir); err != nil || !fi.IsDir() {
		logger.Debug("无共享 dnsmasq 配置目录，跳过劫持 DNS: %s", nm.dnsDir)
		return
	}
	conf := fmt.Sprintf("address=/#/%s\n", APAddress)
	if err := os.WriteFile(filepath.Join(nm.dnsDir, "wificlock-captive.conf"), []byte(conf), 0644); err != nil {
		logger.Warn("写入热点 DNS 配置失败: %v", err)
	}
}

func (nm *networkManager) pidFile(name string) string {
	return filepath.Join(nm.tmpDir, "wificlock-"+name+".pid")
}

func (nm *networkManager) startHotspotHostapd(ssid, password string) error {
	if !nm.hasCmd("hostapd") {
		return fmt.Errorf("开启热点失败：系统缺少 nmcli/hostapd")
	}
	dhcp := ""
	switch {
	case nm.hasCmd("dnsmasq"):
		dhcp = "dnsmasq"
	case nm.hasCmd("udhcpd"):
		dhcp = "udhcpd"
	default:
		return fmt.Errorf("开启热点失败：系统缺少 dnsmasq/udhcpd")
	}

	// 释放 station 模式
	if nm.hasCmd("wpa_cli") {
		_, _ = nm.runCmd(2*time.Second, "wpa_cli", "-i", nm.iface, "terminate")
	}
	if nm.hasCmd("ip") {
		_, _ = nm.runCmd(3*time.Second, "ip", "addr", "flush", "dev", nm.iface)
		_, _ = nm.runCmd(3*time.Second, "ip", "addr", "add", fmt.Sprintf("%s/%d", APAddress, apPrefix), "dev", nm.iface)
		_, _ = nm.runCmd(3*time.Second, "ip", "link", "set", nm.iface, "up")
	}

	hconf := filepath.Join(nm.tmpDir, "hostapd_"+nm.iface+".conf")
	if err := os.WriteFile(hconf, []byte(hostapdConf(nm.iface, ssid, password)), 0600); err != nil {
		return fmt.Errorf("写入 hostapd 配置失败: %w", err)
	}
	if _, err := nm.runCmd(6*time.Second, "hostapd", "-B", "-P", nm.pidFile("hostapd"), hconf); err != nil {
		return fmt.Errorf("hostapd 启动失败: %w", err)
	}

	if dhcp == "dnsmasq" {
		dconf := filepath.Join(nm.tmpDir, "dnsmasq_"+nm.iface+".conf")
		if err := os.WriteFile(dconf, []byte(dnsmasqConf(nm.iface)), 0644); err != nil {
			return fmt.Errorf("写入 dnsmasq 配置失败: %w", err)
		}
		if _, err := nm.runCmd(6*time.Second, "dnsmasq", "-C", dconf, "-x", nm.pidFile("dhcp")); err != nil {
			return fmt.Errorf("dnsmasq 启动失败: %w", err)
		}
		return nil
	}

	uconf := filepath.Join(nm.tmpDir, "udhcpd_"+nm.iface+".conf")
	if err := os.WriteFile(uconf, []byte(udhcpdConf(nm.iface, nm.pidFile("dhcp"), filepath.Join(nm.tmpDir, "udhcpd.leases"))), 0644); err != nil {
		return fmt.Errorf("写入 udhcpd 配置失败: %w", err)
	}
	if _, err := nm.runCmd(6*time.Second, "udhcpd", uconf); err != nil {
		return fmt.Errorf("udhcpd 启动失败: %w", err)
	}
	return nil
}

// StopAccessPoint 关闭配网热点（未开启时无操作）
func (nm *networkManager) StopAccessPoint() error {
	nm.mu.Lock()
	active, mode := nm.apActive, nm.apMode
	nm.apActive = false
	nm.apSSID = ""
	nm.apMode = ""
	nm.mu.Unlock()

	if !active {
		return nil
	}
	if mode == "nmcli" {
		if _, err := nm.runCmd(10*time.Second, "nmcli", "connection", "down", apConnName); err != nil {
			return fmt.Errorf("关闭热点失败: %w", err)
		}
		logger.Info("配网热点已关闭")
		return nil
	}

	var firstErr error
	for _, name := range []string{"dhcp", "hostapd"} {
		p := nm.pidFile(name)
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		pid := strings.TrimSpace(string(b))
		if pid == "" {
			continue
		}
		if _, err := nm.runCmd(3*time.Second, "kill", pid); err != nil && firstErr == nil {
			firstErr = err
		}
		_ = os.Remove(p)
	}
	if nm.hasCmd("ip") {
		_, _ = nm.runCmd(3*time.Second, "ip", "addr", "flush", "dev", nm.iface)
	}
	if firstErr != nil {
		return fmt.Errorf("关闭热点失败: %w", firstErr)
	}
	logger.Info("配网热点已关闭")
	return nil
}

func hostapdConf(iface, ssid, password string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "interface=%s\n", iface)
	b.WriteString("driver=nl80211\n")
	fmt.Fprintf(&b, "ssid=%s\n", ssid)
	b.WriteString("hw_mode=g\n")
	b.WriteString("channel=6\n")
	b.WriteString("auth_algs=1\n")
	b.WriteString("ignore_broadcast_ssid=0\n")
	if password != "" {
		b.WriteString("wpa=2\n")
		b.WriteString("wpa_key_mgmt=WPA-PSK\n")
		b.WriteString("rsn_pairwise=CCMP\n")
		fmt.Fprintf(&b, "wpa_passphrase=%s\n", password)
	}
	return b.String()
}

// dnsmasqConf 所有域名解析到本机，配合 NoRoute 返回配置页
func dnsmasqConf(iface string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "interface=%s\n", iface)
	b.WriteString("bind-interfaces\n")
	fmt.Fprintf(&b, "dhcp-range=%s,%s,255.255.255.0,12h\n", apPoolStart, apPoolEnd)
	fmt.Fprintf(&b, "dhcp-option=3,%s\n", APAddress)
	fmt.Fprintf(&b, "dhcp-option=6,%s\n", APAddress)
	fmt.Fprintf(&b, "address=/#/%s\n", APAddress)
	return b.String()
}

func udhcpdConf(iface, pidFile, leaseFile string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "start %s\n", apPoolStart)
	fmt.Fprintf(&b, "end %s\n", apPoolEnd)
	fmt.Fprintf(&b, "interface %s\n", iface)
	fmt.Fprintf(&b, "pidfile %s\n", pidFile)
	fmt.Fprintf(&b, "lease_file %s\n", leaseFile)
	b.WriteString("opt subnet 255.255.255.0\n")
	fmt.Fprintf(&b, "opt router %s\n", APAddress)
	fmt.Fprintf(&b, "opt dns %s\n", APAddress)
	b.WriteString("opt lease 43200\n")
	return b.String()
}
