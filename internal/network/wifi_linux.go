package network

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

func (nm *networkManager) scanWiFiLinuxNmcli() ([]WiFiNetwork, error) {
	// nmcli -t --separator '\t' -f IN-USE,SSID,SIGNAL,SECURITY dev wifi list --rescan yes
	out, err := nm.runCmd(15*time.Second, "nmcli",
		"-t",
		"--separator", "\t",
		"-f", "IN-USE,SSID,SIGNAL,SECURITY",
		"dev", "wifi", "list",
		"--rescan", "yes",
	)
	if err != nil {
		return nil, fmt.Errorf("WiFi扫描失败（需要 NetworkManager + nmcli）: %w", err)
	}
	return parseNmcliScan(out), nil
}

// parseNmcliScan IN-USE \t SSID \t SIGNAL \t SECURITY
func parseNmcliScan(out string) []WiFiNetwork {
	networks := make([]WiFiNetwork, 0)
	for _, line := range strings.Split(out, "\n") {
		// 首列 IN-USE 常为空，不能整行 TrimSpace
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 4 {
			continue
		}
		ssid := strings.TrimSpace(parts[1])
		// 跳过隐藏 SSID
		if ssid == "" {
			continue
		}
		signal, _ := strconv.Atoi(strings.TrimSpace(parts[2]))
		sec := strings.TrimSpace(parts[3])
		if sec == "" {
			sec = "OPEN"
		}
		networks = append(networks, WiFiNetwork{
			SSID:     ssid,
			Signal:   signal,
			Security: sec,
			InUse:    strings.TrimSpace(parts[0]) == "*",
		})
	}
	sortBySignal(networks)
	return networks
}

func (nm *networkManager) connectWiFiLinuxNmcli(ssid, password string) error {
	args := []string{"dev", "wifi", "connect", ssid, "ifname", nm.iface}
	if strings.TrimSpace(password) != "" {
		args = append(args, "password", password)
	}
	if _, err := nm.runCmd(30*time.Second, "nmcli", args...); err != nil {
		return fmt.Errorf("WiFi连接失败（nmcli）: %w", err)
	}
	return nil
}

type scannedAP struct {
	ssid     string
	signalDB float64
	sec      string
}

type apSet map[string]*scannedAP

func (s apSet) merge(ssid string, signal *float64, sec string) {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return
	}
	it := s[ssid]
	if it == nil {
		it = &scannedAP{ssid: ssid}
		s[ssid] = it
	}
	// 取更强的信号
	if signal != nil && (it.signalDB == 0 || *signal > it.signalDB) {
		it.signalDB = *signal
	}
	if sec != "" {
		it.sec = sec
	}
}

var reSignal = regexp.MustCompile(`signal:\s*([\-0-9.]+)\s*dBm`)

// parseIwScan 解析 `iw dev <if> scan`
func parseIwScan(out string, res apSet) {
	var (
		ssid   string
		signal *float64
		sec    string
	)
	flush := func() {
		res.merge(ssid, signal, sec)
		ssid, signal, sec = "", nil, ""
	}
	for _, ln := range strings.Split(out, "\n") {
		line := strings.TrimSpace(ln)
		switch {
		case strings.HasPrefix(line, "BSS "):
			flush()
		case strings.HasPrefix(line, "SSID:"):
			ssid = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case reSignal.MatchString(line):
			m := reSignal.FindStringSubmatch(line)
			if v, e := strconv.ParseFloat(m[1], 64); e == nil {
				signal = &v
			}
		case strings.Contains(line, "RSN:"):
			sec = "WPA2/WPA3"
		case strings.Contains(line, "WPA:"):
			if sec == "" {
				sec = "WPA"
			}
		}
	}
	flush()
}

// parseWpaScanResults bssid / frequency / signal level / flags / ssid
func parseWpaScanResults(out string, res apSet) {
	for _, ln := range strings.Split(out, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" || strings.HasPrefix(ln, "bssid") {
			continue
		}
		parts := strings.Split(ln, "\t")
		if len(parts) < 5 {
			continue
		}
		sig, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		var sp *float64
		if err == nil {
			sp = &sig
		}
		low := strings.ToLower(parts[3])
		sec := "OPEN"
		if strings.Contains(low, "wpa2") || strings.Contains(low, "rsn") {
			sec = "WPA2/WPA3"
		} else if strings.Contains(low, "wpa") {
			sec = "WPA"
		}
		res.merge(parts[4], sp, sec)
	}
}

func (nm *networkManager) wpaScan(res apSet) error {
	_, _ = nm.runCmd(4*time.Second, "wpa_cli", "-i", nm.iface, "scan")
	time.Sleep(2 * time.Second)
	rs, err := nm.runCmd(6*time.Second, "wpa_cli", "-i", nm.iface, "scan_results")
	if err != nil {
		return err
	}
	parseWpaScanResults(rs, res)
	return nil
}

func (nm *networkManager) scanWiFiLinuxFallback() ([]WiFiNetwork, error) {
	if nm.hasCmd("ip") {
		_, _ = nm.runCmd(3*time.Second, "ip", "link", "set", nm.iface, "up")
	}

	res := apSet{}
	switch {
	case nm.hasCmd("iw"):
		// 某些驱动在 wpa_supplicant 运行时返回 busy，降级 wpa_cli
		out, err := nm.runCmd(20*time.Second, "iw", "dev", nm.iface, "scan")
		if err == nil {
			parseIwScan(out, res)
		} else if nm.hasCmd("wpa_cli") {
			if e2 := nm.wpaScan(res); e2 != nil {
				return nil, fmt.Errorf("WiFi扫描失败：iw busy 且 wpa_cli scan_results 失败: %v", e2)
			}
		} else {
			return nil, fmt.Errorf("WiFi扫描失败（iw）: %w", err)
		}
	case nm.hasCmd("wpa_cli"):
		if err := nm.wpaScan(res); err != nil {
			return nil, fmt.Errorf("WiFi扫描失败：wpa_cli scan_results 失败: %v", err)
		}
	default:
		return nil, fmt.Errorf("WiFi扫描失败：系统缺少 nmcli/iw/wpa_cli")
	}

	cur := nm.currentSSID()
	list := make([]WiFiNetwork, 0, len(res))
	for _, it := range res {
		sec := it.sec
		if sec == "" {
			sec = "OPEN"
		}
		list = append(list, WiFiNetwork{
			SSID:     it.ssid,
			Signal:   signalDbmToPercent(it.signalDB),
			Security: sec,
			InUse:    it.ssid == cur,
		})
	}
	sortBySignal(list)
	return list, nil
}

func (nm *networkManager) currentSSID() string {
	if !nm.hasCmd("wpa_cli") {
		return ""
	}
	st, err := nm.runCmd(2*time.Second, "wpa_cli", "-i", nm.iface, "status")
	if err != nil {
		return ""
	}
	for _, ln := range strings.Split(st, "\n") {
		ln = strings.TrimSpace(ln)
		if strings.HasPrefix(ln, "ssid=") {
			return strings.TrimSpace(strings.TrimPrefix(ln, "ssid="))
		}
	}
	return ""
}

func sortBySignal(list []WiFiNetwork) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Signal > list[j].Signal })
}

func signalDbmToPercent(dbm float64) int {
	// [-100, -50] -> [0, 100]
	if dbm >= -50 {
		return 100
	}
	if dbm <= -100 {
		return 0
	}
	return int((dbm + 100) * 2)
}

// wpaSupplicantConf 生成单网络的 wpa_supplicant 配置；密码为空时 key_mgmt=NONE
func wpaSupplicantConf(ssid, password string) string {
	var b strings.Builder
	b.WriteString("ctrl_interface=/var/run/wpa_supplicant\n")
	b.WriteString("update_config=1\n")
	b.WriteString("ap_scan=1\n")
	b.WriteString("network={\n")
	b.WriteString("  ssid=\"" + escapeWpaString(ssid) + "\"\n")
	if strings.TrimSpace(password) == "" {
		b.WriteString("  key_mgmt=NONE\n")
	} else {
		b.WriteString("  psk=\"" + escapeWpaString(password) + "\"\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func (nm *networkManager) connectWiFiLinuxFallback(ctx context.Context, ssid, password string) error {
	if !nm.hasCmd("wpa_supplicant") || !nm.hasCmd("wpa_cli") {
		return fmt.Errorf("WiFi连接失败：系统缺少 wpa_supplicant/wpa_cli（也缺少 nmcli）")
	}
	if !nm.hasCmd("udhcpc") {
		return fmt.Errorf("WiFi连接失败：系统缺少 udhcpc（无法获取 DHCP 地址）")
	}
	if nm.hasCmd("ip") {
		_, _ = nm.runCmd(3*time.Second, "ip", "link", "set", nm.iface, "up")
	}

	conf := filepath.Join(nm.tmpDir, "wpa_supplicant_"+nm.iface+".conf")
	if err := os.WriteFile(conf, []byte(wpaSupplicantConf(ssid, password)), 0600); err != nil {
		return fmt.Errorf("写入 wpa_supplicant 配置失败: %w", err)
	}

	// 停掉旧的 wpa_supplicant
	_, _ = nm.runCmd(2*time.Second, "wpa_cli", "-i", nm.iface, "terminate")

	if _, err := nm.runCmd(6*time.Second, "wpa_supplicant", "-B", "-i", nm.iface, "-c", conf); err != nil {
		return fmt.Errorf("wpa_supplicant 启动失败: %w", err)
	}

	// 等待关联（最多 15 次轮询）
	assocOK := false
	for i := 0; i < 15 && !assocOK; i++ {
		if st, err := nm.runCmd(2*time.Second, "wpa_cli", "-i", nm.iface, "status"); err == nil &&
			strings.Contains(st, "wpa_state=COMPLETED") {
			assocOK = true
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nm.poll * 10):
		}
	}
	if !assocOK {
		return fmt.Errorf("WiFi连接超时：未完成关联（wpa_state!=COMPLETED）")
	}

	// -n：失败退出
	if _, err := nm.runCmd(20*time.Second, "udhcpc", "-i", nm.iface, "-n", "-q", "-T", "3", "-t", "3"); err != nil {
		return err
	}
	return nil
}

func escapeWpaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
