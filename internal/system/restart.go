package system

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/logger"
)

// RebootFunc 实际执行重启的函数（测试时替换）
var RebootFunc = HardRebootBestEffort

// RestartAfter 延迟 d 后重启设备（给 HTTP 响应留出发送时间）
func RestartAfter(d time.Duration) {
	go func() {
		time.Sleep(d)
		logger.Warn("设备即将重启")
		if err := RebootFunc(); err != nil {
			logger.Error("重启失败: %v", err)
		}
	}()
}

// HardRebootBestEffort 依次尝试 reboot / busybox reboot / shutdown
func HardRebootBestEffort() error {
	switch runtime.GOOS {
	case "linux":
		_ = exec.Command("sync").Run()

		if p, err := exec.LookPath("reboot"); err == nil && strings.TrimSpace(p) != "" {
			_ = exec.Command(p).Run()
			_ = exec.Command(p, "-f").Run()
		}
		if p, err := exec.LookPath("busybox"); err == nil && strings.TrimSpace(p) != "" {
			_ = exec.Command(p, "reboot").Run()
			_ = exec.Command(p, "reboot", "-f").Run()
		}
		if p, err := exec.LookPath("shutdown"); err == nil && strings.TrimSpace(p) != "" {
			_ = exec.Command(p, "-r", "now").Run()
		}
		return nil
	case "darwin":
		return exec.Command("shutdown", "-r", "now").Run()
	default:
		return fmt.Errorf("不支持的系统重启平台: %s", runtime.GOOS)
	}
}

// ResetPaths 恢复出厂需要清理的路径（配置、历史库及其 WAL 文件、日志）
func ResetPaths(cfg *config.Config) []string {
	paths := []string{config.GetConfigPath()}

	dbPath := strings.TrimSpace(os.Getenv("WIFICLOCK_DB_PATH"))
	if dbPath == "" && cfg != nil {
		dbPath = strings.TrimSpace(cfg.Database.Path)
	}
	if dbPath != "" {
		paths = append(paths, dbPath, dbPath+"-wal", dbPath+"-shm")
	}
	paths = append(paths, logger.CurrentLogPath())
	return paths
}

// FactoryReset 删除持久化数据；不重启
func FactoryReset(cfg *config.Config) []string {
	removed := make([]string, 0, 4)
	for _, p := range ResetPaths(cfg) {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := os.RemoveAll(p); err == nil {
			removed = append(removed, p)
		}
	}
	_ = exec.Command("sync").Run()
	return removed
}
