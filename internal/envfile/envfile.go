package envfile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Bootstrap 在固定位置生成/加载 .env
//
// - Linux 设备：/etc/wificlock/.env
// - 其它平台：二进制同目录 .env（便于本地调试）
func Bootstrap() {
	_ = EnsureAndLoad(DefaultPath())
}

// DefaultPath .env 默认位置
func DefaultPath() string {
	if runtime.GOOS == "linux" {
		return "/etc/wificlock/.env"
	}
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join(".", ".env")
	}
	return filepath.Join(filepath.Dir(exe), ".env")
}

// EnsureAndLoad 文件不存在时写入模板，然后加载
func EnsureAndLoad(dotenvPath string) error {
	if _, err := os.Stat(dotenvPath); err != nil && os.IsNotExist(err) {
		_ = os.MkdirAll(filepath.Dir(dotenvPath), 0o755)
		_ = os.WriteFile(dotenvPath, []byte(envExample), 0o644)
	}
	return Load(dotenvPath)
}

// Load 解析 dotenv（KEY=VALUE），只会 set 尚未在外部环境存在的键。
// 空值不写入，避免把模板里的空键当成“已配置”。
func Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.Trim(strings.TrimSpace(kv[1]), `"'`)
		if k == "" || v == "" {
			continue
		}
		if _, exists := os.LookupEnv(k); exists {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("setenv %s: %w", k, err)
		}
	}
	return sc.Err()
}

const envExample = `# wificlock 默认环境变量模板（首次运行会自动写入）

# 配置文件路径（可选；默认 Linux: /etc/wificlock/config.json）
WIFICLOCK_CONFIG_PATH=

# 历史数据库路径（可选；默认 /var/wificlock/clock.db）
WIFICLOCK_DB_PATH=

# 日志目录（可选；默认 /var/log/wificlock）
WIFICLOCK_LOG_DIR=

# 非空时输出 Debug 日志
WIFICLOCK_DEBUG=
`
