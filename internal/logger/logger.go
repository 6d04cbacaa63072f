package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	infoLogger  *log.Logger
	errorLogger *log.Logger
	warnLogger  *log.Logger
	debugLogger *log.Logger
	logFile     *os.File

	logMu           sync.Mutex
	lastRotateCheck int64 // unix nano
	debugEnabled    atomic.Bool
)

const (
	// MaxLogSizeBytes 单文件最大 5MB，超过就轮转
	MaxLogSizeBytes int64 = 5 * 1024 * 1024
	// MaxRotatedFiles 保留最近 N 份轮转文件（不含当前 system.log）
	MaxRotatedFiles = 2
)

func init() {
	// 未 InitLogger 前（测试/CLI）也要有输出，只写控制台
	setWriter(os.Stdout)
	debugEnabled.Store(strings.TrimSpace(os.Getenv("WIFICLOCK_DEBUG")) != "")
}

func setWriter(w io.Writer) {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	infoLogger = log.New(w, "[INFO] ", flags)
	errorLogger = log.New(w, "[ERROR] ", flags)
	warnLogger = log.New(w, "[WARN] ", flags)
	debugLogger = log.New(w, "[DEBUG] ", flags)
}

func logDirFromEnv() string {
	logDir := os.Getenv("WIFICLOCK_LOG_DIR")
	if logDir == "" {
		logDir = "/var/log/wificlock"
	}
	return logDir
}

// InitLogger 初始化日志系统（控制台 + system.log）
func InitLogger() error {
	logMu.Lock()
	defer logMu.Unlock()

	// 默认 /var/log/wificlock；无权限时降级到临时目录
	logDir := logDirFromEnv()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fallback := filepath.Join(os.TempDir(), "wificlock")
		if err2 := os.MkdirAll(fallback, 0755); err2 != nil {
			return err
		}
		logDir = fallback
	}

	logPath := filepath.Join(logDir, "system.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		// 目录可写但文件打不开（权限），同样降级
		fallback := filepath.Join(os.TempDir(), "wificlock")
		_ = os.MkdirAll(fallback, 0755)
		logPath = filepath.Join(fallback, "system.log")
		file, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
	}
	logFile = file

	setWriter(io.MultiWriter(os.Stdout, logFile))
	return nil
}

// SetOutput 把日志重定向到 w（测试用）
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	setWriter(w)
}

// SetDebug 打开/关闭 Debug 级别
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

func maybeRotateLocked() {
	// 限流：最多 1 秒检查一次，避免每条日志都 stat
	now := time.Now().UnixNano()
	last := atomic.LoadInt64(&lastRotateCheck)
	if last != 0 && now-last < int64(time.Second) {
		return
	}
	atomic.StoreInt64(&lastRotateCheck, now)
	_ = rotateLocked(MaxLogSizeBytes)
}

func output(l *log.Logger, format string, v ...interface{}) {
	logMu.Lock()
	defer logMu.Unlock()
	maybeRotateLocked()
	if l != nil {
		_ = l.Output(3, fmt.Sprintf(format, v...))
	}
}

// Info 记录信息日志
func Info(format string, v ...interface{}) {
	output(infoLogger, format, v...)
}

// Error 记录错误日志
func Error(format string, v ...interface{}) {
	output(errorLogger, format, v...)
}

// Warn 记录警告日志
func Warn(format string, v ...interface{}) {
	output(warnLogger, format, v...)
}

// Debug 记录调试日志（WIFICLOCK_DEBUG 非空时输出）
func Debug(format string, v ...interface{}) {
	if !debugEnabled.Load() {
		return
	}
	output(debugLogger, format, v...)
}

// Fatal 记录致命错误并退出
func Fatal(format string, v ...interface{}) {
	output(errorLogger, format, v...)
	os.Exit(1)
}

// Close 关闭日志文件
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	setWriter(os.Stdout)
}

// CurrentLogPath 返回当前实际写入的日志文件路径
func CurrentLogPath() string {
	if logFile != nil {
		if name := strings.TrimSpace(logFile.Name()); name != "" {
			return name
		}
	}
	return filepath.Join(logDirFromEnv(), "system.log")
}

func cleanupRotatedLogs(dir string) {
	// 清理旧轮转日志：system.YYYYMMDD-HHMMSS.log
	matches, _ := filepath.Glob(filepath.Join(dir, "system.*.log"))
	if len(matches) <= MaxRotatedFiles {
		return
	}
	type fi struct {
		path string
		mod  time.Time
	}
	arr := make([]fi, 0, len(matches))
	for _, p := range matches {
		if st, err := os.Stat(p); err == nil {
			arr = append(arr, fi{path: p, mod: st.ModTime()})
		}
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].mod.After(arr[j].mod) })
	for i := MaxRotatedFiles; i < len(arr); i++ {
		_ = os.Remove(arr[i].path)
	}
}

// RotateLog 日志轮转（按大小）
func RotateLog(maxSize int64) error {
	logMu.Lock()
	defer logMu.Unlock()
	return rotateLocked(maxSize)
}

func rotateLocked(maxSize int64) error {
	if logFile == nil {
		return nil
	}

	stat, err := logFile.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < maxSize {
		return nil
	}

	_ = logFile.Close()

	baseDir := filepath.Dir(logFile.Name())
	oldPath := filepath.Join(baseDir, "system.log")
	newPath := filepath.Join(baseDir, fmt.Sprintf("system.%s.log", time.Now().Format("20060102-150405")))
	_ = os.Rename(oldPath, newPath)

	file, err := os.OpenFile(oldPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logFile = nil
		setWriter(os.Stdout)
		return err
	}
	logFile = file
	setWriter(io.MultiWriter(os.Stdout, logFile))

	cleanupRotatedLogs(baseDir)
	return nil
}
