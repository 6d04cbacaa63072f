package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB 初始化数据库（WIFICLOCK_DB_PATH 优先）
func InitDB(dbPath string) (*sql.DB, error) {
	if v := strings.TrimSpace(os.Getenv("WIFICLOCK_DB_PATH")); v != "" {
		dbPath = v
	}
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("数据库路径为空")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		// 无权限（开发机）时降级到临时目录
		fallback := filepath.Join(os.TempDir(), "wificlock", filepath.Base(dbPath))
		if err2 := os.MkdirAll(filepath.Dir(fallback), 0755); err2 != nil {
			return nil, err
		}
		dbPath = fallback
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func createTables(db *sql.DB) error {
	weatherTable := `
	CREATE TABLE IF NOT EXISTS weather_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		city TEXT NOT NULL,
		temperature REAL NOT NULL,
		feels_like REAL,
		humidity INTEGER,
		pressure INTEGER,
		description TEXT,
		recorded_at INTEGER NOT NULL
	);`

	sensorTable := `
	CREATE TABLE IF NOT EXISTS sensor_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		temperature REAL NOT NULL,
		humidity REAL NOT NULL,
		recorded_at INTEGER NOT NULL
	);`

	stmts := []string{
		weatherTable,
		sensorTable,
		`CREATE INDEX IF NOT EXISTS idx_weather_recorded_at ON weather_readings(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_recorded_at ON sensor_readings(recorded_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("创建表失败: %v", err)
		}
	}
	return nil
}
