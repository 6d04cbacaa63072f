package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DefaultLimit / MaxLimit 历史查询条数
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// WeatherRecord 天气历史
type WeatherRecord struct {
	ID          int64     `json:"id"`
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	Description string    `json:"description"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// SensorRecord 室内温湿度历史
type SensorRecord struct {
	ID          int64     `json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	RecordedAt  time.Time `json:"recorded_at"`
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func recordedAt(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Unix()
}

// InsertWeather 写入一条天气记录
func InsertWeather(db *sql.DB, r WeatherRecord) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("数据库未初始化")
	}
	res, err := db.Exec(`
INSERT INTO weather_readings(city, temperature, feels_like, humidity, pressure, description, recorded_at)
VALUES(?,?,?,?,?,?,?)
`, strings.TrimSpace(r.City), r.Temperature, r.FeelsLike, r.Humidity, r.Pressure, r.Description, recordedAt(r.RecordedAt))
	if err != nil {
		return 0, fmt.Errorf("写入天气记录失败: %v", err)
	}
	return res.LastInsertId()
}

// InsertSensor 写入一条室内记录
func InsertSensor(db *sql.DB, r SensorRecord) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("数据库未初始化")
	}
	res, err := db.Exec(`
INSERT INTO sensor_readings(temperature, humidity, recorded_at)
VALUES(?,?,?)
`, r.Temperature, r.Humidity, recordedAt(r.RecordedAt))
	if err != nil {
		return 0, fmt.Errorf("写入传感器记录失败: %v", err)
	}
	return res.LastInsertId()
}

// RecentWeather 最近的天气记录（新的在前）
func RecentWeather(db *sql.DB, limit int) ([]WeatherRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("数据库未初始化")
	}
	rows, err := db.Query(`
SELECT id, city, temperature, COALESCE(feels_like, 0), COALESCE(humidity, 0), COALESCE(pressure, 0), COALESCE(description, ''), recorded_at
FROM weather_readings
ORDER BY recorded_at DESC, id DESC
LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]WeatherRecord, 0)
	for rows.Next() {
		var r WeatherRecord
		var ts int64
		if err := rows.Scan(&r.ID, &r.City, &r.Temperature, &r.FeelsLike, &r.Humidity, &r.Pressure, &r.Description, &ts); err != nil {
			return nil, err
		}
		r.RecordedAt = time.Unix(ts, 0)
		list = append(list, r)
	}
	return list, rows.Err()
}

// RecentSensor 最近的室内记录（新的在前）
func RecentSensor(db *sql.DB, limit int) ([]SensorRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("数据库未初始化")
	}
	rows, err := db.Query(`
SELECT id, temperature, humidity, recorded_at
FROM sensor_readings
ORDER BY recorded_at DESC, id DESC
LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]SensorRecord, 0)
	for rows.Next() {
		var r SensorRecord
		var ts int64
		if err := rows.Scan(&r.ID, &r.Temperature, &r.Humidity, &ts); err != nil {
			return nil, err
		}
		r.RecordedAt = time.Unix(ts, 0)
		list = append(list, r)
	}
	return list, rows.Err()
}

// Prune 删除 before 之前的记录，返回删除条数
func Prune(db *sql.DB, before time.Time) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("数据库未初始化")
	}
	var total int64
	for _, table := range []string{"weather_readings", "sensor_readings"} {
		res, err := db.Exec(`DELETE FROM `+table+` WHERE recorded_at < ?`, before.Unix())
		if err != nil {
			return total, fmt.Errorf("清理 %s 失败: %v", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
