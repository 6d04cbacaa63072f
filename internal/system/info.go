package system

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info 主机信息
type Info struct {
	Hostname    string   `json:"hostname"`
	OS          string   `json:"os"`
	Arch        string   `json:"arch"`
	Platform    string   `json:"platform,omitempty"`
	Kernel      string   `json:"kernel,omitempty"`
	Uptime      uint64   `json:"uptime"`
	StartTime   string   `json:"start_time,omitempty"`
	CPUUsage    float64  `json:"cpu_usage"`
	MemoryUsage float64  `json:"memory_usage"`
	DiskUsage   float64  `json:"disk_usage"`
	Load        *float64 `json:"load1,omitempty"`
	Temperature *float64 `json:"cpu_temperature,omitempty"`
}

// CollectInfo 采集主机信息；sample 为 CPU 采样时长（0 表示立即返回上次到现在的平均值）
func CollectInfo(sample time.Duration) Info {
	info := Info{OS: runtime.GOOS, Arch: runtime.GOARCH}
	info.Hostname, _ = os.Hostname()

	// 获取CPU使用率
	if pct, err := cpu.Percent(sample, false); err == nil && len(pct) > 0 {
		info.CPUUsage = pct[0]
	}

	// 获取内存使用率
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.MemoryUsage = vm.UsedPercent
	}

	if du, err := disk.Usage("/"); err == nil && du != nil {
		info.DiskUsage = du.UsedPercent
	}

	if hi, err := host.Info(); err == nil && hi != nil {
		info.Platform = hi.Platform
		info.Kernel = hi.KernelVersion
		info.Uptime = hi.Uptime
		if hi.BootTime > 0 {
			info.StartTime = time.Unix(int64(hi.BootTime), 0).Format(time.RFC3339)
		}
	}

	if avg, err := load.Avg(); err == nil && avg != nil {
		l := avg.Load1
		info.Load = &l
	}

	// SoC 温度（thermal_zone）
	if temps, err := host.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.Temperature > 0 {
				v := t.Temperature
				info.Temperature = &v
				break
			}
		}
	}
	return info
}
