package collector

import (
	"context"
	"runtime"

	"proclens/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// CollectHostSummary gathers host-wide stats. Fields that fail to read stay zero.
func CollectHostSummary(ctx context.Context) models.HostSummary {
	var s models.HostSummary

	if hostInfo, err := host.InfoWithContext(ctx); err == nil {
		s.Hostname = hostInfo.Hostname
		s.OS = hostInfo.OS + " " + hostInfo.Platform + " " + hostInfo.PlatformVersion
		s.Kernel = hostInfo.KernelVersion
		s.Uptime = hostInfo.Uptime
	}

	// interval 0 compares against the previous call, so the first tick reads 0
	if percent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percent) > 0 {
		s.CPUPercent = percent[0]
	}
	if count, err := cpu.CountsWithContext(ctx, true); err == nil {
		s.CPUCores = count
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemoryPercent = memInfo.UsedPercent
		s.MemoryUsed = memInfo.Used
		s.MemoryTotal = memInfo.Total
	}

	// Load average is not available on Windows
	if runtime.GOOS != "windows" {
		if loadAvg, err := load.AvgWithContext(ctx); err == nil && loadAvg != nil {
			s.Load1 = loadAvg.Load1
			s.Load5 = loadAvg.Load5
			s.Load15 = loadAvg.Load15
		}
	}

	return s
}
