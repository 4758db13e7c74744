package monitor

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostSnapshot is the broker host's resource picture, surfaced on the
// health endpoint and logged at boot.
type HostSnapshot struct {
	CPUCount      int     `json:"cpuCount"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemTotalBytes uint64  `json:"memTotalBytes"`
	MemUsedBytes  uint64  `json:"memUsedBytes"`
	DiskTotal     uint64  `json:"diskTotalBytes"`
	DiskFree      uint64  `json:"diskFreeBytes"`
	UptimeSecs    uint64  `json:"uptimeSecs"`
}

// Snapshot samples cpu, memory and the disk holding workRoot. Sampling
// failures leave the respective field zero rather than failing the
// whole snapshot.
func Snapshot(workRoot string) HostSnapshot {
	var s HostSnapshot

	if count, err := cpu.Counts(true); err == nil {
		s.CPUCount = count
	}
	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemTotalBytes = vm.Total
		s.MemUsedBytes = vm.Used
	}
	if du, err := disk.Usage(workRoot); err == nil {
		s.DiskTotal = du.Total
		s.DiskFree = du.Free
	}
	if uptime, err := host.Uptime(); err == nil {
		s.UptimeSecs = uptime
	}
	return s
}
