package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo is the payload returned by SystemInfoHandler.
type SystemInfo struct {
	Hostname      string  `json:"hostname"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemTotal      uint64  `json:"mem_total"`
	MemUsed       uint64  `json:"mem_used"`
	Load1         float64 `json:"load1"`
	Load5         float64 `json:"load5"`
	Load15        float64 `json:"load15"`
}

// SystemInfoHandler returns a handler exposing a host snapshot, meant for
// debug or ops routes. Individual probe failures leave fields zeroed
// rather than failing the request.
func SystemInfoHandler(logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		info := SystemInfo{}

		if name, err := host.Info(); err == nil {
			info.Hostname = name.Hostname
			info.UptimeSeconds = name.Uptime
		} else {
			logger.Debug("host probe failed", "error", err)
		}
		if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
			info.CPUPercent = percents[0]
		}
		if v, err := mem.VirtualMemory(); err == nil {
			info.MemTotal = v.Total
			info.MemUsed = v.Used
		}
		if l, err := load.Avg(); err == nil {
			info.Load1 = l.Load1
			info.Load5 = l.Load5
			info.Load15 = l.Load15
		}

		RespondJSON(w, http.StatusOK, info)
	}
}
