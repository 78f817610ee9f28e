package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jroosing/corvid/internal/api/models"
)

// Health godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /healthz [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Stats godoc
// @Summary Runtime and host statistics
// @Description CPU, memory, uptime, and cache size. Per-query counters live in /metrics instead.
// @Tags system
// @Produce json
// @Success 200 {object} models.StatsResponse
// @Router /statz [get]
func (h *Handler) Stats(c *gin.Context) {
	uptime := time.Since(h.startTime)

	memStats := models.MemoryStats{}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		memStats.TotalMB = float64(vmStat.Total) / 1024 / 1024
		memStats.FreeMB = float64(vmStat.Available) / 1024 / 1024
		memStats.UsedMB = float64(vmStat.Used) / 1024 / 1024
		memStats.UsedPercent = vmStat.UsedPercent
	}

	cpuStats := models.CPUStats{NumCPU: runtime.NumCPU()}
	if cpuPercent, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		cpuStats.UsedPercent = cpuPercent[0]
		cpuStats.IdlePercent = 100.0 - cpuPercent[0]
	}

	var cacheSize int64
	if h.cacheSize != nil {
		cacheSize = h.cacheSize()
	}

	c.JSON(http.StatusOK, models.StatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		CPU:           cpuStats,
		Memory:        memStats,
		CacheSize:     cacheSize,
	})
}

// Metrics godoc
// @Summary Prometheus text exposition of resolver metrics
// @Tags system
// @Produce text/plain
// @Success 200 {string} string "Prometheus text format"
// @Router /metrics [get]
func (h *Handler) Metrics(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if h.metrics == nil {
		return
	}
	_ = h.metrics.Render(c.Writer)
}
