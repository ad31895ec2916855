package app

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/process"
	"github.com/talkincode/storefront/pkg/metrics"
	"go.uber.org/zap"
)

const (
	auditRetention = 365 * 24 * time.Hour
	jobTimeout     = time.Minute
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@hourly", a.SchedLowStockTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", a.SchedClearAuditLog)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PID is always within int32 range
	if err != nil {
		return
	}

	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge(metrics.ProcessCPUUse, int64(cpuuse*100)) // Store as percentage * 100
	}

	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge(metrics.ProcessMemUse, int64(meminfo.RSS/1024/1024)) //nolint:gosec // G115: memory MB value fits in int64
	}
}

// SchedLowStockTask flags active products at or below the configured threshold
func (a *Application) SchedLowStockTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if _, err := a.RunLowStockScan(); err != nil {
		zap.L().Error("low stock scan", zap.Error(err))
	}
}

func (a *Application) RunLowStockScan() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	threshold := a.appConfig.Catalog.LowStockThreshold
	rows, err := a.catalog.LowStock(ctx, threshold)
	if err != nil {
		return 0, err
	}
	metrics.SetGauge(metrics.LowStockProducts, int64(len(rows)))
	for _, p := range rows {
		zap.L().Warn("low stock",
			zap.Int64("product", p.ID),
			zap.String("name", p.Name),
			zap.Int("stock", p.StockQuantity),
			zap.Int("threshold", threshold))
	}
	return len(rows), nil
}

// SchedClearAuditLog drops audit entries older than a year
func (a *Application) SchedClearAuditLog() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := a.store.AuditLogs().DeleteOlderThan(ctx, time.Now().Add(-auditRetention))
	if err != nil {
		zap.L().Error("purge audit log", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("purged audit log", zap.Int64("rows", n))
	}
}
