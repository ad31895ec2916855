// Package metrics keeps shop counters and gauges in an embedded time series store.
package metrics

import (
	"errors"
	"os"
	"path"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

const (
	OrderPlaced       = "order_placed"
	OrderCancelled    = "order_cancelled"
	OrderRevenueCents = "order_revenue_cents"
	LowStockProducts  = "low_stock_products"
	ProcessCPUUse     = "storefront_cpuuse"
	ProcessMemUse     = "storefront_memuse"
)

const retention = 30 * 24 * time.Hour

var (
	mu      sync.RWMutex
	storage tstorage.Storage

	// tstorage keeps only the first point per metric per second, so values
	// live here and the store receives at most one point per second.
	stateMu sync.Mutex
	totals  = map[string]*series{}
	gauges  = map[string]*series{}
)

type series struct {
	value   int64
	at      time.Time
	written int64
}

// InitMetrics opens the store under <workdir>/data/metrics.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	if storage != nil {
		return nil
	}
	dir := path.Join(workdir, "data", "metrics")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(dir),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithPartitionDuration(6*time.Hour),
		tstorage.WithRetention(retention),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

// write stores the value unless a point for this second already exists.
// A skipped value is carried by the next write.
func write(name string, sr *series) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return
	}
	ts := sr.at.Unix()
	if ts <= sr.written {
		return
	}
	err := storage.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: ts, Value: float64(sr.value)},
	}})
	if err == nil {
		sr.written = ts
	}
}

// latestBefore returns the newest stored point older than end.
func latestBefore(name string, end time.Time) (*tstorage.DataPoint, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return nil, nil
	}
	ps, err := storage.Select(name, nil, end.Add(-retention).Unix(), end.Unix())
	if errors.Is(err, tstorage.ErrNoDataPoints) || len(ps) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var latest *tstorage.DataPoint
	for _, p := range ps {
		if p.Timestamp >= end.Unix() {
			continue
		}
		if latest == nil || p.Timestamp >= latest.Timestamp {
			latest = p
		}
	}
	return latest, nil
}

func initialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return storage != nil
}

// counter loads the running total, resuming from the store after a restart.
func counter(name string) *series {
	sr, ok := totals[name]
	if ok {
		return sr
	}
	sr = &series{}
	if p, _ := latestBefore(name, time.Now().Add(time.Minute)); p != nil {
		sr.value = int64(p.Value)
		sr.at = time.Unix(p.Timestamp, 0)
		sr.written = p.Timestamp
	}
	totals[name] = sr
	return sr
}

// Inc records one occurrence of a counter.
func Inc(name string) {
	Add(name, 1)
}

// Add records a counter delta.
func Add(name string, delta int64) {
	if !initialized() {
		return
	}
	stateMu.Lock()
	defer stateMu.Unlock()
	sr := counter(name)
	sr.value += delta
	sr.at = time.Now()
	write(name, sr)
}

func SetGauge(name string, value int64) {
	if !initialized() {
		return
	}
	stateMu.Lock()
	defer stateMu.Unlock()
	sr, ok := gauges[name]
	if !ok {
		sr = &series{}
		gauges[name] = sr
	}
	sr.value = value
	sr.at = time.Now()
	write(name, sr)
}

// Sum totals a counter over the window starting at since.
func Sum(name string, since time.Time) (int64, error) {
	if !initialized() {
		return 0, nil
	}
	stateMu.Lock()
	defer stateMu.Unlock()
	sr := counter(name)
	if sr.at.Before(since) {
		return 0, nil
	}
	base, err := latestBefore(name, since)
	if err != nil {
		return 0, err
	}
	if base == nil {
		return sr.value, nil
	}
	return sr.value - int64(base.Value), nil
}

// Gauge returns the most recent gauge value recorded since the given time.
func Gauge(name string, since time.Time) (int64, error) {
	if !initialized() {
		return 0, nil
	}
	stateMu.Lock()
	defer stateMu.Unlock()
	if sr, ok := gauges[name]; ok && !sr.at.Before(since) {
		return sr.value, nil
	}
	p, err := latestBefore(name, time.Now().Add(time.Minute))
	if err != nil || p == nil || p.Timestamp < since.Unix() {
		return 0, err
	}
	return int64(p.Value), nil
}

// flush writes values still carried in memory one second past their last point.
func flush() {
	stateMu.Lock()
	defer stateMu.Unlock()
	for _, set := range []map[string]*series{totals, gauges} {
		for name, sr := range set {
			if sr.at.Unix() <= sr.written {
				sr.at = time.Unix(sr.written+1, 0)
				write(name, sr)
			}
		}
	}
}

func Close() error {
	flush()
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	stateMu.Lock()
	totals = map[string]*series{}
	gauges = map[string]*series{}
	stateMu.Unlock()
	return err
}
