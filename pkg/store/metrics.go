package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "channeld_store_ops_total",
	Help: "Committed store mutations by operation.",
}, []string{"op"})

func init() {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "channeld_store_disk_bytes",
		Help: "Best-effort on-disk size of the pebble database directory.",
	}, func() float64 { return float64(diskUsage()) })
}

// diskUsage computes the total bytes under the DB directory; zero when the
// store is not open.
func diskUsage() uint64 {
	if db == nil || dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}
