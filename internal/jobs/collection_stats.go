package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forgo/docrepo/internal/docstore"
)

// CollectionStats periodically counts the documents of every collection
type CollectionStats struct {
	store    docstore.Store
	gauge    *prometheus.GaugeVec
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex

	labelsMu sync.Mutex
	labels   map[string]bool // collections present in the gauge
}

// NewCollectionStats creates the job and registers its gauge with reg when
// reg is not nil.
func NewCollectionStats(store docstore.Store, reg prometheus.Registerer, interval time.Duration, logger *slog.Logger) *CollectionStats {
	if interval == 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docstore_collection_documents",
			Help: "Documents per collection at the last stats pass",
		},
		[]string{"collection"},
	)
	if reg != nil {
		reg.MustRegister(gauge)
	}
	return &CollectionStats{
		store:    store,
		gauge:    gauge,
		interval: interval,
		logger:   logger,
		labels:   make(map[string]bool),
	}
}

// Start begins the job. Calling Start on a running job does nothing.
func (j *CollectionStats) Start() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	stopCh := make(chan struct{})
	j.stopCh = stopCh
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run(stopCh)
	j.logger.Info("collection stats started", slog.Duration("interval", j.interval))
}

// Stop gracefully stops the job and waits for an in-flight pass.
func (j *CollectionStats) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopCh)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("collection stats stopped")
}

// IsRunning returns whether the job is running
func (j *CollectionStats) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *CollectionStats) run(stopCh <-chan struct{}) {
	defer j.wg.Done()

	j.pass()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.pass()
		case <-stopCh:
			return
		}
	}
}

func (j *CollectionStats) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	if err := j.RunOnce(ctx); err != nil {
		j.logger.Warn("collection stats pass failed", slog.String("error", err.Error()))
	}
}

// RunOnce counts every collection and updates the gauge. Collections that
// disappeared since the previous pass are removed from the gauge; the others
// keep their last value until replaced.
func (j *CollectionStats) RunOnce(ctx context.Context) error {
	names, err := j.store.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	j.labelsMu.Lock()
	defer j.labelsMu.Unlock()

	current := make(map[string]bool, len(names))
	var errs []error
	for _, name := range names {
		n, err := j.store.CountDocs(ctx, name, docstore.Any())
		if err != nil {
			if errors.Is(err, docstore.ErrCollectionNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("count %s: %w", name, err))
			if j.labels[name] {
				current[name] = true
			}
			continue
		}
		j.gauge.WithLabelValues(name).Set(float64(n))
		current[name] = true
	}
	for name := range j.labels {
		if !current[name] {
			j.gauge.DeleteLabelValues(name)
		}
	}
	j.labels = current
	return errors.Join(errs...)
}
