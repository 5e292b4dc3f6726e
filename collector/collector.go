package collector

import (
	"context"
	"time"

	"proclens/config"
	"proclens/metrics"
	"proclens/models"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultLimit    = 50
	DefaultInterval = 5 * time.Second
)

// HostProbe captures host-wide stats for a snapshot
type HostProbe func(ctx context.Context) models.HostSummary

// Collector periodically builds a Snapshot and publishes it to a Store
type Collector struct {
	source     ProcessSource
	store      *Store
	host       HostProbe
	containers ContainerIndex
	metrics    *metrics.Metrics
	limit      int
	interval   time.Duration
}

type Option func(*Collector)

func WithLimit(n int) Option {
	return func(c *Collector) { c.limit = n }
}

func WithInterval(d time.Duration) Option {
	return func(c *Collector) { c.interval = d }
}

func WithHostProbe(p HostProbe) Option {
	return func(c *Collector) { c.host = p }
}

func WithContainers(idx ContainerIndex) Option {
	return func(c *Collector) { c.containers = idx }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

func NewCollector(source ProcessSource, store *Store, opts ...Option) *Collector {
	c := &Collector{
		source:   source,
		store:    store,
		limit:    DefaultLimit,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig wires a collector against the live host. The returned close
// func releases the Docker client, if one was opened.
func FromConfig(cfg *config.Config, store *Store, m *metrics.Metrics) (*Collector, func()) {
	opts := []Option{
		WithLimit(cfg.SnapshotSize),
		WithInterval(cfg.RefreshInterval),
		WithHostProbe(CollectHostSummary),
		WithMetrics(m),
	}
	closeFn := func() {}

	caps := DetectCapabilities()
	if cfg.Containers && caps.HasDockerSocket {
		idx, err := NewDockerIndex()
		if err != nil {
			log.WithError(err).Warn("Docker client unavailable, container labels disabled")
		} else {
			opts = append(opts, WithContainers(idx))
			closeFn = func() { idx.Close() }
		}
	}

	return NewCollector(GopsutilSource{}, store, opts...), closeFn
}

// Collect runs one tick: enumerate, read, rank, annotate. Processes that
// cannot be fully read are skipped; enumeration failure yields an empty
// snapshot rather than an error.
func (c *Collector) Collect(ctx context.Context) *models.Snapshot {
	snap := &models.Snapshot{CapturedAt: time.Now()}

	procs, err := c.source.Processes(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to enumerate processes")
	}

	records := make([]models.ProcessRecord, 0, len(procs))
	for _, p := range procs {
		rec, err := readRecord(ctx, p)
		if err != nil {
			snap.Skipped++
			log.WithFields(log.Fields{
				"pid":   p.PID(),
				"error": err,
			}).Debug("Skipping process")
			continue
		}
		records = append(records, rec)
	}

	snap.Processes = rankByMemory(records, c.limit)

	if c.containers != nil {
		c.annotate(ctx, snap.Processes)
	}
	if c.host != nil {
		snap.Host = c.host(ctx)
	}

	c.metrics.ObserveTick(len(snap.Processes), snap.Skipped)
	return snap
}

func (c *Collector) annotate(ctx context.Context, records []models.ProcessRecord) {
	pids, err := c.containers.ContainerPIDs(ctx)
	if err != nil {
		log.WithError(err).Debug("Container lookup failed")
		return
	}
	for i := range records {
		if name, ok := pids[records[i].PID]; ok {
			records[i].Container = name
		}
	}
}

// Run publishes a snapshot immediately and then once per interval until ctx
// is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ticker.C:
			c.tick(ctx)
		case <-ctx.Done():
			log.Debug("Collector stopped")
			return
		}
	}
}

func (c *Collector) tick(ctx context.Context) {
	snap := c.Collect(ctx)
	if ctx.Err() != nil {
		// a cancelled tick may be partial, keep the last good one
		return
	}
	c.store.Publish(snap)
	log.WithFields(log.Fields{
		"processes": len(snap.Processes),
		"skipped":   snap.Skipped,
	}).Debug("Snapshot refreshed")
}
