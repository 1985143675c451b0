package metrics

import (
	"context"
	"time"

	"face-gallery/internal/logging"
)

// StatsProvider reports library totals for the periodic collector.
type StatsProvider interface {
	LibraryStats(ctx context.Context) (Stats, error)
}

// Stats holds the current library totals
type Stats struct {
	Photos   int `json:"photos"`
	Media    int `json:"media"`
	FaceTags int `json:"faceTags"`
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.LibraryStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	LibraryPhotosTotal.Set(float64(stats.Photos))
	LibraryMediaTotal.Set(float64(stats.Media))
	LibraryFaceTagsTotal.Set(float64(stats.FaceTags))

	logging.Debug("Metrics collected: photos=%d, media=%d, face tags=%d",
		stats.Photos, stats.Media, stats.FaceTags)
}
