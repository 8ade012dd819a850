package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/page-pilot/app/services"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	"github.com/amirphl/page-pilot/utils"
)

// CollectStats tallies one collection cycle
type CollectStats struct {
	Success int
	Errors  int
}

// AnalyticsCollector refreshes engagement samples of recently published items
type AnalyticsCollector struct {
	pubs    repository.PublicationRepository
	samples repository.MetricSampleRepository
	client  services.PublishingClient
	creds   services.CredentialStore
	lock    CycleLock
	logger  *log.Logger

	interval   time.Duration
	delay      time.Duration
	windowDays int
	limit      int
}

// NewAnalyticsCollector wires the collection loop; lock and logger may be nil
func NewAnalyticsCollector(
	pubs repository.PublicationRepository,
	samples repository.MetricSampleRepository,
	client services.PublishingClient,
	creds services.CredentialStore,
	lock CycleLock,
	logger *log.Logger,
	interval time.Duration,
	delay time.Duration,
	windowDays int,
	limit int,
) *AnalyticsCollector {
	if interval <= 0 {
		interval = time.Hour
	}
	if delay < 0 {
		delay = 0
	}
	if windowDays <= 0 {
		windowDays = utils.DefaultAnalysisPeriodDays
	}
	if limit <= 0 {
		limit = utils.DefaultTopPostsLimit
	}
	if lock == nil {
		lock = NoopCycleLock{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &AnalyticsCollector{
		pubs:       pubs,
		samples:    samples,
		client:     client,
		creds:      creds,
		lock:       lock,
		logger:     logger,
		interval:   interval,
		delay:      delay,
		windowDays: windowDays,
		limit:      limit,
	}
}

// Start launches the collection loop in a background goroutine. The returned stop function
// cancels the loop and waits for it to exit.
func (c *AnalyticsCollector) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce refreshes up to limit publications from the window, least recently sampled first
func (c *AnalyticsCollector) RunOnce(ctx context.Context) CollectStats {
	var stats CollectStats

	release, ok, err := c.lock.Acquire(ctx, loopAnalytics, c.interval)
	if err != nil {
		c.logger.Printf("analytics: acquire cycle lock failed: %v", err)
	}
	if !ok {
		cyclesTotal.WithLabelValues(loopAnalytics, "skipped").Inc()
		return stats
	}
	defer release()

	start := time.Now()
	defer func() {
		cyclesTotal.WithLabelValues(loopAnalytics, "ran").Inc()
		cycleDuration.WithLabelValues(loopAnalytics).Observe(time.Since(start).Seconds())
	}()

	pubs, err := c.pubs.PublishedWithinWindow(ctx, c.windowDays, c.limit)
	if err != nil {
		c.logger.Printf("analytics: list published items failed: %v", err)
		return stats
	}

	for i, pub := range pubs {
		if ctx.Err() != nil {
			break
		}
		if err := c.CollectPublication(ctx, pub); err != nil {
			stats.Errors++
			itemsTotal.WithLabelValues(loopAnalytics, "error").Inc()
			c.logger.Printf("analytics: collect failed for publication id=%d: %v", pub.ID, err)
		} else {
			stats.Success++
			itemsTotal.WithLabelValues(loopAnalytics, "success").Inc()
		}
		if i < len(pubs)-1 && !sleepCtx(ctx, c.delay) {
			break
		}
	}

	c.logger.Printf("analytics: cycle done success=%d errors=%d", stats.Success, stats.Errors)
	return stats
}

// CollectPublication fetches current counts of one published item and upserts its sample
func (c *AnalyticsCollector) CollectPublication(ctx context.Context, pub *models.Publication) error {
	if pub.ExternalID == nil || *pub.ExternalID == "" {
		return fmt.Errorf("publication %d has no external id", pub.ID)
	}
	token, ok := c.creds.Token(ctx, pub.DestinationID)
	if !ok {
		return &services.Failure{
			Kind:    services.ErrorKindConfiguration,
			Message: fmt.Sprintf("token not found for destination %s", pub.DestinationID),
		}
	}

	res := c.client.FetchEngagement(ctx, *pub.ExternalID, token)
	counts, ok := res.Value()
	if !ok {
		return res.Err()
	}
	if _, err := c.samples.Upsert(ctx, pub.ID, counts); err != nil {
		return fmt.Errorf("upsert sample: %w", err)
	}
	return nil
}
