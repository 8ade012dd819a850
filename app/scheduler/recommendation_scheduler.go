package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	businessflow "github.com/amirphl/page-pilot/business_flow"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	"github.com/amirphl/page-pilot/utils"
	"github.com/robfig/cron/v3"
)

// recommendationLockTTL is renewed by the redis lock while a generation runs
const recommendationLockTTL = 10 * time.Minute

// RecommendationGenerator builds and stores one recommendation snapshot
type RecommendationGenerator interface {
	GenerateFullAnalysis(ctx context.Context, req businessflow.GenerateRequest) (*models.Recommendation, error)
}

// RecommendationScheduler regenerates recommendations on a cron schedule unless a fresh snapshot exists
type RecommendationScheduler struct {
	gen    RecommendationGenerator
	recs   repository.RecommendationRepository
	lock   CycleLock
	logger *log.Logger

	spec          string
	schedule      cron.Schedule
	loc           *time.Location
	freshnessDays int
	request       businessflow.GenerateRequest
}

// NewRecommendationScheduler validates the cron spec (standard 5 fields) and wires the trigger
func NewRecommendationScheduler(
	gen RecommendationGenerator,
	recs repository.RecommendationRepository,
	lock CycleLock,
	logger *log.Logger,
	spec string,
	loc *time.Location,
	freshnessDays int,
	request businessflow.GenerateRequest,
) (*RecommendationScheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid recommendation schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if freshnessDays <= 0 {
		freshnessDays = utils.DefaultRecommendationFreshnessDays
	}
	if lock == nil {
		lock = NoopCycleLock{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &RecommendationScheduler{
		gen:           gen,
		recs:          recs,
		lock:          lock,
		logger:        logger,
		spec:          spec,
		schedule:      schedule,
		loc:           loc,
		freshnessDays: freshnessDays,
		request:       request,
	}, nil
}

// Start runs the cron in the configured location. The returned stop function cancels a running
// generation and waits for it to return.
func (s *RecommendationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	c := cron.New(cron.WithLocation(s.loc))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.Trigger(ctx); err != nil {
			s.logger.Printf("recommendations: scheduled run failed: %v", err)
		}
	}))
	c.Start()
	s.logger.Printf("recommendations: schedule %q in %s, next run %s", s.spec, s.loc, s.NextRun(time.Now()).Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return func() {
		cancel()
		<-c.Stop().Done()
	}
}

// NextRun returns the first scheduled instant after t
func (s *RecommendationScheduler) NextRun(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Trigger generates a snapshot unless one was completed within the freshness window. It reports
// whether a new snapshot was stored.
func (s *RecommendationScheduler) Trigger(ctx context.Context) (bool, error) {
	release, ok, err := s.lock.Acquire(ctx, loopRecommendations, recommendationLockTTL)
	if err != nil {
		s.logger.Printf("recommendations: acquire cycle lock failed: %v", err)
	}
	if !ok {
		cyclesTotal.WithLabelValues(loopRecommendations, "skipped").Inc()
		return false, nil
	}
	defer release()

	fresh, err := s.recs.HasRecent(ctx, s.freshnessDays)
	if err != nil {
		return false, fmt.Errorf("check recent recommendations: %w", err)
	}
	if fresh {
		cyclesTotal.WithLabelValues(loopRecommendations, "skipped").Inc()
		s.logger.Printf("recommendations: snapshot from the last %d days exists, skipping", s.freshnessDays)
		return false, nil
	}

	start := time.Now()
	defer func() {
		cyclesTotal.WithLabelValues(loopRecommendations, "ran").Inc()
		cycleDuration.WithLabelValues(loopRecommendations).Observe(time.Since(start).Seconds())
	}()

	rec, err := s.gen.GenerateFullAnalysis(ctx, s.request)
	if err != nil {
		itemsTotal.WithLabelValues(loopRecommendations, "error").Inc()
		return false, err
	}
	itemsTotal.WithLabelValues(loopRecommendations, "generated").Inc()
	s.logger.Printf("recommendations: generated snapshot id=%d in %v", rec.ID, time.Since(start))
	return true, nil
}
