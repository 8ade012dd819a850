package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/page-pilot/app/services"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	"github.com/amirphl/page-pilot/utils"
)

// dispatchLease bounds how long a claimed publication stays reserved for one dispatcher
const dispatchLease = 10 * time.Minute

// PostScheduler periodically publishes due publications and records their outcome
type PostScheduler struct {
	posts   repository.PostRepository
	pubs    repository.PublicationRepository
	samples repository.MetricSampleRepository
	client  services.PublishingClient
	creds   services.CredentialStore
	lock    CycleLock
	inTx    repository.TxRunner
	logger  *log.Logger

	interval    time.Duration
	settleDelay time.Duration
	lease       time.Duration
	now         func() time.Time
}

// NewPostScheduler wires the dispatch loop; lock and logger may be nil
func NewPostScheduler(
	posts repository.PostRepository,
	pubs repository.PublicationRepository,
	samples repository.MetricSampleRepository,
	client services.PublishingClient,
	creds services.CredentialStore,
	lock CycleLock,
	logger *log.Logger,
	interval time.Duration,
	settleDelay time.Duration,
) *PostScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if settleDelay < 0 {
		settleDelay = 0
	}
	if lock == nil {
		lock = NoopCycleLock{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &PostScheduler{
		posts:       posts,
		pubs:        pubs,
		samples:     samples,
		client:      client,
		creds:       creds,
		lock:        lock,
		logger:      logger,
		inTx:        repository.RunWithoutTransaction,
		interval:    interval,
		settleDelay: settleDelay,
		lease:       dispatchLease,
		now:         utils.UTCNow,
	}
}

// UseTransactions makes each recorded outcome and the post status it implies commit together
func (s *PostScheduler) UseTransactions(run repository.TxRunner) {
	if run != nil {
		s.inTx = run
	}
}

// Start launches the scheduler loop in a background goroutine. The returned stop function
// cancels the loop and waits for the in-flight dispatch to return.
func (s *PostScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce dispatches every publication due at this instant, one after another
func (s *PostScheduler) RunOnce(ctx context.Context) {
	release, ok, err := s.lock.Acquire(ctx, loopPosts, s.lease)
	if err != nil {
		s.logger.Printf("scheduler: acquire cycle lock failed: %v", err)
	}
	if !ok {
		cyclesTotal.WithLabelValues(loopPosts, "skipped").Inc()
		return
	}
	defer release()

	start := time.Now()
	defer func() {
		cyclesTotal.WithLabelValues(loopPosts, "ran").Inc()
		cycleDuration.WithLabelValues(loopPosts).Observe(time.Since(start).Seconds())
	}()

	due, err := s.pubs.DueScheduledWork(ctx, s.now())
	if err != nil {
		s.logger.Printf("scheduler: list due publications failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Printf("scheduler: %d publications due", len(due))

	published, failed, skipped := 0, 0, 0
	for _, pub := range due {
		if ctx.Err() != nil {
			break
		}
		err := s.dispatchSafe(ctx, pub)
		switch {
		case err == nil:
			published++
		case errors.Is(err, repository.ErrPublicationAlreadyDispatched):
			skipped++
			s.logger.Printf("scheduler: publication id=%d already dispatched, skipping", pub.ID)
		default:
			failed++
			s.logger.Printf("scheduler: dispatch failed for publication id=%d: %v", pub.ID, err)
		}
	}
	s.logger.Printf("scheduler: cycle done published=%d failed=%d skipped=%d", published, failed, skipped)
}

func (s *PostScheduler) dispatchSafe(ctx context.Context, pub *models.Publication) (err error) {
	defer func() {
		if r := recover(); r != nil {
			itemsTotal.WithLabelValues(loopPosts, "panic").Inc()
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Dispatch(ctx, pub)
}

// Dispatch publishes one pending publication and records the outcome. A nil error means the
// publication is now published. A publication that is final or claimed elsewhere is not sent again;
// the error then wraps repository.ErrPublicationAlreadyDispatched.
func (s *PostScheduler) Dispatch(ctx context.Context, pub *models.Publication) error {
	claimed, err := s.pubs.ClaimForDispatch(ctx, pub.ID, s.lease)
	if err != nil {
		return fmt.Errorf("claim publication %d: %w", pub.ID, err)
	}
	if !claimed {
		itemsTotal.WithLabelValues(loopPosts, "skipped").Inc()
		return fmt.Errorf("publication %d: %w", pub.ID, repository.ErrPublicationAlreadyDispatched)
	}

	post := pub.Post
	if post == nil {
		p, err := s.posts.ByID(ctx, pub.PostID)
		if err != nil {
			return fmt.Errorf("load post %d: %w", pub.PostID, err)
		}
		if p == nil {
			return fmt.Errorf("post %d not found", pub.PostID)
		}
		post = p
	}

	token, ok := s.creds.Token(ctx, pub.DestinationID)
	if !ok {
		msg := fmt.Sprintf("token not found for destination %s", pub.DestinationID)
		itemsTotal.WithLabelValues(loopPosts, string(services.ErrorKindConfiguration)).Inc()
		if err := s.recordAndAdvance(ctx, pub, models.FailedOutcome(msg)); err != nil {
			return err
		}
		return &services.Failure{Kind: services.ErrorKindConfiguration, Message: msg}
	}

	var res services.Result[string]
	if post.HasImages() {
		res = s.client.PublishWithMedia(ctx, pub.DestinationID, token, post.Content, post.ImageURLs, post.Link)
	} else {
		res = s.client.Publish(ctx, pub.DestinationID, token, post.Content, post.Link)
	}

	externalID, ok := res.Value()
	if !ok {
		failure := res.Failure()
		itemsTotal.WithLabelValues(loopPosts, string(failure.Kind)).Inc()
		if err := s.recordAndAdvance(ctx, pub, models.FailedOutcome(failure.Message)); err != nil {
			return err
		}
		return failure
	}

	if err := s.recordAndAdvance(ctx, pub, models.PublishedOutcome(externalID)); err != nil {
		return err
	}
	itemsTotal.WithLabelValues(loopPosts, "published").Inc()

	s.collectInitialMetrics(ctx, pub, externalID, token)
	return nil
}

// recordAndAdvance stores the outcome and the post status it implies in one transaction. When the
// post cannot advance, the outcome is still stored on its own.
func (s *PostScheduler) recordAndAdvance(ctx context.Context, pub *models.Publication, outcome models.PublicationOutcome) error {
	err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.pubs.RecordOutcome(txCtx, pub.ID, outcome); err != nil {
			return fmt.Errorf("record %s outcome: %w", outcome.Status, err)
		}
		if _, err := s.posts.AdvanceAfterDispatch(txCtx, pub.PostID); err != nil {
			return fmt.Errorf("advance post %d: %w", pub.PostID, err)
		}
		return nil
	})
	if err == nil || errors.Is(err, repository.ErrPublicationAlreadyDispatched) {
		return err
	}

	s.logger.Printf("scheduler: record with post advance failed for publication id=%d: %v", pub.ID, err)
	if rerr := s.pubs.RecordOutcome(ctx, pub.ID, outcome); rerr != nil && !errors.Is(rerr, repository.ErrPublicationAlreadyDispatched) {
		return fmt.Errorf("record %s outcome: %w", outcome.Status, rerr)
	}
	return nil
}

// collectInitialMetrics waits for the platform to settle, then stores a first engagement sample
func (s *PostScheduler) collectInitialMetrics(ctx context.Context, pub *models.Publication, externalID, token string) {
	if !sleepCtx(ctx, s.settleDelay) {
		return
	}

	counts, ok := s.client.FetchEngagement(ctx, externalID, token).Value()
	if !ok {
		s.logger.Printf("scheduler: initial metrics unavailable for publication id=%d", pub.ID)
		return
	}
	if _, err := s.samples.Upsert(ctx, pub.ID, counts); err != nil {
		s.logger.Printf("scheduler: store initial metrics failed for publication id=%d: %v", pub.ID, err)
	}
}

// sleepCtx waits d or until ctx is done; it reports whether the full delay elapsed
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
