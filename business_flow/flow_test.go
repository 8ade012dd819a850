package businessflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/page-pilot/app/services"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	testingutil "github.com/amirphl/page-pilot/testing"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type flowEnv struct {
	db       *gorm.DB
	fixtures *testingutil.TestFixtures
	posts    repository.PostRepository
	pubs     repository.PublicationRepository
	samples  repository.MetricSampleRepository
	recs     repository.RecommendationRepository
	admins   repository.AdminRepository
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	db := testingutil.NewSQLiteDB(t)
	return &flowEnv{
		db:       db,
		fixtures: testingutil.NewTestFixtures(db),
		posts:    repository.NewPostRepository(db),
		pubs:     repository.NewPublicationRepository(db),
		samples:  repository.NewMetricSampleRepository(db, time.UTC),
		recs:     repository.NewRecommendationRepository(db),
		admins:   repository.NewAdminRepository(db),
	}
}

// publishedWithSample creates a post published a day ago on one destination and stores its counts
func (e *flowEnv) publishedWithSample(t *testing.T, opts testingutil.PostOptions, counts models.RawCounts) *models.Post {
	t.Helper()
	post, err := e.fixtures.CreatePublishedPost(opts, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	for _, pub := range post.Publications {
		_, err := e.samples.Upsert(context.Background(), pub.ID, counts)
		require.NoError(t, err)
	}
	return post
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fakeClient struct {
	mu       sync.Mutex
	deleted  []string
	failures map[string]bool
}

func (c *fakeClient) Publish(context.Context, string, string, string, *string) services.Result[string] {
	return services.Ok("ext")
}

func (c *fakeClient) PublishWithMedia(context.Context, string, string, string, []string, *string) services.Result[string] {
	return services.Ok("ext")
}

func (c *fakeClient) FetchEngagement(context.Context, string, string) services.Result[models.RawCounts] {
	return services.Ok(models.RawCounts{})
}

func (c *fakeClient) Delete(_ context.Context, externalID, _ string) services.Result[bool] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures[externalID] {
		return services.Err[bool](services.ErrorKindRejected, "object does not exist (code: 100)")
	}
	c.deleted = append(c.deleted, externalID)
	return services.Ok(true)
}

type fakeDispatcher struct {
	fail       map[string]bool
	taken      map[string]bool
	dispatched []string
}

func (d *fakeDispatcher) Dispatch(_ context.Context, pub *models.Publication) error {
	d.dispatched = append(d.dispatched, pub.DestinationID)
	if d.taken[pub.DestinationID] {
		return fmt.Errorf("publication %d: %w", pub.ID, repository.ErrPublicationAlreadyDispatched)
	}
	if d.fail[pub.DestinationID] {
		return errors.New("rejected: duplicate status message (code: 506)")
	}
	return nil
}

type fakeCollector struct {
	fail      map[uint]bool
	collected []uint
}

func (c *fakeCollector) CollectPublication(_ context.Context, pub *models.Publication) error {
	if c.fail[pub.ID] {
		return errors.New("transient: timeout")
	}
	c.collected = append(c.collected, pub.ID)
	return nil
}

type fakeAnalyzer struct {
	calls    int
	insights models.NarrativeInsights
	fail     bool
}

func (a *fakeAnalyzer) Analyze(_ context.Context, _ []models.TopPost, _ models.Locale) services.Result[models.NarrativeInsights] {
	a.calls++
	if a.fail {
		return services.Err[models.NarrativeInsights](services.ErrorKindTransient, "overloaded")
	}
	return services.Ok(a.insights)
}

type staticDirectory []services.Destination

func (d staticDirectory) Destinations() []services.Destination { return d }

func nowUTC() time.Time {
	return time.Now().UTC()
}
