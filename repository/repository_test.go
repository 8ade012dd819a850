package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/page-pilot/models"
	testingutil "github.com/amirphl/page-pilot/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixedNow anchors every window computation in these tests
var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testStore struct {
	db       *gorm.DB
	fixtures *testingutil.TestFixtures
	posts    *PostRepositoryImpl
	pubs     *PublicationRepositoryImpl
	samples  *MetricSampleRepositoryImpl
	recs     *RecommendationRepositoryImpl
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db := testingutil.NewSQLiteDB(t)
	clock := func() time.Time { return fixedNow }

	s := &testStore{
		db:       db,
		fixtures: testingutil.NewTestFixtures(db),
		posts:    NewPostRepository(db).(*PostRepositoryImpl),
		pubs:     NewPublicationRepository(db).(*PublicationRepositoryImpl),
		samples:  NewMetricSampleRepository(db, time.UTC).(*MetricSampleRepositoryImpl),
		recs:     NewRecommendationRepository(db).(*RecommendationRepositoryImpl),
	}
	s.posts.SetClock(clock)
	s.pubs.SetClock(clock)
	s.samples.SetClock(clock)
	s.recs.SetClock(clock)
	return s
}

func TestPublicationRepository_DueScheduledWork(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	later, err := s.fixtures.CreateScheduledPost(fixedNow.Add(-10*time.Minute), "page-b")
	require.NoError(t, err)
	earlier, err := s.fixtures.CreateScheduledPost(fixedNow.Add(-2*time.Hour), "page-a", "page-c")
	require.NoError(t, err)
	_, err = s.fixtures.CreateScheduledPost(fixedNow.Add(time.Hour), "page-a")
	require.NoError(t, err)
	_, err = s.fixtures.CreatePost(testingutil.PostOptions{Destinations: []string{"page-a"}})
	require.NoError(t, err)

	// an already published publication of a due post is not work
	require.NoError(t, s.pubs.RecordOutcome(ctx, earlier.Publications[1].ID, models.PublishedOutcome("ext-1")))

	due, err := s.pubs.DueScheduledWork(ctx, fixedNow)
	require.NoError(t, err)
	require.Len(t, due, 2)

	assert.Equal(t, earlier.Publications[0].ID, due[0].ID)
	assert.Equal(t, later.Publications[0].ID, due[1].ID)
	for _, pub := range due {
		require.NotNil(t, pub.Post)
		assert.Equal(t, models.PostStatusScheduled, pub.Post.Status)
	}

	t.Run("empty is not an error", func(t *testing.T) {
		due, err := s.pubs.DueScheduledWork(ctx, fixedNow.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestPublicationRepository_RecordOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.fixtures.CreateScheduledPost(fixedNow, "page-a", "page-b")
	require.NoError(t, err)
	okPub, failPub := post.Publications[0], post.Publications[1]

	t.Run("published sets external id and published_at", func(t *testing.T) {
		require.NoError(t, s.pubs.RecordOutcome(ctx, okPub.ID, models.PublishedOutcome("123_456")))

		got, err := s.pubs.ByID(ctx, okPub.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PublicationStatusPublished, got.Status)
		require.NotNil(t, got.ExternalID)
		assert.Equal(t, "123_456", *got.ExternalID)
		require.NotNil(t, got.PublishedAt)
		assert.True(t, got.PublishedAt.Equal(fixedNow))
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("failed carries a message and no published_at", func(t *testing.T) {
		require.NoError(t, s.pubs.RecordOutcome(ctx, failPub.ID, models.FailedOutcome("")))

		got, err := s.pubs.ByID(ctx, failPub.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PublicationStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "unknown error", *got.ErrorMessage)
		assert.Nil(t, got.PublishedAt)
	})

	t.Run("published without external id is rejected", func(t *testing.T) {
		err := s.pubs.RecordOutcome(ctx, failPub.ID, models.PublicationOutcome{Status: models.PublicationStatusPublished})
		assert.Error(t, err)
	})

	t.Run("unknown publication", func(t *testing.T) {
		err := s.pubs.RecordOutcome(ctx, 9999, models.FailedOutcome("boom"))
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestPublicationRepository_FinalOutcomeIsNotRewritten(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.fixtures.CreateScheduledPost(fixedNow, "page-a")
	require.NoError(t, err)
	id := post.Publications[0].ID
	require.NoError(t, s.pubs.RecordOutcome(ctx, id, models.PublishedOutcome("page-a_1")))

	err = s.pubs.RecordOutcome(ctx, id, models.FailedOutcome("timeout"))
	assert.ErrorIs(t, err, ErrPublicationAlreadyDispatched)
	err = s.pubs.RecordOutcome(ctx, id, models.PublishedOutcome("page-a_2"))
	assert.ErrorIs(t, err, ErrPublicationAlreadyDispatched)

	got, err := s.pubs.ByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PublicationStatusPublished, got.Status)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "page-a_1", *got.ExternalID)
	assert.NotNil(t, got.PublishedAt)
	assert.Nil(t, got.ErrorMessage)
}

func TestPublicationRepository_ClaimForDispatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lease := 10 * time.Minute

	post, err := s.fixtures.CreateScheduledPost(fixedNow, "page-a", "page-b")
	require.NoError(t, err)
	pending, final := post.Publications[0].ID, post.Publications[1].ID

	claimed, err := s.pubs.ClaimForDispatch(ctx, pending, lease)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.pubs.ClaimForDispatch(ctx, pending, lease)
	require.NoError(t, err)
	assert.False(t, claimed, "a live claim belongs to the first dispatcher")

	s.pubs.SetClock(func() time.Time { return fixedNow.Add(lease + time.Minute) })
	t.Cleanup(func() { s.pubs.SetClock(func() time.Time { return fixedNow }) })

	claimed, err = s.pubs.ClaimForDispatch(ctx, pending, lease)
	require.NoError(t, err)
	assert.True(t, claimed, "an expired claim can be taken over")

	require.NoError(t, s.pubs.RecordOutcome(ctx, final, models.FailedOutcome("rejected")))
	claimed, err = s.pubs.ClaimForDispatch(ctx, final, lease)
	require.NoError(t, err)
	assert.False(t, claimed, "final publications are never claimed")

	claimed, err = s.pubs.ClaimForDispatch(ctx, 9999, lease)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestWithTransaction_RollsBackOutcomeAndPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.fixtures.CreateScheduledPost(fixedNow, "page-a")
	require.NoError(t, err)
	id := post.Publications[0].ID

	run := NewTxRunner(s.db)
	err = run(ctx, func(txCtx context.Context) error {
		if err := s.pubs.RecordOutcome(txCtx, id, models.PublishedOutcome("page-a_9")); err != nil {
			return err
		}
		if _, err := s.posts.AdvanceAfterDispatch(txCtx, post.ID); err != nil {
			return err
		}
		return errors.New("commit refused")
	})
	require.EqualError(t, err, "commit refused")

	pub, err := s.pubs.ByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PublicationStatusPending, pub.Status)
	assert.Nil(t, pub.ExternalID)

	got, err := s.posts.ByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, got.Status)

	err = run(ctx, func(txCtx context.Context) error {
		if err := s.pubs.RecordOutcome(txCtx, id, models.PublishedOutcome("page-a_9")); err != nil {
			return err
		}
		_, err := s.posts.AdvanceAfterDispatch(txCtx, post.ID)
		return err
	})
	require.NoError(t, err)

	got, err = s.posts.ByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, got.Status)
}

func TestPublicationRepository_PublishedWithinWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sampledOld, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, fixedNow.Add(-5*24*time.Hour))
	require.NoError(t, err)
	sampledRecent, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, fixedNow.Add(-4*24*time.Hour))
	require.NoError(t, err)
	neverSampled, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, fixedNow.Add(-3*24*time.Hour))
	require.NoError(t, err)
	_, err = s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, fixedNow.Add(-40*24*time.Hour))
	require.NoError(t, err)

	s.samples.SetClock(func() time.Time { return fixedNow.Add(-2 * time.Hour) })
	_, err = s.samples.Upsert(ctx, sampledOld.Publications[0].ID, models.RawCounts{Likes: 1, Impressions: 10})
	require.NoError(t, err)
	s.samples.SetClock(func() time.Time { return fixedNow.Add(-1 * time.Hour) })
	_, err = s.samples.Upsert(ctx, sampledRecent.Publications[0].ID, models.RawCounts{Likes: 1, Impressions: 10})
	require.NoError(t, err)

	pubs, err := s.pubs.PublishedWithinWindow(ctx, 30, 50)
	require.NoError(t, err)
	require.Len(t, pubs, 3)
	assert.Equal(t, neverSampled.Publications[0].ID, pubs[0].ID)
	assert.Equal(t, sampledOld.Publications[0].ID, pubs[1].ID)
	assert.Equal(t, sampledRecent.Publications[0].ID, pubs[2].ID)
	assert.NotNil(t, pubs[0].Post)

	capped, err := s.pubs.PublishedWithinWindow(ctx, 30, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, neverSampled.Publications[0].ID, capped[0].ID)
}

func TestPostRepository_AdvanceAfterDispatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("published only when every publication is published", func(t *testing.T) {
		post, err := s.fixtures.CreateScheduledPost(fixedNow, "page-a", "page-b")
		require.NoError(t, err)

		require.NoError(t, s.pubs.RecordOutcome(ctx, post.Publications[0].ID, models.PublishedOutcome("x1")))
		status, err := s.posts.AdvanceAfterDispatch(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusScheduled, status)

		require.NoError(t, s.pubs.RecordOutcome(ctx, post.Publications[1].ID, models.PublishedOutcome("x2")))
		status, err = s.posts.AdvanceAfterDispatch(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusPublished, status)

		got, err := s.posts.ByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusPublished, got.Status)
		require.NotNil(t, got.PublishedAt)
	})

	t.Run("failed when nothing is pending and one failed", func(t *testing.T) {
		post, err := s.fixtures.CreateScheduledPost(fixedNow, "page-a", "page-b")
		require.NoError(t, err)

		require.NoError(t, s.pubs.RecordOutcome(ctx, post.Publications[0].ID, models.PublishedOutcome("y1")))
		require.NoError(t, s.pubs.RecordOutcome(ctx, post.Publications[1].ID, models.FailedOutcome("token not found for destination page-b")))

		status, err := s.posts.AdvanceAfterDispatch(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusFailed, status)
	})
}

func TestPostRepository_UpdateStatusIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.fixtures.CreatePost(testingutil.PostOptions{Destinations: []string{"page-a"}})
	require.NoError(t, err)

	require.NoError(t, s.posts.UpdateStatus(ctx, post.ID, models.PostStatusScheduled))
	require.NoError(t, s.posts.UpdateStatus(ctx, post.ID, models.PostStatusPublished))

	err = s.posts.UpdateStatus(ctx, post.ID, models.PostStatusScheduled)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	got, err := s.posts.ByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, got.Status)
}

func TestPostRepository_DeleteCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{Destinations: []string{"page-a", "page-b"}}, fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	other, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, fixedNow.Add(-time.Hour))
	require.NoError(t, err)

	for _, pub := range append(post.Publications, other.Publications...) {
		_, err := s.samples.Upsert(ctx, pub.ID, s.fixtures.RandomCounts())
		require.NoError(t, err)
	}

	require.NoError(t, s.posts.DeleteCascade(ctx, post.ID))

	got, err := s.posts.ByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var pubCount, sampleCount int64
	require.NoError(t, s.db.Model(&models.Publication{}).Count(&pubCount).Error)
	require.NoError(t, s.db.Model(&models.MetricSample{}).Count(&sampleCount).Error)
	assert.Equal(t, int64(1), pubCount)
	assert.Equal(t, int64(1), sampleCount)

	loaded, err := s.posts.ByIDWithPublications(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Publications, 1)
	assert.NotNil(t, loaded.Publications[0].Sample)
}

func TestPostRepository_ByFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.fixtures.CreateScheduledPost(fixedNow, "page-a")
	require.NoError(t, err)
	_, err = s.fixtures.CreatePost(testingutil.PostOptions{Destinations: []string{"page-a"}})
	require.NoError(t, err)

	status := models.PostStatusScheduled
	posts, err := s.posts.ByFilter(ctx, models.PostFilter{Status: &status}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].Publications, 1)

	count, err := s.posts.Count(ctx, models.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	byUUID, err := s.posts.ByUUID(ctx, posts[0].UUID.String())
	require.NoError(t, err)
	require.NotNil(t, byUUID)
	assert.Equal(t, posts[0].ID, byUUID.ID)

	_, err = s.posts.ByUUID(ctx, "not-a-uuid")
	assert.Error(t, err)
}
