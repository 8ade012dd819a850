package repository

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/page-pilot/models"
	testingutil "github.com/amirphl/page-pilot/testing"
	"github.com/amirphl/page-pilot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricSampleRepository_UpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Wednesday 14:30 UTC
	publishedAt := time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)
	post, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{
		Content:   "Short text",
		Link:      utils.ToPtr("https://example.com/a"),
		ImageURLs: []string{"https://cdn.example.com/1.jpg"},
	}, publishedAt)
	require.NoError(t, err)
	pubID := post.Publications[0].ID

	first, err := s.samples.Upsert(ctx, pubID, models.RawCounts{Likes: 10, Comments: 5, Shares: 2, Impressions: 100})
	require.NoError(t, err)
	assert.InDelta(t, 0.26, first.EngagementRate, 1e-9)
	assert.Equal(t, 10, first.TextLength)
	assert.True(t, first.HasLink)
	assert.True(t, first.HasImages)
	assert.Equal(t, 1, first.ImageCount)
	require.NotNil(t, first.HourOfDay)
	require.NotNil(t, first.DayOfWeek)
	assert.Equal(t, 14, *first.HourOfDay)
	assert.Equal(t, 2, *first.DayOfWeek)

	// the post is edited between refreshes; metadata follows the current content
	require.NoError(t, s.db.Model(&models.Post{}).Where("id = ?", post.ID).
		Updates(map[string]any{"content": "A much longer text now", "link": nil}).Error)

	second, err := s.samples.Upsert(ctx, pubID, models.RawCounts{
		Likes: 20, Impressions: 0, Reactions: map[string]int64{"love": 3, "like": 17},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(20), second.Likes)
	assert.Equal(t, int64(0), second.Comments)
	assert.Equal(t, 0.0, second.EngagementRate)
	assert.Equal(t, 22, second.TextLength)
	assert.False(t, second.HasLink)
	assert.Equal(t, int64(3), second.Reactions["love"])

	count, err := s.samples.CountByPublicationID(ctx, pubID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := s.samples.ByPublicationID(ctx, pubID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(20), stored.Likes)

	missing, err := s.samples.ByPublicationID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMetricSampleRepository_UpsertUnknownPublication(t *testing.T) {
	s := newTestStore(t)
	_, err := s.samples.Upsert(context.Background(), 4242, models.RawCounts{Likes: 1})
	assert.Error(t, err)
}

func TestMetricSampleRepository_TopPosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	publishedAt := fixedNow.Add(-2 * 24 * time.Hour)

	// rate 0.05 on each of two destinations, 10 likes in total
	twoPages, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{Destinations: []string{"page-a", "page-b"}}, publishedAt)
	require.NoError(t, err)
	for _, pub := range twoPages.Publications {
		_, err := s.samples.Upsert(ctx, pub.ID, models.RawCounts{Likes: 5, Impressions: 100})
		require.NoError(t, err)
	}

	// rate 0.5 with 5 likes
	highRate, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{ImageURLs: []string{"x.jpg", "y.jpg"}}, publishedAt)
	require.NoError(t, err)
	_, err = s.samples.Upsert(ctx, highRate.Publications[0].ID, models.RawCounts{Likes: 5, Impressions: 10})
	require.NoError(t, err)

	// likes without impressions: rate 0 but non-zero raw totals
	noImpressions, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, publishedAt)
	require.NoError(t, err)
	_, err = s.samples.Upsert(ctx, noImpressions.Publications[0].ID, models.RawCounts{Likes: 2})
	require.NoError(t, err)

	// no engagement at all: filtered out
	silent, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, publishedAt)
	require.NoError(t, err)
	_, err = s.samples.Upsert(ctx, silent.Publications[0].ID, models.RawCounts{Impressions: 50})
	require.NoError(t, err)

	// outside the period
	old, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, fixedNow.Add(-60*24*time.Hour))
	require.NoError(t, err)
	_, err = s.samples.Upsert(ctx, old.Publications[0].ID, models.RawCounts{Likes: 1000, Impressions: 1000})
	require.NoError(t, err)

	t.Run("engagement rate", func(t *testing.T) {
		top, err := s.samples.TopPosts(ctx, 30, 10, models.TopPostMetricEngagementRate)
		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, highRate.ID, top[0].PostID)
		assert.Equal(t, twoPages.ID, top[1].PostID)
		assert.Equal(t, noImpressions.ID, top[2].PostID)

		assert.InDelta(t, 0.5, top[0].AvgEngagementRate, 1e-9)
		assert.True(t, top[0].HasImages)
		assert.InDelta(t, 2.0, top[0].ImageCount, 1e-9)
		assert.Equal(t, int64(10), top[1].TotalLikes)
		assert.Equal(t, int64(200), top[1].TotalImpressions)
		assert.NotEmpty(t, top[1].Content)
		require.NotNil(t, top[1].HourOfDay)
	})

	t.Run("summed likes", func(t *testing.T) {
		top, err := s.samples.TopPosts(ctx, 30, 10, models.TopPostMetricLikes)
		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, twoPages.ID, top[0].PostID)
		assert.InDelta(t, 10.0, top[0].MetricValue, 1e-9)
	})

	t.Run("unknown metric falls back to engagement rate", func(t *testing.T) {
		top, err := s.samples.TopPosts(ctx, 30, 10, models.TopPostMetric("virality"))
		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, highRate.ID, top[0].PostID)
	})

	t.Run("limit", func(t *testing.T) {
		top, err := s.samples.TopPosts(ctx, 30, 1, models.TopPostMetricEngagementRate)
		require.NoError(t, err)
		assert.Len(t, top, 1)
	})

	t.Run("empty period", func(t *testing.T) {
		top, err := s.samples.TopPosts(ctx, 1, 10, models.TopPostMetricEngagementRate)
		require.NoError(t, err)
		assert.Empty(t, top)
	})
}

func TestMetricSampleRepository_Summary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.fixtures.CreatePublishedPost(testingutil.PostOptions{Destinations: []string{"page-a", "page-b"}}, fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	_, err = s.samples.Upsert(ctx, post.Publications[0].ID, models.RawCounts{Likes: 10, Comments: 5, Shares: 2, Impressions: 100})
	require.NoError(t, err)
	_, err = s.samples.Upsert(ctx, post.Publications[1].ID, models.RawCounts{Likes: 4, Impressions: 100})
	require.NoError(t, err)
	_, err = s.fixtures.CreatePublishedPost(testingutil.PostOptions{}, fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	_, err = s.fixtures.CreatePost(testingutil.PostOptions{Destinations: []string{"page-a"}})
	require.NoError(t, err)

	summary, err := s.samples.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalPosts)
	assert.Equal(t, int64(14), summary.TotalLikes)
	assert.Equal(t, int64(5), summary.TotalComments)
	assert.Equal(t, int64(2), summary.TotalShares)
	assert.Equal(t, int64(200), summary.TotalImpressions)
	assert.InDelta(t, 0.15, summary.AvgEngagementRate, 1e-9)
}
