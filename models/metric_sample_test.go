package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngagementRate(t *testing.T) {
	tests := []struct {
		name                                  string
		likes, comments, shares, impressions int64
		expected                              float64
	}{
		{name: "no impressions", expected: 0},
		{name: "likes without impressions", likes: 50, comments: 3, expected: 0},
		{name: "weighted", likes: 10, comments: 5, shares: 2, impressions: 100, expected: 0.26},
		{name: "rounded to four decimals", likes: 1, impressions: 3, expected: 0.3333},
		{name: "negative counts clamp", likes: -5, comments: 1, impressions: 10, expected: 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := EngagementRate(tt.likes, tt.comments, tt.shares, tt.impressions)
			assert.InDelta(t, tt.expected, rate, 1e-9)
			assert.GreaterOrEqual(t, rate, 0.0)
		})
	}
}

func TestRawCountsNormalized(t *testing.T) {
	c := RawCounts{Likes: -1, Comments: 2, Shares: -3, Impressions: 4, Reactions: map[string]int64{"love": -2, "wow": 1}}
	n := c.Normalized()

	assert.Equal(t, int64(0), n.Likes)
	assert.Equal(t, int64(2), n.Comments)
	assert.Equal(t, int64(0), n.Shares)
	assert.Equal(t, int64(0), n.Reactions["love"])
	assert.Equal(t, int64(1), n.Reactions["wow"])
	assert.Equal(t, int64(-2), c.Reactions["love"], "original must not be modified")
}

func TestComputeContentMetadata(t *testing.T) {
	link := "https://example.com"
	post := &Post{Content: "Привіт світ", Link: &link, ImageURLs: []string{"a.jpg", "b.jpg"}}

	t.Run("with publish time", func(t *testing.T) {
		// Wednesday
		published := time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)
		meta := ComputeContentMetadata(post, &published, time.UTC)

		assert.Equal(t, 11, meta.TextLength)
		assert.True(t, meta.HasLink)
		assert.True(t, meta.HasImages)
		assert.Equal(t, 2, meta.ImageCount)
		require.NotNil(t, meta.HourOfDay)
		require.NotNil(t, meta.DayOfWeek)
		assert.Equal(t, 14, *meta.HourOfDay)
		assert.Equal(t, 2, *meta.DayOfWeek)
	})

	t.Run("location shifts hour and day", func(t *testing.T) {
		kyiv := time.FixedZone("EET", 2*60*60)
		// Sunday 23:00 UTC is Monday 01:00 in UTC+2
		published := time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC)
		meta := ComputeContentMetadata(post, &published, kyiv)

		assert.Equal(t, 1, *meta.HourOfDay)
		assert.Equal(t, 0, *meta.DayOfWeek)
	})

	t.Run("unknown publish time", func(t *testing.T) {
		meta := ComputeContentMetadata(&Post{Content: "x", Link: new(string)}, nil, time.UTC)
		assert.Nil(t, meta.HourOfDay)
		assert.Nil(t, meta.DayOfWeek)
		assert.False(t, meta.HasLink)
		assert.False(t, meta.HasImages)
	})
}

func TestParseTopPostMetric(t *testing.T) {
	assert.Equal(t, TopPostMetricLikes, ParseTopPostMetric("likes"))
	assert.Equal(t, TopPostMetricImpressions, ParseTopPostMetric("impressions"))
	assert.Equal(t, TopPostMetricEngagementRate, ParseTopPostMetric("virality"))
	assert.Equal(t, TopPostMetricEngagementRate, ParseTopPostMetric(""))
}

func TestNewMetricSample(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hour := 9
	s := NewMetricSample(7, RawCounts{Likes: 10, Comments: 5, Shares: 2, Impressions: 100, Clicks: -4},
		ContentMetadata{TextLength: 120, HourOfDay: &hour}, now)

	assert.Equal(t, uint(7), s.PublicationID)
	assert.InDelta(t, 0.26, s.EngagementRate, 1e-9)
	assert.Equal(t, int64(0), s.Clicks)
	assert.Equal(t, 120, s.TextLength)
	assert.Equal(t, now, s.CollectedAt)
	assert.Equal(t, now, s.UpdatedAt)
}
