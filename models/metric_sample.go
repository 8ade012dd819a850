package models

import (
	"time"
	"unicode/utf8"

	"github.com/amirphl/page-pilot/utils"
)

// Engagement weights: a comment is worth two reactions, a share three
const (
	commentWeight = 2
	shareWeight   = 3
)

// RawCounts are the engagement numbers reported by the social platform for one published item
type RawCounts struct {
	Likes        int64            `json:"likes"`
	Comments     int64            `json:"comments"`
	Shares       int64            `json:"shares"`
	Impressions  int64            `json:"impressions"`
	Reach        int64            `json:"reach"`
	EngagedUsers int64            `json:"engaged_users"`
	Clicks       int64            `json:"clicks"`
	Reactions    map[string]int64 `json:"reactions,omitempty"`
}

// Normalized returns a copy with every negative count clamped to zero
func (c RawCounts) Normalized() RawCounts {
	clamp := func(v int64) int64 {
		if v < 0 {
			return 0
		}
		return v
	}
	out := RawCounts{
		Likes:        clamp(c.Likes),
		Comments:     clamp(c.Comments),
		Shares:       clamp(c.Shares),
		Impressions:  clamp(c.Impressions),
		Reach:        clamp(c.Reach),
		EngagedUsers: clamp(c.EngagedUsers),
		Clicks:       clamp(c.Clicks),
	}
	if len(c.Reactions) > 0 {
		out.Reactions = make(map[string]int64, len(c.Reactions))
		for k, v := range c.Reactions {
			out.Reactions[k] = clamp(v)
		}
	}
	return out
}

// EngagementRate computes (likes + 2*comments + 3*shares) / impressions rounded to 4 decimals.
// Zero impressions yield 0.
func EngagementRate(likes, comments, shares, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	weighted := float64(max(likes, 0) + commentWeight*max(comments, 0) + shareWeight*max(shares, 0))
	return utils.RoundTo(weighted/float64(impressions), 4)
}

// ContentMetadata describes the shape of a post at the time its metrics were captured
type ContentMetadata struct {
	TextLength int
	HourOfDay  *int
	DayOfWeek  *int
	HasLink    bool
	HasImages  bool
	ImageCount int
}

// ComputeContentMetadata derives metadata from the post's current content. Hour and day are taken
// from publishedAt in loc (Monday = 0) and stay nil when the publish time is unknown.
func ComputeContentMetadata(post *Post, publishedAt *time.Time, loc *time.Location) ContentMetadata {
	meta := ContentMetadata{}
	if post == nil {
		return meta
	}
	meta.TextLength = utf8.RuneCountInString(post.Content)
	meta.HasLink = post.HasLink()
	meta.ImageCount = len(post.ImageURLs)
	meta.HasImages = meta.ImageCount > 0

	if publishedAt != nil && !publishedAt.IsZero() {
		if loc == nil {
			loc = time.UTC
		}
		t := publishedAt.In(loc)
		hour := t.Hour()
		day := (int(t.Weekday()) + 6) % 7
		meta.HourOfDay = &hour
		meta.DayOfWeek = &day
	}
	return meta
}

// MetricSample holds the latest engagement snapshot of one publication.
// Table: metric_samples
// Exactly one row per publication: every refresh overwrites the previous values.
type MetricSample struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	PublicationID  uint             `gorm:"not null;uniqueIndex:uk_metric_samples_publication_id" json:"publication_id"`
	Likes          int64            `gorm:"not null;default:0" json:"likes"`
	Comments       int64            `gorm:"not null;default:0" json:"comments"`
	Shares         int64            `gorm:"not null;default:0" json:"shares"`
	Impressions    int64            `gorm:"not null;default:0" json:"impressions"`
	Reach          int64            `gorm:"not null;default:0" json:"reach"`
	EngagedUsers   int64            `gorm:"not null;default:0" json:"engaged_users"`
	Clicks         int64            `gorm:"not null;default:0" json:"clicks"`
	Reactions      map[string]int64 `gorm:"serializer:json;type:text" json:"reactions,omitempty"`
	EngagementRate float64          `gorm:"not null;default:0" json:"engagement_rate"`

	TextLength int  `gorm:"not null;default:0" json:"text_length"`
	HourOfDay  *int `json:"hour_of_day,omitempty"`
	DayOfWeek  *int `json:"day_of_week,omitempty"`
	HasLink    bool `gorm:"not null;default:false" json:"has_link"`
	HasImages  bool `gorm:"not null;default:false" json:"has_images"`
	ImageCount int  `gorm:"not null;default:0" json:"image_count"`

	CollectedAt time.Time `gorm:"not null" json:"collected_at"`
	UpdatedAt   time.Time `gorm:"not null;index:idx_metric_samples_updated_at" json:"updated_at"`
}

func (MetricSample) TableName() string { return "metric_samples" }

// NewMetricSample builds the row for a publication from raw counts and content metadata
func NewMetricSample(publicationID uint, counts RawCounts, meta ContentMetadata, now time.Time) *MetricSample {
	c := counts.Normalized()
	return &MetricSample{
		PublicationID:  publicationID,
		Likes:          c.Likes,
		Comments:       c.Comments,
		Shares:         c.Shares,
		Impressions:    c.Impressions,
		Reach:          c.Reach,
		EngagedUsers:   c.EngagedUsers,
		Clicks:         c.Clicks,
		Reactions:      c.Reactions,
		EngagementRate: EngagementRate(c.Likes, c.Comments, c.Shares, c.Impressions),
		TextLength:     meta.TextLength,
		HourOfDay:      meta.HourOfDay,
		DayOfWeek:      meta.DayOfWeek,
		HasLink:        meta.HasLink,
		HasImages:      meta.HasImages,
		ImageCount:     meta.ImageCount,
		CollectedAt:    now,
		UpdatedAt:      now,
	}
}

// TopPost is a post with metrics aggregated over all of its published destinations
type TopPost struct {
	PostID            uint       `json:"id"`
	Content           string     `json:"content"`
	Link              *string    `json:"link,omitempty"`
	ImageURLs         []string   `json:"image_urls"`
	IsAIGenerated     bool       `json:"is_ai_generated"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
	MetricValue       float64    `json:"metric_value"`
	AvgEngagementRate float64    `json:"avg_engagement_rate"`
	TotalLikes        int64      `json:"total_likes"`
	TotalComments     int64      `json:"total_comments"`
	TotalShares       int64      `json:"total_shares"`
	TotalImpressions  int64      `json:"total_impressions"`
	HourOfDay         *int       `json:"hour_of_day,omitempty"`
	DayOfWeek         *int       `json:"day_of_week,omitempty"`
	TextLength        int        `json:"text_length"`
	HasLink           bool       `json:"has_link"`
	HasImages         bool       `json:"has_images"`
	ImageCount        float64    `json:"image_count"`
}

// TopPostMetric selects the ranking column for top posts
type TopPostMetric string

const (
	TopPostMetricEngagementRate TopPostMetric = "engagement_rate"
	TopPostMetricLikes          TopPostMetric = "likes"
	TopPostMetricComments       TopPostMetric = "comments"
	TopPostMetricShares         TopPostMetric = "shares"
	TopPostMetricImpressions    TopPostMetric = "impressions"
)

// ParseTopPostMetric maps unknown names to engagement_rate
func ParseTopPostMetric(name string) TopPostMetric {
	switch m := TopPostMetric(name); m {
	case TopPostMetricEngagementRate, TopPostMetricLikes, TopPostMetricComments,
		TopPostMetricShares, TopPostMetricImpressions:
		return m
	default:
		return TopPostMetricEngagementRate
	}
}

// AnalyticsSummary holds totals across all published posts
type AnalyticsSummary struct {
	TotalPosts        int64   `json:"total_posts"`
	TotalLikes        int64   `json:"total_likes"`
	TotalComments     int64   `json:"total_comments"`
	TotalShares       int64   `json:"total_shares"`
	TotalImpressions  int64   `json:"total_impressions"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
}
