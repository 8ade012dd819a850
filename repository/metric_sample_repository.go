package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/amirphl/page-pilot/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// metricExpressions maps a ranking metric to its aggregate over metric_samples aliased m
var metricExpressions = map[models.TopPostMetric]string{
	models.TopPostMetricEngagementRate: "AVG(m.engagement_rate)",
	models.TopPostMetricLikes:          "SUM(m.likes)",
	models.TopPostMetricComments:       "SUM(m.comments)",
	models.TopPostMetricShares:         "SUM(m.shares)",
	models.TopPostMetricImpressions:    "SUM(m.impressions)",
}

// upsertColumns are overwritten on every refresh; collected_at keeps the first capture time
var upsertColumns = []string{
	"likes", "comments", "shares", "impressions", "reach", "engaged_users", "clicks",
	"reactions", "engagement_rate",
	"text_length", "hour_of_day", "day_of_week", "has_link", "has_images", "image_count",
	"updated_at",
}

// MetricSampleRepositoryImpl implements the MetricSampleRepository interface
type MetricSampleRepositoryImpl struct {
	*BaseRepository[models.MetricSample, struct{}]
	loc *time.Location
}

// NewMetricSampleRepository creates a metric sample repository; loc is the zone used to
// derive hour of day and day of week
func NewMetricSampleRepository(db *gorm.DB, loc *time.Location) MetricSampleRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &MetricSampleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MetricSample, struct{}](db),
		loc:            loc,
	}
}

// Upsert writes the single sample row of a publication, recomputing engagement rate and
// content metadata from the post's current content
func (r *MetricSampleRepositoryImpl) Upsert(ctx context.Context, publicationID uint, counts models.RawCounts) (*models.MetricSample, error) {
	var saved models.MetricSample

	err := r.write(ctx, func(db *gorm.DB) error {
		var pub models.Publication
		if err := db.Preload("Post").First(&pub, publicationID).Error; err != nil {
			return fmt.Errorf("failed to load publication %d: %w", publicationID, err)
		}

		publishedAt := pub.PublishedAt
		if publishedAt == nil && pub.Post != nil {
			publishedAt = pub.Post.PublishedAt
		}

		meta := models.ComputeContentMetadata(pub.Post, publishedAt, r.loc)
		sample := models.NewMetricSample(publicationID, counts, meta, r.clock())

		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "publication_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).Create(sample).Error; err != nil {
			return fmt.Errorf("failed to upsert metric sample for publication %d: %w", publicationID, err)
		}

		return db.Where("publication_id = ?", publicationID).First(&saved).Error
	})
	if err != nil {
		return nil, err
	}

	return &saved, nil
}

// ByPublicationID returns the current sample of a publication, nil when none was captured yet
func (r *MetricSampleRepositoryImpl) ByPublicationID(ctx context.Context, publicationID uint) (*models.MetricSample, error) {
	var sample models.MetricSample
	err := r.getDB(ctx).Where("publication_id = ?", publicationID).First(&sample).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sample, nil
}

// CountByPublicationID counts sample rows of a publication
func (r *MetricSampleRepositoryImpl) CountByPublicationID(ctx context.Context, publicationID uint) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.MetricSample{}).Where("publication_id = ?", publicationID).Count(&count).Error
	return count, err
}

type topPostRow struct {
	PostID            uint
	MetricValue       float64
	AvgEngagementRate float64
	TotalLikes        float64
	TotalComments     float64
	TotalShares       float64
	TotalImpressions  float64
	HourOfDay         *float64
	DayOfWeek         *float64
	TextLength        *float64
	HasLink           float64
	HasImages         float64
	ImageCount        *float64
}

// TopPosts ranks posts published within periodDays by the aggregated metric over all of their
// destinations. Posts without any engagement are left out. Unknown metrics rank by engagement rate.
func (r *MetricSampleRepositoryImpl) TopPosts(ctx context.Context, periodDays, limit int, metric models.TopPostMetric) ([]*models.TopPost, error) {
	expr, ok := metricExpressions[metric]
	if !ok {
		expr = metricExpressions[models.TopPostMetricEngagementRate]
	}
	since := r.clock().AddDate(0, 0, -periodDays)

	db := r.getDB(ctx)
	query := db.Table("posts AS p").
		Select(`p.id AS post_id,
			`+expr+` AS metric_value,
			AVG(m.engagement_rate) AS avg_engagement_rate,
			SUM(m.likes) AS total_likes,
			SUM(m.comments) AS total_comments,
			SUM(m.shares) AS total_shares,
			SUM(m.impressions) AS total_impressions,
			AVG(m.hour_of_day) AS hour_of_day,
			AVG(m.day_of_week) AS day_of_week,
			AVG(m.text_length) AS text_length,
			MAX(CASE WHEN m.has_link THEN 1 ELSE 0 END) AS has_link,
			MAX(CASE WHEN m.has_images THEN 1 ELSE 0 END) AS has_images,
			AVG(m.image_count) AS image_count`).
		Joins("JOIN publications AS pub ON pub.post_id = p.id").
		Joins("JOIN metric_samples AS m ON m.publication_id = pub.id").
		Where("pub.status = ?", models.PublicationStatusPublished).
		Where("pub.published_at >= ?", since).
		Group("p.id").
		Having(expr + " > 0 OR SUM(m.likes) + SUM(m.comments) + SUM(m.shares) > 0").
		Order("metric_value DESC").
		Order("p.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []topPostRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate top posts: %w", err)
	}
	if len(rows) == 0 {
		return []*models.TopPost{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PostID)
	}
	var posts []*models.Post
	if err := db.Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to load top posts: %w", err)
	}
	byID := make(map[uint]*models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	out := make([]*models.TopPost, 0, len(rows))
	for _, row := range rows {
		post, ok := byID[row.PostID]
		if !ok {
			continue
		}
		tp := &models.TopPost{
			PostID:            post.ID,
			Content:           post.Content,
			Link:              post.Link,
			ImageURLs:         post.ImageURLs,
			IsAIGenerated:     post.IsAIGenerated,
			PublishedAt:       post.PublishedAt,
			MetricValue:       row.MetricValue,
			AvgEngagementRate: row.AvgEngagementRate,
			TotalLikes:        int64(row.TotalLikes),
			TotalComments:     int64(row.TotalComments),
			TotalShares:       int64(row.TotalShares),
			TotalImpressions:  int64(row.TotalImpressions),
			HourOfDay:         roundedInt(row.HourOfDay),
			DayOfWeek:         roundedInt(row.DayOfWeek),
			HasLink:           row.HasLink > 0,
			HasImages:         row.HasImages > 0,
		}
		if row.TextLength != nil {
			tp.TextLength = int(math.Round(*row.TextLength))
		}
		if row.ImageCount != nil {
			tp.ImageCount = *row.ImageCount
		}
		out = append(out, tp)
	}

	return out, nil
}

// Summary returns totals across all published posts
func (r *MetricSampleRepositoryImpl) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	var row struct {
		TotalPosts        float64
		TotalLikes        float64
		TotalComments     float64
		TotalShares       float64
		TotalImpressions  float64
		AvgEngagementRate float64
	}

	err := r.getDB(ctx).Table("posts AS p").
		Select(`COUNT(DISTINCT p.id) AS total_posts,
			COALESCE(SUM(m.likes), 0) AS total_likes,
			COALESCE(SUM(m.comments), 0) AS total_comments,
			COALESCE(SUM(m.shares), 0) AS total_shares,
			COALESCE(SUM(m.impressions), 0) AS total_impressions,
			COALESCE(AVG(m.engagement_rate), 0) AS avg_engagement_rate`).
		Joins("LEFT JOIN publications AS pub ON pub.post_id = p.id").
		Joins("LEFT JOIN metric_samples AS m ON m.publication_id = pub.id").
		Where("p.status = ?", models.PostStatusPublished).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize analytics: %w", err)
	}

	return &models.AnalyticsSummary{
		TotalPosts:        int64(row.TotalPosts),
		TotalLikes:        int64(row.TotalLikes),
		TotalComments:     int64(row.TotalComments),
		TotalShares:       int64(row.TotalShares),
		TotalImpressions:  int64(row.TotalImpressions),
		AvgEngagementRate: math.Round(row.AvgEngagementRate*10000) / 10000,
	}, nil
}

func roundedInt(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}
