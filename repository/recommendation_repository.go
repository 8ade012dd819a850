package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/page-pilot/models"
	"gorm.io/gorm"
)

// RecommendationRepositoryImpl implements the RecommendationRepository interface
type RecommendationRepositoryImpl struct {
	*BaseRepository[models.Recommendation, models.RecommendationFilter]
}

// NewRecommendationRepository creates a new recommendation repository
func NewRecommendationRepository(db *gorm.DB) RecommendationRepository {
	return &RecommendationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Recommendation, models.RecommendationFilter](db),
	}
}

// SaveSnapshot persists a new immutable snapshot
func (r *RecommendationRepositoryImpl) SaveSnapshot(ctx context.Context, rec *models.Recommendation) error {
	if rec == nil {
		return errors.New("recommendation snapshot is nil")
	}
	if rec.ID != 0 {
		return models.ErrImmutableRecommendation
	}
	if rec.Status == "" {
		rec.Status = models.RecommendationStatusCompleted
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("invalid recommendation status %q", rec.Status)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.clock()
	}
	return r.Save(ctx, rec)
}

// LatestCompleted returns the active recommendation, nil when none exists
func (r *RecommendationRepositoryImpl) LatestCompleted(ctx context.Context) (*models.Recommendation, error) {
	status := models.RecommendationStatusCompleted
	recs, err := r.ByFilter(ctx, models.RecommendationFilter{Status: &status}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// HasRecent reports whether a completed snapshot built from at least one post
// was created within the last days. Default-only snapshots never count.
func (r *RecommendationRepositoryImpl) HasRecent(ctx context.Context, days int) (bool, error) {
	status := models.RecommendationStatusCompleted
	since := r.clock().AddDate(0, 0, -days)
	return r.Exists(ctx, models.RecommendationFilter{Status: &status, CreatedAfter: &since, WithPostsOnly: true})
}

// History returns the most recent snapshots, newest first
func (r *RecommendationRepositoryImpl) History(ctx context.Context, limit int) ([]*models.Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.ByFilter(ctx, models.RecommendationFilter{}, "", limit, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *RecommendationRepositoryImpl) applyFilter(query *gorm.DB, filter models.RecommendationFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Locale != nil {
		query = query.Where("locale = ?", *filter.Locale)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.WithPostsOnly {
		query = query.Where("analyzed_posts_count > 0")
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves snapshots based on filter criteria
func (r *RecommendationRepositoryImpl) ByFilter(ctx context.Context, filter models.RecommendationFilter, orderBy string, limit, offset int) ([]*models.Recommendation, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Recommendation{}), filter)
	query = paginate(query, orderBy, "created_at DESC, id DESC", limit, offset)

	var recs []*models.Recommendation
	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	return recs, nil
}

// Count returns the number of snapshots matching the filter
func (r *RecommendationRepositoryImpl) Count(ctx context.Context, filter models.RecommendationFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Recommendation{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any snapshot matching the filter exists
func (r *RecommendationRepositoryImpl) Exists(ctx context.Context, filter models.RecommendationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
