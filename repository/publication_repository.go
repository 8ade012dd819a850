package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/page-pilot/models"
	"gorm.io/gorm"
)

const unknownPublishError = "unknown error"

// ErrPublicationAlreadyDispatched is returned when a publication is final or claimed by another dispatcher
var ErrPublicationAlreadyDispatched = errors.New("publication already dispatched")

// PublicationRepositoryImpl implements the PublicationRepository interface
type PublicationRepositoryImpl struct {
	*BaseRepository[models.Publication, models.PublicationFilter]
}

// NewPublicationRepository creates a new publication repository
func NewPublicationRepository(db *gorm.DB) PublicationRepository {
	return &PublicationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Publication, models.PublicationFilter](db),
	}
}

// DueScheduledWork returns pending publications whose post is scheduled at or before now,
// earliest scheduled time first. Each publication carries its post.
func (r *PublicationRepositoryImpl) DueScheduledWork(ctx context.Context, now time.Time) ([]*models.Publication, error) {
	var pubs []*models.Publication
	err := r.getDB(ctx).
		Joins("JOIN posts ON posts.id = publications.post_id").
		Where("publications.status = ?", models.PublicationStatusPending).
		Where("posts.status = ?", models.PostStatusScheduled).
		Where("posts.scheduled_time IS NOT NULL AND posts.scheduled_time <= ?", now.UTC()).
		Order("posts.scheduled_time ASC").
		Order("publications.id ASC").
		Preload("Post").
		Find(&pubs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load due scheduled work: %w", err)
	}
	return pubs, nil
}

// PendingByPost returns the pending publications of one post with the post preloaded
func (r *PublicationRepositoryImpl) PendingByPost(ctx context.Context, postID uint) ([]*models.Publication, error) {
	status := models.PublicationStatusPending
	var pubs []*models.Publication
	query := r.applyFilter(r.getDB(ctx).Model(&models.Publication{}), models.PublicationFilter{PostID: &postID, Status: &status})
	if err := query.Order("id ASC").Preload("Post").Find(&pubs).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending publications of post %d: %w", postID, err)
	}
	return pubs, nil
}

// ListByPost returns every publication of a post
func (r *PublicationRepositoryImpl) ListByPost(ctx context.Context, postID uint) ([]*models.Publication, error) {
	return r.ByFilter(ctx, models.PublicationFilter{PostID: &postID}, "id ASC", 0, 0)
}

// ClaimForDispatch takes a pending publication for the caller. It reports false when the row is
// no longer pending or another dispatcher claimed it less than lease ago.
func (r *PublicationRepositoryImpl) ClaimForDispatch(ctx context.Context, id uint, lease time.Duration) (bool, error) {
	now := r.clock()
	claimed := false
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Publication{}).
			Where("id = ? AND status = ?", id, models.PublicationStatusPending).
			Where("(claimed_at IS NULL OR claimed_at < ?)", now.Add(-lease)).
			Updates(map[string]any{"claimed_at": now, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to claim publication %d: %w", id, res.Error)
		}
		claimed = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// RecordOutcome stores the result of a dispatch attempt on a pending publication.
// published_at is set only for published outcomes; failed outcomes always carry a message.
// A publication with a final status is never rewritten: ErrPublicationAlreadyDispatched is returned.
func (r *PublicationRepositoryImpl) RecordOutcome(ctx context.Context, id uint, outcome models.PublicationOutcome) error {
	if !outcome.Status.Valid() {
		return fmt.Errorf("invalid publication status %q", outcome.Status)
	}

	now := r.clock()
	updates := map[string]any{
		"status":     outcome.Status,
		"updated_at": now,
	}

	switch outcome.Status {
	case models.PublicationStatusPublished:
		if outcome.ExternalID == nil || strings.TrimSpace(*outcome.ExternalID) == "" {
			return fmt.Errorf("published outcome for publication %d requires an external id", id)
		}
		updates["external_id"] = *outcome.ExternalID
		updates["published_at"] = now
		updates["error_message"] = nil
	case models.PublicationStatusFailed:
		msg := unknownPublishError
		if outcome.ErrorMessage != nil && strings.TrimSpace(*outcome.ErrorMessage) != "" {
			msg = *outcome.ErrorMessage
		}
		updates["error_message"] = msg
		updates["published_at"] = nil
	}

	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Publication{}).
			Where("id = ? AND status = ?", id, models.PublicationStatusPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to record outcome for publication %d: %w", id, res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var count int64
		if err := db.Model(&models.Publication{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up publication %d: %w", id, err)
		}
		if count == 0 {
			return fmt.Errorf("publication %d: %w", id, gorm.ErrRecordNotFound)
		}
		return fmt.Errorf("publication %d: %w", id, ErrPublicationAlreadyDispatched)
	})
}

// PublishedWithinWindow returns published publications from the last days, never-sampled first,
// then least recently sampled, capped at limit.
func (r *PublicationRepositoryImpl) PublishedWithinWindow(ctx context.Context, days, limit int) ([]*models.Publication, error) {
	since := r.clock().AddDate(0, 0, -days)

	query := r.getDB(ctx).
		Joins("LEFT JOIN metric_samples ON metric_samples.publication_id = publications.id").
		Where("publications.status = ?", models.PublicationStatusPublished).
		Where("publications.external_id IS NOT NULL AND publications.external_id <> ''").
		Where("publications.published_at >= ?", since).
		Order("CASE WHEN metric_samples.updated_at IS NULL THEN 0 ELSE 1 END ASC").
		Order("metric_samples.updated_at ASC").
		Order("publications.id ASC").
		Preload("Post")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var pubs []*models.Publication
	if err := query.Find(&pubs).Error; err != nil {
		return nil, fmt.Errorf("failed to load publications for refresh: %w", err)
	}
	return pubs, nil
}

// CountByStatus returns how many publications are in each status
func (r *PublicationRepositoryImpl) CountByStatus(ctx context.Context) (map[models.PublicationStatus]int64, error) {
	type row struct {
		Status models.PublicationStatus
		Total  int64
	}
	var rows []row
	if err := r.getDB(ctx).Model(&models.Publication{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count publications: %w", err)
	}

	out := make(map[models.PublicationStatus]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.Total
	}
	return out, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *PublicationRepositoryImpl) applyFilter(query *gorm.DB, filter models.PublicationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("publications.id = ?", *filter.ID)
	}
	if filter.PostID != nil {
		query = query.Where("publications.post_id = ?", *filter.PostID)
	}
	if filter.DestinationID != nil {
		query = query.Where("publications.destination_id = ?", *filter.DestinationID)
	}
	if filter.Status != nil {
		query = query.Where("publications.status = ?", *filter.Status)
	}
	if filter.PublishedAfter != nil {
		query = query.Where("publications.published_at >= ?", *filter.PublishedAfter)
	}
	if filter.PublishedBefore != nil {
		query = query.Where("publications.published_at < ?", *filter.PublishedBefore)
	}
	return query
}

// ByFilter retrieves publications based on filter criteria
func (r *PublicationRepositoryImpl) ByFilter(ctx context.Context, filter models.PublicationFilter, orderBy string, limit, offset int) ([]*models.Publication, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Publication{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var pubs []*models.Publication
	if err := query.Find(&pubs).Error; err != nil {
		return nil, err
	}
	return pubs, nil
}

// Count returns the number of publications matching the filter
func (r *PublicationRepositoryImpl) Count(ctx context.Context, filter models.PublicationFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Publication{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any publication matching the filter exists
func (r *PublicationRepositoryImpl) Exists(ctx context.Context, filter models.PublicationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
