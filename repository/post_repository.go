package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/utils"
	"gorm.io/gorm"
)

// ErrInvalidStatusTransition is returned when a post would move backwards in its lifecycle
var ErrInvalidStatusTransition = errors.New("invalid post status transition")

// PostRepositoryImpl implements the PostRepository interface
type PostRepositoryImpl struct {
	*BaseRepository[models.Post, models.PostFilter]
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &PostRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Post, models.PostFilter](db),
	}
}

// ByIDWithPublications retrieves a post with its publications and their metric samples
func (r *PostRepositoryImpl) ByIDWithPublications(ctx context.Context, id uint) (*models.Post, error) {
	db := r.getDB(ctx)

	var post models.Post
	err := db.Preload("Publications", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("publications.id ASC")
	}).
		Preload("Publications.Sample").
		Last(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &post, nil
}

// ByUUID retrieves a post by UUID
func (r *PostRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Post, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	posts, err := r.ByFilter(ctx, models.PostFilter{UUID: &parsedUUID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}

	return posts[0], nil
}

// UpdateStatus moves a post to a new status, refusing regressions
func (r *PostRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.PostStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid post status %q", status)
	}

	return r.write(ctx, func(db *gorm.DB) error {
		var post models.Post
		if err := db.Select("id", "status").First(&post, id).Error; err != nil {
			return err
		}
		if post.Status == status {
			return nil
		}
		if !post.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, post.Status, status)
		}

		updates := map[string]any{
			"status":     status,
			"updated_at": r.clock(),
		}
		if status == models.PostStatusPublished {
			updates["published_at"] = r.clock()
		}
		return db.Model(&models.Post{}).Where("id = ?", id).Updates(updates).Error
	})
}

// AdvanceAfterDispatch recomputes the post status from its publications: published when every
// publication is published, failed when nothing is pending and at least one failed, unchanged otherwise.
func (r *PostRepositoryImpl) AdvanceAfterDispatch(ctx context.Context, id uint) (models.PostStatus, error) {
	var result models.PostStatus

	err := r.write(ctx, func(db *gorm.DB) error {
		var post models.Post
		if err := db.Select("id", "status").First(&post, id).Error; err != nil {
			return err
		}
		result = post.Status

		type row struct {
			Status models.PublicationStatus
			Total  int64
		}
		var rows []row
		if err := db.Model(&models.Publication{}).
			Select("status, COUNT(*) AS total").
			Where("post_id = ?", id).
			Group("status").
			Scan(&rows).Error; err != nil {
			return err
		}

		counts := make(map[models.PublicationStatus]int64, len(rows))
		var total int64
		for _, rw := range rows {
			counts[rw.Status] = rw.Total
			total += rw.Total
		}

		var next models.PostStatus
		switch {
		case total == 0:
			return nil
		case counts[models.PublicationStatusPublished] == total:
			next = models.PostStatusPublished
		case counts[models.PublicationStatusPending] == 0 && counts[models.PublicationStatusFailed] > 0:
			next = models.PostStatusFailed
		default:
			return nil
		}

		if next == post.Status || !post.CanTransitionTo(next) {
			return nil
		}

		now := r.clock()
		updates := map[string]any{"status": next, "updated_at": now}
		if next == models.PostStatusPublished {
			updates["published_at"] = now
		}
		if err := db.Model(&models.Post{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to advance post %d: %w", id, err)
	}

	return result, nil
}

// DeleteCascade removes a post together with its publications and their metric samples
func (r *PostRepositoryImpl) DeleteCascade(ctx context.Context, id uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		pubIDs := db.Model(&models.Publication{}).Select("id").Where("post_id = ?", id)
		if err := db.Where("publication_id IN (?)", pubIDs).Delete(&models.MetricSample{}).Error; err != nil {
			return fmt.Errorf("failed to delete metric samples of post %d: %w", id, err)
		}
		if err := db.Where("post_id = ?", id).Delete(&models.Publication{}).Error; err != nil {
			return fmt.Errorf("failed to delete publications of post %d: %w", id, err)
		}
		if err := db.Delete(&models.Post{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete post %d: %w", id, err)
		}
		return nil
	})
}

// applyFilter applies filter criteria to a GORM query
func (r *PostRepositoryImpl) applyFilter(query *gorm.DB, filter models.PostFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.IsAIGenerated != nil {
		query = query.Where("is_ai_generated = ?", *filter.IsAIGenerated)
	}
	if filter.ScheduledBefore != nil {
		query = query.Where("scheduled_time <= ?", *filter.ScheduledBefore)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves posts based on filter criteria
func (r *PostRepositoryImpl) ByFilter(ctx context.Context, filter models.PostFilter, orderBy string, limit, offset int) ([]*models.Post, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Post{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var posts []*models.Post
	if err := query.Preload("Publications").Find(&posts).Error; err != nil {
		return nil, err
	}

	return posts, nil
}

// Count returns the number of posts matching the filter
func (r *PostRepositoryImpl) Count(ctx context.Context, filter models.PostFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Post{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any post matching the filter exists
func (r *PostRepositoryImpl) Exists(ctx context.Context, filter models.PostFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
