// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/page-pilot/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AdminRepository defines operations for admins
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	UpsertCredentials(ctx context.Context, username, passwordHash string) (*models.Admin, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// PostRepository defines operations for posts
type PostRepository interface {
	Repository[models.Post, models.PostFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Post, error)
	// ByIDWithPublications loads the post with its publications and their samples
	ByIDWithPublications(ctx context.Context, id uint) (*models.Post, error)
	UpdateStatus(ctx context.Context, id uint, status models.PostStatus) error
	// AdvanceAfterDispatch derives the post status from its publications
	AdvanceAfterDispatch(ctx context.Context, id uint) (models.PostStatus, error)
	DeleteCascade(ctx context.Context, id uint) error
}

// PublicationRepository defines operations for publications
type PublicationRepository interface {
	Repository[models.Publication, models.PublicationFilter]
	DueScheduledWork(ctx context.Context, now time.Time) ([]*models.Publication, error)
	PendingByPost(ctx context.Context, postID uint) ([]*models.Publication, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Publication, error)
	// ClaimForDispatch marks a pending publication as taken; false means another dispatcher owns it
	// or it is already final
	ClaimForDispatch(ctx context.Context, id uint, lease time.Duration) (bool, error)
	RecordOutcome(ctx context.Context, id uint, outcome models.PublicationOutcome) error
	PublishedWithinWindow(ctx context.Context, days, limit int) ([]*models.Publication, error)
	CountByStatus(ctx context.Context) (map[models.PublicationStatus]int64, error)
}

// MetricSampleRepository defines operations for metric samples
type MetricSampleRepository interface {
	Upsert(ctx context.Context, publicationID uint, counts models.RawCounts) (*models.MetricSample, error)
	ByPublicationID(ctx context.Context, publicationID uint) (*models.MetricSample, error)
	CountByPublicationID(ctx context.Context, publicationID uint) (int64, error)
	TopPosts(ctx context.Context, periodDays, limit int, metric models.TopPostMetric) ([]*models.TopPost, error)
	Summary(ctx context.Context) (*models.AnalyticsSummary, error)
}

// RecommendationRepository defines operations for recommendation snapshots.
// Snapshots are immutable, so there is no update operation.
type RecommendationRepository interface {
	Repository[models.Recommendation, models.RecommendationFilter]
	SaveSnapshot(ctx context.Context, rec *models.Recommendation) error
	LatestCompleted(ctx context.Context) (*models.Recommendation, error)
	HasRecent(ctx context.Context, days int) (bool, error)
	History(ctx context.Context, limit int) ([]*models.Recommendation, error)
}
