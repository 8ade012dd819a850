package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/utils"
	"gorm.io/gorm"
)

// AdminRepositoryImpl implements AdminRepository interface
type AdminRepositoryImpl struct {
	*BaseRepository[models.Admin, models.AdminFilter]
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &AdminRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Admin, models.AdminFilter](db),
	}
}

// ByUsername retrieves an admin by username
func (r *AdminRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.Admin, error) {
	admins, err := r.ByFilter(ctx, models.AdminFilter{Username: &username}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, nil
	}
	return admins[0], nil
}

// UpsertCredentials creates the admin or replaces its password hash; used to seed the
// configured operator at startup
func (r *AdminRepositoryImpl) UpsertCredentials(ctx context.Context, username, passwordHash string) (*models.Admin, error) {
	var admin models.Admin
	err := r.write(ctx, func(db *gorm.DB) error {
		err := db.Where("username = ?", username).First(&admin).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			admin = models.Admin{
				Username:     username,
				PasswordHash: passwordHash,
				IsActive:     utils.ToPtr(true),
			}
			return db.Create(&admin).Error
		}
		if err != nil {
			return err
		}
		if admin.PasswordHash == passwordHash {
			return nil
		}
		admin.PasswordHash = passwordHash
		return db.Model(&admin).Updates(map[string]any{
			"password_hash": passwordHash,
			"updated_at":    r.clock(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// TouchLastLogin records a successful login
func (r *AdminRepositoryImpl) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.getDB(ctx).Model(&models.Admin{}).Where("id = ?", id).Updates(map[string]any{
		"last_login_at": at.UTC(),
		"updated_at":    r.clock(),
	}).Error
}

// applyFilter applies filter criteria to a GORM query
func (r *AdminRepositoryImpl) applyFilter(query *gorm.DB, filter models.AdminFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Username != nil {
		query = query.Where("username = ?", *filter.Username)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves admins based on filter criteria
func (r *AdminRepositoryImpl) ByFilter(ctx context.Context, filter models.AdminFilter, orderBy string, limit, offset int) ([]*models.Admin, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Admin{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var admins []*models.Admin
	if err := query.Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}

// Count returns the number of admins matching the filter
func (r *AdminRepositoryImpl) Count(ctx context.Context, filter models.AdminFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Admin{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any admin matching the filter exists
func (r *AdminRepositoryImpl) Exists(ctx context.Context, filter models.AdminFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
