// Package models contains the persisted entities of the posting and analytics store
package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/page-pilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxPostContentLength is the longest post body accepted for publishing
const MaxPostContentLength = 5000

// PostStatus represents the lifecycle state of a post
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// String returns the string representation of the status
func (s PostStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished, PostStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed
func (s PostStatus) Terminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed
}

// Scan implements the sql.Scanner interface for PostStatus
func (s *PostStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = PostStatus(v)
	case []byte:
		*s = PostStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PostStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PostStatus
func (s PostStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid PostStatus: %s", s)
	}
	return string(s), nil
}

// Post is a piece of content delivered to one or more destinations.
// Table: posts
// ImageURLs keeps the caller's ordering and is stored as a JSON array.
type Post struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_posts_uuid" json:"uuid"`
	UserID        uint       `gorm:"not null;index:idx_posts_user_id" json:"user_id"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	Link          *string    `gorm:"type:text" json:"link,omitempty"`
	ImageURLs     []string   `gorm:"serializer:json;type:text" json:"image_urls"`
	IsAIGenerated bool       `gorm:"not null;default:false" json:"is_ai_generated"`
	Status        PostStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_posts_status_scheduled_time,priority:1" json:"status"`
	ScheduledTime *time.Time `gorm:"index:idx_posts_status_scheduled_time,priority:2" json:"scheduled_time,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Publications []Publication `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE" json:"publications,omitempty"`
}

func (Post) TableName() string { return "posts" }

// BeforeCreate fills identifiers, default status and timestamps
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PostStatusDraft
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	now := utils.UTCNow()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	return nil
}

// HasImages reports whether the post carries at least one image reference
func (p *Post) HasImages() bool {
	return len(p.ImageURLs) > 0
}

// HasLink reports whether the post carries a non-blank link
func (p *Post) HasLink() bool {
	return p.Link != nil && strings.TrimSpace(*p.Link) != ""
}

// CanTransitionTo enforces draft -> scheduled -> published|failed
func (p *Post) CanTransitionTo(newStatus PostStatus) bool {
	switch p.Status {
	case PostStatusDraft:
		return newStatus == PostStatusScheduled || newStatus == PostStatusPublished || newStatus == PostStatusFailed
	case PostStatusScheduled:
		return newStatus == PostStatusPublished || newStatus == PostStatusFailed
	default:
		return false
	}
}

// PostFilter represents filter criteria for posts
type PostFilter struct {
	ID              *uint       `json:"id,omitempty"`
	UUID            *uuid.UUID  `json:"uuid,omitempty"`
	UserID          *uint       `json:"user_id,omitempty"`
	Status          *PostStatus `json:"status,omitempty"`
	IsAIGenerated   *bool       `json:"is_ai_generated,omitempty"`
	ScheduledBefore *time.Time  `json:"scheduled_before,omitempty"`
	CreatedAfter    *time.Time  `json:"created_after,omitempty"`
	CreatedBefore   *time.Time  `json:"created_before,omitempty"`
}
