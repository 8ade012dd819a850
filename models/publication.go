package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/page-pilot/utils"
	"gorm.io/gorm"
)

// PublicationStatus represents the delivery state of a post on one destination
type PublicationStatus string

const (
	PublicationStatusPending   PublicationStatus = "pending"
	PublicationStatusPublished PublicationStatus = "published"
	PublicationStatusFailed    PublicationStatus = "failed"
)

func (s PublicationStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s PublicationStatus) Valid() bool {
	switch s {
	case PublicationStatusPending, PublicationStatusPublished, PublicationStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PublicationStatus
func (s *PublicationStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = PublicationStatus(v)
	case []byte:
		*s = PublicationStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PublicationStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PublicationStatus
func (s PublicationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid PublicationStatus: %s", s)
	}
	return string(s), nil
}

// Publication is the delivery of one post to one destination (a managed page).
// Table: publications
// Indices: (post_id, destination_id) unique, status
// ExternalID is assigned by the social platform once the publish call succeeds.
// ClaimedAt marks a pending row taken by a dispatcher; a claim older than the dispatch lease is void.
type Publication struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	PostID          uint              `gorm:"not null;uniqueIndex:uk_publications_post_destination,priority:1" json:"post_id"`
	DestinationID   string            `gorm:"type:varchar(64);not null;uniqueIndex:uk_publications_post_destination,priority:2" json:"destination_id"`
	DestinationName string            `gorm:"type:varchar(255)" json:"destination_name"`
	ExternalID      *string           `gorm:"type:varchar(128)" json:"external_id,omitempty"`
	Status          PublicationStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_publications_status" json:"status"`
	ErrorMessage    *string           `gorm:"type:text" json:"error_message,omitempty"`
	PublishedAt     *time.Time        `gorm:"index:idx_publications_published_at" json:"published_at,omitempty"`
	ClaimedAt       *time.Time        `json:"-"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Post   *Post         `gorm:"foreignKey:PostID;references:ID" json:"post,omitempty"`
	Sample *MetricSample `gorm:"foreignKey:PublicationID;references:ID;constraint:OnDelete:CASCADE" json:"sample,omitempty"`
}

func (Publication) TableName() string { return "publications" }

// BeforeCreate fills default status and timestamps
func (p *Publication) BeforeCreate(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = PublicationStatusPending
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

// PublicationOutcome is the result of one dispatch attempt
type PublicationOutcome struct {
	Status       PublicationStatus
	ExternalID   *string
	ErrorMessage *string
}

// PublishedOutcome builds the outcome of a successful publish call
func PublishedOutcome(externalID string) PublicationOutcome {
	return PublicationOutcome{Status: PublicationStatusPublished, ExternalID: &externalID}
}

// FailedOutcome builds the outcome of a rejected or aborted publish attempt
func FailedOutcome(message string) PublicationOutcome {
	return PublicationOutcome{Status: PublicationStatusFailed, ErrorMessage: &message}
}

// PublicationFilter represents filter criteria for publications
type PublicationFilter struct {
	ID              *uint              `json:"id,omitempty"`
	PostID          *uint              `json:"post_id,omitempty"`
	DestinationID   *string            `json:"destination_id,omitempty"`
	Status          *PublicationStatus `json:"status,omitempty"`
	PublishedAfter  *time.Time         `json:"published_after,omitempty"`
	PublishedBefore *time.Time         `json:"published_before,omitempty"`
}
