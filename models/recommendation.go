package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/page-pilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecommendationStatus represents the state of a recommendation snapshot
type RecommendationStatus string

const (
	RecommendationStatusPending   RecommendationStatus = "pending"
	RecommendationStatusCompleted RecommendationStatus = "completed"
	RecommendationStatusFailed    RecommendationStatus = "failed"
)

// Valid checks if the status is valid
func (s RecommendationStatus) Valid() bool {
	switch s {
	case RecommendationStatusPending, RecommendationStatusCompleted, RecommendationStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RecommendationStatus
func (s *RecommendationStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RecommendationStatus(v)
	case []byte:
		*s = RecommendationStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RecommendationStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RecommendationStatus
func (s RecommendationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RecommendationStatus: %s", s)
	}
	return string(s), nil
}

// TextLengthPattern is the recommended character range
type TextLengthPattern struct {
	Min int `json:"min"`
	Max int `json:"max"`
	Avg int `json:"avg"`
}

// Patterns are the statistics derived from top performing posts
type Patterns struct {
	TextLength         TextLengthPattern `json:"text_length"`
	BestHours          []int             `json:"best_hours"`
	BestDays           []string          `json:"best_days"`
	UseImages          bool              `json:"use_images"`
	OptimalImageCount  int               `json:"optimal_image_count"`
	UseLinks           bool              `json:"use_links"`
	AvgEngagement      float64           `json:"avg_engagement"`
	AnalyzedPostsCount int               `json:"analyzed_posts_count"`
	ImagesPercentage   float64           `json:"images_percentage"`
	LinksPercentage    float64           `json:"links_percentage"`
}

type TextLengthAdvice struct {
	Recommendation string `json:"recommendation"`
	Ideal          int    `json:"ideal"`
	Min            int    `json:"min"`
	Max            int    `json:"max"`
}

type PostingTimeAdvice struct {
	Recommendation string   `json:"recommendation"`
	Hours          []int    `json:"hours"`
	Days           []string `json:"days"`
}

type ImagesAdvice struct {
	Recommendation string `json:"recommendation"`
	Use            bool   `json:"use"`
	OptimalCount   int    `json:"optimal_count"`
	Detail         string `json:"detail"`
}

type LinksAdvice struct {
	Recommendation string  `json:"recommendation"`
	Use            bool    `json:"use"`
	Percentage     float64 `json:"percentage"`
}

type EngagementAdvice struct {
	Target float64 `json:"target"`
	Detail string  `json:"detail"`
}

// NarrativeInsights is free-text guidance produced by the narrative analysis step
type NarrativeInsights struct {
	ContentStyle    string   `json:"content_style"`
	EffectiveTopics []string `json:"effective_topics"`
	KeyPhrases      []string `json:"key_phrases"`
	Tone            string   `json:"tone"`
	StructureTips   string   `json:"structure_tips"`
	EmojiUsage      string   `json:"emoji_usage"`
	CallToAction    string   `json:"call_to_action"`
}

// Recommendations is the human facing guidance rendered from Patterns
type Recommendations struct {
	TextLength  TextLengthAdvice   `json:"text_length"`
	PostingTime PostingTimeAdvice  `json:"posting_time"`
	Images      ImagesAdvice       `json:"images"`
	Links       LinksAdvice        `json:"links"`
	Engagement  EngagementAdvice   `json:"engagement"`
	Summary     string             `json:"summary"`
	AIInsights  *NarrativeInsights `json:"ai_insights,omitempty"`
}

// Recommendation is an immutable snapshot of patterns and guidance for a period.
// Table: recommendations
// The most recent completed row is the active recommendation.
type Recommendation struct {
	ID                 uint                 `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:uk_recommendations_uuid" json:"uuid"`
	PeriodStart        time.Time            `gorm:"not null" json:"period_start"`
	PeriodEnd          time.Time            `gorm:"not null" json:"period_end"`
	AnalyzedPostsCount int                  `gorm:"not null;default:0" json:"analyzed_posts_count"`
	Patterns           Patterns             `gorm:"serializer:json;type:text;not null" json:"patterns"`
	Recommendations    Recommendations      `gorm:"serializer:json;type:text;not null" json:"recommendations"`
	Locale             Locale               `gorm:"type:varchar(8);not null;default:'uk'" json:"locale"`
	Status             RecommendationStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_recommendations_status_created_at,priority:1" json:"status"`
	CreatedAt          time.Time            `gorm:"not null;index:idx_recommendations_status_created_at,priority:2" json:"created_at"`
}

func (Recommendation) TableName() string { return "recommendations" }

// BeforeCreate fills identifiers and the creation time
func (r *Recommendation) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RecommendationStatusPending
	}
	if r.Locale == "" {
		r.Locale = LocaleUkrainian
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate rejects any modification of a stored snapshot
func (r *Recommendation) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecommendation
}

// RecommendationFilter represents filter criteria for recommendation snapshots
type RecommendationFilter struct {
	Status        *RecommendationStatus `json:"status,omitempty"`
	Locale        *Locale               `json:"locale,omitempty"`
	CreatedAfter  *time.Time            `json:"created_after,omitempty"`
	CreatedBefore *time.Time            `json:"created_before,omitempty"`
	WithPostsOnly bool                  `json:"with_posts_only,omitempty"`
}
