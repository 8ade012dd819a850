package dto

import (
	"time"
)

// CreatePostRequest represents the request to create a post for one or more destinations.
// A missing scheduled_time keeps the post as a draft.
type CreatePostRequest struct {
	Content        string     `json:"content" validate:"required,max=5000"`
	Link           *string    `json:"link,omitempty" validate:"omitempty,url"`
	ImageURLs      []string   `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,required"`
	IsAIGenerated  bool       `json:"is_ai_generated"`
	ScheduledTime  *time.Time `json:"scheduled_time,omitempty"`
	DestinationIDs []string   `json:"destination_ids" validate:"required,min=1,dive,required,max=64"`
}

type MetricSampleDTO struct {
	Likes          int64            `json:"likes"`
	Comments       int64            `json:"comments"`
	Shares         int64            `json:"shares"`
	Impressions    int64            `json:"impressions"`
	Reach          int64            `json:"reach"`
	EngagedUsers   int64            `json:"engaged_users"`
	Clicks         int64            `json:"clicks"`
	Reactions      map[string]int64 `json:"reactions,omitempty"`
	EngagementRate float64          `json:"engagement_rate"`
	CollectedAt    string           `json:"collected_at"`
}

type PublicationDTO struct {
	ID              uint             `json:"id"`
	DestinationID   string           `json:"destination_id"`
	DestinationName string           `json:"destination_name"`
	ExternalID      *string          `json:"external_id,omitempty"`
	Status          string           `json:"status"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	PublishedAt     *string          `json:"published_at,omitempty"`
	Metrics         *MetricSampleDTO `json:"metrics,omitempty"`
}

type PostDTO struct {
	ID            uint             `json:"id"`
	UUID          string           `json:"uuid"`
	Content       string           `json:"content"`
	Link          *string          `json:"link,omitempty"`
	ImageURLs     []string         `json:"image_urls"`
	IsAIGenerated bool             `json:"is_ai_generated"`
	Status        string           `json:"status"`
	ScheduledTime *string          `json:"scheduled_time,omitempty"`
	PublishedAt   *string          `json:"published_at,omitempty"`
	CreatedAt     string           `json:"created_at"`
	Publications  []PublicationDTO `json:"publications,omitempty"`
}

// ListPostsRequest filters and pages the post list
type ListPostsRequest struct {
	Status   string `query:"status" validate:"omitempty,oneof=draft scheduled published failed"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

type ListPostsResponse struct {
	Items    []PostDTO `json:"items"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

type PublishNowResponse struct {
	PostID    uint     `json:"post_id"`
	Status    string   `json:"status"`
	Published int      `json:"published"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

type DeletePostResponse struct {
	Message       string `json:"message"`
	RemoteDeleted int    `json:"remote_deleted"`
	RemoteFailed  int    `json:"remote_failed"`
}
