package dto

import "github.com/amirphl/page-pilot/models"

// GenerateRecommendationRequest overrides the configured analysis defaults for one run
type GenerateRecommendationRequest struct {
	PeriodDays int     `json:"period_days,omitempty" validate:"omitempty,min=1,max=365"`
	Limit      int     `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	UseAI      *bool   `json:"use_ai,omitempty"`
	Locale     *string `json:"locale,omitempty" validate:"omitempty,oneof=auto en uk"`
}

type RecommendationDTO struct {
	ID                 uint                   `json:"id"`
	UUID               string                 `json:"uuid"`
	PeriodStart        string                 `json:"period_start"`
	PeriodEnd          string                 `json:"period_end"`
	AnalyzedPostsCount int                    `json:"analyzed_posts_count"`
	Locale             string                 `json:"locale"`
	Status             string                 `json:"status"`
	Patterns           models.Patterns        `json:"patterns"`
	Recommendations    models.Recommendations `json:"recommendations"`
	CreatedAt          string                 `json:"created_at"`
}

type RecommendationHistoryResponse struct {
	Items []RecommendationDTO `json:"items"`
}
