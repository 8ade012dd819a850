package dto

// TopPostsRequest selects the ranking window and column
type TopPostsRequest struct {
	Days   int    `query:"days" validate:"omitempty,min=1,max=365"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Metric string `query:"metric" validate:"omitempty,oneof=engagement_rate likes comments shares impressions"`
}

type TopPostDTO struct {
	PostID            uint     `json:"id"`
	Content           string   `json:"content"`
	Link              *string  `json:"link,omitempty"`
	ImageURLs         []string `json:"image_urls"`
	IsAIGenerated     bool     `json:"is_ai_generated"`
	PublishedAt       *string  `json:"published_at,omitempty"`
	MetricValue       float64  `json:"metric_value"`
	AvgEngagementRate float64  `json:"avg_engagement_rate"`
	TotalLikes        int64    `json:"total_likes"`
	TotalComments     int64    `json:"total_comments"`
	TotalShares       int64    `json:"total_shares"`
	TotalImpressions  int64    `json:"total_impressions"`
	HourOfDay         *int     `json:"hour_of_day,omitempty"`
	DayOfWeek         *int     `json:"day_of_week,omitempty"`
	TextLength        int      `json:"text_length"`
	HasLink           bool     `json:"has_link"`
	HasImages         bool     `json:"has_images"`
	ImageCount        float64  `json:"image_count"`
}

type TopPostsResponse struct {
	Days   int          `json:"days"`
	Metric string       `json:"metric"`
	Items  []TopPostDTO `json:"items"`
}

type AnalyticsSummaryResponse struct {
	TotalPosts           int64            `json:"total_posts"`
	TotalLikes           int64            `json:"total_likes"`
	TotalComments        int64            `json:"total_comments"`
	TotalShares          int64            `json:"total_shares"`
	TotalImpressions     int64            `json:"total_impressions"`
	AvgEngagementRate    float64          `json:"avg_engagement_rate"`
	PublicationsByStatus map[string]int64 `json:"publications_by_status"`
	BestPosts            []TopPostDTO     `json:"best_posts"`
}

type CollectMetricsResponse struct {
	PostID    uint     `json:"post_id"`
	Collected int      `json:"collected"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}
