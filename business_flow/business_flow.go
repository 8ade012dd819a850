package businessflow

import (
	"time"

	"github.com/amirphl/page-pilot/app/dto"
	"github.com/amirphl/page-pilot/models"
)

// ClientMetadata holds client information used for request logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func ToAdminDTOModel(admin models.Admin) dto.AdminDTO {
	return dto.AdminDTO{
		ID:          admin.ID,
		UUID:        admin.UUID.String(),
		Username:    admin.Username,
		IsActive:    admin.IsActive,
		LastLoginAt: formatTime(admin.LastLoginAt),
		CreatedAt:   admin.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToAdminSessionDTO(accessToken string, expiresAt, now time.Time) dto.AdminSessionDTO {
	return dto.AdminSessionDTO{
		AccessToken: accessToken,
		ExpiresIn:   int(expiresAt.Sub(now).Seconds()),
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		TokenType:   "Bearer",
	}
}

func ToMetricSampleDTO(s *models.MetricSample) *dto.MetricSampleDTO {
	if s == nil {
		return nil
	}
	return &dto.MetricSampleDTO{
		Likes:          s.Likes,
		Comments:       s.Comments,
		Shares:         s.Shares,
		Impressions:    s.Impressions,
		Reach:          s.Reach,
		EngagedUsers:   s.EngagedUsers,
		Clicks:         s.Clicks,
		Reactions:      s.Reactions,
		EngagementRate: s.EngagementRate,
		CollectedAt:    s.CollectedAt.UTC().Format(time.RFC3339),
	}
}

func ToPublicationDTO(p models.Publication) dto.PublicationDTO {
	return dto.PublicationDTO{
		ID:              p.ID,
		DestinationID:   p.DestinationID,
		DestinationName: p.DestinationName,
		ExternalID:      p.ExternalID,
		Status:          p.Status.String(),
		ErrorMessage:    p.ErrorMessage,
		PublishedAt:     formatTime(p.PublishedAt),
		Metrics:         ToMetricSampleDTO(p.Sample),
	}
}

func ToPostDTO(p models.Post) dto.PostDTO {
	images := p.ImageURLs
	if images == nil {
		images = []string{}
	}
	out := dto.PostDTO{
		ID:            p.ID,
		UUID:          p.UUID.String(),
		Content:       p.Content,
		Link:          p.Link,
		ImageURLs:     images,
		IsAIGenerated: p.IsAIGenerated,
		Status:        p.Status.String(),
		ScheduledTime: formatTime(p.ScheduledTime),
		PublishedAt:   formatTime(p.PublishedAt),
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, pub := range p.Publications {
		out.Publications = append(out.Publications, ToPublicationDTO(pub))
	}
	return out
}

func ToTopPostDTO(p models.TopPost) dto.TopPostDTO {
	images := p.ImageURLs
	if images == nil {
		images = []string{}
	}
	return dto.TopPostDTO{
		PostID:            p.PostID,
		Content:           p.Content,
		Link:              p.Link,
		ImageURLs:         images,
		IsAIGenerated:     p.IsAIGenerated,
		PublishedAt:       formatTime(p.PublishedAt),
		MetricValue:       p.MetricValue,
		AvgEngagementRate: p.AvgEngagementRate,
		TotalLikes:        p.TotalLikes,
		TotalComments:     p.TotalComments,
		TotalShares:       p.TotalShares,
		TotalImpressions:  p.TotalImpressions,
		HourOfDay:         p.HourOfDay,
		DayOfWeek:         p.DayOfWeek,
		TextLength:        p.TextLength,
		HasLink:           p.HasLink,
		HasImages:         p.HasImages,
		ImageCount:        p.ImageCount,
	}
}

func ToRecommendationDTO(r models.Recommendation) dto.RecommendationDTO {
	return dto.RecommendationDTO{
		ID:                 r.ID,
		UUID:               r.UUID.String(),
		PeriodStart:        r.PeriodStart.UTC().Format(time.RFC3339),
		PeriodEnd:          r.PeriodEnd.UTC().Format(time.RFC3339),
		AnalyzedPostsCount: r.AnalyzedPostsCount,
		Locale:             string(r.Locale),
		Status:             string(r.Status),
		Patterns:           r.Patterns,
		Recommendations:    r.Recommendations,
		CreatedAt:          r.CreatedAt.UTC().Format(time.RFC3339),
	}
}
