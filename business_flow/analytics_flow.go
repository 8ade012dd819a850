package businessflow

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/page-pilot/app/dto"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	"github.com/amirphl/page-pilot/utils"
	"github.com/xuri/excelize/v2"
)

const (
	defaultTopPostsAPILimit = 10
	summaryBestPostsLimit   = 5
	topPostsSheetName       = "Top posts"
)

// MetricsCollector refreshes the engagement sample of one published publication
type MetricsCollector interface {
	CollectPublication(ctx context.Context, pub *models.Publication) error
}

// AnalyticsFlow exposes the metrics store to admins
type AnalyticsFlow interface {
	Summary(ctx context.Context) (*dto.AnalyticsSummaryResponse, error)
	TopPosts(ctx context.Context, req *dto.TopPostsRequest) (*dto.TopPostsResponse, error)
	ExportTopPostsXLSX(ctx context.Context, req *dto.TopPostsRequest) (string, []byte, error)
	CollectForPost(ctx context.Context, postID uint) (*dto.CollectMetricsResponse, error)
}

type AnalyticsFlowImpl struct {
	posts     repository.PostRepository
	pubs      repository.PublicationRepository
	samples   repository.MetricSampleRepository
	collector MetricsCollector
	logger    *log.Logger
}

func NewAnalyticsFlow(
	posts repository.PostRepository,
	pubs repository.PublicationRepository,
	samples repository.MetricSampleRepository,
	collector MetricsCollector,
	logger *log.Logger,
) AnalyticsFlow {
	if logger == nil {
		logger = log.New(log.Writer(), "analytics ", log.LstdFlags|log.LUTC)
	}
	return &AnalyticsFlowImpl{
		posts:     posts,
		pubs:      pubs,
		samples:   samples,
		collector: collector,
		logger:    logger,
	}
}

func (f *AnalyticsFlowImpl) Summary(ctx context.Context) (*dto.AnalyticsSummaryResponse, error) {
	summary, err := f.samples.Summary(ctx)
	if err != nil {
		return nil, NewBusinessError("ANALYTICS_SUMMARY_FAILED", "Failed to summarize analytics", err)
	}
	byStatus, err := f.pubs.CountByStatus(ctx)
	if err != nil {
		return nil, NewBusinessError("ANALYTICS_SUMMARY_FAILED", "Failed to count publications", err)
	}
	best, err := f.samples.TopPosts(ctx, utils.DefaultAnalysisPeriodDays, summaryBestPostsLimit, models.TopPostMetricEngagementRate)
	if err != nil {
		return nil, NewBusinessError("TOP_POSTS_FETCH_FAILED", "Failed to fetch top posts", err)
	}

	resp := &dto.AnalyticsSummaryResponse{
		TotalPosts:           summary.TotalPosts,
		TotalLikes:           summary.TotalLikes,
		TotalComments:        summary.TotalComments,
		TotalShares:          summary.TotalShares,
		TotalImpressions:     summary.TotalImpressions,
		AvgEngagementRate:    summary.AvgEngagementRate,
		PublicationsByStatus: make(map[string]int64, len(byStatus)),
		BestPosts:            toTopPostDTOs(best),
	}
	for status, n := range byStatus {
		resp.PublicationsByStatus[status.String()] = n
	}
	return resp, nil
}

func (f *AnalyticsFlowImpl) TopPosts(ctx context.Context, req *dto.TopPostsRequest) (*dto.TopPostsResponse, error) {
	days, limit, metric := topPostsParams(req)
	posts, err := f.samples.TopPosts(ctx, days, limit, metric)
	if err != nil {
		return nil, NewBusinessError("TOP_POSTS_FETCH_FAILED", "Failed to fetch top posts", err)
	}
	return &dto.TopPostsResponse{
		Days:   days,
		Metric: string(metric),
		Items:  toTopPostDTOs(posts),
	}, nil
}

func topPostsParams(req *dto.TopPostsRequest) (int, int, models.TopPostMetric) {
	days, limit, metric := utils.DefaultAnalysisPeriodDays, defaultTopPostsAPILimit, models.TopPostMetricEngagementRate
	if req == nil {
		return days, limit, metric
	}
	if req.Days > 0 {
		days = req.Days
	}
	if req.Limit > 0 {
		limit = req.Limit
	}
	return days, limit, models.ParseTopPostMetric(req.Metric)
}

func toTopPostDTOs(posts []*models.TopPost) []dto.TopPostDTO {
	out := make([]dto.TopPostDTO, 0, len(posts))
	for _, p := range posts {
		if p != nil {
			out = append(out, ToTopPostDTO(*p))
		}
	}
	return out
}

// ExportTopPostsXLSX renders the top posts ranking as a single sheet workbook
func (f *AnalyticsFlowImpl) ExportTopPostsXLSX(ctx context.Context, req *dto.TopPostsRequest) (string, []byte, error) {
	days, limit, metric := topPostsParams(req)
	posts, err := f.samples.TopPosts(ctx, days, limit, metric)
	if err != nil {
		return "", nil, NewBusinessError("TOP_POSTS_FETCH_FAILED", "Failed to fetch top posts", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()
	if err := xl.SetSheetName(xl.GetSheetName(0), topPostsSheetName); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare Excel sheet", err)
	}

	header := []string{"rank", "post_id", "published_at", "metric", "metric_value", "engagement_rate",
		"likes", "comments", "shares", "impressions", "text_length", "has_link", "image_count", "content"}
	_ = xl.SetSheetRow(topPostsSheetName, "A1", &header)

	for i, p := range posts {
		publishedAt := ""
		if p.PublishedAt != nil {
			publishedAt = p.PublishedAt.UTC().Format(time.RFC3339)
		}
		record := []any{
			i + 1,
			p.PostID,
			publishedAt,
			string(metric),
			p.MetricValue,
			p.AvgEngagementRate,
			p.TotalLikes,
			p.TotalComments,
			p.TotalShares,
			p.TotalImpressions,
			p.TextLength,
			strconv.FormatBool(p.HasLink),
			p.ImageCount,
			p.Content,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(topPostsSheetName, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("top_posts_%s_%dd.xlsx", metric, days)
	return filename, buf.Bytes(), nil
}

// CollectForPost refreshes every published publication of one post right away
func (f *AnalyticsFlowImpl) CollectForPost(ctx context.Context, postID uint) (*dto.CollectMetricsResponse, error) {
	post, err := f.posts.ByID(ctx, postID)
	if err != nil {
		return nil, NewBusinessError("POST_FETCH_FAILED", "Failed to fetch post", err)
	}
	if post == nil {
		return nil, NewBusinessError("POST_NOT_FOUND", "Post not found", ErrPostNotFound)
	}

	pubs, err := f.pubs.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, NewBusinessError("PUBLICATION_FETCH_FAILED", "Failed to fetch publications", err)
	}

	resp := &dto.CollectMetricsResponse{PostID: post.ID}
	attempted := 0
	for _, pub := range pubs {
		if pub.Status != models.PublicationStatusPublished {
			continue
		}
		attempted++
		if err := f.collector.CollectPublication(ctx, pub); err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", pub.DestinationID, err))
			f.logger.Printf("analytics: collect failed for publication id=%d: %v", pub.ID, err)
			continue
		}
		resp.Collected++
	}
	if attempted == 0 {
		return nil, NewBusinessError("POST_NOT_PUBLISHED", "Post has no published publications", ErrPostNotPublished)
	}
	return resp, nil
}
