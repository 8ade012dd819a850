package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/page-pilot/app/dto"
	"github.com/amirphl/page-pilot/app/services"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	"github.com/amirphl/page-pilot/utils"
)

// GenerateRequest parameterizes one recommendation run
type GenerateRequest struct {
	PeriodDays int
	Limit      int
	UseAI      bool
	Locale     models.Locale
}

// RecommendationFlow turns top performing posts into persisted recommendation snapshots
type RecommendationFlow interface {
	GenerateFullAnalysis(ctx context.Context, req GenerateRequest) (*models.Recommendation, error)
	Generate(ctx context.Context, req *dto.GenerateRecommendationRequest) (*dto.RecommendationDTO, error)
	Latest(ctx context.Context) (*dto.RecommendationDTO, error)
	History(ctx context.Context, limit int) (*dto.RecommendationHistoryResponse, error)
}

type RecommendationFlowImpl struct {
	samples  repository.MetricSampleRepository
	recs     repository.RecommendationRepository
	analyzer services.NarrativeAnalyzer
	defaults GenerateRequest
	logger   *log.Logger
	now      func() time.Time
}

// NewRecommendationFlow wires the flow; defaults fill whatever an API request leaves out
func NewRecommendationFlow(
	samples repository.MetricSampleRepository,
	recs repository.RecommendationRepository,
	analyzer services.NarrativeAnalyzer,
	defaults GenerateRequest,
	logger *log.Logger,
) RecommendationFlow {
	if analyzer == nil {
		analyzer = services.DisabledNarrativeAnalyzer{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "recommendations ", log.LstdFlags|log.LUTC)
	}
	if defaults.PeriodDays <= 0 {
		defaults.PeriodDays = utils.DefaultAnalysisPeriodDays
	}
	if defaults.Limit <= 0 {
		defaults.Limit = utils.DefaultRecommendationPostsLimit
	}
	if defaults.Locale == "" {
		defaults.Locale = models.LocaleAuto
	}
	return &RecommendationFlowImpl{
		samples:  samples,
		recs:     recs,
		analyzer: analyzer,
		defaults: defaults,
		logger:   logger,
		now:      utils.UTCNow,
	}
}

// GenerateFullAnalysis ranks recent posts, derives patterns and stores a completed snapshot.
// No posts in the window still yields a snapshot built from the default patterns.
func (f *RecommendationFlowImpl) GenerateFullAnalysis(ctx context.Context, req GenerateRequest) (*models.Recommendation, error) {
	if req.PeriodDays <= 0 {
		req.PeriodDays = f.defaults.PeriodDays
	}
	if req.Limit <= 0 {
		req.Limit = f.defaults.Limit
	}
	if req.Locale == "" {
		req.Locale = models.LocaleAuto
	}

	ranked, err := f.samples.TopPosts(ctx, req.PeriodDays, req.Limit, models.TopPostMetricEngagementRate)
	if err != nil {
		return nil, NewBusinessError("TOP_POSTS_FETCH_FAILED", "Failed to fetch top posts", err)
	}
	posts := make([]models.TopPost, 0, len(ranked))
	for _, p := range ranked {
		if p != nil {
			posts = append(posts, *p)
		}
	}

	locale := req.Locale
	if locale == models.LocaleAuto {
		locale = DetectLocale(posts)
	}

	patterns := AnalyzePatterns(posts, locale)
	recommendations := GenerateRecommendations(patterns, locale)

	if req.UseAI && len(posts) >= utils.MinPostsForNarrative {
		res := f.analyzer.Analyze(ctx, posts, locale)
		if insights, ok := res.Value(); ok {
			recommendations.AIInsights = &insights
		} else {
			f.logger.Printf("recommendations: narrative analysis skipped: %v", res.Err())
		}
	}

	now := f.now()
	rec := &models.Recommendation{
		PeriodStart:        utils.DaysAgo(now, req.PeriodDays),
		PeriodEnd:          now,
		AnalyzedPostsCount: len(posts),
		Patterns:           patterns,
		Recommendations:    recommendations,
		Locale:             locale,
		Status:             models.RecommendationStatusCompleted,
		CreatedAt:          now,
	}
	if err := f.recs.SaveSnapshot(ctx, rec); err != nil {
		return nil, NewBusinessError("RECOMMENDATION_SAVE_FAILED", "Failed to save recommendation", err)
	}

	f.logger.Printf("recommendations: snapshot id=%d locale=%s analyzed=%d", rec.ID, rec.Locale, rec.AnalyzedPostsCount)
	return rec, nil
}

func (f *RecommendationFlowImpl) Generate(ctx context.Context, req *dto.GenerateRecommendationRequest) (*dto.RecommendationDTO, error) {
	gen := f.defaults
	if req != nil {
		if req.PeriodDays > 0 {
			gen.PeriodDays = req.PeriodDays
		}
		if req.Limit > 0 {
			gen.Limit = req.Limit
		}
		if req.UseAI != nil {
			gen.UseAI = *req.UseAI
		}
		if req.Locale != nil {
			gen.Locale = models.ParseLocale(*req.Locale)
		}
	}

	rec, err := f.GenerateFullAnalysis(ctx, gen)
	if err != nil {
		return nil, err
	}
	out := ToRecommendationDTO(*rec)
	return &out, nil
}

func (f *RecommendationFlowImpl) Latest(ctx context.Context) (*dto.RecommendationDTO, error) {
	rec, err := f.recs.LatestCompleted(ctx)
	if err != nil {
		return nil, NewBusinessError("RECOMMENDATION_FETCH_FAILED", "Failed to fetch recommendation", err)
	}
	if rec == nil {
		return nil, NewBusinessError("RECOMMENDATION_NOT_FOUND", "No recommendation has been generated yet", ErrRecommendationNotFound)
	}
	out := ToRecommendationDTO(*rec)
	return &out, nil
}

func (f *RecommendationFlowImpl) History(ctx context.Context, limit int) (*dto.RecommendationHistoryResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	recs, err := f.recs.History(ctx, limit)
	if err != nil {
		return nil, NewBusinessError("RECOMMENDATION_FETCH_FAILED", "Failed to fetch recommendation history", err)
	}
	resp := &dto.RecommendationHistoryResponse{Items: make([]dto.RecommendationDTO, 0, len(recs))}
	for _, r := range recs {
		resp.Items = append(resp.Items, ToRecommendationDTO(*r))
	}
	return resp, nil
}
