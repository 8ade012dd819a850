package handlers

import (
	"github.com/amirphl/page-pilot/app/dto"
	businessflow "github.com/amirphl/page-pilot/business_flow"
	"github.com/gofiber/fiber/v3"
)

// RecommendationHandlerInterface defines the contract for recommendation handlers
type RecommendationHandlerInterface interface {
	Generate(c fiber.Ctx) error
	Latest(c fiber.Ctx) error
	History(c fiber.Ctx) error
}

// RecommendationHandler implements RecommendationHandlerInterface
type RecommendationHandler struct {
	baseHandler
	flow businessflow.RecommendationFlow
}

func NewRecommendationHandler(flow businessflow.RecommendationFlow) RecommendationHandlerInterface {
	return &RecommendationHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// Generate runs a full analysis now; an empty body uses the configured defaults
func (h *RecommendationHandler) Generate(c fiber.Ctx) error {
	var req dto.GenerateRecommendationRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/recommendations/generate", generateTimeout)
	defer cancel()

	rec, err := h.flow.Generate(ctx, &req)
	if err != nil {
		return h.flowErrorResponse(c, err, "Generate recommendations")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Recommendations generated", rec)
}

func (h *RecommendationHandler) Latest(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/recommendations/latest")
	defer cancel()

	rec, err := h.flow.Latest(ctx)
	if err != nil {
		return h.flowErrorResponse(c, err, "Latest recommendation")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Recommendation retrieved", rec)
}

// History lists recent snapshots, newest first
func (h *RecommendationHandler) History(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit", 10)

	ctx, cancel := h.createRequestContext(c, "/api/v1/recommendations/history")
	defer cancel()

	resp, err := h.flow.History(ctx, limit)
	if err != nil {
		return h.flowErrorResponse(c, err, "Recommendation history")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Recommendation history retrieved", resp)
}
