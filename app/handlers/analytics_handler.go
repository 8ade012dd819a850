package handlers

import (
	"github.com/amirphl/page-pilot/app/dto"
	businessflow "github.com/amirphl/page-pilot/business_flow"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsHandlerInterface defines the contract for analytics handlers
type AnalyticsHandlerInterface interface {
	Summary(c fiber.Ctx) error
	TopPosts(c fiber.Ctx) error
	ExportTopPosts(c fiber.Ctx) error
	CollectForPost(c fiber.Ctx) error
}

// AnalyticsHandler implements AnalyticsHandlerInterface
type AnalyticsHandler struct {
	baseHandler
	flow businessflow.AnalyticsFlow
}

func NewAnalyticsHandler(flow businessflow.AnalyticsFlow) AnalyticsHandlerInterface {
	return &AnalyticsHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

func (h *AnalyticsHandler) Summary(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/analytics/summary")
	defer cancel()

	resp, err := h.flow.Summary(ctx)
	if err != nil {
		return h.flowErrorResponse(c, err, "Analytics summary")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Analytics summary retrieved", resp)
}

// TopPosts ranks published posts by the requested metric
func (h *AnalyticsHandler) TopPosts(c fiber.Ctx) error {
	req, err := h.bindTopPosts(c)
	if req == nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/analytics/top-posts")
	defer cancel()

	resp, err := h.flow.TopPosts(ctx, req)
	if err != nil {
		return h.flowErrorResponse(c, err, "Top posts")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Top posts retrieved", resp)
}

// ExportTopPosts downloads the top posts ranking as an Excel workbook
func (h *AnalyticsHandler) ExportTopPosts(c fiber.Ctx) error {
	req, err := h.bindTopPosts(c)
	if req == nil {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/analytics/top-posts/export")
	defer cancel()

	filename, data, err := h.flow.ExportTopPostsXLSX(ctx, req)
	if err != nil {
		return h.flowErrorResponse(c, err, "Export top posts")
	}
	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// CollectForPost refreshes engagement samples of every published publication of the post
func (h *AnalyticsHandler) CollectForPost(c fiber.Ctx) error {
	id, ok := parseIDParam(c, "post_id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post id", "INVALID_POST_ID", nil)
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/analytics/collect/:post_id", publishTimeout)
	defer cancel()

	resp, err := h.flow.CollectForPost(ctx, id)
	if err != nil {
		return h.flowErrorResponse(c, err, "Collect metrics")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Metrics collected", resp)
}

// bindTopPosts returns nil and the already written response when the query is invalid
func (h *AnalyticsHandler) bindTopPosts(c fiber.Ctx) (*dto.TopPostsRequest, error) {
	var req dto.TopPostsRequest
	if err := c.Bind().Query(&req); err != nil {
		return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return nil, err
	}
	return &req, nil
}
