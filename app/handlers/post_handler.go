package handlers

import (
	"github.com/amirphl/page-pilot/app/dto"
	businessflow "github.com/amirphl/page-pilot/business_flow"
	"github.com/gofiber/fiber/v3"
)

// PostHandlerInterface defines the contract for post management handlers
type PostHandlerInterface interface {
	CreatePost(c fiber.Ctx) error
	ListPosts(c fiber.Ctx) error
	GetPost(c fiber.Ctx) error
	DeletePost(c fiber.Ctx) error
	PublishNow(c fiber.Ctx) error
}

// PostHandler implements PostHandlerInterface
type PostHandler struct {
	baseHandler
	flow businessflow.PostFlow
}

func NewPostHandler(flow businessflow.PostFlow) PostHandlerInterface {
	return &PostHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// CreatePost stores a draft or scheduled post with one publication per destination
func (h *PostHandler) CreatePost(c fiber.Ctx) error {
	var req dto.CreatePostRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/posts")
	defer cancel()

	post, err := h.flow.CreatePost(ctx, &req)
	if err != nil {
		return h.flowErrorResponse(c, err, "Create post")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Post created", post)
}

// ListPosts pages through posts, newest first
func (h *PostHandler) ListPosts(c fiber.Ctx) error {
	var req dto.ListPostsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/posts")
	defer cancel()

	resp, err := h.flow.ListPosts(ctx, &req)
	if err != nil {
		return h.flowErrorResponse(c, err, "List posts")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Posts retrieved", resp)
}

func (h *PostHandler) GetPost(c fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post id", "INVALID_POST_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/posts/:id")
	defer cancel()

	post, err := h.flow.GetPost(ctx, id)
	if err != nil {
		return h.flowErrorResponse(c, err, "Get post")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Post retrieved", post)
}

// DeletePost removes the post locally after a best-effort removal from every destination
func (h *PostHandler) DeletePost(c fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post id", "INVALID_POST_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/posts/:id")
	defer cancel()

	resp, err := h.flow.DeletePost(ctx, id)
	if err != nil {
		return h.flowErrorResponse(c, err, "Delete post")
	}
	return h.SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// PublishNow dispatches every pending publication of the post immediately
func (h *PostHandler) PublishNow(c fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post id", "INVALID_POST_ID", nil)
	}

	// uploads and the settle delay before initial metrics can take a while
	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/posts/:id/publish", publishTimeout)
	defer cancel()

	resp, err := h.flow.PublishNow(ctx, id)
	if err != nil {
		return h.flowErrorResponse(c, err, "Publish post")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Post dispatched", resp)
}
