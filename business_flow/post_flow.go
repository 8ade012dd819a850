package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amirphl/page-pilot/app/dto"
	"github.com/amirphl/page-pilot/app/services"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	"github.com/amirphl/page-pilot/utils"
)

// PublicationDispatcher publishes one pending publication and records its outcome
type PublicationDispatcher interface {
	Dispatch(ctx context.Context, pub *models.Publication) error
}

// DestinationDirectory lists the managed destinations known to the credential store
type DestinationDirectory interface {
	Destinations() []services.Destination
}

// PostFlow handles the post lifecycle exposed to admins
type PostFlow interface {
	CreatePost(ctx context.Context, req *dto.CreatePostRequest) (*dto.PostDTO, error)
	GetPost(ctx context.Context, id uint) (*dto.PostDTO, error)
	ListPosts(ctx context.Context, req *dto.ListPostsRequest) (*dto.ListPostsResponse, error)
	DeletePost(ctx context.Context, id uint) (*dto.DeletePostResponse, error)
	PublishNow(ctx context.Context, id uint) (*dto.PublishNowResponse, error)
}

type PostFlowImpl struct {
	posts      repository.PostRepository
	pubs       repository.PublicationRepository
	client     services.PublishingClient
	creds      services.CredentialStore
	directory  DestinationDirectory
	dispatcher PublicationDispatcher
	logger     *log.Logger
	now        func() time.Time
}

// NewPostFlow wires the post flow; directory may be nil, in which case destination ids double as names
func NewPostFlow(
	posts repository.PostRepository,
	pubs repository.PublicationRepository,
	client services.PublishingClient,
	creds services.CredentialStore,
	directory DestinationDirectory,
	dispatcher PublicationDispatcher,
	logger *log.Logger,
) PostFlow {
	if logger == nil {
		logger = log.New(log.Writer(), "posts ", log.LstdFlags|log.LUTC)
	}
	return &PostFlowImpl{
		posts:      posts,
		pubs:       pubs,
		client:     client,
		creds:      creds,
		directory:  directory,
		dispatcher: dispatcher,
		logger:     logger,
		now:        utils.UTCNow,
	}
}

func (f *PostFlowImpl) CreatePost(ctx context.Context, req *dto.CreatePostRequest) (*dto.PostDTO, error) {
	if req == nil {
		return nil, NewBusinessError("POST_VALIDATION_FAILED", "Post validation failed", ErrInvalidContent)
	}
	if err := f.validateCreate(req); err != nil {
		return nil, NewBusinessError("POST_VALIDATION_FAILED", "Post validation failed", err)
	}

	names := f.destinationNames()
	post := &models.Post{
		UserID:        1,
		Content:       req.Content,
		Link:          normalizeLink(req.Link),
		ImageURLs:     normalizeImages(req.ImageURLs),
		IsAIGenerated: req.IsAIGenerated,
		Status:        models.PostStatusDraft,
	}
	if req.ScheduledTime != nil {
		at := req.ScheduledTime.UTC()
		post.ScheduledTime = &at
		post.Status = models.PostStatusScheduled
	}
	for _, dest := range req.DestinationIDs {
		dest = strings.TrimSpace(dest)
		name := names[dest]
		if name == "" {
			name = dest
		}
		post.Publications = append(post.Publications, models.Publication{
			DestinationID:   dest,
			DestinationName: name,
			Status:          models.PublicationStatusPending,
		})
	}

	if err := f.posts.Save(ctx, post); err != nil {
		return nil, NewBusinessError("POST_CREATE_FAILED", "Failed to create post", err)
	}

	f.logger.Printf("posts: created id=%d status=%s destinations=%d", post.ID, post.Status, len(post.Publications))
	out := ToPostDTO(*post)
	return &out, nil
}

func (f *PostFlowImpl) validateCreate(req *dto.CreatePostRequest) error {
	if strings.TrimSpace(req.Content) == "" {
		return ErrInvalidContent
	}
	if utf8.RuneCountInString(req.Content) > models.MaxPostContentLength {
		return ErrContentTooLong
	}
	if req.ScheduledTime != nil && req.ScheduledTime.Before(f.now()) {
		return ErrScheduleInPast
	}

	seen := make(map[string]bool, len(req.DestinationIDs))
	for _, dest := range req.DestinationIDs {
		dest = strings.TrimSpace(dest)
		if dest == "" {
			continue
		}
		if seen[dest] {
			return ErrDuplicateDestination
		}
		seen[dest] = true
	}
	if len(seen) == 0 || len(seen) != len(req.DestinationIDs) {
		return ErrNoDestinations
	}
	return nil
}

func (f *PostFlowImpl) destinationNames() map[string]string {
	names := map[string]string{}
	if f.directory == nil {
		return names
	}
	for _, d := range f.directory.Destinations() {
		names[d.ID] = d.Name
	}
	return names
}

func normalizeLink(link *string) *string {
	if link == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*link)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeImages(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref = strings.TrimSpace(ref); ref != "" {
			out = append(out, ref)
		}
	}
	return out
}

func (f *PostFlowImpl) GetPost(ctx context.Context, id uint) (*dto.PostDTO, error) {
	post, err := f.posts.ByIDWithPublications(ctx, id)
	if err != nil {
		return nil, NewBusinessError("POST_FETCH_FAILED", "Failed to fetch post", err)
	}
	if post == nil {
		return nil, NewBusinessError("POST_NOT_FOUND", "Post not found", ErrPostNotFound)
	}
	out := ToPostDTO(*post)
	return &out, nil
}

func (f *PostFlowImpl) ListPosts(ctx context.Context, req *dto.ListPostsRequest) (*dto.ListPostsResponse, error) {
	page, pageSize := 1, 20
	filter := models.PostFilter{}
	if req != nil {
		if req.Page < 0 {
			return nil, NewBusinessError("POST_LIST_VALIDATION_FAILED", "Invalid page", ErrInvalidPage)
		}
		if req.PageSize < 0 || req.PageSize > 100 {
			return nil, NewBusinessError("POST_LIST_VALIDATION_FAILED", "Invalid page size", ErrInvalidPageSize)
		}
		if req.Page > 0 {
			page = req.Page
		}
		if req.PageSize > 0 {
			pageSize = req.PageSize
		}
		if req.Status != "" {
			status := models.PostStatus(req.Status)
			filter.Status = &status
		}
	}

	posts, err := f.posts.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("POST_LIST_FAILED", "Failed to list posts", err)
	}
	total, err := f.posts.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("POST_LIST_FAILED", "Failed to count posts", err)
	}

	resp := &dto.ListPostsResponse{
		Items:    make([]dto.PostDTO, 0, len(posts)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, p := range posts {
		resp.Items = append(resp.Items, ToPostDTO(*p))
	}
	return resp, nil
}

// DeletePost removes published copies from the platform where possible, then deletes the post with
// its publications and samples. Remote failures do not block the local delete.
func (f *PostFlowImpl) DeletePost(ctx context.Context, id uint) (*dto.DeletePostResponse, error) {
	post, err := f.posts.ByIDWithPublications(ctx, id)
	if err != nil {
		return nil, NewBusinessError("POST_FETCH_FAILED", "Failed to fetch post", err)
	}
	if post == nil {
		return nil, NewBusinessError("POST_NOT_FOUND", "Post not found", ErrPostNotFound)
	}

	resp := &dto.DeletePostResponse{Message: "Post deleted"}
	for _, pub := range post.Publications {
		if pub.Status != models.PublicationStatusPublished || pub.ExternalID == nil || *pub.ExternalID == "" {
			continue
		}
		token, ok := f.creds.Token(ctx, pub.DestinationID)
		if !ok {
			resp.RemoteFailed++
			f.logger.Printf("posts: remote delete skipped for publication id=%d: token not found for destination %s", pub.ID, pub.DestinationID)
			continue
		}
		res := f.client.Delete(ctx, *pub.ExternalID, token)
		if deleted, ok := res.Value(); ok && deleted {
			resp.RemoteDeleted++
			continue
		}
		resp.RemoteFailed++
		f.logger.Printf("posts: remote delete failed for publication id=%d: %v", pub.ID, res.Err())
	}

	if err := f.posts.DeleteCascade(ctx, post.ID); err != nil {
		return nil, NewBusinessError("POST_DELETE_FAILED", "Failed to delete post", err)
	}
	return resp, nil
}

// PublishNow dispatches every pending publication of a post immediately
func (f *PostFlowImpl) PublishNow(ctx context.Context, id uint) (*dto.PublishNowResponse, error) {
	if f.dispatcher == nil {
		return nil, NewBusinessError("DISPATCHER_NOT_AVAILABLE", "Publishing is not available", ErrDispatcherNotAvailable)
	}
	post, err := f.posts.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("POST_FETCH_FAILED", "Failed to fetch post", err)
	}
	if post == nil {
		return nil, NewBusinessError("POST_NOT_FOUND", "Post not found", ErrPostNotFound)
	}

	pending, err := f.pubs.PendingByPost(ctx, post.ID)
	if err != nil {
		return nil, NewBusinessError("PUBLICATION_FETCH_FAILED", "Failed to fetch publications", err)
	}
	if len(pending) == 0 {
		return nil, NewBusinessError("POST_ALREADY_FINISHED", "Post has nothing left to publish", ErrPostAlreadyFinished)
	}

	resp := &dto.PublishNowResponse{PostID: post.ID}
	for _, pub := range pending {
		pub.Post = post
		err := f.dispatcher.Dispatch(ctx, pub)
		if errors.Is(err, repository.ErrPublicationAlreadyDispatched) {
			// the scheduler got there first
			resp.Skipped++
			continue
		}
		if err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", pub.DestinationID, err))
			continue
		}
		resp.Published++
	}

	resp.Status = post.Status.String()
	if reloaded, err := f.posts.ByID(ctx, post.ID); err == nil && reloaded != nil {
		resp.Status = reloaded.Status.String()
	}
	return resp, nil
}
