package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirphl/page-pilot/models"
)

// DefaultGraphBaseURL is the versioned Graph API root
const DefaultGraphBaseURL = "https://graph.facebook.com/v18.0"

// Graph error codes that mean "this token may not read that object": treated as no data
var permissionErrorCodes = map[int]bool{10: true, 100: true, 190: true, 200: true, 803: true}

const (
	engagementFields        = "likes.summary(true),comments.summary(true),shares,reactions.summary(true)"
	feedEngagementFields    = "id," + engagementFields
	reducedEngagementFields = "likes.summary(true),comments.summary(true),shares"
	feedScanLimit           = "100"
	insightMetrics   = "post_impressions,post_impressions_unique,post_engaged_users,post_clicks,post_reactions_by_type_total"
)

// PublishingClient publishes content to destinations and reads engagement back
type PublishingClient interface {
	Publish(ctx context.Context, destinationID, token, message string, link *string) Result[string]
	PublishWithMedia(ctx context.Context, destinationID, token, message string, mediaRefs []string, link *string) Result[string]
	FetchEngagement(ctx context.Context, externalID, token string) Result[models.RawCounts]
	Delete(ctx context.Context, externalID, token string) Result[bool]
}

// GraphOptions configures the Graph API client
type GraphOptions struct {
	BaseURL         string
	PublishTimeout  time.Duration
	UploadTimeout   time.Duration
	MetricsTimeout  time.Duration
	InsightsTimeout time.Duration
}

// GraphAPIError is an error envelope returned by the Graph API
type GraphAPIError struct {
	Status  int
	Code    int
	Message string
}

func (e *GraphAPIError) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// Permission reports whether the error is an access-scope refusal
func (e *GraphAPIError) Permission() bool {
	return permissionErrorCodes[e.Code]
}

type graphErrorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type graphClient struct {
	opts   GraphOptions
	client *http.Client
	logger *log.Logger
}

// NewGraphPublishingClient builds a PublishingClient over the Graph API
func NewGraphPublishingClient(opts GraphOptions, logger *log.Logger) PublishingClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGraphBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 30 * time.Second
	}
	if opts.MetricsTimeout <= 0 {
		opts.MetricsTimeout = 10 * time.Second
	}
	if opts.InsightsTimeout <= 0 {
		opts.InsightsTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &graphClient{
		opts:   opts,
		client: &http.Client{},
		logger: logger,
	}
}

// Publish creates a feed post on the destination
func (c *graphClient) Publish(ctx context.Context, destinationID, token, message string, link *string) Result[string] {
	form := url.Values{}
	form.Set("message", message)
	if link != nil && strings.TrimSpace(*link) != "" {
		form.Set("link", *link)
	}
	return c.createFeedPost(ctx, destinationID, token, form)
}

// PublishWithMedia uploads every media reference as an unpublished photo, then creates one feed
// post attaching the uploads that succeeded. Individual upload failures are skipped.
func (c *graphClient) PublishWithMedia(ctx context.Context, destinationID, token, message string, mediaRefs []string, link *string) Result[string] {
	mediaIDs := make([]string, 0, len(mediaRefs))
	for i, ref := range mediaRefs {
		id, err := c.uploadPhoto(ctx, destinationID, token, ref)
		if err != nil {
			c.logger.Printf("graph: photo upload %d/%d failed for destination=%s: %v", i+1, len(mediaRefs), destinationID, err)
			continue
		}
		mediaIDs = append(mediaIDs, id)
	}
	if len(mediaIDs) == 0 {
		return Err[string](ErrorKindRejected, "no media could be uploaded (%d attempted)", len(mediaRefs))
	}

	form := url.Values{}
	form.Set("message", message)
	for i, id := range mediaIDs {
		form.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, id))
	}
	if link != nil && strings.TrimSpace(*link) != "" {
		form.Set("link", *link)
	}
	return c.createFeedPost(ctx, destinationID, token, form)
}

func (c *graphClient) createFeedPost(ctx context.Context, destinationID, token string, form url.Values) Result[string] {
	ctx, cancel := context.WithTimeout(ctx, c.opts.PublishTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(destinationID, "feed"), strings.NewReader(form.Encode()))
	if err != nil {
		return Err[string](ErrorKindRejected, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(req, token, &out); err != nil {
		return failureFrom[string](err)
	}
	if out.ID == "" {
		return Err[string](ErrorKindRejected, "no post id in response")
	}
	return Ok(out.ID)
}

func (c *graphClient) uploadPhoto(ctx context.Context, destinationID, token, ref string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.UploadTimeout)
	defer cancel()

	var (
		body        io.Reader
		contentType string
	)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		form := url.Values{}
		form.Set("published", "false")
		form.Set("url", ref)
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else {
		f, err := os.Open(ref)
		if err != nil {
			return "", err
		}
		defer f.Close()

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField("published", "false"); err != nil {
			return "", err
		}
		part, err := mw.CreateFormFile("source", filepath.Base(ref))
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			return "", err
		}
		if err := mw.Close(); err != nil {
			return "", err
		}
		body = &buf
		contentType = mw.FormDataContentType()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(destinationID, "photos"), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(req, token, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("no photo id in response")
	}
	return out.ID, nil
}

type summaryCount struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

type engagementResponse struct {
	Likes     summaryCount `json:"likes"`
	Comments  summaryCount `json:"comments"`
	Reactions summaryCount `json:"reactions"`
	Shares    struct {
		Count int64 `json:"count"`
	} `json:"shares"`
}

// counts maps the summary fields; a missing reaction summary counts likes as reactions
func (e engagementResponse) counts() models.RawCounts {
	reactions := e.Reactions.Summary.TotalCount
	if reactions == 0 {
		reactions = e.Likes.Summary.TotalCount
	}
	return models.RawCounts{
		Likes:     e.Likes.Summary.TotalCount,
		Comments:  e.Comments.Summary.TotalCount,
		Shares:    e.Shares.Count,
		Reactions: map[string]int64{"total": reactions},
	}
}

type feedResponse struct {
	Data []struct {
		ID string `json:"id"`
		engagementResponse
	} `json:"data"`
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value json.RawMessage `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

// FetchEngagement reads reaction, comment and share counts, then best-effort insights.
// Permission refusals yield zero counts instead of a failure.
func (c *graphClient) FetchEngagement(ctx context.Context, externalID, token string) Result[models.RawCounts] {
	var counts models.RawCounts

	mctx, cancel := context.WithTimeout(ctx, c.opts.MetricsTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("fields", engagementFields)
	req, err := http.NewRequestWithContext(mctx, http.MethodGet, c.endpoint(externalID, "")+"?"+q.Encode(), nil)
	if err != nil {
		return Err[models.RawCounts](ErrorKindRejected, "build request: %v", err)
	}

	var eng engagementResponse
	if err := c.doJSON(req, token, &eng); err != nil {
		var apiErr *GraphAPIError
		if !errors.As(err, &apiErr) {
			return failureFrom[models.RawCounts](err)
		}
		if apiErr.Permission() {
			c.logger.Printf("graph: no access to engagement of %s: %v", externalID, apiErr)
			return Ok(counts)
		}
		c.logger.Printf("graph: engagement of %s failed, trying alternatives: %v", externalID, apiErr)
		if alt, ok := c.alternativeEngagement(ctx, externalID, token); ok {
			return Ok(alt.Normalized())
		}
		return failureFrom[models.RawCounts](err)
	}

	counts = eng.counts()
	c.mergeInsights(ctx, externalID, token, &counts)
	return Ok(counts.Normalized())
}

// alternativeEngagement looks the post up in its page feed, then retries the object with fewer
// fields. Insights are not read on this path.
func (c *graphClient) alternativeEngagement(ctx context.Context, externalID, token string) (models.RawCounts, bool) {
	if parts := strings.Split(externalID, "_"); len(parts) == 2 && parts[0] != "" {
		q := url.Values{}
		q.Set("fields", feedEngagementFields)
		q.Set("limit", feedScanLimit)

		var feed feedResponse
		if err := c.getJSON(ctx, c.endpoint(parts[0], "posts")+"?"+q.Encode(), token, &feed); err != nil {
			c.logger.Printf("graph: feed lookup for %s failed: %v", externalID, err)
		} else {
			for _, item := range feed.Data {
				if item.ID == externalID {
					return item.counts(), true
				}
			}
		}
	}

	q := url.Values{}
	q.Set("fields", reducedEngagementFields)
	var eng engagementResponse
	if err := c.getJSON(ctx, c.endpoint(externalID, "")+"?"+q.Encode(), token, &eng); err != nil {
		c.logger.Printf("graph: reduced engagement query for %s failed: %v", externalID, err)
		return models.RawCounts{}, false
	}
	return eng.counts(), true
}

// getJSON issues a GET bounded by the metrics timeout
func (c *graphClient) getJSON(ctx context.Context, rawURL, token string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MetricsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, token, out)
}

func (c *graphClient) mergeInsights(ctx context.Context, externalID, token string, counts *models.RawCounts) {
	ictx, cancel := context.WithTimeout(ctx, c.opts.InsightsTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("metric", insightMetrics)
	req, err := http.NewRequestWithContext(ictx, http.MethodGet, c.endpoint(externalID, "insights")+"?"+q.Encode(), nil)
	if err != nil {
		return
	}

	var ins insightsResponse
	if err := c.doJSON(req, token, &ins); err != nil {
		c.logger.Printf("graph: insights unavailable for %s: %v", externalID, err)
		return
	}

	for _, item := range ins.Data {
		if len(item.Values) == 0 {
			continue
		}
		raw := item.Values[0].Value
		switch item.Name {
		case "post_impressions":
			counts.Impressions = decodeInt(raw)
		case "post_impressions_unique":
			counts.Reach = decodeInt(raw)
		case "post_engaged_users":
			counts.EngagedUsers = decodeInt(raw)
		case "post_clicks":
			counts.Clicks = decodeInt(raw)
		case "post_reactions_by_type_total":
			var byType map[string]int64
			if json.Unmarshal(raw, &byType) == nil {
				for k, v := range byType {
					counts.Reactions[k] = v
				}
			}
		}
	}
}

// Delete removes a published item
func (c *graphClient) Delete(ctx context.Context, externalID, token string) Result[bool] {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MetricsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(externalID, ""), nil)
	if err != nil {
		return Err[bool](ErrorKindRejected, "build request: %v", err)
	}

	var out struct {
		Success bool `json:"success"`
	}
	if err := c.doJSON(req, token, &out); err != nil {
		return failureFrom[bool](err)
	}
	return Ok(out.Success)
}

func (c *graphClient) endpoint(id, edge string) string {
	u := c.opts.BaseURL + "/" + url.PathEscape(id)
	if edge != "" {
		u += "/" + edge
	}
	return u
}

// doJSON sends the request and decodes a 2xx body into out; other statuses become *GraphAPIError
func (c *graphClient) doJSON(req *http.Request, token string, out any) error {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &GraphAPIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env graphErrorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			if env.Error.Message != "" {
				apiErr.Message = env.Error.Message
			}
		}
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// failureFrom maps transport and API errors onto the failure taxonomy
func failureFrom[T any](err error) Result[T] {
	var apiErr *GraphAPIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests {
			return Err[T](ErrorKindTransient, "%s", apiErr.Error())
		}
		return Err[T](ErrorKindRejected, "%s", apiErr.Error())
	}
	return Err[T](ErrorKindTransient, "%v", err)
}

func decodeInt(raw json.RawMessage) int64 {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}
