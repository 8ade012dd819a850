package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/page-pilot/app/handlers"
	"github.com/amirphl/page-pilot/app/middleware"
	"github.com/amirphl/page-pilot/app/scheduler"
	"github.com/amirphl/page-pilot/app/services"
	businessflow "github.com/amirphl/page-pilot/business_flow"
	"github.com/amirphl/page-pilot/config"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	testingutil "github.com/amirphl/page-pilot/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminUsername = "pilot"
	adminPassword = "correct-horse"
)

type stubClient struct{}

func (stubClient) Publish(_ context.Context, destinationID, _, _ string, _ *string) services.Result[string] {
	return services.Ok(destinationID + "_1001")
}

func (stubClient) PublishWithMedia(_ context.Context, destinationID, _, _ string, _ []string, _ *string) services.Result[string] {
	return services.Ok(destinationID + "_1002")
}

func (stubClient) FetchEngagement(context.Context, string, string) services.Result[models.RawCounts] {
	return services.Ok(models.RawCounts{Likes: 4, Comments: 1, Impressions: 100})
}

func (stubClient) Delete(context.Context, string, string) services.Result[bool] {
	return services.Ok(true)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Details any    `json:"details"`
	} `json:"error"`
}

type apiHarness struct {
	t        *testing.T
	app      *fiber.App
	fixtures *testingutil.TestFixtures
}

func newAPIHarness(t *testing.T, withDispatcher bool) *apiHarness {
	t.Helper()
	db := testingutil.NewSQLiteDB(t)
	fixtures := testingutil.NewTestFixtures(db)
	_, err := fixtures.CreateAdmin(adminUsername, adminPassword)
	require.NoError(t, err)

	posts := repository.NewPostRepository(db)
	pubs := repository.NewPublicationRepository(db)
	samples := repository.NewMetricSampleRepository(db, time.UTC)
	recs := repository.NewRecommendationRepository(db)
	admins := repository.NewAdminRepository(db)

	tokens, err := services.NewTokenService(time.Hour, "page-pilot", "page-pilot-admin", false, "", "", strings.Repeat("s", 32), nil)
	require.NoError(t, err)

	client := stubClient{}
	creds := services.StaticCredentialStore{"page-1": "token-1", "page-2": "token-2"}

	var dispatcher businessflow.PublicationDispatcher
	if withDispatcher {
		dispatcher = scheduler.NewPostScheduler(posts, pubs, samples, client, creds, nil, nil, time.Minute, 0)
	}
	collector := scheduler.NewAnalyticsCollector(pubs, samples, client, creds, nil, nil, time.Hour, 0, 30, 50)

	h := Handlers{
		AuthAdmin: handlers.NewAuthAdminHandler(businessflow.NewAdminAuthFlow(admins, tokens, nil)),
		Post:      handlers.NewPostHandler(businessflow.NewPostFlow(posts, pubs, client, creds, nil, dispatcher, nil)),
		Analytics: handlers.NewAnalyticsHandler(businessflow.NewAnalyticsFlow(posts, pubs, samples, collector, nil)),
		Recommendation: handlers.NewRecommendationHandler(businessflow.NewRecommendationFlow(
			samples, recs, nil, businessflow.GenerateRequest{PeriodDays: 30, Limit: 20, Locale: models.LocaleEnglish}, nil,
		)),
	}

	r := NewFiberRouter(
		config.ServerConfig{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second},
		config.MetricsConfig{Enabled: true, Path: "/metrics"},
		h,
		middleware.NewAuthMiddleware(tokens),
	)
	r.SetupRoutes()

	return &apiHarness{t: t, app: r.GetApp(), fixtures: fixtures}
}

func (h *apiHarness) do(method, path, token string, body any) (*http.Response, envelope) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(h.t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	_ = resp.Body.Close()

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (h *apiHarness) login() string {
	h.t.Helper()
	resp, env := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": adminUsername,
		"password": adminPassword,
	})
	require.Equal(h.t, http.StatusOK, resp.StatusCode)

	var data struct {
		Session struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
		} `json:"session"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &data))
	require.Equal(h.t, "Bearer", data.Session.TokenType)
	require.NotEmpty(h.t, data.Session.AccessToken)
	return data.Session.AccessToken
}

func TestHealthAndMetrics_AreOpen(t *testing.T) {
	h := newAPIHarness(t, false)

	resp, env := h.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, _ = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutes_RequireBearerToken(t *testing.T) {
	h := newAPIHarness(t, false)

	tests := []struct {
		name   string
		token  string
		header string
		code   string
	}{
		{name: "missing header", code: "MISSING_AUTHORIZATION_HEADER"},
		{name: "wrong scheme", header: "Basic abc", code: "INVALID_AUTHORIZATION_FORMAT"},
		{name: "garbage token", token: "not-a-jwt", code: "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := h.app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			var env envelope
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestLogin(t *testing.T) {
	h := newAPIHarness(t, false)

	t.Run("wrong password looks like unknown user", func(t *testing.T) {
		resp, env := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": adminUsername,
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

		resp, env = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "nobody",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	})

	t.Run("short password fails validation", func(t *testing.T) {
		resp, env := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": adminUsername,
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		token := h.login()

		resp, _ := h.do(http.MethodGet, "/api/v1/posts", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = h.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, env := h.do(http.MethodGet, "/api/v1/posts", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)
	})
}

func TestPostLifecycle(t *testing.T) {
	h := newAPIHarness(t, true)
	token := h.login()

	resp, env := h.do(http.MethodPost, "/api/v1/posts", token, map[string]any{
		"content":         "Spring collection is here",
		"destination_ids": []string{"page-1", "page-2"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	var created struct {
		ID           uint   `json:"id"`
		Status       string `json:"status"`
		Publications []struct {
			DestinationID string `json:"destination_id"`
			Status        string `json:"status"`
		} `json:"publications"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "draft", created.Status)
	assert.Len(t, created.Publications, 2)

	path := "/api/v1/posts/" + itoa(created.ID)

	resp, _ = h.do(http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = h.do(http.MethodPost, path+"/publish", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var published struct {
		Status    string `json:"status"`
		Published int    `json:"published"`
		Failed    int    `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &published))
	assert.Equal(t, 2, published.Published)
	assert.Zero(t, published.Failed)
	assert.Equal(t, "published", published.Status)

	resp, env = h.do(http.MethodPost, path+"/publish", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "POST_ALREADY_FINISHED", env.Error.Code)

	resp, env = h.do(http.MethodGet, "/api/v1/posts?status=published", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(1), list.Total)

	resp, env = h.do(http.MethodPost, "/api/v1/analytics/collect/"+itoa(created.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, env = h.do(http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deleted struct {
		RemoteDeleted int `json:"remote_deleted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, 2, deleted.RemoteDeleted)

	resp, env = h.do(http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "POST_NOT_FOUND", env.Error.Code)
}

func TestCreatePost_Rejections(t *testing.T) {
	h := newAPIHarness(t, false)
	token := h.login()

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{
			name: "no destinations",
			body: map[string]any{"content": "hello"},
			code: "VALIDATION_ERROR",
		},
		{
			name: "bad link",
			body: map[string]any{"content": "hello", "link": "not a url", "destination_ids": []string{"page-1"}},
			code: "VALIDATION_ERROR",
		},
		{
			name: "schedule in the past",
			body: map[string]any{
				"content":         "hello",
				"scheduled_time":  time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
				"destination_ids": []string{"page-1"},
			},
			code: "POST_VALIDATION_FAILED",
		},
		{
			name: "duplicate destination",
			body: map[string]any{"content": "hello", "destination_ids": []string{"page-1", "page-1"}},
			code: "POST_VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := h.do(http.MethodPost, "/api/v1/posts", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestPostRoutes_IDAndDispatcherErrors(t *testing.T) {
	h := newAPIHarness(t, false)
	token := h.login()

	resp, env := h.do(http.MethodGet, "/api/v1/posts/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_POST_ID", env.Error.Code)

	post, err := h.fixtures.CreatePost(testingutil.PostOptions{Content: "draft", Destinations: []string{"page-1"}})
	require.NoError(t, err)

	resp, env = h.do(http.MethodPost, "/api/v1/posts/"+itoa(post.ID)+"/publish", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "DISPATCHER_NOT_AVAILABLE", env.Error.Code)

	resp, env = h.do(http.MethodPost, "/api/v1/analytics/collect/"+itoa(post.ID), token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "POST_NOT_PUBLISHED", env.Error.Code)
}

func TestAnalyticsRoutes(t *testing.T) {
	h := newAPIHarness(t, false)
	token := h.login()

	_, err := h.fixtures.CreatePublishedPost(testingutil.PostOptions{Content: "published"}, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	resp, _ := h.do(http.MethodGet, "/api/v1/analytics/summary", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := h.do(http.MethodGet, "/api/v1/analytics/top-posts?days=7&metric=likes", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var top struct {
		Days   int    `json:"days"`
		Metric string `json:"metric"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &top))
	assert.Equal(t, 7, top.Days)
	assert.Equal(t, "likes", top.Metric)

	resp, env = h.do(http.MethodGet, "/api/v1/analytics/top-posts?metric=followers", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	resp, _ = h.do(http.MethodGet, "/api/v1/analytics/top-posts/export?days=7", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=top_posts_engagement_rate_7d.xlsx", resp.Header.Get("Content-Disposition"))
}

func TestRecommendationRoutes(t *testing.T) {
	h := newAPIHarness(t, false)
	token := h.login()

	resp, env := h.do(http.MethodGet, "/api/v1/recommendations/latest", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "RECOMMENDATION_NOT_FOUND", env.Error.Code)

	resp, env = h.do(http.MethodPost, "/api/v1/recommendations/generate", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	resp, env = h.do(http.MethodGet, "/api/v1/recommendations/latest", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest struct {
		Locale string `json:"locale"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &latest))
	assert.Equal(t, "en", latest.Locale)
	assert.Equal(t, "completed", latest.Status)

	resp, env = h.do(http.MethodPost, "/api/v1/recommendations/generate", token, map[string]any{"locale": "fr"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	resp, env = h.do(http.MethodGet, "/api/v1/recommendations/history?limit=5", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history.Items, 1)
}

func TestUnknownRoute(t *testing.T) {
	h := newAPIHarness(t, false)

	resp, env := h.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
