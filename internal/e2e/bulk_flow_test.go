package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/articlegen/articlegen/internal/app"
	"github.com/articlegen/articlegen/internal/articles"
	"github.com/articlegen/articlegen/internal/auth"
	"github.com/articlegen/articlegen/internal/generation"
	jobmetrics "github.com/articlegen/articlegen/internal/jobs"
	"github.com/articlegen/articlegen/internal/observability"
	"github.com/articlegen/articlegen/internal/shared"
	"github.com/articlegen/articlegen/jobs"
	_ "github.com/articlegen/articlegen/testing"
)

type userStore struct {
	mu    sync.Mutex
	users map[string]auth.User
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *userStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, in auth.NewUser) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	u := auth.User{ID: uuid.NewString(), Email: in.Email, Name: in.Name, PasswordHash: in.PasswordHash, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	return &u, nil
}

func (s *userStore) UpdateProfile(ctx context.Context, id string, upd auth.ProfileUpdate) (*auth.User, error) {
	return nil, shared.ErrNotFound
}

type articleStore struct {
	mu     sync.Mutex
	rows   []articles.Article
	nextID int64
}

func (s *articleStore) filter(keep func(articles.Article) bool) []articles.Article {
	out := []articles.Article{}
	for _, a := range s.rows {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *articleStore) List(ctx context.Context) ([]articles.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(articles.Article) bool { return true }), nil
}

func (s *articleStore) ListByUser(ctx context.Context, userID string) ([]articles.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(a articles.Article) bool { return a.UserID == userID }), nil
}

func (s *articleStore) Get(ctx context.Context, id int64) (*articles.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.rows {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *articleStore) Create(ctx context.Context, in articles.NewArticle) (*articles.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	a := articles.Article{ID: s.nextID, Title: in.Title, Content: in.Content, UserID: in.UserID, AuthorName: in.AuthorName, CreatedAt: now, UpdatedAt: now}
	s.rows = append(s.rows, a)
	return &a, nil
}

func (s *articleStore) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.rows {
		if a.ID == id && a.UserID == userID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type capturedQueue struct {
	payloads []jobs.BulkGeneratePayload
}

func (q *capturedQueue) EnqueueBulkGenerate(ctx context.Context, payload jobs.BulkGeneratePayload) (*asynq.TaskInfo, error) {
	q.payloads = append(q.payloads, payload)
	return &asynq.TaskInfo{ID: payload.JobID, Queue: jobs.QueueDefault}, nil
}

// fakeGemini answers generateContent calls and fails any prompt mentioning FAIL.
func fakeGemini(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || r.Header.Get("x-goog-api-key") != "test-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		prompt := req.Contents[0].Parts[0].Text
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(prompt, "FAIL") {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]string{"text": "Body: " + prompt}}}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	router   http.Handler
	queue    *capturedQueue
	job      *jobs.BulkGenerateJob
	store    *articleStore
	registry *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gemini := fakeGemini(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	metrics := observability.NewMetrics()
	tokens, err := auth.NewTokenService("e2e-secret", time.Hour)
	require.NoError(t, err)
	authService := auth.NewService(&userStore{users: map[string]auth.User{}}, auth.NewBcryptHasher(bcrypt.MinCost), tokens)
	authMiddleware := auth.NewMiddleware(tokens, nil)

	store := &articleStore{}
	generator := generation.NewClient(generation.Config{BaseURL: gemini.URL, Model: "test-model", APIKey: "test-key"}, metrics)
	articleService := articles.NewService(store, authService, generator, articles.ServiceConfig{
		Limiters: generation.IntervalLimiterFactory(5 * time.Millisecond),
	}, nil)

	statusStore := jobs.NewStatusStore(rdb, time.Hour)
	queue := &capturedQueue{}
	registry := prometheus.NewRegistry()

	router := app.NewRouter(app.RouterParams{
		Config: &app.Config{
			RateLimitRequests:  1000,
			RateLimitWindow:    time.Minute,
			GenerateRateLimit:  100,
			GenerateRateWindow: time.Minute,
		},
		AuthHandler:     auth.NewHandler(nil, authService, authMiddleware),
		AuthMiddleware:  authMiddleware,
		ArticlesService: articleService,
		BulkJobsHandler: jobs.NewBulkJobsHandler(articleService, statusStore, queue, nil),
		Metrics:         metrics,
	})
	return &harness{
		router:   router,
		queue:    queue,
		job:      jobs.NewBulkGenerateJob(articleService, statusStore, nil, jobmetrics.NewMetrics(registry)),
		store:    store,
		registry: registry,
	}
}

func (h *harness) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (h *harness) signup(t *testing.T, email, name string) string {
	t.Helper()
	var res auth.AuthResult
	code := h.call(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": email, "password": "hunter22", "name": name}, &res)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func TestSynchronousBulkFlow(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "ada@example.com", "Ada")

	var result articles.BulkResult
	code := h.call(t, http.MethodPost, "/api/articles/bulk-generate", token, map[string]any{"titles": []string{"Channels", "Generics"}}, &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "Ada", result.Articles[0].AuthorName)
	assert.Contains(t, result.Articles[0].Content, `titled "Channels"`)

	var errBody map[string]string
	code = h.call(t, http.MethodPost, "/api/articles/bulk-generate", token, map[string]any{"titles": []string{"A", "FAIL B", "C"}}, &errBody)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to generate articles", errBody["error"])

	var mine []articles.Article
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/api/articles/user/me", token, nil, &mine))
	titles := make([]string, 0, len(mine))
	for _, a := range mine {
		titles = append(titles, a.Title)
	}
	assert.ElementsMatch(t, []string{"Channels", "Generics", "A"}, titles, "the batch stops at the first failure and keeps prior articles")
}

func TestAsynchronousBulkFlow(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "grace@example.com", "")
	other := h.signup(t, "linus@example.com", "Linus")

	var created struct {
		JobID string     `json:"job_id"`
		State jobs.State `json:"state"`
	}
	code := h.call(t, http.MethodPost, "/api/articles/bulk-generate/jobs", token, map[string]any{"titles": []string{"Maps", "FAIL Slices", "Errors"}}, &created)
	require.Equal(t, http.StatusAccepted, code)
	require.Len(t, h.queue.payloads, 1)

	task, err := jobs.NewBulkGenerateTask(h.queue.payloads[0])
	require.NoError(t, err)
	require.Error(t, h.job.Handle(context.Background(), task))

	var job jobs.Job
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/api/articles/bulk-generate/jobs/"+created.JobID, token, nil, &job))
	assert.Equal(t, jobs.StateFailed, job.State)
	assert.Equal(t, 3, job.Total)
	assert.Equal(t, 1, job.Generated)
	require.Len(t, job.ArticleIDs, 1)

	assert.Equal(t, http.StatusNotFound, h.call(t, http.MethodGet, "/api/articles/bulk-generate/jobs/"+created.JobID, other, nil, nil))

	var article articles.Article
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, fmt.Sprintf("/api/articles/%d", job.ArticleIDs[0]), "", nil, &article))
	assert.Equal(t, "Maps", article.Title)
	assert.Equal(t, "grace@example.com", article.AuthorName, "email is used when the user has no name")

	families, err := h.registry.Gather()
	require.NoError(t, err)
	assert.True(t, counterIs(families, "articlegen_jobs_total", map[string]string{"job": jobs.TaskBulkGenerate, "status": "failure"}, 1))
	assert.True(t, counterIs(families, "articlegen_job_articles_generated_total", map[string]string{"job": jobs.TaskBulkGenerate}, 1))
}

func counterIs(families []*dto.MetricFamily, name string, labels map[string]string, expected float64) bool {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) && metric.GetCounter().GetValue() == expected {
				return true
			}
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}
