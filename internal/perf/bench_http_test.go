package perf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/articlegen/articlegen/internal/app"
	"github.com/articlegen/articlegen/internal/articles"
	"github.com/articlegen/articlegen/internal/auth"
	"github.com/articlegen/articlegen/internal/shared"
	_ "github.com/articlegen/articlegen/testing"
)

type fixedArticles struct {
	rows []articles.Article
}

func (f fixedArticles) List(ctx context.Context) ([]articles.Article, error) { return f.rows, nil }

func (f fixedArticles) ListByUser(ctx context.Context, userID string) ([]articles.Article, error) {
	return f.rows, nil
}

func (f fixedArticles) Get(ctx context.Context, id int64) (*articles.Article, error) {
	if id < 1 || int(id) > len(f.rows) {
		return nil, shared.ErrNotFound
	}
	return &f.rows[id-1], nil
}

func (f fixedArticles) Create(ctx context.Context, in articles.NewArticle) (*articles.Article, error) {
	return &articles.Article{Title: in.Title}, nil
}

func (f fixedArticles) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	return false, nil
}

type instantGenerator struct{}

func (instantGenerator) GenerateArticle(ctx context.Context, title, details string) (string, error) {
	return title, nil
}

func newRouter(tb testing.TB) (http.Handler, string) {
	tb.Helper()
	rows := make([]articles.Article, 50)
	for i := range rows {
		rows[i] = articles.Article{ID: int64(i + 1), Title: "Article", Content: "Body", UserID: "u-1", AuthorName: "Ada", CreatedAt: time.Now()}
	}
	tokens, err := auth.NewTokenService("perf-secret", time.Hour)
	if err != nil {
		tb.Fatalf("tokens: %v", err)
	}
	token, _, err := tokens.Issue(shared.Identity{ID: "u-1", Email: "ada@example.com"})
	if err != nil {
		tb.Fatalf("issue: %v", err)
	}
	svc := articles.NewService(fixedArticles{rows: rows}, nil, instantGenerator{}, articles.ServiceConfig{}, nil)
	router := app.NewRouter(app.RouterParams{
		Config:          &app.Config{RateLimitRequests: 1 << 30, RateLimitWindow: time.Minute},
		AuthMiddleware:  auth.NewMiddleware(tokens, nil),
		ArticlesService: svc,
	})
	return router, token
}

func TestListLatencyTarget(t *testing.T) {
	router, _ := newRouter(t)
	samples := make([]time.Duration, 0, 200)
	for i := 0; i < cap(samples); i++ {
		start := time.Now()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
		samples = append(samples, time.Since(start))
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("list latency regression: p95=%s", p95)
	}
}

func BenchmarkListArticles(b *testing.B) {
	router, _ := newRouter(b)
	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkAuthenticatedListMine(b *testing.B) {
	router, token := newRouter(b)
	req := httptest.NewRequest(http.MethodGet, "/api/articles/user/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*0.95)]
}
