package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/articlegen/articlegen/internal/generation"
	"github.com/articlegen/articlegen/internal/shared"
)

// Repository defines persistence operations for articles.
type Repository interface {
	List(ctx context.Context) ([]Article, error)
	ListByUser(ctx context.Context, userID string) ([]Article, error)
	Get(ctx context.Context, id int64) (*Article, error)
	Create(ctx context.Context, in NewArticle) (*Article, error)
	Delete(ctx context.Context, id int64, userID string) (bool, error)
}

// AuthorResolver resolves the label stored as an article's author.
type AuthorResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// ServiceConfig tunes generation workflows.
type ServiceConfig struct {
	MaxBulkTitles int
	Limiters      generation.LimiterFactory
}

// Service handles article business logic.
type Service struct {
	repo      Repository
	authors   AuthorResolver
	generator generation.Generator
	limiters  generation.LimiterFactory
	maxBulk   int
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, authors AuthorResolver, generator generation.Generator, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.MaxBulkTitles <= 0 {
		cfg.MaxBulkTitles = DefaultMaxBulkTitles
	}
	if cfg.Limiters == nil {
		cfg.Limiters = generation.IntervalLimiterFactory(generation.DefaultInterval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		authors:   authors,
		generator: generator,
		limiters:  cfg.Limiters,
		maxBulk:   cfg.MaxBulkTitles,
		logger:    logger,
	}
}

// List returns all articles.
func (s *Service) List(ctx context.Context) ([]Article, error) {
	return s.repo.List(ctx)
}

// ListByUser returns the requester's articles.
func (s *Service) ListByUser(ctx context.Context, requester shared.Identity) ([]Article, error) {
	return s.repo.ListByUser(ctx, requester.ID)
}

// Get returns one article or a not-found error.
func (s *Service) Get(ctx context.Context, id int64) (*Article, error) {
	if id <= 0 {
		return nil, shared.NotFound("article not found")
	}
	article, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFound("article not found")
		}
		return nil, fmt.Errorf("articles: get %d: %w", id, err)
	}
	return article, nil
}

// Generate writes one article for title and stores it for the requester.
func (s *Service) Generate(ctx context.Context, title, details string, requester shared.Identity) (*Article, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	author, err := s.authorName(ctx, requester)
	if err != nil {
		return nil, err
	}
	return s.generateOne(ctx, title, details, requester, author)
}

// BulkGenerate generates the titles one after another, in order, waiting on
// a fresh limiter before every upstream call. The first failure stops the
// batch; articles created before it stay persisted and are returned with the
// error.
func (s *Service) BulkGenerate(ctx context.Context, req BulkRequest, requester shared.Identity, progress ProgressFunc) (*BulkResult, error) {
	titles, err := s.NormalizeTitles(req.Titles)
	if err != nil {
		return nil, err
	}
	author, err := s.authorName(ctx, requester)
	if err != nil {
		return nil, err
	}

	limiter := s.limiters()
	result := &BulkResult{Articles: make([]Article, 0, len(titles))}
	logger := s.logger.With(slog.String("user_id", requester.ID), slog.Int("titles", len(titles)))
	logger.Info("starting bulk generation")

	for i, title := range titles {
		if err := limiter.Wait(ctx); err != nil {
			return finish(result), fmt.Errorf("articles: bulk wait before %q: %w", title, err)
		}
		logger.Debug("generating article", slog.String("title", title), slog.Int("position", i+1))
		article, err := s.generateOne(ctx, title, req.Details, requester, author)
		if err != nil {
			logger.Warn("bulk generation aborted", slog.String("title", title), slog.Int("generated", len(result.Articles)), slog.Any("error", err))
			return finish(result), err
		}
		result.Articles = append(result.Articles, *article)
		if progress != nil {
			progress(*article, i+1, len(titles))
		}
	}

	logger.Info("completed bulk generation", slog.Int("generated", len(result.Articles)))
	return finish(result), nil
}

// Delete removes an article owned by the requester. Deleting an article the
// requester does not own changes nothing and is not an error.
func (s *Service) Delete(ctx context.Context, id int64, requester shared.Identity) error {
	removed, err := s.repo.Delete(ctx, id, requester.ID)
	if err != nil {
		return fmt.Errorf("articles: delete %d: %w", id, err)
	}
	if !removed {
		s.logger.Warn("delete matched no article", slog.Int64("article_id", id), slog.String("user_id", requester.ID))
	}
	return nil
}

// NormalizeTitles validates a bulk title list and returns the trimmed, NFC
// normalized titles.
func (s *Service) NormalizeTitles(titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, shared.Validation("titles must be a non-empty array")
	}
	if len(titles) > s.maxBulk {
		return nil, shared.Validation(fmt.Sprintf("at most %d titles can be generated at once", s.maxBulk))
	}
	out := make([]string, len(titles))
	for i, raw := range titles {
		title, err := normalizeTitle(raw)
		if err != nil {
			return nil, shared.Validation(fmt.Sprintf("title %d: %s", i+1, shared.UserSafeMessage(err)))
		}
		out[i] = title
	}
	return out, nil
}

func (s *Service) generateOne(ctx context.Context, title, details string, requester shared.Identity, author string) (*Article, error) {
	content, err := s.generator.GenerateArticle(ctx, title, details)
	if err != nil {
		if !errors.Is(err, shared.ErrGeneration) {
			err = fmt.Errorf("%w: %v", shared.ErrGeneration, err)
		}
		return nil, fmt.Errorf("articles: generate %q: %w", title, err)
	}
	article, err := s.repo.Create(ctx, NewArticle{
		Title:      title,
		Content:    content,
		UserID:     requester.ID,
		AuthorName: author,
	})
	if err != nil {
		return nil, fmt.Errorf("articles: store %q: %w", title, err)
	}
	return article, nil
}

func (s *Service) authorName(ctx context.Context, requester shared.Identity) (string, error) {
	if s.authors == nil {
		return requester.Email, nil
	}
	name, err := s.authors.DisplayName(ctx, requester.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return requester.Email, nil
		}
		return "", fmt.Errorf("articles: resolve author: %w", err)
	}
	return name, nil
}

func normalizeTitle(raw string) (string, error) {
	title := norm.NFC.String(strings.TrimSpace(raw))
	if title == "" {
		return "", shared.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", shared.Validation(fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	return title, nil
}

func finish(result *BulkResult) *BulkResult {
	result.Count = len(result.Articles)
	result.Message = fmt.Sprintf("Successfully generated %d articles", result.Count)
	return result
}
