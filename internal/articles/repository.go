package articles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/articlegen/articlegen/internal/shared"
)

const articleColumns = `id, title, content, user_id::text, COALESCE(author_name, ''), created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence for articles.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns all articles, newest first.
func (r *PGRepository) List(ctx context.Context) ([]Article, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collectArticles(rows)
}

// ListByUser returns the articles owned by userID, newest first.
func (r *PGRepository) ListByUser(ctx context.Context, userID string) ([]Article, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []Article{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+articleColumns+` FROM articles WHERE user_id = $1::uuid ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectArticles(rows)
}

// Get fetches one article.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Article, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	article, err := pgx.CollectExactlyOneRow(rows, scanArticle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &article, nil
}

// Create inserts a new article. The foreign key on user_id rejects unknown
// owners.
func (r *PGRepository) Create(ctx context.Context, in NewArticle) (*Article, error) {
	rows, err := r.pool.Query(ctx, `
		INSERT INTO articles (title, content, user_id, author_name)
		VALUES ($1, $2, $3::uuid, NULLIF($4::text, ''))
		RETURNING `+articleColumns, in.Title, in.Content, in.UserID, in.AuthorName)
	if err != nil {
		return nil, err
	}
	article, err := pgx.CollectExactlyOneRow(rows, scanArticle)
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// Delete removes the article when it is owned by userID. It reports whether
// a row was removed.
func (r *PGRepository) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1 AND user_id = $2::uuid`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanArticle(row pgx.CollectableRow) (Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.UserID, &a.AuthorName, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func collectArticles(rows pgx.Rows) ([]Article, error) {
	list, err := pgx.CollectRows(rows, scanArticle)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Article{}
	}
	return list, nil
}

var _ Repository = (*PGRepository)(nil)
