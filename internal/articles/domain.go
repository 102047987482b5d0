package articles

import "time"

const (
	// DefaultMaxBulkTitles caps one bulk generation request.
	DefaultMaxBulkTitles = 20
	// MaxTitleLength bounds a single title in characters.
	MaxTitleLength = 300
)

// Article is a generated article and its outward representation.
type Article struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewArticle holds the fields written when an article is created.
type NewArticle struct {
	Title      string
	Content    string
	UserID     string
	AuthorName string
}

// BulkRequest lists the titles to generate in order.
type BulkRequest struct {
	Titles  []string
	Details string
}

// BulkResult reports the articles created by a bulk run.
type BulkResult struct {
	Message  string    `json:"message"`
	Articles []Article `json:"articles"`
	Count    int       `json:"count"`
}

// ProgressFunc is invoked after each article of a batch is persisted.
type ProgressFunc func(article Article, done, total int)
