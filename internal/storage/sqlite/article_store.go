// Package sqlite provides an embedded article store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/blog-ssr/internal/article"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	abstract TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	publish BOOLEAN NOT NULL DEFAULT FALSE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS articles_created_at_idx ON articles (created_at DESC);
`

const columns = "id, title, abstract, content, tags, publish, created_at, updated_at"

// ArticleStore persists articles in a single SQLite file.
type ArticleStore struct {
	db    *sql.DB
	ids   article.IDGenerator
	clock article.Clock
}

// Open opens (or creates) the database at dsn and migrates the schema.
func Open(ctx context.Context, dsn string, ids article.IDGenerator, clock article.Clock) (*ArticleStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &ArticleStore{db: db, ids: ids, clock: clock}, nil
}

// Close closes the database handle.
func (s *ArticleStore) Close() error { return s.db.Close() }

// Create inserts a new article.
func (s *ArticleStore) Create(ctx context.Context, draft article.Draft) (article.Article, error) {
	if err := draft.Validate(); err != nil {
		return article.Article{}, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return article.Article{}, fmt.Errorf("create article: %w", err)
	}
	a := article.New(id, draft, s.clock.Now())
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return article.Article{}, fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO articles (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Abstract, a.Content, string(tags), a.Publish,
		a.CreatedAt.UnixMicro(), a.UpdatedAt.UnixMicro(),
	)
	if err != nil {
		return article.Article{}, fmt.Errorf("insert article: %w", err)
	}
	return a, nil
}

// Get loads one article.
func (s *ArticleStore) Get(ctx context.Context, id string) (article.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return article.Article{}, article.ErrNotFound
		}
		return article.Article{}, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

// List returns all articles, newest first.
func (s *ArticleStore) List(ctx context.Context) ([]article.Article, error) {
	return s.list(ctx, `SELECT `+columns+` FROM articles ORDER BY created_at DESC, id DESC`)
}

// ListPublished returns published articles, newest first.
func (s *ArticleStore) ListPublished(ctx context.Context) ([]article.Article, error) {
	return s.list(ctx, `SELECT `+columns+` FROM articles WHERE publish ORDER BY created_at DESC, id DESC`)
}

// Update applies a partial update; NULL parameters keep the stored value.
func (s *ArticleStore) Update(ctx context.Context, id string, patch article.Patch) (article.Article, error) {
	if err := patch.Validate(); err != nil {
		return article.Article{}, err
	}
	var tags any
	if patch.Tags != nil {
		raw, err := json.Marshal(*patch.Tags)
		if err != nil {
			return article.Article{}, fmt.Errorf("marshal tags: %w", err)
		}
		tags = string(raw)
	}
	row := s.db.QueryRowContext(ctx, `
UPDATE articles SET
	title = COALESCE(?, title),
	abstract = COALESCE(?, abstract),
	content = COALESCE(?, content),
	tags = COALESCE(?, tags),
	publish = COALESCE(?, publish),
	updated_at = ?
WHERE id = ?
RETURNING `+columns,
		nullable(patch.Title), nullable(patch.Abstract), nullable(patch.Content), tags,
		nullable(patch.Publish), s.clock.Now().UnixMicro(), id,
	)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return article.Article{}, article.ErrNotFound
		}
		return article.Article{}, fmt.Errorf("update article: %w", err)
	}
	return a, nil
}

// Delete removes an article.
func (s *ArticleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if n == 0 {
		return article.ErrNotFound
	}
	return nil
}

func (s *ArticleStore) list(ctx context.Context, query string) ([]article.Article, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := make([]article.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (article.Article, error) {
	var (
		a                article.Article
		tags             string
		created, updated int64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Abstract, &a.Content, &tags, &a.Publish, &created, &updated); err != nil {
		return article.Article{}, err
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return article.Article{}, fmt.Errorf("decode tags: %w", err)
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	a.CreatedAt = time.UnixMicro(created).UTC()
	a.UpdatedAt = time.UnixMicro(updated).UTC()
	return a, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
