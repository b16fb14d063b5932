// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/blog-ssr/internal/article"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "articles"

// Config controls the Postgres connection pool used for articles.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ArticleStore reads and writes articles in a single Postgres table.
type ArticleStore struct {
	pool  pool
	table string
	ids   article.IDGenerator
	clock article.Clock
}

// NewArticleStore connects to Postgres and ensures the articles table exists.
func NewArticleStore(
	ctx context.Context,
	cfg Config,
	ids article.IDGenerator,
	clock article.Clock,
) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewArticleStoreWithPool(p, cfg.Table, ids, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(
	p pool,
	table string,
	ids article.IDGenerator,
	clock article.Clock,
) (*ArticleStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ArticleStore{pool: p, table: table, ids: ids, clock: clock}, nil
}

// Migrate creates the articles table when missing.
func (s *ArticleStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	abstract TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	tags TEXT[] NOT NULL DEFAULT '{}',
	publish BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_created_at_idx ON %[1]s (created_at DESC);`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Create inserts a new article row.
func (s *ArticleStore) Create(ctx context.Context, draft article.Draft) (article.Article, error) {
	if err := draft.Validate(); err != nil {
		return article.Article{}, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return article.Article{}, fmt.Errorf("create article: %w", err)
	}
	a := article.New(id, draft, s.clock.Now())
	query := fmt.Sprintf(`
INSERT INTO %s (id, title, abstract, content, tags, publish, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		a.ID, a.Title, a.Abstract, a.Content, a.Tags, a.Publish, a.CreatedAt, a.UpdatedAt,
	); err != nil {
		return article.Article{}, fmt.Errorf("insert article: %w", err)
	}
	return a, nil
}

// Get loads a single article.
func (s *ArticleStore) Get(ctx context.Context, id string) (article.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns, s.table)
	a, err := scanArticle(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return article.Article{}, article.ErrNotFound
		}
		return article.Article{}, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

// List returns every article, newest first.
func (s *ArticleStore) List(ctx context.Context) ([]article.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id DESC`, columns, s.table)
	return s.list(ctx, query)
}

// ListPublished returns the published articles, newest first.
func (s *ArticleStore) ListPublished(ctx context.Context) ([]article.Article, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE publish ORDER BY created_at DESC, id DESC`, columns, s.table)
	return s.list(ctx, query)
}

// Update applies the patch in one statement; NULL arguments keep the stored value.
func (s *ArticleStore) Update(ctx context.Context, id string, patch article.Patch) (article.Article, error) {
	if err := patch.Validate(); err != nil {
		return article.Article{}, err
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	title = COALESCE($2, title),
	abstract = COALESCE($3, abstract),
	content = COALESCE($4, content),
	tags = COALESCE($5, tags),
	publish = COALESCE($6, publish),
	updated_at = $7
WHERE id = $1
RETURNING %s`, s.table, columns)
	a, err := scanArticle(s.pool.QueryRow(ctx, query,
		id, patch.Title, patch.Abstract, patch.Content, patch.Tags, patch.Publish, s.clock.Now(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return article.Article{}, article.ErrNotFound
		}
		return article.Article{}, fmt.Errorf("update article: %w", err)
	}
	return a, nil
}

// Delete removes an article row.
func (s *ArticleStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return article.ErrNotFound
	}
	return nil
}

const columns = "id, title, abstract, content, tags, publish, created_at, updated_at"

func (s *ArticleStore) list(ctx context.Context, query string) ([]article.Article, error) {
	rows, err := s.pool.Query(ctx, query)
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

func scanArticle(row pgx.Row) (article.Article, error) {
	var a article.Article
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Abstract,
		&a.Content,
		&a.Tags,
		&a.Publish,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a, err
}
