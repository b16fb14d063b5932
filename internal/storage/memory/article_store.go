// Package memory provides an in-process article store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/blog-ssr/internal/article"
)

// ArticleStore keeps articles in a map guarded by a RWMutex.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]article.Article
	ids      article.IDGenerator
	clock    article.Clock
}

// NewArticleStore constructs an empty ArticleStore.
func NewArticleStore(ids article.IDGenerator, clock article.Clock) *ArticleStore {
	return &ArticleStore{
		articles: make(map[string]article.Article),
		ids:      ids,
		clock:    clock,
	}
}

// Create validates and stores a new article.
func (s *ArticleStore) Create(_ context.Context, draft article.Draft) (article.Article, error) {
	if err := draft.Validate(); err != nil {
		return article.Article{}, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return article.Article{}, fmt.Errorf("create article: %w", err)
	}
	a := article.New(id, draft, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.articles[id]; exists {
		return article.Article{}, fmt.Errorf("create article: duplicate id %s", id)
	}
	s.articles[id] = a
	return copyArticle(a), nil
}

// Get fetches an article by id.
func (s *ArticleStore) Get(_ context.Context, id string) (article.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return article.Article{}, article.ErrNotFound
	}
	return copyArticle(a), nil
}

// List returns every article, newest first.
func (s *ArticleStore) List(_ context.Context) ([]article.Article, error) {
	s.mu.RLock()
	out := make([]article.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, copyArticle(a))
	}
	s.mu.RUnlock()
	article.SortNewestFirst(out)
	return out, nil
}

// ListPublished returns the published subset of List.
func (s *ArticleStore) ListPublished(ctx context.Context) ([]article.Article, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return article.Published(all), nil
}

// Update applies a partial update.
func (s *ArticleStore) Update(_ context.Context, id string, patch article.Patch) (article.Article, error) {
	if err := patch.Validate(); err != nil {
		return article.Article{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return article.Article{}, article.ErrNotFound
	}
	a = patch.Apply(a, s.clock.Now())
	s.articles[id] = a
	return copyArticle(a), nil
}

// Delete removes an article.
func (s *ArticleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return article.ErrNotFound
	}
	delete(s.articles, id)
	return nil
}

// Close is a no-op.
func (s *ArticleStore) Close() error { return nil }

func copyArticle(a article.Article) article.Article {
	cp := a
	cp.Tags = append([]string{}, a.Tags...)
	return cp
}
