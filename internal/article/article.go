// Package article declares the article model and the storage contract shared
// by the memory, postgres, and sqlite backends.
package article

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNotFound signals that no article matches the requested id.
var ErrNotFound = errors.New("article not found")

// ErrInvalid signals a payload that fails validation.
var ErrInvalid = errors.New("invalid article")

// Article is a blog post as persisted by a Store.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Publish   bool      `json:"publish"`
	CreatedAt time.Time `json:"createTime"`
	UpdatedAt time.Time `json:"lastEditTime"`
}

// Draft carries the caller-supplied fields of a new article.
type Draft struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	Publish  bool     `json:"publish"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title    *string   `json:"title"`
	Abstract *string   `json:"abstract"`
	Content  *string   `json:"content"`
	Tags     *[]string `json:"tags"`
	Publish  *bool     `json:"publish"`
}

// Store is the persistence gateway for articles.
type Store interface {
	Create(ctx context.Context, draft Draft) (Article, error)
	Get(ctx context.Context, id string) (Article, error)
	List(ctx context.Context) ([]Article, error)
	ListPublished(ctx context.Context) ([]Article, error)
	Update(ctx context.Context, id string, patch Patch) (Article, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// IDGenerator mints article identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies timestamps for created/updated fields.
type Clock interface {
	Now() time.Time
}

// Validate normalizes the draft and rejects an empty title.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	d.Tags = normalizeTags(d.Tags)
	return nil
}

// Validate rejects a patch that would blank the title.
func (p *Patch) Validate() error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return fmt.Errorf("%w: title cannot be empty", ErrInvalid)
		}
		p.Title = &title
	}
	if p.Tags != nil {
		tags := normalizeTags(*p.Tags)
		p.Tags = &tags
	}
	return nil
}

// New builds an Article from a validated draft.
func New(id string, draft Draft, now time.Time) Article {
	return Article{
		ID:        id,
		Title:     draft.Title,
		Abstract:  draft.Abstract,
		Content:   draft.Content,
		Tags:      cloneTags(draft.Tags),
		Publish:   draft.Publish,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply returns a copy of a with the patch applied and UpdatedAt bumped.
func (p Patch) Apply(a Article, now time.Time) Article {
	out := a
	out.Tags = cloneTags(a.Tags)
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Abstract != nil {
		out.Abstract = *p.Abstract
	}
	if p.Content != nil {
		out.Content = *p.Content
	}
	if p.Tags != nil {
		out.Tags = cloneTags(*p.Tags)
	}
	if p.Publish != nil {
		out.Publish = *p.Publish
	}
	out.UpdatedAt = now
	return out
}

// Published filters in to the articles whose publish flag is set.
func Published(in []Article) []Article {
	out := make([]Article, 0, len(in))
	for _, a := range in {
		if a.Publish {
			out = append(out, a)
		}
	}
	return out
}

// SortNewestFirst orders by creation time descending, ties broken by id.
func SortNewestFirst(in []Article) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].CreatedAt.Equal(in[j].CreatedAt) {
			return in[i].ID > in[j].ID
		}
		return in[i].CreatedAt.After(in[j].CreatedAt)
	})
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func cloneTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
