package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-ssr/internal/article"
	"github.com/JakeFAU/blog-ssr/internal/auth"
	"github.com/JakeFAU/blog-ssr/internal/clock/system"
	"github.com/JakeFAU/blog-ssr/internal/id/uuid"
	"github.com/JakeFAU/blog-ssr/internal/render"
	"github.com/JakeFAU/blog-ssr/internal/spa"
	"github.com/JakeFAU/blog-ssr/internal/ssr"
	"github.com/JakeFAU/blog-ssr/internal/storage/memory"
)

const (
	testTitle       = "Neo's blog"
	testPlaceholder = "Waiting !!!"
	testShell       = `<html><head><title>{{.Title}}</title></head><body><!--ssr-outlet--></body></html>`
)

type testEnv struct {
	server *Server
	holder *ssr.Holder
	token  string
}

func newTestEnv(t *testing.T, store article.Store) *testEnv {
	t.Helper()
	if store == nil {
		store = memory.NewArticleStore(uuid.New(), system.New())
	}
	verifier := auth.NewVerifier("test-secret", "blog-test", time.Hour)
	token, err := verifier.IssueToken("admin", 0)
	require.NoError(t, err)

	adminDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(adminDir, "admin.html"), []byte("<html>admin app</html>"), 0o600))
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "robots.txt"), []byte("User-agent: *"), 0o600))

	holder := ssr.NewHolder()
	gate := ssr.NewGate(holder, testPlaceholder)
	server := NewServer(Deps{
		Store:      store,
		Verifier:   verifier,
		Gate:       gate,
		Pages:      ssr.NewDispatcher(holder, ssr.Options{Title: testTitle}),
		Admin:      spa.New(spa.Config{Dir: adminDir, Index: "/admin.html"}),
		StaticDirs: []string{staticDir},
		Logger:     zap.NewNop(),
	})
	return &testEnv{server: server, holder: holder, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) installRenderer(t *testing.T) {
	t.Helper()
	r, err := render.New(render.Bundle{
		Entry: "app",
		Files: map[string]string{"app": `<div id="app">{{.URL}}</div>`},
	}, testShell, render.Options{})
	require.NoError(t, err)
	e.holder.Store(r)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateThenGetRoundTrips(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	payload := `{"title":"Hello","abstract":"short","content":"# body","tags":["go","ssr"],"publish":true}`
	rec := env.do(t, http.MethodPost, "/articles", payload, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[article.Article](t, rec)
	require.NotEmpty(t, created.ID)

	rec = env.do(t, http.MethodGet, "/articles/"+created.ID, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[article.Article](t, rec)
	require.Equal(t, "Hello", got.Title)
	require.Equal(t, "short", got.Abstract)
	require.Equal(t, "# body", got.Content)
	require.Equal(t, []string{"go", "ssr"}, got.Tags)
	require.True(t, got.Publish)
	require.Contains(t, rec.Body.String(), `"createTime"`)
	require.Contains(t, rec.Body.String(), `"lastEditTime"`)
}

func TestMissingIDsAreNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/articles/nope", "", false).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPatch, "/articles/nope", `{"title":"x"}`, true).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/articles/nope", "", true).Code)
}

func TestPatchAndDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	created := decode[article.Article](t, env.do(t, http.MethodPost, "/articles", `{"title":"Draft","content":"a"}`, true))

	rec := env.do(t, http.MethodPatch, "/articles/"+created.ID, `{"publish":true}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[article.Article](t, rec)
	require.True(t, updated.Publish)
	require.Equal(t, "Draft", updated.Title)
	require.Equal(t, "a", updated.Content)

	rec = env.do(t, http.MethodDelete, "/articles/"+created.ID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, fmt.Sprintf(`{"id":%q,"deleted":true}`, created.ID), rec.Body.String())
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/articles/"+created.ID, "", false).Code)
}

func TestInvalidPayloads(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/articles", `{invalid`, true).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/articles", `{"title":"  "}`, true).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/articles", `{"title":"x","bogus":1}`, true).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/articles", "", true).Code)

	created := decode[article.Article](t, env.do(t, http.MethodPost, "/articles", `{"title":"ok"}`, true))
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, "/articles/"+created.ID, `{"title":""}`, true).Code)

	big := `{"title":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	require.Equal(t, http.StatusRequestEntityTooLarge, env.do(t, http.MethodPost, "/articles", big, true).Code)
}

func TestPublishArticlesIsPublishedSubset(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	for i, publish := range []bool{true, false, true, false} {
		body := fmt.Sprintf(`{"title":"post %d","publish":%t}`, i, publish)
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/articles", body, true).Code)
	}

	all := decode[[]article.Article](t, env.do(t, http.MethodGet, "/articles", "", true))
	published := decode[[]article.Article](t, env.do(t, http.MethodGet, "/publishArticles", "", false))
	require.Len(t, all, 4)
	require.Len(t, published, 2)

	ids := make(map[string]bool, len(all))
	for _, a := range all {
		ids[a.ID] = a.Publish
	}
	for _, a := range published {
		require.True(t, a.Publish)
		require.True(t, ids[a.ID])
	}
}

func TestProtectedRoutesRequireCredential(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	created := decode[article.Article](t, env.do(t, http.MethodPost, "/articles", `{"title":"x"}`, true))

	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/articles", "", false).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/articles", `{"title":"y"}`, false).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPatch, "/articles/"+created.ID, `{"title":"y"}`, false).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodDelete, "/articles/"+created.ID, "", false).Code)

	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/articles/"+created.ID, "", false).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/publishArticles", "", false).Code)
}

func TestGateThenRenderedPages(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	for _, p := range []string{"/", "/post/1", "/tags/go?page=2", "/adminfoo", "/articlesish"} {
		rec := env.do(t, http.MethodGet, p, "", false)
		require.Equal(t, http.StatusOK, rec.Code, p)
		require.Equal(t, testPlaceholder, rec.Body.String(), p)
	}
	rec := env.do(t, http.MethodGet, "/readyz", "", false)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"waiting"}`, rec.Body.String())

	env.installRenderer(t)

	rec = env.do(t, http.MethodGet, "/post/1?x=2", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "<title>Neo&#39;s blog</title>")
	require.Contains(t, rec.Body.String(), `<div id="app">/post/1?x=2</div>`)

	rec = env.do(t, http.MethodGet, "/readyz", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestAdminPathsServeAdminIndex(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	for _, ready := range []bool{false, true} {
		want := testPlaceholder
		if ready {
			env.installRenderer(t)
			want = "<html>admin app</html>"
		}
		for _, p := range []string{"/admin", "/admin/login", "/admin/xyz"} {
			rec := env.do(t, http.MethodGet, p, "", false)
			require.Equal(t, http.StatusOK, rec.Code, p)
			require.Equal(t, want, rec.Body.String(), p)
		}
		rec := env.do(t, http.MethodGet, "/adminfoo", "", false)
		require.NotEqual(t, "<html>admin app</html>", rec.Body.String())
	}
}

func TestDistFilesServedAfterGate(t *testing.T) {
	t.Parallel()

	distDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(distDir, "main.js"), []byte("console.log(1)"), 0o600))

	holder := ssr.NewHolder()
	server := NewServer(Deps{
		Store:    memory.NewArticleStore(uuid.New(), system.New()),
		Verifier: auth.NewVerifier("test-secret", "blog-test", time.Hour),
		Gate:     ssr.NewGate(holder, testPlaceholder),
		Pages:    ssr.NewDispatcher(holder, ssr.Options{Title: testTitle}),
		DistDirs: []string{distDir},
		Logger:   zap.NewNop(),
	})
	get := func(p string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		return rec
	}

	require.Equal(t, testPlaceholder, get("/main.js").Body.String())

	r, err := render.New(render.Bundle{
		Entry: "app",
		Files: map[string]string{"app": `<div id="app">{{.URL}}</div>`},
	}, testShell, render.Options{})
	require.NoError(t, err)
	holder.Store(r)

	require.Equal(t, "console.log(1)", get("/main.js").Body.String())
	require.Contains(t, get("/post/1").Body.String(), `<div id="app">/post/1</div>`)
}

func TestStaticFilesServedBeforeGate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/robots.txt", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "User-agent: *", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/missing.txt", "", false)
	require.Equal(t, testPlaceholder, rec.Body.String())
}

func TestConcurrentRendersAreIndependent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.installRenderer(t)
	handler := env.server.Handler()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := range 40 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/post/%d", i)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			want := fmt.Sprintf(`<div id="app">%s</div>`, path)
			if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), want) {
				errs <- fmt.Errorf("request %s got %d: %s", path, rec.Code, rec.Body.String())
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestOperationalRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/healthz", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestNonGetPagesAreNotAllowed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.installRenderer(t)
	rec := env.do(t, http.MethodPost, "/post/1", `{}`, false)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type failingStore struct {
	article.Store
}

func (failingStore) List(context.Context) ([]article.Article, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Get(context.Context, string) (article.Article, error) {
	return article.Article{}, errors.New("connection refused")
}

type panickingStore struct {
	article.Store
}

func (panickingStore) ListPublished(context.Context) ([]article.Article, error) {
	panic("boom")
}

func TestStoreFailureIsGeneric500(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, failingStore{})
	rec := env.do(t, http.MethodGet, "/articles", "", true)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")

	rec = env.do(t, http.MethodGet, "/articles/abc", "", false)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, panickingStore{})
	rec := env.do(t, http.MethodGet, "/publishArticles", "", false)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
