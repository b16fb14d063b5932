package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/blog-ssr/internal/article"
)

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var (
	testNow  = time.Unix(1700000000, 0).UTC()
	testCols = []string{"id", "title", "abstract", "content", "tags", "publish", "created_at", "updated_at"}
)

func newMockStore(t *testing.T) (*ArticleStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	store, err := NewArticleStoreWithPool(mock, "articles", fixedIDs{id: "art-1"}, fixedClock{now: testNow})
	require.NoError(t, err)
	return store, mock
}

func TestNewArticleStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewArticleStoreWithPool(mock, "articles; drop", fixedIDs{}, fixedClock{})
	require.Error(t, err)
	_, err = NewArticleStoreWithPool(nil, "articles", fixedIDs{}, fixedClock{})
	require.Error(t, err)
}

func TestCreateInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO articles").
		WithArgs("art-1", "Hello", "", "body", []string{"go"}, true, testNow, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a, err := store.Create(context.Background(), article.Draft{
		Title:   " Hello ",
		Content: "body",
		Tags:    []string{"go"},
		Publish: true,
	})
	require.NoError(t, err)
	require.Equal(t, "art-1", a.ID)
	require.Equal(t, "Hello", a.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsInvalidDraftWithoutQuery(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	_, err := store.Create(context.Background(), article.Draft{})
	require.ErrorIs(t, err, article.ErrInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMapsNoRowsToNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM articles WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(testCols))

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, article.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnsArticle(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM articles WHERE id").
		WithArgs("art-1").
		WillReturnRows(pgxmock.NewRows(testCols).
			AddRow("art-1", "Hello", "abs", "body", []string{"go"}, true, testNow, testNow))

	a, err := store.Get(context.Background(), "art-1")
	require.NoError(t, err)
	require.Equal(t, "Hello", a.Title)
	require.Equal(t, []string{"go"}, a.Tags)
	require.True(t, a.Publish)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPublishedFiltersInSQL(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("WHERE publish ORDER BY created_at DESC").
		WillReturnRows(pgxmock.NewRows(testCols).
			AddRow("a", "A", "", "", []string{}, true, testNow, testNow).
			AddRow("b", "B", "", "", []string{}, true, testNow, testNow))

	out, err := store.ListPublished(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListWrapsQueryError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM articles ORDER BY").WillReturnError(errors.New("boom"))

	_, err := store.List(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "list articles")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	publish := true
	mock.ExpectQuery("UPDATE articles SET").
		WithArgs("missing", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), testNow).
		WillReturnRows(pgxmock.NewRows(testCols))

	_, err := store.Update(context.Background(), "missing", article.Patch{Publish: &publish})
	require.ErrorIs(t, err, article.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReturnsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	title := "Renamed"
	mock.ExpectQuery("UPDATE articles SET").
		WithArgs("art-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), testNow).
		WillReturnRows(pgxmock.NewRows(testCols).
			AddRow("art-1", "Renamed", "", "", []string{}, false, testNow, testNow))

	a, err := store.Update(context.Background(), "art-1", article.Patch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Renamed", a.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNotFoundWhenNoRowsAffected(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM articles").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM articles").
		WithArgs("art-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.ErrorIs(t, store.Delete(context.Background(), "missing"), article.ErrNotFound)
	require.NoError(t, store.Delete(context.Background(), "art-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCreatesTable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS articles").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
