package importer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookring/internal/books"
	"bookring/internal/listings"
	"bookring/internal/lookup"
	"bookring/pkg/database"
)

func TestParseRejectsUnknownColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("name,rating\nDune,5\n"))
	require.ErrorIs(t, err, ErrNoColumns)
}

func TestParseRejectsEmptyFile(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.ErrorIs(t, err, ErrNoColumns)

	_, err = Parse(strings.NewReader("isbn,title\n"))
	require.ErrorIs(t, err, ErrNoRows)
}

func TestParseFiltersRows(t *testing.T) {
	input := strings.Join([]string{
		"ISBN,Title",
		"9780141439518,Pride and Prejudice", // keep: full row
		"123,",                              // drop: short isbn, no title
		",The Hobbit",                       // keep: title only
		"0441569595,",                       // keep: isbn-10 only
		",",                                 // drop: empty
	}, "\n")

	rows, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.Equal(t, defaultCondition, row.Condition)
		assert.False(t, row.Found, "rows must start unresolved")
		assert.False(t, row.Selected)
	}
	assert.Equal(t, "The Hobbit", rows[1].Title)
	assert.Empty(t, rows[1].ISBN)
}

// booksAPIStub answers like the Google Books volumes endpoint: a hit for
// the Pride and Prejudice ISBN, an empty result for anything else.
func booksAPIStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.Contains(r.URL.Query().Get("q"), "9780141439518") {
			fmt.Fprint(w, `{"items":[]}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"id":"gb1","volumeInfo":{
			"title":"Pride and Prejudice",
			"authors":["Jane Austen"],
			"publisher":"Penguin Classics",
			"publishedDate":"2002-12-31",
			"pageCount":480,
			"categories":["Fiction"],
			"language":"en",
			"industryIdentifiers":[
				{"type":"ISBN_13","identifier":"9780141439518"},
				{"type":"ISBN_10","identifier":"0141439513"}
			]}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveMarksHits(t *testing.T) {
	srv := booksAPIStub(t)
	client := lookup.NewClient(srv.URL, 0)

	rows, err := Parse(strings.NewReader("isbn,title\n9780141439518,\n9999999999999,\n"))
	require.NoError(t, err)

	found := Resolve(context.Background(), client, rows)
	require.Equal(t, 1, found)

	require.True(t, rows[0].Found)
	require.True(t, rows[0].Selected)
	require.NotNil(t, rows[0].Meta)
	assert.Equal(t, "Pride and Prejudice", rows[0].Meta.Title)
	assert.Equal(t, "9780141439518", rows[0].Meta.ISBN13)

	assert.False(t, rows[1].Found, "miss must stay deselected")
	assert.False(t, rows[1].Selected)
}

func TestSubmitListsSelectedRows(t *testing.T) {
	srv := booksAPIStub(t)
	client := lookup.NewClient(srv.URL, 0)

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	_, err = db.Exec(
		`INSERT INTO users (id, username, email, password_hash) VALUES ('u1', 'u1', 'u1@example.com', 'x')`,
	)
	require.NoError(t, err)

	svc := listings.NewService(db, books.NewRepo(db), listings.NewRepo(db))
	ctx := context.Background()

	rows, err := Parse(strings.NewReader("isbn\n9780141439518\n9999999999999\n"))
	require.NoError(t, err)
	require.Equal(t, 1, Resolve(ctx, client, rows))

	listed := Submit(ctx, svc, "u1", rows)
	require.Equal(t, 1, listed)

	var nBooks, nListings int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&nBooks))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM listings`).Scan(&nListings))
	assert.Equal(t, 1, nBooks)
	assert.Equal(t, 1, nListings)
}
