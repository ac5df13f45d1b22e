package books

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"bookring/pkg/database"
	"bookring/pkg/models"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestResolveOrCreateNewBook(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	id, created, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
		ISBN13:  "9780441013593",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created {
		t.Fatal("expected a new catalog row")
	}
	if id == "" {
		t.Fatal("expected a book id")
	}

	b, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b == nil || b.Title != "Dune" || b.Author != "Frank Herbert" {
		t.Fatalf("unexpected row: %+v", b)
	}
}

func TestResolveOrCreateReusesByISBN13(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	first, created, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
		ISBN13:  "9780441013593",
	})
	if err != nil || !created {
		t.Fatalf("seed: created=%v err=%v", created, err)
	}

	// Same ISBN-13, differently spelled metadata. Must map to the
	// existing row, not create a duplicate.
	second, created, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "Dune (Deluxe Edition)",
		Authors: []string{"Herbert, Frank"},
		ISBN13:  "9780441013593",
	})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if created {
		t.Fatal("expected reuse, got a new row")
	}
	if second != first {
		t.Fatalf("expected %s, got %s", first, second)
	}
}

func TestResolveOrCreateFallsBackToISBN10(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	first, _, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "Neuromancer",
		Authors: []string{"William Gibson"},
		ISBN10:  "0441569595",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// ISBN-13 unknown to the catalog, ISBN-10 matches.
	second, created, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "Neuromancer",
		Authors: []string{"William Gibson"},
		ISBN10:  "0441569595",
		ISBN13:  "9780441569595",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if created || second != first {
		t.Fatalf("expected reuse of %s, got %s (created=%v)", first, second, created)
	}
}

func TestResolveOrCreateFallsBackToTitleAuthor(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	first, _, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "The Hobbit",
		Authors: []string{"J.R.R. Tolkien"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	second, created, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "The Hobbit",
		Authors: []string{"J.R.R. Tolkien"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if created || second != first {
		t.Fatalf("expected reuse of %s, got %s (created=%v)", first, second, created)
	}

	// A different author with the same title is a different book.
	third, created, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "The Hobbit",
		Authors: []string{"Somebody Else"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created || third == first {
		t.Fatal("expected a distinct catalog row")
	}
}

func TestResolveOrCreateKeepsEditionsApart(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	first, _, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
		ISBN13:  "9780441013593",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Same title and author but a different ISBN-13: a distinct edition,
	// which must get its own catalog row so its ISBN stays resolvable.
	second, created, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
		ISBN13:  "9780340960196",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created || second == first {
		t.Fatalf("expected a distinct row, got %s (created=%v)", second, created)
	}

	again, created, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:  "Dune",
		ISBN13: "9780340960196",
	})
	if err != nil {
		t.Fatalf("resolve edition: %v", err)
	}
	if created || again != second {
		t.Fatalf("expected reuse of %s, got %s (created=%v)", second, again, created)
	}
}

func TestSearchMinQueryLength(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	if _, _, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, err := repo.Search(ctx, "D", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("one-char query must return nothing, got %d", len(items))
	}

	items, err = repo.Search(ctx, "  du  ", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Dune" {
		t.Fatalf("unexpected results: %+v", items)
	}
}

func TestSearchCapsResults(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if _, _, err := repo.ResolveOrCreate(ctx, nil, models.BookMeta{
			Title:   fmt.Sprintf("Foundation %d", i),
			Authors: []string{"Isaac Asimov"},
		}); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	items, err := repo.Search(ctx, "foundation", searchLimit)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != searchLimit {
		t.Fatalf("expected %d results, got %d", searchLimit, len(items))
	}
}
