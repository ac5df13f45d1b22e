package listings

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"bookring/internal/books"
	"bookring/pkg/database"
	"bookring/pkg/models"
)

func testService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db, books.NewRepo(db), NewRepo(db)), db
}

func seedUser(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO users (id, username, email, password_hash) VALUES (?, ?, ?, ?)`,
		id, "user-"+id, id+"@example.com", "x",
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO profiles (user_id, name) VALUES (?, ?)`, id, "User "+id,
	); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func TestListBookCreatesBookAndListing(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()
	seedUser(t, db, "u1")

	l, bookCreated, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta: models.BookMeta{
			Title:   "Dune",
			Authors: []string{"Frank Herbert"},
			ISBN13:  "9780441013593",
		},
		Condition: "good",
	})
	if err != nil {
		t.Fatalf("list book: %v", err)
	}
	if !bookCreated {
		t.Fatal("expected a new catalog row")
	}
	if l.Condition != "Good" {
		t.Fatalf("condition not normalized: %q", l.Condition)
	}
	if l.LendingDuration != defaultLendingDuration {
		t.Fatalf("expected default duration, got %d", l.LendingDuration)
	}
	if !l.Available {
		t.Fatal("new listings must start available")
	}

	detail, err := svc.Listings.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if detail == nil || detail.Book.Title != "Dune" || detail.LenderName != "User u1" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestListBookReusesCatalogRow(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")

	meta := models.BookMeta{
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
		ISBN13:  "9780441013593",
	}

	first, _, err := svc.ListBook(ctx, "u1", ListRequest{Meta: meta, Condition: "Good"})
	if err != nil {
		t.Fatalf("first listing: %v", err)
	}
	second, bookCreated, err := svc.ListBook(ctx, "u2", ListRequest{Meta: meta, Condition: "Fair"})
	if err != nil {
		t.Fatalf("second listing: %v", err)
	}
	if bookCreated {
		t.Fatal("second copy of the same edition must reuse the catalog row")
	}
	if first.BookID != second.BookID {
		t.Fatalf("book ids differ: %s vs %s", first.BookID, second.BookID)
	}
	if first.ID == second.ID {
		t.Fatal("each copy must get its own listing")
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		t.Fatalf("count books: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one catalog row, got %d", n)
	}
}

func TestListBookValidation(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()
	seedUser(t, db, "u1")

	if _, _, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta:      models.BookMeta{Authors: []string{"Nobody"}},
		Condition: "Good",
	}); err == nil {
		t.Fatal("expected error for missing title")
	}

	if _, _, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta:      models.BookMeta{Title: "Dune"},
		Condition: "Mint In Box",
	}); err == nil {
		t.Fatal("expected error for unknown condition")
	}
}

func TestSetAvailabilityIsLenderScoped(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")

	l, _, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta:      models.BookMeta{Title: "Dune", Authors: []string{"Frank Herbert"}},
		Condition: "Good",
	})
	if err != nil {
		t.Fatalf("list book: %v", err)
	}

	ok, err := svc.Listings.SetAvailability(ctx, l.ID, "u2", false)
	if err != nil {
		t.Fatalf("set availability: %v", err)
	}
	if ok {
		t.Fatal("another user must not be able to toggle the listing")
	}

	ok, err = svc.Listings.SetAvailability(ctx, l.ID, "u1", false)
	if err != nil || !ok {
		t.Fatalf("owner toggle failed: ok=%v err=%v", ok, err)
	}

	detail, err := svc.Listings.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Available {
		t.Fatal("listing should be marked lent out")
	}
}

func TestDeleteIsLenderScoped(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")

	l, _, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta:      models.BookMeta{Title: "Dune", Authors: []string{"Frank Herbert"}},
		Condition: "Good",
	})
	if err != nil {
		t.Fatalf("list book: %v", err)
	}

	if ok, err := svc.Listings.Delete(ctx, l.ID, "u2"); err != nil || ok {
		t.Fatalf("foreign delete: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.Listings.Delete(ctx, l.ID, "u1"); err != nil || !ok {
		t.Fatalf("owner delete: ok=%v err=%v", ok, err)
	}

	detail, err := svc.Listings.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail != nil {
		t.Fatal("listing should be gone")
	}
}

func TestListingCoordinatesRoundTrip(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()
	seedUser(t, db, "u1")

	near, far := 48.86, 40.71
	lonNear, lonFar := 2.35, -74.0

	if _, _, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta:      models.BookMeta{Title: "Far Book", Authors: []string{"A"}},
		Condition: "Good",
		Latitude:  &far,
		Longitude: &lonFar,
	}); err != nil {
		t.Fatalf("far listing: %v", err)
	}
	if _, _, err := svc.ListBook(ctx, "u1", ListRequest{
		Meta:      models.BookMeta{Title: "Near Book", Authors: []string{"B"}},
		Condition: "Good",
		Latitude:  &near,
		Longitude: &lonNear,
	}); err != nil {
		t.Fatalf("near listing: %v", err)
	}

	items, total, err := svc.Listings.List(ctx, ListQuery{OnlyAvailable: true, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 listings, got total=%d len=%d", total, len(items))
	}
	for _, item := range items {
		if item.Latitude == nil || item.Longitude == nil {
			t.Fatalf("listing coords missing: %+v", item)
		}
	}
}
