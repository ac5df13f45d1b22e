package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bookring/pkg/database"
)

func main() {
	var (
		booksOut    = flag.String("books", "data/books.csv", "output CSV path for the catalog")
		listingsOut = flag.String("listings", "data/listings.csv", "output CSV path for listings")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := exportBooks(ctx, db, *booksOut); err != nil {
		log.Fatalf("export books failed: %v", err)
	}
	if err := exportListings(ctx, db, *listingsOut); err != nil {
		log.Fatalf("export listings failed: %v", err)
	}

	log.Printf("exported catalog to %s and listings to %s", *booksOut, *listingsOut)
}

func exportBooks(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id", "title", "author", "isbn_10", "isbn_13", "publisher",
		"published_date", "categories", "page_count", "language", "cover_image_url",
	}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT id, title, author, isbn_10, isbn_13, publisher,
               published_date, categories, page_count, language, cover_image_url
        FROM books
        ORDER BY title
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id            string
			title         string
			author        string
			isbn10        sql.NullString
			isbn13        sql.NullString
			publisher     sql.NullString
			publishedDate sql.NullString
			categories    sql.NullString
			pageCount     sql.NullInt64
			language      sql.NullString
			coverURL      sql.NullString
		)

		if err := rows.Scan(&id, &title, &author, &isbn10, &isbn13, &publisher,
			&publishedDate, &categories, &pageCount, &language, &coverURL); err != nil {
			return err
		}

		pages := ""
		if pageCount.Valid {
			pages = strconv.FormatInt(pageCount.Int64, 10)
		}

		if err := w.Write([]string{
			id,
			title,
			author,
			isbn10.String,
			isbn13.String,
			publisher.String,
			publishedDate.String,
			categories.String,
			pages,
			language.String,
			coverURL.String,
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func exportListings(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id", "book_id", "lender_id", "condition", "condition_notes",
		"available", "lending_duration", "pickup_preferences", "created_at",
	}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT id, book_id, lender_id, condition, condition_notes,
               available, lending_duration, pickup_preferences, created_at
        FROM listings
        ORDER BY created_at DESC
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        string
			bookID    string
			lenderID  string
			condition string
			notes     sql.NullString
			available int
			duration  int
			pickup    sql.NullString
			createdAt time.Time
		)

		if err := rows.Scan(&id, &bookID, &lenderID, &condition, &notes,
			&available, &duration, &pickup, &createdAt); err != nil {
			return err
		}

		if err := w.Write([]string{
			id,
			bookID,
			lenderID,
			condition,
			notes.String,
			strconv.Itoa(available),
			strconv.Itoa(duration),
			pickup.String,
			createdAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
