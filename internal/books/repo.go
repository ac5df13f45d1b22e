package books

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bookring/pkg/models"
)

const searchLimit = 5

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q        string // keyword search in title/author
	Category string // substring match against categories
	Limit    int
	Offset   int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const bookColumns = `
	id, title, author, isbn_10, isbn_13, publisher, published_date,
	description, categories, page_count, language, cover_image_url,
	google_books_id, created_at
`

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE id = ?
	`, id)

	b, err := scanBook(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return b, nil
}

// Search matches the navbar dropdown: case-insensitive substring match on
// title, hard-capped at 5 rows. Queries under 2 characters never search.
func (r *Repo) Search(ctx context.Context, q string, limit int) ([]models.Book, error) {
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return []models.Book{}, nil
	}
	if limit <= 0 || limit > searchLimit {
		limit = searchLimit
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE LOWER(title) LIKE ?
		ORDER BY title ASC
		LIMIT ?
	`, "%"+strings.ToLower(q)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows, limit)
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	row := r.DB.QueryRowContext(ctx, sqlStr, args...)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Book, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows, q.Limit)
}

func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + bookColumns + ` FROM books`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM books`
	}

	var where []string
	var args []any

	if strings.TrimSpace(q.Q) != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)")
		kw := "%" + strings.ToLower(strings.TrimSpace(q.Q)) + "%"
		args = append(args, kw, kw)
	}

	if strings.TrimSpace(q.Category) != "" {
		where = append(where, "LOWER(categories) LIKE ?")
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(q.Category))+"%")
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY title ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

// querier lets ResolveOrCreate run against either the pool or an open
// transaction; the listing flow wraps it together with the listing insert.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ResolveOrCreate finds the catalog row for the given metadata or creates
// one. Lookup order: isbn_13, then isbn_10, then exact (title, author).
// The unique ISBN indexes make concurrent creates of the same ISBN safe:
// the loser of the insert race re-reads the winner's row.
func (r *Repo) ResolveOrCreate(ctx context.Context, q querier, meta models.BookMeta) (string, bool, error) {
	if q == nil {
		q = r.DB
	}

	id, err := resolve(ctx, q, meta)
	if err != nil {
		return "", false, err
	}
	if id != "" {
		return id, false, nil
	}

	newID := uuid.NewString()
	_, err = q.ExecContext(ctx, `
		INSERT INTO books (
			id, title, author, isbn_10, isbn_13, publisher, published_date,
			description, categories, page_count, language, cover_image_url,
			google_books_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		newID,
		meta.Title,
		meta.Author(),
		nullString(meta.ISBN10),
		nullString(meta.ISBN13),
		nullString(meta.Publisher),
		nullString(meta.PublishedDate),
		nullString(meta.Description),
		nullString(strings.Join(meta.Categories, ", ")),
		nullInt(meta.PageCount),
		nullString(meta.Language),
		nullString(meta.CoverImageURL),
		nullString(meta.GoogleBooksID),
	)
	if err == nil {
		return newID, true, nil
	}

	// Most likely a unique-constraint race on the ISBN index: someone
	// else created the row between our lookup and insert. Re-read.
	if id, rerr := resolve(ctx, q, meta); rerr == nil && id != "" {
		return id, false, nil
	}
	return "", false, fmt.Errorf("insert book: %w", err)
}

// resolve tries the dedup keys in order: isbn_13, then isbn_10. The
// exact (title, author) lookup applies only to metadata with no ISBN at
// all: an unmatched ISBN is a distinct edition, not the same book under
// another key.
func resolve(ctx context.Context, q querier, meta models.BookMeta) (string, error) {
	if meta.ISBN13 != "" {
		id, err := resolveOne(ctx, q, `SELECT id FROM books WHERE isbn_13 = ?`, meta.ISBN13)
		if err != nil || id != "" {
			return id, err
		}
	}
	if meta.ISBN10 != "" {
		id, err := resolveOne(ctx, q, `SELECT id FROM books WHERE isbn_10 = ?`, meta.ISBN10)
		if err != nil || id != "" {
			return id, err
		}
	}
	if meta.ISBN13 != "" || meta.ISBN10 != "" {
		return "", nil
	}
	return resolveOne(ctx, q, `SELECT id FROM books WHERE title = ? AND author = ?`,
		meta.Title, meta.Author())
}

func resolveOne(ctx context.Context, q querier, query string, args ...any) (string, error) {
	var id string
	if err := q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("resolve book: %w", err)
	}
	return id, nil
}

type scanFunc func(dest ...any) error

func scanBook(scan scanFunc) (*models.Book, error) {
	var (
		b             models.Book
		isbn10        sql.NullString
		isbn13        sql.NullString
		publisher     sql.NullString
		publishedDate sql.NullString
		description   sql.NullString
		categories    sql.NullString
		pageCount     sql.NullInt64
		language      sql.NullString
		coverURL      sql.NullString
		googleBooksID sql.NullString
	)

	if err := scan(
		&b.ID, &b.Title, &b.Author, &isbn10, &isbn13, &publisher, &publishedDate,
		&description, &categories, &pageCount, &language, &coverURL,
		&googleBooksID, &b.CreatedAt,
	); err != nil {
		return nil, err
	}

	b.ISBN10 = isbn10.String
	b.ISBN13 = isbn13.String
	b.Publisher = publisher.String
	b.PublishedDate = publishedDate.String
	b.Description = description.String
	b.Categories = categories.String
	if pageCount.Valid {
		b.PageCount = int(pageCount.Int64)
	}
	b.Language = language.String
	b.CoverImageURL = coverURL.String
	b.GoogleBooksID = googleBooksID.String
	return &b, nil
}

func collectBooks(rows *sql.Rows, capHint int) ([]models.Book, error) {
	if capHint <= 0 {
		capHint = 20
	}
	out := make([]models.Book, 0, capHint)
	for rows.Next() {
		b, err := scanBook(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
