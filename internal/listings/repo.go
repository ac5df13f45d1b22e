package listings

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bookring/pkg/models"
)

// Condition grades accepted for a listing, best to worst.
var Conditions = []string{"New", "Like New", "Very Good", "Good", "Fair", "Poor"}

// NormalizeCondition maps free-form input onto the condition enum,
// returning "" for anything unrecognized.
func NormalizeCondition(s string) string {
	s = strings.TrimSpace(s)
	for _, c := range Conditions {
		if strings.EqualFold(s, c) {
			return c
		}
	}
	return ""
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type ListQuery struct {
	Category      string
	LenderID      string
	OnlyAvailable bool
	Limit         int
	Offset        int
}

const detailSelect = `
	SELECT l.id, l.book_id, l.lender_id, l.condition, l.condition_notes,
	       l.available, l.lending_duration, l.pickup_preferences,
	       COALESCE(l.latitude, p.latitude), COALESCE(l.longitude, p.longitude),
	       l.created_at,
	       b.id, b.title, b.author, b.isbn_10, b.isbn_13, b.publisher,
	       b.published_date, b.description, b.categories, b.page_count,
	       b.language, b.cover_image_url, b.google_books_id, b.created_at,
	       COALESCE(p.name, '')
	FROM listings l
	JOIN books b ON b.id = l.book_id
	LEFT JOIN profiles p ON p.user_id = l.lender_id
`

// Create inserts the listing row. The caller supplies the transaction so
// the insert commits atomically with book resolution.
func (r *Repo) Create(ctx context.Context, tx *sql.Tx, l models.Listing) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO listings (
			id, book_id, lender_id, condition, condition_notes, available,
			lending_duration, pickup_preferences, latitude, longitude
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, l.BookID, l.LenderID, l.Condition,
		nullString(l.ConditionNotes), boolToInt(l.Available),
		l.LendingDuration, nullString(l.PickupPreferences),
		l.Latitude, l.Longitude,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*models.ListingDetail, error) {
	row := r.DB.QueryRowContext(ctx, detailSelect+` WHERE l.id = ?`, id)
	d, err := scanDetail(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return d, nil
}

// FirstAvailableByBook resolves a catalog row to one of its available
// listings; nil when every copy is out or withdrawn.
func (r *Repo) FirstAvailableByBook(ctx context.Context, bookID string) (*models.ListingDetail, error) {
	row := r.DB.QueryRowContext(ctx, detailSelect+`
		WHERE l.book_id = ? AND l.available = 1
		ORDER BY l.created_at DESC
		LIMIT 1
	`, bookID)
	d, err := scanDetail(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("first available by book: %w", err)
	}
	return d, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.ListingDetail, int, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var where []string
	var args []any
	if q.OnlyAvailable {
		where = append(where, "l.available = 1")
	}
	if q.LenderID != "" {
		where = append(where, "l.lender_id = ?")
		args = append(args, q.LenderID)
	}
	if strings.TrimSpace(q.Category) != "" {
		where = append(where, "LOWER(b.categories) LIKE ?")
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(q.Category))+"%")
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM listings l JOIN books b ON b.id = l.book_id` + cond
	if err := r.DB.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx,
		detailSelect+cond+` ORDER BY l.created_at DESC LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	out := make([]models.ListingDetail, 0, q.Limit)
	for rows.Next() {
		d, err := scanDetail(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing row: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return out, total, nil
}

func (r *Repo) SetAvailability(ctx context.Context, id, lenderID string, available bool) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE listings
		SET available = ?
		WHERE id = ? AND lender_id = ?
	`, boolToInt(available), id, lenderID)
	if err != nil {
		return false, fmt.Errorf("set availability: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete withdraws a listing. Lender-scoped: users can only withdraw
// their own copies. The shared book row stays.
func (r *Repo) Delete(ctx context.Context, id, lenderID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM listings
		WHERE id = ? AND lender_id = ?
	`, id, lenderID)
	if err != nil {
		return false, fmt.Errorf("delete listing: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type scanFunc func(dest ...any) error

func scanDetail(scan scanFunc) (*models.ListingDetail, error) {
	var (
		d             models.ListingDetail
		notes         sql.NullString
		available     int
		pickup        sql.NullString
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
		&d.ID, &d.BookID, &d.LenderID, &d.Condition, &notes,
		&available, &d.LendingDuration, &pickup,
		&d.Latitude, &d.Longitude,
		&d.CreatedAt,
		&d.Book.ID, &d.Book.Title, &d.Book.Author, &isbn10, &isbn13, &publisher,
		&publishedDate, &description, &categories, &pageCount,
		&language, &coverURL, &googleBooksID, &d.Book.CreatedAt,
		&d.LenderName,
	); err != nil {
		return nil, err
	}

	d.ConditionNotes = notes.String
	d.Available = available != 0
	d.PickupPreferences = pickup.String
	d.Book.ISBN10 = isbn10.String
	d.Book.ISBN13 = isbn13.String
	d.Book.Publisher = publisher.String
	d.Book.PublishedDate = publishedDate.String
	d.Book.Description = description.String
	d.Book.Categories = categories.String
	if pageCount.Valid {
		d.Book.PageCount = int(pageCount.Int64)
	}
	d.Book.Language = language.String
	d.Book.CoverImageURL = coverURL.String
	d.Book.GoogleBooksID = googleBooksID.String
	return &d, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
