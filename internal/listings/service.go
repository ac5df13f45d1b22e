package listings

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"bookring/internal/books"
	"bookring/pkg/models"
)

const defaultLendingDuration = 14

// ListRequest is everything needed to turn looked-up metadata into an
// inventory record.
type ListRequest struct {
	Meta              models.BookMeta
	Condition         string
	ConditionNotes    string
	LendingDuration   int
	PickupPreferences string
	Latitude          *float64
	Longitude         *float64
}

// Service owns the dedup-and-list flow: resolve or create the catalog
// row, then insert the listing, in a single transaction. A failure
// anywhere rolls both back, so no orphaned book rows are left behind.
type Service struct {
	DB       *sql.DB
	Books    *books.Repo
	Listings *Repo
}

func NewService(db *sql.DB, booksRepo *books.Repo, listingsRepo *Repo) *Service {
	return &Service{DB: db, Books: booksRepo, Listings: listingsRepo}
}

// ListBook produces exactly one Listing for the lender, reusing an
// existing Book row when the metadata resolves to one. Returns the
// created listing and whether a new Book row was created.
func (s *Service) ListBook(ctx context.Context, lenderID string, req ListRequest) (*models.Listing, bool, error) {
	if req.Meta.Title == "" {
		return nil, false, fmt.Errorf("list book: title required")
	}
	condition := NormalizeCondition(req.Condition)
	if condition == "" {
		return nil, false, fmt.Errorf("list book: invalid condition %q", req.Condition)
	}
	duration := req.LendingDuration
	if duration <= 0 {
		duration = defaultLendingDuration
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin list book: %w", err)
	}
	defer tx.Rollback()

	bookID, created, err := s.Books.ResolveOrCreate(ctx, tx, req.Meta)
	if err != nil {
		return nil, false, err
	}

	l := models.Listing{
		ID:                uuid.NewString(),
		BookID:            bookID,
		LenderID:          lenderID,
		Condition:         condition,
		ConditionNotes:    req.ConditionNotes,
		Available:         true,
		LendingDuration:   duration,
		PickupPreferences: req.PickupPreferences,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
	}
	if err := s.Listings.Create(ctx, tx, l); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit list book: %w", err)
	}
	return &l, created, nil
}
