package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"bookring/internal/listings"
	"bookring/internal/lookup"
	"bookring/pkg/models"
)

const defaultCondition = "Good"

// Row is one CSV entry moving through the batch listing flow.
type Row struct {
	ISBN      string           `json:"isbn,omitempty"`
	Title     string           `json:"title,omitempty"`
	Found     bool             `json:"found"`
	Meta      *models.BookMeta `json:"details,omitempty"`
	Condition string           `json:"condition"`
	Selected  bool             `json:"selected"`
}

var ErrNoColumns = errors.New("csv must contain an 'isbn' or 'title' column")
var ErrNoRows = errors.New("no valid book entries found in csv")

// Parse reads a two-column CSV. The header must name at least one of
// "isbn" or "title" (case-insensitive) or the whole file is rejected.
// A data row survives only with an ISBN of at least 10 characters or a
// non-empty title; everything else is discarded.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	_, hasISBN := header["isbn"]
	_, hasTitle := header["title"]
	if !hasISBN && !hasTitle {
		return nil, ErrNoColumns
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(rec) == 0 {
			continue
		}

		isbn := valueAt(header, rec, "isbn")
		title := valueAt(header, rec, "title")

		if len(isbn) < lookup.MinISBNLength && title == "" {
			continue
		}

		rows = append(rows, Row{
			ISBN:      isbn,
			Title:     title,
			Condition: defaultCondition,
		})
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// Resolve runs the batch metadata lookup over the rows, marking hits as
// found and selected. Misses stay in the slice so the user sees them;
// they are just deselected by default. Returns the number found.
func Resolve(ctx context.Context, client *lookup.Client, rows []Row) int {
	ids := make([]lookup.Identifier, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, lookup.Identifier{ISBN: row.ISBN, Title: row.Title})
	}

	results := client.Batch(ctx, ids)

	found := 0
	for i := range rows {
		if results[i] == nil {
			continue
		}
		rows[i].Found = true
		rows[i].Selected = true
		rows[i].Meta = results[i]
		found++
	}
	return found
}

// Submit runs the dedup-and-list flow once per selected, found row.
// A row whose listing fails is skipped; only the aggregate success
// count survives to the caller.
func Submit(ctx context.Context, svc *listings.Service, lenderID string, rows []Row) int {
	success := 0
	for _, row := range rows {
		if !row.Selected || !row.Found || row.Meta == nil {
			continue
		}

		condition := row.Condition
		if condition == "" {
			condition = defaultCondition
		}

		if _, _, err := svc.ListBook(ctx, lenderID, listings.ListRequest{
			Meta:      *row.Meta,
			Condition: condition,
		}); err != nil {
			continue
		}
		success++
	}
	return success
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrNoColumns
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
