package models

import "time"

// BookMeta is the normalized, internal form of bibliographic metadata
// used by the lookup client and the catalog layer.
//
// External sources (Google Books, CSV rows) are mapped into this
// structure first, then we write to the DB from this representation.
type BookMeta struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	ISBN10        string   `json:"isbn_10,omitempty"`
	ISBN13        string   `json:"isbn_13,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Description   string   `json:"description,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	Language      string   `json:"language,omitempty"`
	CoverImageURL string   `json:"cover_image_url,omitempty"`
	GoogleBooksID string   `json:"google_books_id,omitempty"`
}

// Author joins the author list into the single display string stored in
// the catalog. Empty lists fall back to "Unknown Author".
func (m BookMeta) Author() string {
	if len(m.Authors) == 0 {
		return "Unknown Author"
	}
	out := m.Authors[0]
	for _, a := range m.Authors[1:] {
		out += ", " + a
	}
	return out
}

// Book is a catalog row: shared, deduplicated bibliographic reference
// data. Many listings may point at one Book.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN10        string    `json:"isbn_10,omitempty"`
	ISBN13        string    `json:"isbn_13,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	PublishedDate string    `json:"published_date,omitempty"`
	Description   string    `json:"description,omitempty"`
	Categories    string    `json:"categories,omitempty"`
	PageCount     int       `json:"page_count,omitempty"`
	Language      string    `json:"language,omitempty"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	GoogleBooksID string    `json:"google_books_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
