package feed

import "time"

// ListingEvent announces inventory changes to feed subscribers.
// Type is one of "listing.created", "listing.updated", "listing.deleted".
type ListingEvent struct {
	Type      string    `json:"type"`
	ListingID string    `json:"listing_id"`
	BookID    string    `json:"book_id,omitempty"`
	LenderID  string    `json:"lender_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Available bool      `json:"available,omitempty"`
	At        time.Time `json:"at"`
}
