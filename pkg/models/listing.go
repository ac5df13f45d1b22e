package models

import "time"

// Listing is one lender's offer of a physical copy of a Book.
type Listing struct {
	ID                string    `json:"id"`
	BookID            string    `json:"book_id"`
	LenderID          string    `json:"lender_id"`
	Condition         string    `json:"condition"`
	ConditionNotes    string    `json:"condition_notes,omitempty"`
	Available         bool      `json:"available"`
	LendingDuration   int       `json:"lending_duration"`
	PickupPreferences string    `json:"pickup_preferences,omitempty"`
	Latitude          *float64  `json:"latitude,omitempty"`
	Longitude         *float64  `json:"longitude,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ListingDetail is a Listing joined with its catalog row and lender
// profile, annotated with a viewer-relative distance estimate.
type ListingDetail struct {
	Listing
	Book       Book   `json:"book"`
	LenderName string `json:"lender_name,omitempty"`

	// Distance is a display estimate like "3.2 km away", or
	// "Distance unknown" when either side has no coordinates.
	// DistanceValue carries the numeric km used for proximity sort;
	// unknown distances get a large sentinel so they sort last.
	Distance      string  `json:"distance,omitempty"`
	DistanceValue float64 `json:"distance_value,omitempty"`
}
