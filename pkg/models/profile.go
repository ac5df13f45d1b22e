package models

import "time"

// Profile is the per-user identity record created at signup.
type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
