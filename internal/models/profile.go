package models

import (
	"time"
)

// Profile is a listener profile. Created by explicit user action, never
// mutated except through field updates.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}
