package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile carries the attributes the recognition core reads. PhotoPath
// is an object store key for the user's normalized face photo; nil means
// no photo has been uploaded yet.
type Profile struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	FullName  string    `json:"full_name" db:"full_name"`
	Headline  string    `json:"headline,omitempty" db:"headline"`
	PhotoPath *string   `json:"photo_path,omitempty" db:"photo_path"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Membership struct {
	EventID  uuid.UUID `json:"event_id" db:"event_id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}
