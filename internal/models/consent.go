package models

import (
	"time"

	"github.com/google/uuid"
)

// Consent holds per-(event, user) privacy flags. A row with both flags
// false is still a live record (the user joined but opted out), which is
// distinct from no row at all (the user never joined).
type Consent struct {
	EventID             uuid.UUID  `json:"event_id" db:"event_id"`
	UserID              uuid.UUID  `json:"user_id" db:"user_id"`
	AllowProfileDisplay bool       `json:"allow_profile_display" db:"allow_profile_display"`
	AllowRecognition    bool       `json:"allow_recognition" db:"allow_recognition"`
	ConsentedAt         *time.Time `json:"consented_at,omitempty" db:"consented_at"`
	RevokedAt           *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// ConsentUpdate carries a partial consent change; nil means "leave as is".
type ConsentUpdate struct {
	AllowProfileDisplay *bool `json:"allow_profile_display,omitempty"`
	AllowRecognition    *bool `json:"allow_recognition,omitempty"`
}
