package dto

import (
	"github.com/google/uuid"
)

type UpdateConsentRequest struct {
	AllowProfileDisplay *bool `json:"allow_profile_display,omitempty"`
	AllowRecognition    *bool `json:"allow_recognition,omitempty"`
}

type ConsentResponse struct {
	EventID             uuid.UUID `json:"event_id"`
	UserID              uuid.UUID `json:"user_id"`
	AllowProfileDisplay bool      `json:"allow_profile_display"`
	AllowRecognition    bool      `json:"allow_recognition"`
	ConsentedAt         string    `json:"consented_at,omitempty"`
	RevokedAt           string    `json:"revoked_at,omitempty"`
	UpdatedAt           string    `json:"updated_at"`
}
