package dto

import (
	"github.com/google/uuid"
)

type CreateEventRequest struct {
	Name      string    `json:"name" binding:"required,max=255"`
	Location  string    `json:"location" binding:"max=500"`
	StartsAt  *string   `json:"starts_at,omitempty"`
	EndsAt    *string   `json:"ends_at,omitempty"`
	CreatedBy uuid.UUID `json:"created_by" binding:"required"`
}

type EventResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Location       string    `json:"location,omitempty"`
	StartsAt       string    `json:"starts_at,omitempty"`
	EndsAt         string    `json:"ends_at,omitempty"`
	IsActive       bool      `json:"is_active"`
	IndexingStatus string    `json:"indexing_status"`
	CreatedBy      uuid.UUID `json:"created_by"`
	CreatedAt      string    `json:"created_at"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

type MembershipRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}
