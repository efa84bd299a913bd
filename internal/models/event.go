package models

import (
	"time"

	"github.com/google/uuid"
)

type IndexingStatus string

const (
	IndexingPending    IndexingStatus = "pending"
	IndexingInProgress IndexingStatus = "in_progress"
	IndexingCompleted  IndexingStatus = "completed"
	IndexingFailed     IndexingStatus = "failed"
)

type Event struct {
	ID             uuid.UUID      `json:"id" db:"event_id"`
	Name           string         `json:"name" db:"name"`
	Location       string         `json:"location,omitempty" db:"location"`
	StartsAt       *time.Time     `json:"starts_at,omitempty" db:"starts_at"`
	EndsAt         *time.Time     `json:"ends_at,omitempty" db:"ends_at"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	IndexingStatus IndexingStatus `json:"indexing_status" db:"indexing_status"`
	CreatedBy      uuid.UUID      `json:"created_by" db:"created_by"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// ReconcileReport summarises one reconciliation pass.
// Per-event failures are counted here, never raised.
type ReconcileReport struct {
	EventsScanned   int `json:"events_scanned"`
	EventsCompleted int `json:"events_completed"`
	EventsFailed    int `json:"events_failed"`
	FacesIndexed    int `json:"faces_indexed"`
	FacesSkipped    int `json:"faces_skipped"`
	FacesFailed     int `json:"faces_failed"`
	FacesEvicted    int `json:"faces_evicted"`
}
