package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/memento/internal/faceindex"
)

// IdentifyRequest carries one base64-encoded camera frame, optionally
// scoped to an event and with threshold overrides.
type IdentifyRequest struct {
	ImageBase64 string     `json:"image_base64" binding:"required"`
	EventID     *uuid.UUID `json:"event_id,omitempty"`
	MaxFaces    *int       `json:"max_faces,omitempty" binding:"omitempty,gte=1,lte=20"`
	Threshold   *float64   `json:"threshold,omitempty" binding:"omitempty,gte=0,lte=100"`
}

type IdentifyResponse struct {
	Matches          []faceindex.Match `json:"matches"`
	FacesDetected    int               `json:"faces_detected"`
	ProcessingTimeMs float64           `json:"processing_time_ms"`
	EventID          *uuid.UUID        `json:"event_id,omitempty"`
}

type RegisterFaceRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	ImageBase64 string    `json:"image_base64" binding:"required"`
}

type RegisterFaceResponse struct {
	FaceID      string                `json:"face_id"`
	UserID      uuid.UUID             `json:"user_id"`
	Confidence  float64               `json:"confidence"`
	BoundingBox faceindex.BoundingBox `json:"bounding_box"`
	IndexedAt   string                `json:"indexed_at"`
}

type DeregisterResponse struct {
	DeletedCount int       `json:"deleted_count"`
	UserID       uuid.UUID `json:"user_id"`
}

type DetectRequest struct {
	ImageBase64       string `json:"image_base64" binding:"required"`
	IncludeAttributes bool   `json:"include_attributes"`
}

type DetectResponse struct {
	Faces     []faceindex.DetectedFace `json:"faces"`
	FaceCount int                      `json:"face_count"`
}

type CollectionStatsResponse struct {
	CollectionID string `json:"collection_id"`
	FaceCount    int64  `json:"face_count"`
	ModelVersion string `json:"model_version,omitempty"`
	ARN          string `json:"arn,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type ReconcileRequest struct {
	WindowMinutes int `json:"window_minutes" binding:"omitempty,gte=1,lte=1440"`
}

// WSEvent is a WebSocket message for the live sighting feed.
type WSEvent struct {
	Type    string      `json:"type"` // sighting
	EventID *uuid.UUID  `json:"event_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
