// Package faceindex wraps a remote face recognition backend behind a
// narrow capability: create collections, index faces, search by image,
// delete faces, enumerate, describe. Policy (consent gating, thresholds,
// reconciliation) lives in the callers.
package faceindex

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors of the recognition taxonomy. Everything the backend
// reports that is not one of these is wrapped in a BackendError so no
// provider error codes leak to callers.
var (
	// ErrNoFaceDetected means the image contained zero usable faces.
	// Expected outcome for registration ("retake photo"), not a failure.
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrCollectionNotFound means the collection has never been created.
	// Benign for stats callers: nothing has been indexed yet.
	ErrCollectionNotFound = errors.New("face collection not found")

	// ErrInvalidImage means the payload did not decode to a usable image.
	ErrInvalidImage = errors.New("invalid image payload")
)

// BackendError wraps any unexpected provider failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("face backend: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Image is either raw bytes or a reference to an object in durable
// storage. Exactly one of the two forms should be set; references let
// the backend pull the photo server-side without re-downloading bytes
// through this service.
type Image struct {
	Bytes  []byte
	Bucket string
	Key    string
}

func (img Image) IsRef() bool { return img.Bucket != "" && img.Key != "" }

// BoundingBox locates a face within an image, all values fractions of
// the image dimensions in [0,1].
type BoundingBox struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
}

// Face is an indexed face record as stored in a collection.
type Face struct {
	FaceID      string      `json:"face_id"`
	ExternalID  string      `json:"external_id,omitempty"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// Match is one search result: an indexed face plus match similarity.
// Similarity is match quality between query and indexed face [0,100];
// Confidence is the backend's certainty the region is a face [0,100].
type Match struct {
	FaceID      string      `json:"face_id"`
	ExternalID  string      `json:"external_id,omitempty"`
	Similarity  float64     `json:"similarity"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// AgeRange is an estimated age interval for a detected face.
type AgeRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// DetectedFace is a face found by detection, independent of matching.
// Attribute fields are only populated when extended attributes were
// requested.
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
	AgeRange    *AgeRange   `json:"age_range,omitempty"`
	Emotions    []string    `json:"emotions,omitempty"`
	Smile       *bool       `json:"smile,omitempty"`
	Eyeglasses  *bool       `json:"eyeglasses,omitempty"`
	Sunglasses  *bool       `json:"sunglasses,omitempty"`
}

// CollectionInfo is collection metadata for stats/diagnostics.
type CollectionInfo struct {
	CollectionID string     `json:"collection_id"`
	FaceCount    int64      `json:"face_count"`
	ModelVersion string     `json:"model_version,omitempty"`
	ARN          string     `json:"arn,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// Client is the face index capability. Any concrete backend (cloud
// recognition API, self-hosted embedding+ANN index) implements these
// same operations.
type Client interface {
	// EnsureCollection creates the collection if needed; succeeds
	// silently when it already exists.
	EnsureCollection(ctx context.Context, collectionID string) error

	// IndexFace indexes at most one face (highest quality) from the
	// image and tags it with externalID. Returns ErrNoFaceDetected when
	// the image contains zero or only low-quality faces.
	IndexFace(ctx context.Context, collectionID string, img Image, externalID string) (*Face, error)

	// SearchByImage matches the largest face in the query image against
	// the collection, ordered by similarity descending. A query image
	// with no usable face yields an empty slice, not an error, so
	// frame-by-frame scanning degrades gracefully.
	SearchByImage(ctx context.Context, collectionID string, image []byte, maxFaces int, threshold float64) ([]Match, error)

	// DetectFaces returns all faces in the image with geometry, plus
	// extended attributes when requested. No collection involved.
	DetectFaces(ctx context.Context, image []byte, includeAttributes bool) ([]DetectedFace, error)

	// DeleteFaces removes the given faces and reports how many were
	// actually deleted.
	DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) (int, error)

	// ListFaces enumerates the collection's indexed faces.
	ListFaces(ctx context.Context, collectionID string) ([]Face, error)

	// DescribeCollection returns collection metadata, or
	// ErrCollectionNotFound if it was never created.
	DescribeCollection(ctx context.Context, collectionID string) (*CollectionInfo, error)
}

// EventCollectionID derives the deterministic collection name for an
// event. Collision-free as long as event ids are unique, which keeps
// cross-event interference structurally impossible.
func EventCollectionID(prefix, eventID string) string {
	return prefix + eventID
}
