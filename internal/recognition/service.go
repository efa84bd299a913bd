// Package recognition is the request-time core: it turns one camera
// frame into identified people, and manages per-user face enrollment.
package recognition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/memento/internal/config"
	"github.com/your-org/memento/internal/faceindex"
	"github.com/your-org/memento/internal/observability"
)

// SightingPublisher fans out successful identifications for live
// consumers. Publishing is best effort; failures never affect the
// identify result.
type SightingPublisher interface {
	PublishSighting(ctx context.Context, eventID string, data interface{}) error
}

// Sighting is the message published after a frame yields matches.
type Sighting struct {
	EventID   *uuid.UUID        `json:"event_id,omitempty"`
	Matches   []faceindex.Match `json:"matches"`
	Timestamp time.Time         `json:"timestamp"`
}

// IdentifyResult is the outcome of processing one frame.
type IdentifyResult struct {
	Matches          []faceindex.Match
	FacesDetected    int
	ProcessingTimeMs float64
	EventID          *uuid.UUID
}

// Registration is the metadata returned after enrolling a face. The
// caller owns persisting any association back into the profile store.
type Registration struct {
	FaceID      string
	UserID      uuid.UUID
	BoundingBox faceindex.BoundingBox
	Confidence  float64
	IndexedAt   time.Time
}

type Service struct {
	index             faceindex.Client
	publisher         SightingPublisher
	defaultCollection string
	collectionPrefix  string
	matchThreshold    float64
	maxFaces          int
}

// NewService wires the request-time core. publisher may be nil when no
// live feed is configured.
func NewService(index faceindex.Client, publisher SightingPublisher, cfg config.RecognitionConfig) *Service {
	return &Service{
		index:             index,
		publisher:         publisher,
		defaultCollection: cfg.DefaultCollection,
		collectionPrefix:  cfg.CollectionPrefix,
		matchThreshold:    cfg.MatchThreshold,
		maxFaces:          cfg.MaxFaces,
	}
}

// collectionFor resolves the search scope: the event's collection when
// an event id is given, otherwise the default registration collection.
func (s *Service) collectionFor(eventID *uuid.UUID) string {
	if eventID != nil {
		return faceindex.EventCollectionID(s.collectionPrefix, eventID.String())
	}
	return s.defaultCollection
}

// Identify processes one camera frame: decode, ensure the collection,
// count faces, search for matches. A collection that exists with zero
// faces is valid and simply yields zero matches. Processing time covers
// the backend calls, not the decode.
func (s *Service) Identify(ctx context.Context, imageBase64 string, eventID *uuid.UUID, maxFaces *int, threshold *float64) (*IdentifyResult, error) {
	frame, err := DecodeImage(imageBase64)
	if err != nil {
		observability.FramesIdentified.WithLabelValues("invalid_image").Inc()
		return nil, err
	}

	effMaxFaces := s.maxFaces
	if maxFaces != nil {
		effMaxFaces = *maxFaces
	}
	effThreshold := s.matchThreshold
	if threshold != nil {
		effThreshold = *threshold
	}

	collectionID := s.collectionFor(eventID)
	start := time.Now()

	stageStart := time.Now()
	if err := s.index.EnsureCollection(ctx, collectionID); err != nil {
		observability.FramesIdentified.WithLabelValues("backend_error").Inc()
		return nil, err
	}
	observability.RecognitionDuration.WithLabelValues("ensure").Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	detected, err := s.index.DetectFaces(ctx, frame, false)
	if err != nil {
		if errors.Is(err, faceindex.ErrInvalidImage) {
			observability.FramesIdentified.WithLabelValues("invalid_image").Inc()
			return nil, err
		}
		observability.FramesIdentified.WithLabelValues("backend_error").Inc()
		return nil, err
	}
	observability.RecognitionDuration.WithLabelValues("detect").Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	matches, err := s.index.SearchByImage(ctx, collectionID, frame, effMaxFaces, effThreshold)
	if err != nil {
		observability.FramesIdentified.WithLabelValues("backend_error").Inc()
		return nil, err
	}
	observability.RecognitionDuration.WithLabelValues("search").Observe(time.Since(stageStart).Seconds())

	elapsed := time.Since(start)

	observability.FramesIdentified.WithLabelValues("ok").Inc()
	observability.FacesDetected.Add(float64(len(detected)))
	observability.FacesMatched.Add(float64(len(matches)))

	if len(matches) > 0 && s.publisher != nil {
		scope := ""
		if eventID != nil {
			scope = eventID.String()
		}
		sighting := Sighting{EventID: eventID, Matches: matches, Timestamp: time.Now().UTC()}
		if err := s.publisher.PublishSighting(ctx, scope, sighting); err != nil {
			slog.Warn("publish sighting", "error", err)
		}
	}

	return &IdentifyResult{
		Matches:          matches,
		FacesDetected:    len(detected),
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		EventID:          eventID,
	}, nil
}

// Register enrolls a user's face in the default collection. No face in
// the image is a client-visible outcome ("retake photo"), never a
// silent success with a degraded face.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, imageBase64 string) (*Registration, error) {
	image, err := DecodeImage(imageBase64)
	if err != nil {
		return nil, err
	}

	if err := s.index.EnsureCollection(ctx, s.defaultCollection); err != nil {
		return nil, err
	}

	face, err := s.index.IndexFace(ctx, s.defaultCollection, faceindex.Image{Bytes: image}, userID.String())
	if err != nil {
		return nil, err
	}

	return &Registration{
		FaceID:      face.FaceID,
		UserID:      userID,
		BoundingBox: face.BoundingBox,
		Confidence:  face.Confidence,
		IndexedAt:   time.Now().UTC(),
	}, nil
}

// Deregister deletes every indexed face tagged with the user's id from
// the default collection. Zero deletions is a valid outcome, so the
// operation is idempotent.
func (s *Service) Deregister(ctx context.Context, userID uuid.UUID) (int, error) {
	faces, err := s.index.ListFaces(ctx, s.defaultCollection)
	if err != nil {
		if errors.Is(err, faceindex.ErrCollectionNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var faceIDs []string
	for _, f := range faces {
		if f.ExternalID == userID.String() {
			faceIDs = append(faceIDs, f.FaceID)
		}
	}
	if len(faceIDs) == 0 {
		return 0, nil
	}

	return s.index.DeleteFaces(ctx, s.defaultCollection, faceIDs)
}

// DetectOnly runs face detection without identity matching, optionally
// with extended attributes for diagnostics and registration preflight.
func (s *Service) DetectOnly(ctx context.Context, imageBase64 string, includeAttributes bool) ([]faceindex.DetectedFace, error) {
	image, err := DecodeImage(imageBase64)
	if err != nil {
		return nil, err
	}
	return s.index.DetectFaces(ctx, image, includeAttributes)
}

// CollectionStats reports metadata for the default collection.
// ErrCollectionNotFound has a benign reading: nothing indexed yet.
func (s *Service) CollectionStats(ctx context.Context) (*faceindex.CollectionInfo, error) {
	return s.index.DescribeCollection(ctx, s.defaultCollection)
}
