// Package reconciler drives each event's face collection toward the
// membership implied by current consent and profile photos. It is the
// sole integration point between consent changes and the face index:
// consent writes stay cheap, and this pass converges the collection
// ahead of the event window.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/memento/internal/faceindex"
	"github.com/your-org/memento/internal/models"
	"github.com/your-org/memento/internal/observability"
)

// EventStore is the slice of event persistence the reconciler needs.
type EventStore interface {
	EventsPendingIndexing(ctx context.Context, window time.Duration) ([]models.Event, error)
	ClaimForIndexing(ctx context.Context, id uuid.UUID) (bool, error)
	SetIndexingStatus(ctx context.Context, id uuid.UUID, status models.IndexingStatus) error
}

// ConsentStore is read-only here: consent is only ever mutated by the
// user-facing consent API.
type ConsentStore interface {
	UsersWithRecognitionConsent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

// ProfileStore resolves a user's photo object key.
type ProfileStore interface {
	PhotoPath(ctx context.Context, userID uuid.UUID) (*string, error)
}

type Options struct {
	CollectionPrefix string
	PhotoBucket      string
	// EvictOnRevoke removes indexed faces whose consent has since been
	// revoked during the same pass. Off by default: the observed system
	// leaves revoked faces in place until explicit deregistration, a
	// documented privacy caveat.
	EvictOnRevoke bool
}

type Reconciler struct {
	events   EventStore
	consents ConsentStore
	profiles ProfileStore
	index    faceindex.Client
	opts     Options
}

func New(events EventStore, consents ConsentStore, profiles ProfileStore, index faceindex.Client, opts Options) *Reconciler {
	return &Reconciler{
		events:   events,
		consents: consents,
		profiles: profiles,
		index:    index,
		opts:     opts,
	}
}

// Run executes one reconciliation pass over events whose window starts
// within the next windowMinutes. Per-event failures are recorded in the
// event's own status and counted; they never abort the pass.
func (r *Reconciler) Run(ctx context.Context, windowMinutes int) (models.ReconcileReport, error) {
	observability.ReconcileRuns.Inc()
	var report models.ReconcileReport

	events, err := r.events.EventsPendingIndexing(ctx, time.Duration(windowMinutes)*time.Minute)
	if err != nil {
		return report, fmt.Errorf("scan pending events: %w", err)
	}
	report.EventsScanned = len(events)

	for _, ev := range events {
		claimed, err := r.events.ClaimForIndexing(ctx, ev.ID)
		if err != nil {
			slog.Error("claim event", "event_id", ev.ID, "error", err)
			report.EventsFailed++
			observability.ReconcileEvents.WithLabelValues("failed").Inc()
			continue
		}
		if !claimed {
			// Another invocation holds this event.
			slog.Info("event already claimed", "event_id", ev.ID)
			continue
		}

		indexed, skipped, failed, evicted, err := r.reconcileEvent(ctx, ev)
		report.FacesIndexed += indexed
		report.FacesSkipped += skipped
		report.FacesFailed += failed
		report.FacesEvicted += evicted

		if err != nil {
			slog.Error("reconcile event", "event_id", ev.ID, "error", err)
			if statusErr := r.events.SetIndexingStatus(ctx, ev.ID, models.IndexingFailed); statusErr != nil {
				slog.Error("mark event failed", "event_id", ev.ID, "error", statusErr)
			}
			report.EventsFailed++
			observability.ReconcileEvents.WithLabelValues("failed").Inc()
			continue
		}

		if err := r.events.SetIndexingStatus(ctx, ev.ID, models.IndexingCompleted); err != nil {
			slog.Error("mark event completed", "event_id", ev.ID, "error", err)
			report.EventsFailed++
			observability.ReconcileEvents.WithLabelValues("failed").Inc()
			continue
		}
		report.EventsCompleted++
		observability.ReconcileEvents.WithLabelValues("completed").Inc()
	}

	slog.Info("reconciliation pass finished",
		"events_scanned", report.EventsScanned,
		"events_completed", report.EventsCompleted,
		"events_failed", report.EventsFailed,
		"faces_indexed", report.FacesIndexed,
		"faces_skipped", report.FacesSkipped,
		"faces_failed", report.FacesFailed,
		"faces_evicted", report.FacesEvicted,
	)
	return report, nil
}

// reconcileEvent drives one event's collection toward its target
// membership. Errors from the setup steps (ensure collection, consent
// query, face enumeration) fail the event; per-user indexing errors are
// isolated so one bad photo cannot block everyone else.
func (r *Reconciler) reconcileEvent(ctx context.Context, ev models.Event) (indexed, skipped, failed, evicted int, err error) {
	collectionID := faceindex.EventCollectionID(r.opts.CollectionPrefix, ev.ID.String())

	if err := r.index.EnsureCollection(ctx, collectionID); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("ensure collection %s: %w", collectionID, err)
	}

	users, err := r.consents.UsersWithRecognitionConsent(ctx, ev.ID)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("query recognition consents: %w", err)
	}

	// Enumerating existing members up front makes re-runs idempotent:
	// a user already indexed is skipped, never duplicated.
	existing, err := r.index.ListFaces(ctx, collectionID)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("list collection faces: %w", err)
	}
	present := make(map[string][]string, len(existing))
	for _, f := range existing {
		present[f.ExternalID] = append(present[f.ExternalID], f.FaceID)
	}

	eligible := make(map[string]bool, len(users))
	for _, userID := range users {
		eligible[userID.String()] = true

		photoPath, err := r.profiles.PhotoPath(ctx, userID)
		if err != nil {
			slog.Warn("fetch photo path", "event_id", ev.ID, "user_id", userID, "error", err)
			failed++
			continue
		}
		if photoPath == nil || *photoPath == "" {
			slog.Info("user has no photo, skipping", "event_id", ev.ID, "user_id", userID)
			skipped++
			continue
		}
		if _, ok := present[userID.String()]; ok {
			skipped++
			continue
		}

		_, err = r.index.IndexFace(ctx, collectionID, faceindex.Image{
			Bucket: r.opts.PhotoBucket,
			Key:    *photoPath,
		}, userID.String())
		if err != nil {
			slog.Warn("index face", "event_id", ev.ID, "user_id", userID, "error", err)
			failed++
			continue
		}
		indexed++
		observability.ReconcileFacesIndexed.Inc()
	}

	if r.opts.EvictOnRevoke {
		var stale []string
		for externalID, faceIDs := range present {
			if externalID == "" || eligible[externalID] {
				continue
			}
			stale = append(stale, faceIDs...)
		}
		if len(stale) > 0 {
			n, err := r.index.DeleteFaces(ctx, collectionID, stale)
			if err != nil {
				return indexed, skipped, failed, evicted, fmt.Errorf("evict revoked faces: %w", err)
			}
			evicted += n
			observability.ReconcileFacesEvicted.Add(float64(n))
			slog.Info("evicted revoked faces", "event_id", ev.ID, "count", n)
		}
	}

	return indexed, skipped, failed, evicted, nil
}
