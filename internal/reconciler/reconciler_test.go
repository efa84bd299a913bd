package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/memento/internal/faceindex"
	"github.com/your-org/memento/internal/models"
)

type fakeEventStore struct {
	events    []models.Event
	claimDeny map[uuid.UUID]bool
	statuses  map[uuid.UUID]models.IndexingStatus
}

func newFakeEventStore(events ...models.Event) *fakeEventStore {
	return &fakeEventStore{
		events:    events,
		claimDeny: map[uuid.UUID]bool{},
		statuses:  map[uuid.UUID]models.IndexingStatus{},
	}
}

func (s *fakeEventStore) EventsPendingIndexing(ctx context.Context, window time.Duration) ([]models.Event, error) {
	return s.events, nil
}

func (s *fakeEventStore) ClaimForIndexing(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.claimDeny[id] {
		return false, nil
	}
	s.statuses[id] = models.IndexingInProgress
	return true, nil
}

func (s *fakeEventStore) SetIndexingStatus(ctx context.Context, id uuid.UUID, status models.IndexingStatus) error {
	s.statuses[id] = status
	return nil
}

type fakeConsentStore struct {
	consented map[uuid.UUID][]uuid.UUID
	err       error
}

func (s *fakeConsentStore) UsersWithRecognitionConsent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.consented[eventID], nil
}

type fakeProfileStore struct {
	photos map[uuid.UUID]string
}

func (s *fakeProfileStore) PhotoPath(ctx context.Context, userID uuid.UUID) (*string, error) {
	path, ok := s.photos[userID]
	if !ok {
		return nil, nil
	}
	return &path, nil
}

type fakeIndex struct {
	collections map[string]bool
	faces       map[string][]faceindex.Face

	indexErrFor map[string]error
	listErr     error
	deleteErr   error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		collections: map[string]bool{},
		faces:       map[string][]faceindex.Face{},
		indexErrFor: map[string]error{},
	}
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, collectionID string) error {
	f.collections[collectionID] = true
	return nil
}

func (f *fakeIndex) IndexFace(ctx context.Context, collectionID string, img faceindex.Image, externalID string) (*faceindex.Face, error) {
	if err := f.indexErrFor[externalID]; err != nil {
		return nil, err
	}
	face := faceindex.Face{FaceID: uuid.New().String(), ExternalID: externalID, Confidence: 99}
	f.faces[collectionID] = append(f.faces[collectionID], face)
	return &face, nil
}

func (f *fakeIndex) SearchByImage(ctx context.Context, collectionID string, image []byte, maxFaces int, threshold float64) ([]faceindex.Match, error) {
	return []faceindex.Match{}, nil
}

func (f *fakeIndex) DetectFaces(ctx context.Context, image []byte, includeAttributes bool) ([]faceindex.DetectedFace, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	remove := make(map[string]bool, len(faceIDs))
	for _, id := range faceIDs {
		remove[id] = true
	}
	var kept []faceindex.Face
	deleted := 0
	for _, face := range f.faces[collectionID] {
		if remove[face.FaceID] {
			deleted++
			continue
		}
		kept = append(kept, face)
	}
	f.faces[collectionID] = kept
	return deleted, nil
}

func (f *fakeIndex) ListFaces(ctx context.Context, collectionID string) ([]faceindex.Face, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.faces[collectionID], nil
}

func (f *fakeIndex) DescribeCollection(ctx context.Context, collectionID string) (*faceindex.CollectionInfo, error) {
	if !f.collections[collectionID] {
		return nil, faceindex.ErrCollectionNotFound
	}
	return &faceindex.CollectionInfo{CollectionID: collectionID, FaceCount: int64(len(f.faces[collectionID]))}, nil
}

func testOptions() Options {
	return Options{CollectionPrefix: "memento_event_", PhotoBucket: "memento-photos"}
}

func newEvent() models.Event {
	starts := time.Now().Add(10 * time.Minute)
	return models.Event{ID: uuid.New(), Name: "meetup", StartsAt: &starts, IndexingStatus: models.IndexingPending}
}

func TestRun_IndexesOnlyConsentedUsersWithPhotos(t *testing.T) {
	t.Parallel()

	ev := newEvent()
	withPhoto := uuid.New()
	noPhoto := uuid.New()
	notConsented := uuid.New()

	events := newFakeEventStore(ev)
	consents := &fakeConsentStore{consented: map[uuid.UUID][]uuid.UUID{
		ev.ID: {withPhoto, noPhoto},
	}}
	profiles := &fakeProfileStore{photos: map[uuid.UUID]string{
		withPhoto:    "profiles/" + withPhoto.String() + "/photo.jpg",
		notConsented: "profiles/" + notConsented.String() + "/photo.jpg",
	}}
	index := newFakeIndex()

	rec := New(events, consents, profiles, index, testOptions())
	report, err := rec.Run(context.Background(), 20)
	require.NoError(t, err)

	assert.Equal(t, 1, report.EventsScanned)
	assert.Equal(t, 1, report.EventsCompleted)
	assert.Equal(t, 0, report.EventsFailed)
	assert.Equal(t, 1, report.FacesIndexed)
	assert.Equal(t, 1, report.FacesSkipped)

	collection := "memento_event_" + ev.ID.String()
	require.Len(t, index.faces[collection], 1)
	assert.Equal(t, withPhoto.String(), index.faces[collection][0].ExternalID)
	assert.Equal(t, models.IndexingCompleted, events.statuses[ev.ID])
}

func TestRun_SkipsEventClaimedElsewhere(t *testing.T) {
	t.Parallel()

	ev := newEvent()
	events := newFakeEventStore(ev)
	events.claimDeny[ev.ID] = true

	rec := New(events, &fakeConsentStore{}, &fakeProfileStore{}, newFakeIndex(), testOptions())
	report, err := rec.Run(context.Background(), 20)
	require.NoError(t, err)

	assert.Equal(t, 1, report.EventsScanned)
	assert.Equal(t, 0, report.EventsCompleted)
	assert.Equal(t, 0, report.EventsFailed)
	assert.Equal(t, 0, report.FacesIndexed)
}

func TestRun_RerunDoesNotDuplicateFaces(t *testing.T) {
	t.Parallel()

	ev := newEvent()
	user := uuid.New()

	consents := &fakeConsentStore{consented: map[uuid.UUID][]uuid.UUID{ev.ID: {user}}}
	profiles := &fakeProfileStore{photos: map[uuid.UUID]string{user: "profiles/p.jpg"}}
	index := newFakeIndex()

	first := New(newFakeEventStore(ev), consents, profiles, index, testOptions())
	report, err := first.Run(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FacesIndexed)

	// A failed-then-retried event is re-selected; the user already in
	// the collection must be skipped, not re-indexed.
	second := New(newFakeEventStore(ev), consents, profiles, index, testOptions())
	report, err = second.Run(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 0, report.FacesIndexed)
	assert.Equal(t, 1, report.FacesSkipped)
	assert.Len(t, index.faces["memento_event_"+ev.ID.String()], 1)
}

func TestRun_PerUserFailureIsIsolated(t *testing.T) {
	t.Parallel()

	ev := newEvent()
	bad := uuid.New()
	good := uuid.New()

	events := newFakeEventStore(ev)
	consents := &fakeConsentStore{consented: map[uuid.UUID][]uuid.UUID{ev.ID: {bad, good}}}
	profiles := &fakeProfileStore{photos: map[uuid.UUID]string{
		bad:  "profiles/bad.jpg",
		good: "profiles/good.jpg",
	}}
	index := newFakeIndex()
	index.indexErrFor[bad.String()] = faceindex.ErrNoFaceDetected

	rec := New(events, consents, profiles, index, testOptions())
	report, err := rec.Run(context.Background(), 20)
	require.NoError(t, err)

	// One bad photo cannot block the rest of the event.
	assert.Equal(t, 1, report.FacesIndexed)
	assert.Equal(t, 1, report.FacesFailed)
	assert.Equal(t, 1, report.EventsCompleted)
	assert.Equal(t, models.IndexingCompleted, events.statuses[ev.ID])
}

func TestRun_SetupFailureMarksEventFailed(t *testing.T) {
	t.Parallel()

	ev := newEvent()
	events := newFakeEventStore(ev)
	consents := &fakeConsentStore{err: errors.New("db down")}

	rec := New(events, consents, &fakeProfileStore{}, newFakeIndex(), testOptions())
	report, err := rec.Run(context.Background(), 20)
	require.NoError(t, err)

	assert.Equal(t, 1, report.EventsFailed)
	assert.Equal(t, 0, report.EventsCompleted)
	assert.Equal(t, models.IndexingFailed, events.statuses[ev.ID])
}

func TestRun_OneBadEventDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	bad := newEvent()
	good := newEvent()
	user := uuid.New()

	events := newFakeEventStore(bad, good)
	consents := &fakeConsentStore{consented: map[uuid.UUID][]uuid.UUID{good.ID: {user}}}
	profiles := &fakeProfileStore{photos: map[uuid.UUID]string{user: "profiles/p.jpg"}}
	index := newFakeIndex()

	// Fail the first event's setup by breaking face enumeration once.
	calls := 0
	brokenOnce := &listOnceBroken{fakeIndex: index, failFirst: &calls}

	rec := New(events, consents, profiles, brokenOnce, testOptions())
	report, err := rec.Run(context.Background(), 20)
	require.NoError(t, err)

	assert.Equal(t, 2, report.EventsScanned)
	assert.Equal(t, 1, report.EventsFailed)
	assert.Equal(t, 1, report.EventsCompleted)
	assert.Equal(t, models.IndexingFailed, events.statuses[bad.ID])
	assert.Equal(t, models.IndexingCompleted, events.statuses[good.ID])
}

type listOnceBroken struct {
	*fakeIndex
	failFirst *int
}

func (l *listOnceBroken) ListFaces(ctx context.Context, collectionID string) ([]faceindex.Face, error) {
	*l.failFirst++
	if *l.failFirst == 1 {
		return nil, errors.New("transient backend error")
	}
	return l.fakeIndex.ListFaces(ctx, collectionID)
}

func TestRun_EvictionDisabledLeavesRevokedFaces(t *testing.T) {
	t.Parallel()

	ev := newEvent()
	revoked := uuid.New()
	collection := "memento_event_" + ev.ID.String()

	index := newFakeIndex()
	index.collections[collection] = true
	index.faces[collection] = []faceindex.Face{{FaceID: "stale", ExternalID: revoked.String()}}

	events := newFakeEventStore(ev)
	rec := New(events, &fakeConsentStore{}, &fakeProfileStore{}, index, testOptions())
	report, err := rec.Run(context.Background(), 20)
	require.NoError(t, err)

	assert.Equal(t, 0, report.FacesEvicted)
	assert.Len(t, index.faces[collection], 1)
}

func TestRun_EvictionRemovesRevokedFaces(t *testing.T) {
	t.Parallel()

	ev := newEvent()
	revoked := uuid.New()
	kept := uuid.New()
	collection := "memento_event_" + ev.ID.String()

	index := newFakeIndex()
	index.collections[collection] = true
	index.faces[collection] = []faceindex.Face{
		{FaceID: "stale", ExternalID: revoked.String()},
		{FaceID: "live", ExternalID: kept.String()},
	}

	events := newFakeEventStore(ev)
	consents := &fakeConsentStore{consented: map[uuid.UUID][]uuid.UUID{ev.ID: {kept}}}
	profiles := &fakeProfileStore{photos: map[uuid.UUID]string{kept: "profiles/p.jpg"}}

	opts := testOptions()
	opts.EvictOnRevoke = true
	rec := New(events, consents, profiles, index, opts)
	report, err := rec.Run(context.Background(), 20)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FacesEvicted)
	require.Len(t, index.faces[collection], 1)
	assert.Equal(t, "live", index.faces[collection][0].FaceID)
}

func TestRun_IndexesByStorageReference(t *testing.T) {
	t.Parallel()

	ev := newEvent()
	user := uuid.New()

	index := &refRecordingIndex{fakeIndex: newFakeIndex()}
	events := newFakeEventStore(ev)
	consents := &fakeConsentStore{consented: map[uuid.UUID][]uuid.UUID{ev.ID: {user}}}
	profiles := &fakeProfileStore{photos: map[uuid.UUID]string{user: "profiles/u/photo.jpg"}}

	rec := New(events, consents, profiles, index, testOptions())
	_, err := rec.Run(context.Background(), 20)
	require.NoError(t, err)

	require.Len(t, index.images, 1)
	assert.True(t, index.images[0].IsRef())
	assert.Equal(t, "memento-photos", index.images[0].Bucket)
	assert.Equal(t, "profiles/u/photo.jpg", index.images[0].Key)
}

type refRecordingIndex struct {
	*fakeIndex
	images []faceindex.Image
}

func (r *refRecordingIndex) IndexFace(ctx context.Context, collectionID string, img faceindex.Image, externalID string) (*faceindex.Face, error) {
	r.images = append(r.images, img)
	return r.fakeIndex.IndexFace(ctx, collectionID, img, externalID)
}
