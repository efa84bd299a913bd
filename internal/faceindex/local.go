package faceindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/memento/internal/embed"
)

// ObjectFetcher resolves a storage reference to image bytes, used when
// an Image arrives as a bucket/key pair instead of raw bytes.
type ObjectFetcher interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// LocalClient is a self-hosted face index: embeddings from an external
// embedding sidecar, templates in Postgres with pgvector cosine search.
// Functionally equivalent to the cloud backend behind the same Client
// interface.
type LocalClient struct {
	pool     *pgxpool.Pool
	embedder *embed.Client
	objects  ObjectFetcher
}

func NewLocalClient(pool *pgxpool.Pool, embedder *embed.Client, objects ObjectFetcher) *LocalClient {
	return &LocalClient{pool: pool, embedder: embedder, objects: objects}
}

func (l *LocalClient) EnsureCollection(ctx context.Context, collectionID string) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO face_collections (collection_id) VALUES ($1) ON CONFLICT (collection_id) DO NOTHING`,
		collectionID)
	if err != nil {
		return &BackendError{Op: "ensure collection", Err: err}
	}
	return nil
}

func (l *LocalClient) IndexFace(ctx context.Context, collectionID string, img Image, externalID string) (*Face, error) {
	data, err := l.resolve(ctx, img)
	if err != nil {
		return nil, err
	}

	faces, err := l.embedder.Detect(ctx, data)
	if err != nil {
		return nil, &BackendError{Op: "embed face", Err: err}
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	// Index only the highest-confidence face, mirroring the cloud
	// backend's max-one-face-per-call configuration.
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Confidence > best.Confidence {
			best = f
		}
	}

	face := &Face{
		FaceID:     uuid.New().String(),
		ExternalID: externalID,
		BoundingBox: BoundingBox{
			Width:  best.Width,
			Height: best.Height,
			Left:   best.Left,
			Top:    best.Top,
		},
		Confidence: best.Confidence,
	}

	vec := pgvector.NewVector(best.Embedding)
	_, err = l.pool.Exec(ctx,
		`INSERT INTO indexed_faces (face_id, collection_id, external_id, embedding, confidence, box_width, box_height, box_left, box_top)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		face.FaceID, collectionID, externalID, vec, face.Confidence,
		face.BoundingBox.Width, face.BoundingBox.Height, face.BoundingBox.Left, face.BoundingBox.Top)
	if err != nil {
		return nil, &BackendError{Op: "store face", Err: err}
	}
	return face, nil
}

func (l *LocalClient) SearchByImage(ctx context.Context, collectionID string, image []byte, maxFaces int, threshold float64) ([]Match, error) {
	faces, err := l.embedder.Detect(ctx, image)
	if err != nil {
		return nil, &BackendError{Op: "embed query", Err: err}
	}
	if len(faces) == 0 {
		return []Match{}, nil
	}

	// Match on the largest face in the frame, like the cloud backend.
	query := faces[0]
	for _, f := range faces[1:] {
		if f.Width*f.Height > query.Width*query.Height {
			query = f
		}
	}

	vec := pgvector.NewVector(query.Embedding)
	rows, err := l.pool.Query(ctx,
		`SELECT face_id, external_id, confidence, box_width, box_height, box_left, box_top,
		        (1 - (embedding <=> $1)) * 100 AS similarity
		 FROM indexed_faces
		 WHERE collection_id = $2
		   AND (1 - (embedding <=> $1)) * 100 >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, collectionID, threshold, maxFaces)
	if err != nil {
		return nil, &BackendError{Op: "search faces", Err: err}
	}
	defer rows.Close()

	matches := make([]Match, 0, maxFaces)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.FaceID, &m.ExternalID, &m.Confidence,
			&m.BoundingBox.Width, &m.BoundingBox.Height, &m.BoundingBox.Left, &m.BoundingBox.Top,
			&m.Similarity); err != nil {
			return nil, &BackendError{Op: "scan match", Err: err}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (l *LocalClient) DetectFaces(ctx context.Context, image []byte, includeAttributes bool) ([]DetectedFace, error) {
	found, err := l.embedder.Detect(ctx, image)
	if err != nil {
		return nil, &BackendError{Op: "detect faces", Err: err}
	}

	// The sidecar reports geometry only; extended attributes are a
	// cloud backend feature.
	faces := make([]DetectedFace, 0, len(found))
	for _, f := range found {
		faces = append(faces, DetectedFace{
			BoundingBox: BoundingBox{Width: f.Width, Height: f.Height, Left: f.Left, Top: f.Top},
			Confidence:  f.Confidence,
		})
	}
	return faces, nil
}

func (l *LocalClient) DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) (int, error) {
	if len(faceIDs) == 0 {
		return 0, nil
	}
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM indexed_faces WHERE collection_id = $1 AND face_id = ANY($2)`,
		collectionID, faceIDs)
	if err != nil {
		return 0, &BackendError{Op: "delete faces", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

func (l *LocalClient) ListFaces(ctx context.Context, collectionID string) ([]Face, error) {
	if err := l.requireCollection(ctx, collectionID); err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx,
		`SELECT face_id, external_id, confidence, box_width, box_height, box_left, box_top
		 FROM indexed_faces WHERE collection_id = $1 ORDER BY created_at`,
		collectionID)
	if err != nil {
		return nil, &BackendError{Op: "list faces", Err: err}
	}
	defer rows.Close()

	var faces []Face
	for rows.Next() {
		var f Face
		if err := rows.Scan(&f.FaceID, &f.ExternalID, &f.Confidence,
			&f.BoundingBox.Width, &f.BoundingBox.Height, &f.BoundingBox.Left, &f.BoundingBox.Top); err != nil {
			return nil, &BackendError{Op: "scan face", Err: err}
		}
		faces = append(faces, f)
	}
	return faces, nil
}

func (l *LocalClient) DescribeCollection(ctx context.Context, collectionID string) (*CollectionInfo, error) {
	info := &CollectionInfo{CollectionID: collectionID}

	var createdAt time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT created_at FROM face_collections WHERE collection_id = $1`,
		collectionID).Scan(&createdAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCollectionNotFound
		}
		return nil, &BackendError{Op: "describe collection", Err: err}
	}
	info.CreatedAt = &createdAt

	err = l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM indexed_faces WHERE collection_id = $1`,
		collectionID).Scan(&info.FaceCount)
	if err != nil {
		return nil, &BackendError{Op: "count faces", Err: err}
	}
	return info, nil
}

func (l *LocalClient) requireCollection(ctx context.Context, collectionID string) error {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM face_collections WHERE collection_id = $1)`,
		collectionID).Scan(&exists)
	if err != nil {
		return &BackendError{Op: "check collection", Err: err}
	}
	if !exists {
		return ErrCollectionNotFound
	}
	return nil
}

func (l *LocalClient) resolve(ctx context.Context, img Image) ([]byte, error) {
	if !img.IsRef() {
		if len(img.Bytes) == 0 {
			return nil, ErrInvalidImage
		}
		return img.Bytes, nil
	}
	data, err := l.objects.GetObject(ctx, img.Key)
	if err != nil {
		return nil, &BackendError{Op: fmt.Sprintf("fetch object %s", img.Key), Err: err}
	}
	return data, nil
}
