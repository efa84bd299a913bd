package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/memento/internal/config"
	"github.com/your-org/memento/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying connection pool for components that run
// their own queries against shared tables (the local face index).
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// --- Events ---

func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	ev.ID = uuid.New()
	ev.IndexingStatus = models.IndexingPending
	ev.IsActive = true
	return s.pool.QueryRow(ctx,
		`INSERT INTO events (event_id, name, location, starts_at, ends_at, is_active, indexing_status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		ev.ID, ev.Name, ev.Location, ev.StartsAt, ev.EndsAt, ev.IsActive, ev.IndexingStatus, ev.CreatedBy,
	).Scan(&ev.CreatedAt)
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev := &models.Event{}
	err := s.pool.QueryRow(ctx,
		`SELECT event_id, name, location, starts_at, ends_at, is_active, indexing_status, created_by, created_at
		 FROM events WHERE event_id = $1`, id,
	).Scan(&ev.ID, &ev.Name, &ev.Location, &ev.StartsAt, &ev.EndsAt, &ev.IsActive,
		&ev.IndexingStatus, &ev.CreatedBy, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, name, location, starts_at, ends_at, is_active, indexing_status, created_by, created_at
		 FROM events WHERE is_active ORDER BY starts_at`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsPendingIndexing selects events whose window starts within the
// next `window` and whose collection has not been successfully indexed.
// Failed events are re-selected here, which is what makes them eligible
// for another reconciliation pass.
func (s *PostgresStore) EventsPendingIndexing(ctx context.Context, window time.Duration) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, name, location, starts_at, ends_at, is_active, indexing_status, created_by, created_at
		 FROM events
		 WHERE is_active
		   AND indexing_status IN ('pending', 'failed')
		   AND starts_at IS NOT NULL
		   AND starts_at <= now() + $1
		   AND (ends_at IS NULL OR ends_at > now())
		 ORDER BY starts_at`, window)
	if err != nil {
		return nil, fmt.Errorf("events pending indexing: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ClaimForIndexing conditionally flips an event to in_progress. The
// affected-row check makes the claim atomic: a second concurrent
// reconciler invocation gets false and skips the event.
func (s *PostgresStore) ClaimForIndexing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET indexing_status = 'in_progress'
		 WHERE event_id = $1 AND indexing_status IN ('pending', 'failed')`, id)
	if err != nil {
		return false, fmt.Errorf("claim event for indexing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetIndexingStatus(ctx context.Context, id uuid.UUID, status models.IndexingStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE events SET indexing_status = $1 WHERE event_id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set indexing status: %w", err)
	}
	return nil
}

func scanEvents(rows pgx.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Location, &ev.StartsAt, &ev.EndsAt,
			&ev.IsActive, &ev.IndexingStatus, &ev.CreatedBy, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// --- Memberships ---

// JoinEvent creates the membership and its consent record in one
// transaction. Consent starts with both flags false: joined, but not
// yet opted in to anything.
func (s *PostgresStore) JoinEvent(ctx context.Context, eventID, userID uuid.UUID) (*models.Consent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin join: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO event_memberships (event_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (event_id, user_id) DO NOTHING`, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}

	c := &models.Consent{EventID: eventID, UserID: userID}
	err = tx.QueryRow(ctx,
		`INSERT INTO event_consents (event_id, user_id, allow_profile_display, allow_recognition)
		 VALUES ($1, $2, false, false)
		 ON CONFLICT (event_id, user_id) DO UPDATE SET updated_at = event_consents.updated_at
		 RETURNING allow_profile_display, allow_recognition, consented_at, revoked_at, updated_at`,
		eventID, userID,
	).Scan(&c.AllowProfileDisplay, &c.AllowRecognition, &c.ConsentedAt, &c.RevokedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create consent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit join: %w", err)
	}
	return c, nil
}

// LeaveEvent removes the membership and deletes the consent record, the
// only path that deletes consent.
func (s *PostgresStore) LeaveEvent(ctx context.Context, eventID, userID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin leave: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM event_consents WHERE event_id = $1 AND user_id = $2`, eventID, userID); err != nil {
		return fmt.Errorf("delete consent: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM event_memberships WHERE event_id = $1 AND user_id = $2`, eventID, userID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return tx.Commit(ctx)
}

// --- Consents ---

func (s *PostgresStore) GetConsent(ctx context.Context, eventID, userID uuid.UUID) (*models.Consent, error) {
	c := &models.Consent{EventID: eventID, UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT allow_profile_display, allow_recognition, consented_at, revoked_at, updated_at
		 FROM event_consents WHERE event_id = $1 AND user_id = $2`, eventID, userID,
	).Scan(&c.AllowProfileDisplay, &c.AllowRecognition, &c.ConsentedAt, &c.RevokedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get consent: %w", err)
	}
	return c, nil
}

// UpdateConsent applies a partial consent change, maintaining the
// grant/revoke timestamps. Returns nil when the user never joined the
// event.
func (s *PostgresStore) UpdateConsent(ctx context.Context, eventID, userID uuid.UUID, upd models.ConsentUpdate) (*models.Consent, error) {
	current, err := s.GetConsent(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	next := ApplyConsentUpdate(*current, upd, time.Now().UTC())

	err = s.pool.QueryRow(ctx,
		`UPDATE event_consents
		 SET allow_profile_display = $1, allow_recognition = $2, consented_at = $3, revoked_at = $4, updated_at = now()
		 WHERE event_id = $5 AND user_id = $6
		 RETURNING updated_at`,
		next.AllowProfileDisplay, next.AllowRecognition, next.ConsentedAt, next.RevokedAt, eventID, userID,
	).Scan(&next.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update consent: %w", err)
	}
	return &next, nil
}

// UsersWithRecognitionConsent returns the users in an event who have
// currently opted in to facial recognition. Read by the reconciler;
// this store never mutates consent on its behalf.
func (s *PostgresStore) UsersWithRecognitionConsent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM event_consents WHERE event_id = $1 AND allow_recognition`, eventID)
	if err != nil {
		return nil, fmt.Errorf("users with recognition consent: %w", err)
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, nil
}

func (s *PostgresStore) ListUserConsents(ctx context.Context, userID uuid.UUID) ([]models.Consent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, user_id, allow_profile_display, allow_recognition, consented_at, revoked_at, updated_at
		 FROM event_consents WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user consents: %w", err)
	}
	defer rows.Close()

	var consents []models.Consent
	for rows.Next() {
		var c models.Consent
		if err := rows.Scan(&c.EventID, &c.UserID, &c.AllowProfileDisplay, &c.AllowRecognition,
			&c.ConsentedAt, &c.RevokedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		consents = append(consents, c)
	}
	return consents, nil
}

// --- Profiles ---

func (s *PostgresStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO profiles (user_id, full_name, headline) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		p.UserID, p.FullName, p.Headline,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p := &models.Profile{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, full_name, headline, photo_path, created_at, updated_at
		 FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.FullName, &p.Headline, &p.PhotoPath, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SetPhotoPath(ctx context.Context, userID uuid.UUID, photoPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET photo_path = $1, updated_at = now() WHERE user_id = $2`,
		photoPath, userID)
	if err != nil {
		return fmt.Errorf("set photo path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

// PhotoPath returns the photo object key for a user, or nil when the
// profile is missing or has no photo.
func (s *PostgresStore) PhotoPath(ctx context.Context, userID uuid.UUID) (*string, error) {
	var photoPath *string
	err := s.pool.QueryRow(ctx,
		`SELECT photo_path FROM profiles WHERE user_id = $1`, userID,
	).Scan(&photoPath)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("photo path: %w", err)
	}
	return photoPath, nil
}
