package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const recordColumns = `
	id, kind, guest_id, cast_id, requested_cast_count, status,
	proposed_date, proposed_duration, proposed_location, hourly_rate,
	total_points, extension_minutes, extension_points,
	started_at, scheduled_end_at, actual_end_at, recruiting_ended_at,
	min_age, max_age, created_at
`

// Repository handles matching data persistence.
// It relies on a partial unique index over (guest_id, cast_id) for
// pending solo offers so concurrent creations cannot both pass the guard.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new matching repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*MatchingRecord, error) {
	rec := &MatchingRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.GuestID,
		&rec.CastID,
		&rec.RequestedCastCount,
		&rec.Status,
		&rec.ProposedDate,
		&rec.ProposedDuration,
		&rec.ProposedLocation,
		&rec.HourlyRate,
		&rec.TotalPoints,
		&rec.ExtensionMinutes,
		&rec.ExtensionPoints,
		&rec.StartedAt,
		&rec.ScheduledEndAt,
		&rec.ActualEndAt,
		&rec.RecruitingEndedAt,
		&rec.MinAge,
		&rec.MaxAge,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateSoloOffer inserts a new solo offer under the duplicate-offer guard:
// the pending-offer check and the insert share one transaction, and the
// partial unique index backs the same rule against concurrent inserts.
func (r *Repository) CreateSoloOffer(ctx context.Context, rec *MatchingRecord) (*MatchingRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	guardQuery := `
		SELECT id FROM matchings
		WHERE guest_id = $1 AND cast_id = $2 AND kind = 'solo' AND status = 'pending'
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, guardQuery, rec.GuestID, rec.CastID).Scan(&existingID)
	if err == nil {
		return nil, ErrDuplicateOffer
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check for pending offer: %w", err)
	}

	insertQuery := `
		INSERT INTO matchings (
			kind, guest_id, cast_id, status,
			proposed_date, proposed_duration, proposed_location, hourly_rate,
			total_points
		)
		VALUES ('solo', $1, $2, 'pending', $3, $4, $5, $6, $7)
		RETURNING ` + recordColumns

	created, err := scanRecord(tx.QueryRowContext(ctx, insertQuery,
		rec.GuestID,
		rec.CastID,
		rec.ProposedDate,
		rec.ProposedDuration,
		rec.ProposedLocation,
		rec.HourlyRate,
		rec.TotalPoints,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrDuplicateOffer
		}
		return nil, fmt.Errorf("failed to create solo offer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit solo offer: %w", err)
	}

	return created, nil
}

// GetByID retrieves a matching by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*MatchingRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM matchings WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get matching: %w", err)
	}

	return rec, nil
}

// UpdateStatus transitions status from -> to, returning (nil, nil) when the
// row is no longer in the expected status
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to Status) (*MatchingRecord, error) {
	query := `
		UPDATE matchings
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id, from, to))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update matching status: %w", err)
	}

	return rec, nil
}

// Start stamps the timing fields and moves the matching to in_progress,
// only if it is still accepted and unstarted. Under concurrent starts
// exactly one caller gets the row back.
func (r *Repository) Start(ctx context.Context, id int64, startedAt, scheduledEndAt time.Time) (*MatchingRecord, error) {
	query := `
		UPDATE matchings
		SET status = 'in_progress', started_at = $2, scheduled_end_at = $3
		WHERE id = $1 AND status = 'accepted' AND started_at IS NULL
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id, startedAt, scheduledEndAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to start matching: %w", err)
	}

	return rec, nil
}

// Extend accrues extension minutes and points in one guarded write: the
// matching must still be running and its scheduled end already passed.
func (r *Repository) Extend(ctx context.Context, id int64, minutes, pts int, now time.Time) (*MatchingRecord, error) {
	query := `
		UPDATE matchings
		SET extension_minutes = extension_minutes + $2,
		    extension_points = extension_points + $3,
		    total_points = total_points + $3,
		    scheduled_end_at = scheduled_end_at + make_interval(mins => $2)
		WHERE id = $1 AND status = 'in_progress' AND scheduled_end_at <= $4
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id, minutes, pts, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to extend matching: %w", err)
	}

	return rec, nil
}

// Complete ends a running matching, stamping actualEndAt exactly once
func (r *Repository) Complete(ctx context.Context, id int64, actualEndAt time.Time) (*MatchingRecord, error) {
	query := `
		UPDATE matchings
		SET status = 'completed', actual_end_at = $2
		WHERE id = $1 AND status = 'in_progress' AND actual_end_at IS NULL
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id, actualEndAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to complete matching: %w", err)
	}

	return rec, nil
}
