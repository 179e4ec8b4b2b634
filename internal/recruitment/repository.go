package recruitment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kmiyachi/castmatch/internal/matching"
)

const participantColumns = `
	p.id, p.matching_id, p.cast_id, p.status,
	p.responded_at, p.joined_at, p.completed_at, p.created_at
`

// Repository handles roster persistence and the matching-level
// recomputations driven by roster writes
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new recruitment repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipant(row rowScanner) (*Participant, error) {
	p := &Participant{}
	err := row.Scan(
		&p.ID,
		&p.MatchingID,
		&p.CastID,
		&p.Status,
		&p.RespondedAt,
		&p.JoinedAt,
		&p.CompletedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateGroupOffer inserts the matching record and its pending roster rows
// in one transaction so a failed fan-out never leaves a half-created
// recruitment behind
func (r *Repository) CreateGroupOffer(ctx context.Context, rec *matching.MatchingRecord, castIDs []int64) (*matching.MatchingRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertMatching := `
		INSERT INTO matchings (
			kind, guest_id, requested_cast_count, status,
			proposed_date, proposed_duration, proposed_location, hourly_rate,
			total_points, min_age, max_age
		)
		VALUES ('group', $1, $2, 'pending', $3, $4, $5, $6, $7, $8, $9)
		RETURNING
			id, kind, guest_id, cast_id, requested_cast_count, status,
			proposed_date, proposed_duration, proposed_location, hourly_rate,
			total_points, extension_minutes, extension_points,
			started_at, scheduled_end_at, actual_end_at, recruiting_ended_at,
			min_age, max_age, created_at
	`

	created := &matching.MatchingRecord{}
	err = tx.QueryRowContext(ctx, insertMatching,
		rec.GuestID,
		rec.RequestedCastCount,
		rec.ProposedDate,
		rec.ProposedDuration,
		rec.ProposedLocation,
		rec.HourlyRate,
		rec.TotalPoints,
		rec.MinAge,
		rec.MaxAge,
	).Scan(
		&created.ID,
		&created.Kind,
		&created.GuestID,
		&created.CastID,
		&created.RequestedCastCount,
		&created.Status,
		&created.ProposedDate,
		&created.ProposedDuration,
		&created.ProposedLocation,
		&created.HourlyRate,
		&created.TotalPoints,
		&created.ExtensionMinutes,
		&created.ExtensionPoints,
		&created.StartedAt,
		&created.ScheduledEndAt,
		&created.ActualEndAt,
		&created.RecruitingEndedAt,
		&created.MinAge,
		&created.MaxAge,
		&created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create group offer: %w", err)
	}

	if len(castIDs) > 0 {
		fanOut := `
			INSERT INTO matching_participants (matching_id, cast_id, status)
			SELECT $1, unnest($2::bigint[]), 'pending'
		`
		if _, err := tx.ExecContext(ctx, fanOut, created.ID, pq.Array(castIDs)); err != nil {
			return nil, fmt.Errorf("failed to fan out roster rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group offer: %w", err)
	}

	return created, nil
}

// GetParticipant retrieves one cast's roster row
func (r *Repository) GetParticipant(ctx context.Context, matchingID, castID int64) (*Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM matching_participants p
		WHERE p.matching_id = $1 AND p.cast_id = $2
	`

	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, matchingID, castID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return p, nil
}

// ListParticipants retrieves the full roster, invitation order
func (r *Repository) ListParticipants(ctx context.Context, matchingID int64) ([]*Participant, error) {
	query := `
		SELECT p.id, p.matching_id, p.cast_id, p.status,
		       p.responded_at, p.joined_at, p.completed_at, p.created_at,
		       c.nickname
		FROM matching_participants p
		JOIN casts c ON p.cast_id = c.id
		WHERE p.matching_id = $1
		ORDER BY p.created_at, p.id
	`

	rows, err := r.db.QueryContext(ctx, query, matchingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*Participant
	for rows.Next() {
		p := &Participant{}
		if err := rows.Scan(
			&p.ID,
			&p.MatchingID,
			&p.CastID,
			&p.Status,
			&p.RespondedAt,
			&p.JoinedAt,
			&p.CompletedAt,
			&p.CreatedAt,
			&p.Nickname,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// RespondParticipant moves a pending roster row to accepted or rejected.
// The optional accept cap is enforced inside the WHERE clause so
// concurrent acceptances cannot overshoot the headcount.
func (r *Repository) RespondParticipant(ctx context.Context, matchingID, castID int64, status ParticipantStatus, respondedAt time.Time, acceptCap *int) (*Participant, error) {
	query := `
		UPDATE matching_participants p
		SET status = $3, responded_at = $4
		WHERE p.matching_id = $1 AND p.cast_id = $2 AND p.status = 'pending'
		  AND ($5::int IS NULL OR (
			SELECT COUNT(*) FROM matching_participants
			WHERE matching_id = $1 AND status IN ('accepted', 'joined', 'completed')
		  ) < $5)
		RETURNING ` + participantColumns

	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, matchingID, castID, status, respondedAt, acceptCap))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to respond on roster row: %w", err)
	}

	return p, nil
}

// JoinParticipant moves an accepted roster row to joined
func (r *Repository) JoinParticipant(ctx context.Context, matchingID, castID int64, joinedAt time.Time) (*Participant, error) {
	query := `
		UPDATE matching_participants p
		SET status = 'joined', joined_at = $3
		WHERE p.matching_id = $1 AND p.cast_id = $2 AND p.status = 'accepted'
		RETURNING ` + participantColumns

	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, matchingID, castID, joinedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to join roster row: %w", err)
	}

	return p, nil
}

// CompleteParticipant moves a joined roster row to completed
func (r *Repository) CompleteParticipant(ctx context.Context, matchingID, castID int64, completedAt time.Time) (*Participant, error) {
	query := `
		UPDATE matching_participants p
		SET status = 'completed', completed_at = $3
		WHERE p.matching_id = $1 AND p.cast_id = $2 AND p.status = 'joined'
		RETURNING ` + participantColumns

	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, matchingID, castID, completedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to complete roster row: %w", err)
	}

	return p, nil
}

// AcceptMatchingIfPending flips the parent record on the first acceptance;
// zero rows affected just means another acceptance won earlier
func (r *Repository) AcceptMatchingIfPending(ctx context.Context, matchingID int64) error {
	query := `UPDATE matchings SET status = 'accepted' WHERE id = $1 AND status = 'pending'`

	if _, err := r.db.ExecContext(ctx, query, matchingID); err != nil {
		return fmt.Errorf("failed to accept matching: %w", err)
	}
	return nil
}

// StartMatchingIfUnstarted sets the timing fields only while startedAt is
// still null, so exactly one of any concurrent joins initializes timing.
// Recruiting ends at the same instant.
func (r *Repository) StartMatchingIfUnstarted(ctx context.Context, matchingID int64, startedAt, scheduledEndAt time.Time) error {
	query := `
		UPDATE matchings
		SET status = 'in_progress', started_at = $2, scheduled_end_at = $3, recruiting_ended_at = $2
		WHERE id = $1 AND status = 'accepted' AND started_at IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, matchingID, startedAt, scheduledEndAt); err != nil {
		return fmt.Errorf("failed to start matching: %w", err)
	}
	return nil
}

// CompleteMatchingIfAllFinished completes the parent once no roster row
// remains joined. Evaluated in one statement so concurrent finishers race
// safely: only the last one out still satisfies the NOT EXISTS.
func (r *Repository) CompleteMatchingIfAllFinished(ctx context.Context, matchingID int64, actualEndAt time.Time) error {
	query := `
		UPDATE matchings m
		SET status = 'completed', actual_end_at = $2
		WHERE m.id = $1 AND m.status = 'in_progress'
		  AND NOT EXISTS (
			SELECT 1 FROM matching_participants p
			WHERE p.matching_id = m.id AND p.status = 'joined'
		  )
	`

	if _, err := r.db.ExecContext(ctx, query, matchingID, actualEndAt); err != nil {
		return fmt.Errorf("failed to complete matching: %w", err)
	}
	return nil
}

// CountJoined counts roster rows currently joined
func (r *Repository) CountJoined(ctx context.Context, matchingID int64) (int, error) {
	query := `SELECT COUNT(*) FROM matching_participants WHERE matching_id = $1 AND status = 'joined'`

	var n int
	if err := r.db.QueryRowContext(ctx, query, matchingID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count joined participants: %w", err)
	}
	return n, nil
}

// Summary aggregates roster progress for the guest-facing view
func (r *Repository) Summary(ctx context.Context, matchingID int64) (*ParticipantSummary, error) {
	query := `
		SELECT status, COUNT(*)
		FROM matching_participants
		WHERE matching_id = $1
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query, matchingID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize roster: %w", err)
	}
	defer rows.Close()

	summary := &ParticipantSummary{}
	for rows.Next() {
		var status ParticipantStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan roster summary: %w", err)
		}

		summary.Invited += n
		switch status {
		case ParticipantAccepted:
			summary.Accepted = n
		case ParticipantJoined:
			summary.Joined = n
		case ParticipantCompleted:
			summary.Completed = n
		case ParticipantRejected:
			summary.Rejected = n
		}
	}

	return summary, rows.Err()
}
