package cast

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles cast data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new cast repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new cast into the database
func (r *Repository) Create(ctx context.Context, req *CreateCastRequest) (*Cast, error) {
	query := `
		INSERT INTO casts (nickname, age, hourly_rate, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, nickname, age, hourly_rate, is_active, created_at
	`

	c := &Cast{}
	err := r.db.QueryRowContext(ctx, query, req.Nickname, req.Age, req.HourlyRate).Scan(
		&c.ID,
		&c.Nickname,
		&c.Age,
		&c.HourlyRate,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cast: %w", err)
	}

	return c, nil
}

// GetByID retrieves a cast by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Cast, error) {
	query := `
		SELECT id, nickname, age, hourly_rate, is_active, created_at
		FROM casts
		WHERE id = $1
	`

	c := &Cast{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Nickname,
		&c.Age,
		&c.HourlyRate,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cast: %w", err)
	}

	return c, nil
}

// List retrieves casts matching the filter, newest first, paginated
func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Cast, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM casts
		WHERE ($1 = FALSE OR is_active = TRUE)
		  AND ($2::int IS NULL OR age >= $2)
		  AND ($3::int IS NULL OR age <= $3)
	`
	if err := r.db.QueryRowContext(ctx, countQuery, filter.ActiveOnly, filter.MinAge, filter.MaxAge).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count casts: %w", err)
	}

	query := `
		SELECT id, nickname, age, hourly_rate, is_active, created_at
		FROM casts
		WHERE ($1 = FALSE OR is_active = TRUE)
		  AND ($2::int IS NULL OR age >= $2)
		  AND ($3::int IS NULL OR age <= $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	rows, err := r.db.QueryContext(ctx, query, filter.ActiveOnly, filter.MinAge, filter.MaxAge, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list casts: %w", err)
	}
	defer rows.Close()

	var casts []*Cast
	for rows.Next() {
		c := &Cast{}
		if err := rows.Scan(
			&c.ID,
			&c.Nickname,
			&c.Age,
			&c.HourlyRate,
			&c.IsActive,
			&c.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan cast: %w", err)
		}
		casts = append(casts, c)
	}

	return casts, total, rows.Err()
}

// ListActive retrieves all active casts, optionally narrowed to an age
// band. This is the fan-out query behind group offer creation and is
// deliberately unpaginated: every eligible cast gets a roster row.
func (r *Repository) ListActive(ctx context.Context, minAge, maxAge *int) ([]*Cast, error) {
	query := `
		SELECT id, nickname, age, hourly_rate, is_active, created_at
		FROM casts
		WHERE is_active = TRUE
		  AND ($1::int IS NULL OR age >= $1)
		  AND ($2::int IS NULL OR age <= $2)
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, minAge, maxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to list active casts: %w", err)
	}
	defer rows.Close()

	var casts []*Cast
	for rows.Next() {
		c := &Cast{}
		if err := rows.Scan(
			&c.ID,
			&c.Nickname,
			&c.Age,
			&c.HourlyRate,
			&c.IsActive,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cast: %w", err)
		}
		casts = append(casts, c)
	}

	return casts, rows.Err()
}

// Deactivate removes a cast from the active directory
func (r *Repository) Deactivate(ctx context.Context, id int64) (*Cast, error) {
	query := `
		UPDATE casts
		SET is_active = FALSE
		WHERE id = $1
		RETURNING id, nickname, age, hourly_rate, is_active, created_at
	`

	c := &Cast{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Nickname,
		&c.Age,
		&c.HourlyRate,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to deactivate cast: %w", err)
	}

	return c, nil
}
