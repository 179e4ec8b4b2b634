package matching

import (
	"errors"
	"time"
)

var (
	ErrProposedDateRequired = errors.New("exactly one of date or offset_minutes is required")
	ErrProposedDateConflict = errors.New("date and offset_minutes are mutually exclusive")
	ErrOffsetNotPositive    = errors.New("offset_minutes must be positive")
)

// CreateSoloOfferRequest represents a guest's request for a one-to-one offer.
// The proposed start is given either as an absolute timestamp or as an
// offset from now, never both.
type CreateSoloOfferRequest struct {
	CastID          int64      `json:"cast_id" validate:"required"`
	DurationMinutes int        `json:"duration_minutes" validate:"required"`
	Location        string     `json:"location" validate:"required,min=1,max=200"`
	HourlyRate      int        `json:"hourly_rate" validate:"required,min=1"`
	Date            *time.Time `json:"date,omitempty"`
	OffsetMinutes   *int       `json:"offset_minutes,omitempty"`
}

// RespondRequest represents a cast's answer to a pending offer
type RespondRequest struct {
	Action string `json:"action" validate:"required,oneof=accepted rejected"`
}

// ExtendRequest represents a guest's request to extend a running matching
type ExtendRequest struct {
	ExtensionMinutes int `json:"extension_minutes" validate:"required"`
}

// ResolveProposedDate collapses the date/offset duality into one absolute
// timestamp so the engine only ever deals in absolute time
func ResolveProposedDate(now time.Time, date *time.Time, offsetMinutes *int) (time.Time, error) {
	switch {
	case date == nil && offsetMinutes == nil:
		return time.Time{}, ErrProposedDateRequired
	case date != nil && offsetMinutes != nil:
		return time.Time{}, ErrProposedDateConflict
	case date != nil:
		return *date, nil
	default:
		if *offsetMinutes <= 0 {
			return time.Time{}, ErrOffsetNotPositive
		}
		return now.Add(time.Duration(*offsetMinutes) * time.Minute), nil
	}
}

// MatchingResponse represents the response for a matching record
type MatchingResponse struct {
	ID                 int64  `json:"id"`
	Kind               Kind   `json:"kind"`
	GuestID            int64  `json:"guest_id"`
	CastID             *int64 `json:"cast_id,omitempty"`
	RequestedCastCount *int   `json:"requested_cast_count,omitempty"`
	Status             Status `json:"status"`
	ProposedDate       string `json:"proposed_date"`
	ProposedDuration   int    `json:"proposed_duration"`
	ProposedLocation   string `json:"proposed_location"`
	HourlyRate         int    `json:"hourly_rate"`
	TotalPoints        int    `json:"total_points"`
	ExtensionMinutes   int    `json:"extension_minutes"`
	ExtensionPoints    int    `json:"extension_points"`

	StartedAt         *string `json:"started_at,omitempty"`
	ScheduledEndAt    *string `json:"scheduled_end_at,omitempty"`
	ActualEndAt       *string `json:"actual_end_at,omitempty"`
	RecruitingEndedAt *string `json:"recruiting_ended_at,omitempty"`

	CreatedAt string `json:"created_at"`
}

const timeLayout = "2006-01-02T15:04:05Z"

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

// ToResponse converts a MatchingRecord model to a MatchingResponse DTO
func (m *MatchingRecord) ToResponse() *MatchingResponse {
	return &MatchingResponse{
		ID:                 m.ID,
		Kind:               m.Kind,
		GuestID:            m.GuestID,
		CastID:             m.CastID,
		RequestedCastCount: m.RequestedCastCount,
		Status:             m.Status,
		ProposedDate:       m.ProposedDate.UTC().Format(timeLayout),
		ProposedDuration:   m.ProposedDuration,
		ProposedLocation:   m.ProposedLocation,
		HourlyRate:         m.HourlyRate,
		TotalPoints:        m.TotalPoints,
		ExtensionMinutes:   m.ExtensionMinutes,
		ExtensionPoints:    m.ExtensionPoints,
		StartedAt:          formatTimePtr(m.StartedAt),
		ScheduledEndAt:     formatTimePtr(m.ScheduledEndAt),
		ActualEndAt:        formatTimePtr(m.ActualEndAt),
		RecruitingEndedAt:  formatTimePtr(m.RecruitingEndedAt),
		CreatedAt:          m.CreatedAt.UTC().Format(timeLayout),
	}
}
