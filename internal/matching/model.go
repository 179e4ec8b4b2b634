package matching

import "time"

// Kind distinguishes a one-to-one offer from a group recruitment
type Kind string

const (
	KindSolo  Kind = "solo"
	KindGroup Kind = "group"
)

// Status represents the canonical status of a matching
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further status transition is allowed
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// MatchingRecord holds one engagement request between a guest and one cast
// (solo) or a recruited set of casts (group).
//
// startedAt and scheduledEndAt are set together exactly once, when the
// engagement starts; scheduledEndAt thereafter only moves forward as
// extensions accrue. actualEndAt is set once, on completion, and never
// cleared.
type MatchingRecord struct {
	ID                 int64     `json:"id"`
	Kind               Kind      `json:"kind"`
	GuestID            int64     `json:"guest_id"`
	CastID             *int64    `json:"cast_id,omitempty"`
	RequestedCastCount *int      `json:"requested_cast_count,omitempty"`
	Status             Status    `json:"status"`
	ProposedDate       time.Time `json:"proposed_date"`
	ProposedDuration   int       `json:"proposed_duration"`
	ProposedLocation   string    `json:"proposed_location"`
	HourlyRate         int       `json:"hourly_rate"`
	TotalPoints        int       `json:"total_points"`
	ExtensionMinutes   int       `json:"extension_minutes"`
	ExtensionPoints    int       `json:"extension_points"`

	StartedAt         *time.Time `json:"started_at,omitempty"`
	ScheduledEndAt    *time.Time `json:"scheduled_end_at,omitempty"`
	ActualEndAt       *time.Time `json:"actual_end_at,omitempty"`
	RecruitingEndedAt *time.Time `json:"recruiting_ended_at,omitempty"`

	// Age filter applied at group fan-out time (group only)
	MinAge *int `json:"min_age,omitempty"`
	MaxAge *int `json:"max_age,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
