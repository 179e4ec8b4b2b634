package recruitment

import "time"

// ParticipantStatus tracks one cast's progress through a group matching
type ParticipantStatus string

const (
	ParticipantPending   ParticipantStatus = "pending"
	ParticipantAccepted  ParticipantStatus = "accepted"
	ParticipantRejected  ParticipantStatus = "rejected"
	ParticipantJoined    ParticipantStatus = "joined"
	ParticipantCompleted ParticipantStatus = "completed"
)

// Participant is one cast's roster row on a group matching. Each row is
// mutated exclusively by its owning cast and cascades with its parent.
type Participant struct {
	ID         int64             `json:"id"`
	MatchingID int64             `json:"matching_id"`
	CastID     int64             `json:"cast_id"`
	Status     ParticipantStatus `json:"status"`

	RespondedAt *time.Time `json:"responded_at,omitempty"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Populated from JOIN
	Nickname string `json:"nickname,omitempty"`
}

// ParticipantSummary exposes roster progress to the guest. Counts may lag
// concurrent roster writes by a moment; a dashboard refresh catches up.
type ParticipantSummary struct {
	Requested int `json:"requested"`
	Invited   int `json:"invited"`
	Accepted  int `json:"accepted"`
	Joined    int `json:"joined"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
}
