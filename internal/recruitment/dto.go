package recruitment

import (
	"time"

	"github.com/kmiyachi/castmatch/internal/matching"
)

// AgeFilter narrows group fan-out to casts within an age band
type AgeFilter struct {
	MinAge int `json:"min_age" validate:"required,min=18,max=99"`
	MaxAge int `json:"max_age" validate:"required,min=18,max=99"`
}

// CreateGroupOfferRequest represents a guest's request to recruit several
// casts for one engagement
type CreateGroupOfferRequest struct {
	RequestedCastCount int        `json:"requested_cast_count" validate:"required,min=1,max=10"`
	DurationMinutes    int        `json:"duration_minutes" validate:"required"`
	Location           string     `json:"location" validate:"required,min=1,max=200"`
	AgeFilter          *AgeFilter `json:"age_filter,omitempty"`
	Date               *time.Time `json:"date,omitempty"`
	OffsetMinutes      *int       `json:"offset_minutes,omitempty"`
}

// CreateGroupOfferResponse returns the created recruitment together with
// the fanned-out invitation count so a zero-match creation can be
// surfaced to the guest immediately
type CreateGroupOfferResponse struct {
	Matching         *matching.MatchingResponse `json:"matching"`
	ParticipantCount int                        `json:"participant_count"`
}

// ParticipantResponse represents one roster row
type ParticipantResponse struct {
	ID          int64             `json:"id"`
	CastID      int64             `json:"cast_id"`
	Nickname    string            `json:"nickname,omitempty"`
	Status      ParticipantStatus `json:"status"`
	RespondedAt *string           `json:"responded_at,omitempty"`
	JoinedAt    *string           `json:"joined_at,omitempty"`
	CompletedAt *string           `json:"completed_at,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05Z"

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

// ToResponse converts a Participant model to a ParticipantResponse DTO
func (p *Participant) ToResponse() *ParticipantResponse {
	return &ParticipantResponse{
		ID:          p.ID,
		CastID:      p.CastID,
		Nickname:    p.Nickname,
		Status:      p.Status,
		RespondedAt: formatTimePtr(p.RespondedAt),
		JoinedAt:    formatTimePtr(p.JoinedAt),
		CompletedAt: formatTimePtr(p.CompletedAt),
	}
}

// RecruitmentResponse is the guest-facing view of a group matching:
// the record, roster progress counts, and the roster itself
type RecruitmentResponse struct {
	Matching     *matching.MatchingResponse `json:"matching"`
	Summary      *ParticipantSummary        `json:"summary"`
	Participants []*ParticipantResponse     `json:"participants"`
}
