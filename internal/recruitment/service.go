package recruitment

import (
	"context"
	"errors"
	"time"

	"github.com/kmiyachi/castmatch/internal/cast"
	"github.com/kmiyachi/castmatch/internal/matching"
	"github.com/kmiyachi/castmatch/internal/matching/points"
)

// BaselineHourlyRate is the implicit per-cast rate applied to group
// recruitments, in points per hour.
const BaselineHourlyRate = 3000

// Common errors
var (
	ErrNotInvited       = errors.New("cast is not on this recruitment's roster")
	ErrRecruitmentFull  = errors.New("requested headcount already reached")
	ErrAgeFilterInvalid = errors.New("age filter must satisfy 18 <= min <= max <= 99")
)

// Store is the roster persistence surface. Roster transitions are
// conditional writes keyed by (matching, cast, expected status) and return
// (nil, nil) when the precondition no longer holds; the matching-level
// recomputations are fire-and-forget conditional updates that at most one
// concurrent caller wins.
type Store interface {
	// CreateGroupOffer persists the matching record and fans out one
	// pending roster row per cast id, in one transaction.
	CreateGroupOffer(ctx context.Context, rec *matching.MatchingRecord, castIDs []int64) (*matching.MatchingRecord, error)

	// GetParticipant returns (nil, nil) when the cast has no roster row.
	GetParticipant(ctx context.Context, matchingID, castID int64) (*Participant, error)

	ListParticipants(ctx context.Context, matchingID int64) ([]*Participant, error)

	// RespondParticipant moves a pending row to accepted or rejected.
	// When acceptCap is non-nil an acceptance only lands while fewer
	// than *acceptCap rows are accepted or beyond.
	RespondParticipant(ctx context.Context, matchingID, castID int64, status ParticipantStatus, respondedAt time.Time, acceptCap *int) (*Participant, error)

	// JoinParticipant moves an accepted row to joined.
	JoinParticipant(ctx context.Context, matchingID, castID int64, joinedAt time.Time) (*Participant, error)

	// CompleteParticipant moves a joined row to completed.
	CompleteParticipant(ctx context.Context, matchingID, castID int64, completedAt time.Time) (*Participant, error)

	// AcceptMatchingIfPending flips the parent to accepted on the first
	// roster acceptance; later calls are no-ops.
	AcceptMatchingIfPending(ctx context.Context, matchingID int64) error

	// StartMatchingIfUnstarted stamps the timing fields and ends
	// recruiting, only if startedAt is still null.
	StartMatchingIfUnstarted(ctx context.Context, matchingID int64, startedAt, scheduledEndAt time.Time) error

	// CompleteMatchingIfAllFinished completes the parent when no roster
	// row remains joined.
	CompleteMatchingIfAllFinished(ctx context.Context, matchingID int64, actualEndAt time.Time) error

	CountJoined(ctx context.Context, matchingID int64) (int, error)
	Summary(ctx context.Context, matchingID int64) (*ParticipantSummary, error)
}

// Service orchestrates group recruitments: fan-out at creation, fan-in
// recomputation of the parent record as individual casts advance
type Service struct {
	store          Store
	matchings      matching.Store
	casts          cast.Directory
	capAtRequested bool
	now            func() time.Time
}

// NewService creates a new recruitment service
func NewService(store Store, matchings matching.Store, casts cast.Directory, capAtRequested bool) *Service {
	return &Service{
		store:          store,
		matchings:      matchings,
		casts:          casts,
		capAtRequested: capAtRequested,
		now:            time.Now,
	}
}

// CreateGroupOffer prices the recruitment at the baseline rate times the
// requested headcount, persists the record, and fans out one pending
// roster row per active cast passing the age filter. Zero matched casts is
// a successful creation; the count lets the caller warn the guest.
func (s *Service) CreateGroupOffer(ctx context.Context, guestID int64, req *CreateGroupOfferRequest) (*matching.MatchingRecord, int, error) {
	if err := points.ValidateDuration(req.DurationMinutes); err != nil {
		return nil, 0, err
	}

	var minAge, maxAge *int
	if req.AgeFilter != nil {
		f := *req.AgeFilter
		if f.MinAge < 18 || f.MaxAge > 99 || f.MinAge > f.MaxAge {
			return nil, 0, ErrAgeFilterInvalid
		}
		minAge, maxAge = &f.MinAge, &f.MaxAge
	}

	now := s.now()
	proposedDate, err := matching.ResolveProposedDate(now, req.Date, req.OffsetMinutes)
	if err != nil {
		return nil, 0, err
	}

	actives, err := s.casts.ListActive(ctx, minAge, maxAge)
	if err != nil {
		return nil, 0, err
	}
	castIDs := make([]int64, len(actives))
	for i, c := range actives {
		castIDs[i] = c.ID
	}

	count := req.RequestedCastCount
	rec := &matching.MatchingRecord{
		Kind:               matching.KindGroup,
		GuestID:            guestID,
		RequestedCastCount: &count,
		Status:             matching.StatusPending,
		ProposedDate:       proposedDate,
		ProposedDuration:   req.DurationMinutes,
		ProposedLocation:   req.Location,
		HourlyRate:         BaselineHourlyRate,
		TotalPoints:        points.Calculate(req.DurationMinutes, BaselineHourlyRate) * count,
		MinAge:             minAge,
		MaxAge:             maxAge,
	}

	created, err := s.store.CreateGroupOffer(ctx, rec, castIDs)
	if err != nil {
		return nil, 0, err
	}

	return created, len(castIDs), nil
}

// GetByID returns the group matching with roster progress
func (s *Service) GetByID(ctx context.Context, matchingID int64) (*matching.MatchingRecord, *ParticipantSummary, []*Participant, error) {
	rec, err := s.getGroup(ctx, matchingID)
	if err != nil {
		return nil, nil, nil, err
	}

	summary, err := s.store.Summary(ctx, matchingID)
	if err != nil {
		return nil, nil, nil, err
	}
	if rec.RequestedCastCount != nil {
		summary.Requested = *rec.RequestedCastCount
	}

	participants, err := s.store.ListParticipants(ctx, matchingID)
	if err != nil {
		return nil, nil, nil, err
	}

	return rec, summary, participants, nil
}

// Respond records one cast's answer on its own roster row. The parent
// flips pending -> accepted on the first acceptance; fulfilment is
// incremental, it never waits for the full headcount.
func (s *Service) Respond(ctx context.Context, matchingID, castID int64, accepted bool) (*matching.MatchingRecord, error) {
	rec, err := s.getGroup(ctx, matchingID)
	if err != nil {
		return nil, err
	}

	target := ParticipantAccepted
	var acceptCap *int
	if accepted {
		if s.capAtRequested {
			acceptCap = rec.RequestedCastCount
		}
	} else {
		target = ParticipantRejected
	}

	row, err := s.store.RespondParticipant(ctx, matchingID, castID, target, s.now(), acceptCap)
	if err != nil {
		return nil, err
	}
	if row == nil {
		existing, err := s.store.GetParticipant(ctx, matchingID, castID)
		if err != nil {
			return nil, err
		}
		switch {
		case existing == nil:
			return nil, ErrNotInvited
		case existing.Status == target:
			// resubmit of the same answer
		case existing.Status == ParticipantPending:
			// still pending means only the cap clause blocked the write
			return nil, ErrRecruitmentFull
		default:
			return nil, matching.ErrInvalidTransition
		}
	}

	if accepted {
		if err := s.store.AcceptMatchingIfPending(ctx, matchingID); err != nil {
			return nil, err
		}
	}

	return s.refresh(ctx, matchingID)
}

// Join moves the cast's roster row to joined and starts the engagement on
// the first join. The timing fields are set with a conditional write so
// concurrent joins cannot both initialize them.
func (s *Service) Join(ctx context.Context, matchingID, castID int64) (*matching.MatchingRecord, error) {
	rec, err := s.getGroup(ctx, matchingID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	row, err := s.store.JoinParticipant(ctx, matchingID, castID, now)
	if err != nil {
		return nil, err
	}
	if row == nil {
		existing, err := s.store.GetParticipant(ctx, matchingID, castID)
		if err != nil {
			return nil, err
		}
		switch {
		case existing == nil:
			return nil, ErrNotInvited
		case existing.Status == ParticipantJoined || existing.Status == ParticipantCompleted:
			// already in, fall through to the conditional start
		default:
			return nil, matching.ErrInvalidTransition
		}
	}

	scheduledEndAt := now.Add(time.Duration(rec.ProposedDuration) * time.Minute)
	if err := s.store.StartMatchingIfUnstarted(ctx, matchingID, now, scheduledEndAt); err != nil {
		return nil, err
	}

	return s.refresh(ctx, matchingID)
}

// CompleteParticipant finishes one cast's own engagement. The parent
// completes once no joined row remains, evaluated as a single conditional
// write so concurrent finishers race safely.
func (s *Service) CompleteParticipant(ctx context.Context, matchingID, castID int64) (*matching.MatchingRecord, error) {
	if _, err := s.getGroup(ctx, matchingID); err != nil {
		return nil, err
	}

	now := s.now()
	row, err := s.store.CompleteParticipant(ctx, matchingID, castID, now)
	if err != nil {
		return nil, err
	}
	if row == nil {
		existing, err := s.store.GetParticipant(ctx, matchingID, castID)
		if err != nil {
			return nil, err
		}
		switch {
		case existing == nil:
			return nil, ErrNotInvited
		case existing.Status == ParticipantCompleted:
			// resubmit
		default:
			return nil, matching.ErrInvalidTransition
		}
	}

	if err := s.store.CompleteMatchingIfAllFinished(ctx, matchingID, now); err != nil {
		return nil, err
	}

	return s.refresh(ctx, matchingID)
}

// Extend adds time to a running recruitment. The per-head rate is derived
// from the creation-time price so repeated extensions accrue at a stable
// rate, and only currently joined casts are owed the extension fee.
func (s *Service) Extend(ctx context.Context, matchingID, guestID int64, extensionMinutes int) (*matching.MatchingRecord, error) {
	if err := points.ValidateExtensionMinutes(extensionMinutes); err != nil {
		return nil, err
	}

	rec, err := s.getGroup(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if rec.GuestID != guestID {
		return nil, matching.ErrNotGuestOwner
	}

	now := s.now()
	if !points.CanExtend(string(rec.Status), rec.ScheduledEndAt, now) {
		return nil, matching.ErrExtensionNotDue
	}

	requested := 1
	if rec.RequestedCastCount != nil {
		requested = *rec.RequestedCastCount
	}
	creationPoints := rec.TotalPoints - rec.ExtensionPoints
	perHeadRate := float64(creationPoints) / (float64(rec.ProposedDuration) / 60.0) / float64(requested)

	joined, err := s.store.CountJoined(ctx, matchingID)
	if err != nil {
		return nil, err
	}

	pts := points.Calculate(extensionMinutes, perHeadRate) * joined
	updated, err := s.matchings.Extend(ctx, matchingID, extensionMinutes, pts, now)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, matching.ErrExtensionNotDue
	}

	return updated, nil
}

// Cancel lets the guest withdraw a recruitment that has not started yet
func (s *Service) Cancel(ctx context.Context, matchingID, guestID int64) (*matching.MatchingRecord, error) {
	rec, err := s.getGroup(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if rec.GuestID != guestID {
		return nil, matching.ErrNotGuestOwner
	}

	for _, from := range []matching.Status{matching.StatusPending, matching.StatusAccepted} {
		updated, err := s.matchings.UpdateStatus(ctx, matchingID, from, matching.StatusCancelled)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			return updated, nil
		}
	}

	current, err := s.refresh(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if current.Status == matching.StatusCancelled {
		return current, nil
	}
	return nil, matching.ErrInvalidTransition
}

func (s *Service) getGroup(ctx context.Context, matchingID int64) (*matching.MatchingRecord, error) {
	rec, err := s.matchings.GetByID(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, matching.ErrMatchingNotFound
	}
	if rec.Kind != matching.KindGroup {
		return nil, matching.ErrWrongKind
	}
	return rec, nil
}

func (s *Service) refresh(ctx context.Context, matchingID int64) (*matching.MatchingRecord, error) {
	rec, err := s.matchings.GetByID(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, matching.ErrMatchingNotFound
	}
	return rec, nil
}
