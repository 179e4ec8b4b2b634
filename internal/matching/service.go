package matching

import (
	"context"
	"errors"
	"time"

	"github.com/kmiyachi/castmatch/internal/cast"
	"github.com/kmiyachi/castmatch/internal/matching/points"
)

// Common errors
var (
	ErrMatchingNotFound  = errors.New("matching not found")
	ErrCastNotFound      = errors.New("cast not found")
	ErrDuplicateOffer    = errors.New("a pending offer to this cast already exists")
	ErrNotCastOwner      = errors.New("only the cast on this matching can perform this action")
	ErrNotGuestOwner     = errors.New("only the guest on this matching can perform this action")
	ErrInvalidTransition = errors.New("action not allowed from the current status")
	ErrExtensionNotDue   = errors.New("extension is only allowed after the scheduled end has passed")
	ErrWrongKind         = errors.New("operation does not apply to this matching kind")
)

// Store is the persistence surface the lifecycle runs on. Conditional
// methods apply their update only when the row still satisfies the stated
// precondition and return (nil, nil) otherwise, so concurrent callers get
// first-transition-wins semantics without a lock manager.
type Store interface {
	// CreateSoloOffer persists a new solo offer, failing with
	// ErrDuplicateOffer while a pending offer for the same guest/cast
	// pair exists.
	CreateSoloOffer(ctx context.Context, rec *MatchingRecord) (*MatchingRecord, error)

	// GetByID returns (nil, nil) when the matching does not exist.
	GetByID(ctx context.Context, id int64) (*MatchingRecord, error)

	// UpdateStatus transitions status from -> to.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (*MatchingRecord, error)

	// Start moves an accepted matching to in_progress, setting the two
	// timing fields only if startedAt is still null.
	Start(ctx context.Context, id int64, startedAt, scheduledEndAt time.Time) (*MatchingRecord, error)

	// Extend accrues minutes and points onto a running matching whose
	// scheduled end has passed.
	Extend(ctx context.Context, id int64, minutes, pts int, now time.Time) (*MatchingRecord, error)

	// Complete moves a running matching to completed, stamping
	// actualEndAt exactly once.
	Complete(ctx context.Context, id int64, actualEndAt time.Time) (*MatchingRecord, error)
}

// CastLookup resolves offer targets against the cast directory
type CastLookup interface {
	GetByID(ctx context.Context, id int64) (*cast.Cast, error)
}

// Service drives the solo matching lifecycle
type Service struct {
	store Store
	casts CastLookup
	now   func() time.Time
}

// NewService creates a new matching service
func NewService(store Store, casts CastLookup) *Service {
	return &Service{
		store: store,
		casts: casts,
		now:   time.Now,
	}
}

// CreateSoloOffer prices and persists a new one-to-one offer from a guest
// to a cast. At most one pending offer per guest/cast pair may exist.
func (s *Service) CreateSoloOffer(ctx context.Context, guestID int64, req *CreateSoloOfferRequest) (*MatchingRecord, error) {
	if err := points.ValidateDuration(req.DurationMinutes); err != nil {
		return nil, err
	}

	now := s.now()
	proposedDate, err := ResolveProposedDate(now, req.Date, req.OffsetMinutes)
	if err != nil {
		return nil, err
	}

	target, err := s.casts.GetByID(ctx, req.CastID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrCastNotFound
	}

	castID := req.CastID
	rec := &MatchingRecord{
		Kind:             KindSolo,
		GuestID:          guestID,
		CastID:           &castID,
		Status:           StatusPending,
		ProposedDate:     proposedDate,
		ProposedDuration: req.DurationMinutes,
		ProposedLocation: req.Location,
		HourlyRate:       req.HourlyRate,
		TotalPoints:      points.Calculate(req.DurationMinutes, float64(req.HourlyRate)),
	}

	return s.store.CreateSoloOffer(ctx, rec)
}

// GetByID retrieves a matching by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*MatchingRecord, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrMatchingNotFound
	}
	return rec, nil
}

// RespondSolo records the cast's answer to a pending offer
func (s *Service) RespondSolo(ctx context.Context, matchingID, castID int64, accepted bool) (*MatchingRecord, error) {
	if _, err := s.getSoloForCast(ctx, matchingID, castID); err != nil {
		return nil, err
	}

	target := StatusAccepted
	if !accepted {
		target = StatusRejected
	}

	updated, err := s.store.UpdateStatus(ctx, matchingID, StatusPending, target)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Lost the conditional write: a resubmit of the same answer
		// returns the current state, anything else is out of order.
		return s.currentIf(ctx, matchingID, target)
	}

	return updated, nil
}

// StartSolo begins the engagement, stamping startedAt/scheduledEndAt once
func (s *Service) StartSolo(ctx context.Context, matchingID, castID int64) (*MatchingRecord, error) {
	rec, err := s.getSoloForCast(ctx, matchingID, castID)
	if err != nil {
		return nil, err
	}

	startedAt := s.now()
	scheduledEndAt := startedAt.Add(time.Duration(rec.ProposedDuration) * time.Minute)

	updated, err := s.store.Start(ctx, matchingID, startedAt, scheduledEndAt)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return s.currentIf(ctx, matchingID, StatusInProgress)
	}

	return updated, nil
}

// ExtendSolo adds time to a running matching once its scheduled window has
// elapsed, accruing points at the offer's hourly rate
func (s *Service) ExtendSolo(ctx context.Context, matchingID, guestID int64, extensionMinutes int) (*MatchingRecord, error) {
	if err := points.ValidateExtensionMinutes(extensionMinutes); err != nil {
		return nil, err
	}

	rec, err := s.GetByID(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if rec.Kind != KindSolo {
		return nil, ErrWrongKind
	}
	if rec.GuestID != guestID {
		return nil, ErrNotGuestOwner
	}

	now := s.now()
	if !points.CanExtend(string(rec.Status), rec.ScheduledEndAt, now) {
		return nil, ErrExtensionNotDue
	}

	pts := points.Calculate(extensionMinutes, float64(rec.HourlyRate))
	updated, err := s.store.Extend(ctx, matchingID, extensionMinutes, pts, now)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrExtensionNotDue
	}

	return updated, nil
}

// CompleteSolo ends the engagement, stamping actualEndAt
func (s *Service) CompleteSolo(ctx context.Context, matchingID, castID int64) (*MatchingRecord, error) {
	if _, err := s.getSoloForCast(ctx, matchingID, castID); err != nil {
		return nil, err
	}

	updated, err := s.store.Complete(ctx, matchingID, s.now())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return s.currentIf(ctx, matchingID, StatusCompleted)
	}

	return updated, nil
}

// CancelSolo lets the guest withdraw an offer that has not started yet
func (s *Service) CancelSolo(ctx context.Context, matchingID, guestID int64) (*MatchingRecord, error) {
	rec, err := s.GetByID(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if rec.Kind != KindSolo {
		return nil, ErrWrongKind
	}
	if rec.GuestID != guestID {
		return nil, ErrNotGuestOwner
	}

	for _, from := range []Status{StatusPending, StatusAccepted} {
		updated, err := s.store.UpdateStatus(ctx, matchingID, from, StatusCancelled)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			return updated, nil
		}
	}

	return s.currentIf(ctx, matchingID, StatusCancelled)
}

// getSoloForCast loads a matching and verifies it is a solo record owned by
// the acting cast
func (s *Service) getSoloForCast(ctx context.Context, matchingID, castID int64) (*MatchingRecord, error) {
	rec, err := s.GetByID(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if rec.Kind != KindSolo {
		return nil, ErrWrongKind
	}
	if rec.CastID == nil || *rec.CastID != castID {
		return nil, ErrNotCastOwner
	}
	return rec, nil
}

// currentIf re-reads the record after a lost conditional write: if it
// already carries the status the caller was driving towards the call was a
// resubmit and the current state is returned, otherwise the transition was
// genuinely out of order.
func (s *Service) currentIf(ctx context.Context, matchingID int64, want Status) (*MatchingRecord, error) {
	rec, err := s.GetByID(ctx, matchingID)
	if err != nil {
		return nil, err
	}
	if rec.Status == want {
		return rec, nil
	}
	return nil, ErrInvalidTransition
}
