package recruitment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kmiyachi/castmatch/internal/cast"
	"github.com/kmiyachi/castmatch/internal/matching"
)

// fakeStore is an in-memory implementation of both the roster Store and
// matching.Store, sharing one mutex so the conditional-write contracts
// hold under concurrent calls exactly as the SQL versions do.
type fakeStore struct {
	mu           sync.Mutex
	seq          int64
	recs         map[int64]*matching.MatchingRecord
	participants map[int64]map[int64]*Participant
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recs:         make(map[int64]*matching.MatchingRecord),
		participants: make(map[int64]map[int64]*Participant),
	}
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneRecord(rec *matching.MatchingRecord) *matching.MatchingRecord {
	if rec == nil {
		return nil
	}
	c := *rec
	if rec.RequestedCastCount != nil {
		v := *rec.RequestedCastCount
		c.RequestedCastCount = &v
	}
	c.StartedAt = copyTimePtr(rec.StartedAt)
	c.ScheduledEndAt = copyTimePtr(rec.ScheduledEndAt)
	c.ActualEndAt = copyTimePtr(rec.ActualEndAt)
	c.RecruitingEndedAt = copyTimePtr(rec.RecruitingEndedAt)
	return &c
}

func cloneParticipant(p *Participant) *Participant {
	if p == nil {
		return nil
	}
	c := *p
	c.RespondedAt = copyTimePtr(p.RespondedAt)
	c.JoinedAt = copyTimePtr(p.JoinedAt)
	c.CompletedAt = copyTimePtr(p.CompletedAt)
	return &c
}

// --- recruitment.Store ---

func (f *fakeStore) CreateGroupOffer(ctx context.Context, rec *matching.MatchingRecord, castIDs []int64) (*matching.MatchingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	stored := cloneRecord(rec)
	stored.ID = f.seq
	stored.CreatedAt = time.Now()
	f.recs[stored.ID] = stored

	rows := make(map[int64]*Participant, len(castIDs))
	for _, castID := range castIDs {
		f.seq++
		rows[castID] = &Participant{
			ID:         f.seq,
			MatchingID: stored.ID,
			CastID:     castID,
			Status:     ParticipantPending,
			CreatedAt:  time.Now(),
		}
	}
	f.participants[stored.ID] = rows

	return cloneRecord(stored), nil
}

func (f *fakeStore) GetParticipant(ctx context.Context, matchingID, castID int64) (*Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneParticipant(f.participants[matchingID][castID]), nil
}

func (f *fakeStore) ListParticipants(ctx context.Context, matchingID int64) ([]*Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Participant
	for _, p := range f.participants[matchingID] {
		out = append(out, cloneParticipant(p))
	}
	return out, nil
}

func (f *fakeStore) RespondParticipant(ctx context.Context, matchingID, castID int64, status ParticipantStatus, respondedAt time.Time, acceptCap *int) (*Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.participants[matchingID][castID]
	if p == nil || p.Status != ParticipantPending {
		return nil, nil
	}
	if acceptCap != nil {
		committed := 0
		for _, other := range f.participants[matchingID] {
			switch other.Status {
			case ParticipantAccepted, ParticipantJoined, ParticipantCompleted:
				committed++
			}
		}
		if committed >= *acceptCap {
			return nil, nil
		}
	}
	p.Status = status
	p.RespondedAt = &respondedAt
	return cloneParticipant(p), nil
}

func (f *fakeStore) JoinParticipant(ctx context.Context, matchingID, castID int64, joinedAt time.Time) (*Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.participants[matchingID][castID]
	if p == nil || p.Status != ParticipantAccepted {
		return nil, nil
	}
	p.Status = ParticipantJoined
	p.JoinedAt = &joinedAt
	return cloneParticipant(p), nil
}

func (f *fakeStore) CompleteParticipant(ctx context.Context, matchingID, castID int64, completedAt time.Time) (*Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.participants[matchingID][castID]
	if p == nil || p.Status != ParticipantJoined {
		return nil, nil
	}
	p.Status = ParticipantCompleted
	p.CompletedAt = &completedAt
	return cloneParticipant(p), nil
}

func (f *fakeStore) AcceptMatchingIfPending(ctx context.Context, matchingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := f.recs[matchingID]
	if rec != nil && rec.Status == matching.StatusPending {
		rec.Status = matching.StatusAccepted
	}
	return nil
}

func (f *fakeStore) StartMatchingIfUnstarted(ctx context.Context, matchingID int64, startedAt, scheduledEndAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := f.recs[matchingID]
	if rec != nil && rec.Status == matching.StatusAccepted && rec.StartedAt == nil {
		rec.Status = matching.StatusInProgress
		rec.StartedAt = &startedAt
		rec.ScheduledEndAt = &scheduledEndAt
		rec.RecruitingEndedAt = &startedAt
	}
	return nil
}

func (f *fakeStore) CompleteMatchingIfAllFinished(ctx context.Context, matchingID int64, actualEndAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := f.recs[matchingID]
	if rec == nil || rec.Status != matching.StatusInProgress {
		return nil
	}
	for _, p := range f.participants[matchingID] {
		if p.Status == ParticipantJoined {
			return nil
		}
	}
	rec.Status = matching.StatusCompleted
	rec.ActualEndAt = &actualEndAt
	return nil
}

func (f *fakeStore) CountJoined(ctx context.Context, matchingID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, p := range f.participants[matchingID] {
		if p.Status == ParticipantJoined {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Summary(ctx context.Context, matchingID int64) (*ParticipantSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summary := &ParticipantSummary{}
	for _, p := range f.participants[matchingID] {
		summary.Invited++
		switch p.Status {
		case ParticipantAccepted:
			summary.Accepted++
		case ParticipantJoined:
			summary.Joined++
		case ParticipantCompleted:
			summary.Completed++
		case ParticipantRejected:
			summary.Rejected++
		}
	}
	return summary, nil
}

// --- matching.Store ---

func (f *fakeStore) CreateSoloOffer(ctx context.Context, rec *matching.MatchingRecord) (*matching.MatchingRecord, error) {
	return nil, errors.New("not supported by this fake")
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*matching.MatchingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneRecord(f.recs[id]), nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id int64, from, to matching.Status) (*matching.MatchingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.recs[id]
	if !ok || rec.Status != from {
		return nil, nil
	}
	rec.Status = to
	return cloneRecord(rec), nil
}

func (f *fakeStore) Start(ctx context.Context, id int64, startedAt, scheduledEndAt time.Time) (*matching.MatchingRecord, error) {
	return nil, errors.New("not supported by this fake")
}

func (f *fakeStore) Extend(ctx context.Context, id int64, minutes, pts int, now time.Time) (*matching.MatchingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.recs[id]
	if !ok || rec.Status != matching.StatusInProgress || rec.ScheduledEndAt == nil || rec.ScheduledEndAt.After(now) {
		return nil, nil
	}
	rec.ExtensionMinutes += minutes
	rec.ExtensionPoints += pts
	rec.TotalPoints += pts
	end := rec.ScheduledEndAt.Add(time.Duration(minutes) * time.Minute)
	rec.ScheduledEndAt = &end
	return cloneRecord(rec), nil
}

func (f *fakeStore) Complete(ctx context.Context, id int64, actualEndAt time.Time) (*matching.MatchingRecord, error) {
	return nil, errors.New("not supported by this fake")
}

type fakeDirectory struct {
	casts []*cast.Cast
}

func (f *fakeDirectory) ListActive(ctx context.Context, minAge, maxAge *int) ([]*cast.Cast, error) {
	var out []*cast.Cast
	for _, c := range f.casts {
		if !c.IsActive {
			continue
		}
		if minAge != nil && c.Age < *minAge {
			continue
		}
		if maxAge != nil && c.Age > *maxAge {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func newTestService(capAtRequested bool, casts ...*cast.Cast) (*Service, *fakeStore) {
	store := newFakeStore()
	return NewService(store, store, &fakeDirectory{casts: casts}, capAtRequested), store
}

func activeCast(id int64, age int) *cast.Cast {
	return &cast.Cast{ID: id, Age: age, HourlyRate: 3000, IsActive: true}
}

func groupRequest(count int) *CreateGroupOfferRequest {
	offset := 90
	return &CreateGroupOfferRequest{
		RequestedCastCount: count,
		DurationMinutes:    120,
		Location:           "Roppongi",
		OffsetMinutes:      &offset,
	}
}

func TestCreateGroupOffer(t *testing.T) {
	svc, _ := newTestService(false, activeCast(10, 22), activeCast(11, 28))
	ctx := context.Background()

	rec, count, err := svc.CreateGroupOffer(ctx, 1, groupRequest(3))
	if err != nil {
		t.Fatalf("CreateGroupOffer: %v", err)
	}

	// Priced by requested headcount regardless of eventual acceptance
	if rec.TotalPoints != 18000 {
		t.Errorf("total points = %d, want 18000", rec.TotalPoints)
	}
	if rec.Status != matching.StatusPending {
		t.Errorf("status = %s, want pending", rec.Status)
	}
	if count != 2 {
		t.Errorf("participant count = %d, want 2", count)
	}
}

func TestCreateGroupOfferAgeFilter(t *testing.T) {
	svc, _ := newTestService(false, activeCast(10, 22), activeCast(11, 28), activeCast(12, 35))
	ctx := context.Background()

	req := groupRequest(2)
	req.AgeFilter = &AgeFilter{MinAge: 25, MaxAge: 30}
	_, count, err := svc.CreateGroupOffer(ctx, 1, req)
	if err != nil {
		t.Fatalf("CreateGroupOffer: %v", err)
	}
	if count != 1 {
		t.Errorf("participant count = %d, want 1", count)
	}

	bad := groupRequest(2)
	bad.AgeFilter = &AgeFilter{MinAge: 30, MaxAge: 25}
	if _, _, err := svc.CreateGroupOffer(ctx, 1, bad); !errors.Is(err, ErrAgeFilterInvalid) {
		t.Errorf("inverted filter: err = %v, want ErrAgeFilterInvalid", err)
	}
}

func TestCreateGroupOfferZeroMatches(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	rec, count, err := svc.CreateGroupOffer(ctx, 1, groupRequest(3))
	if err != nil {
		t.Fatalf("zero-match creation should succeed, got %v", err)
	}
	if count != 0 {
		t.Errorf("participant count = %d, want 0", count)
	}
	if rec.Status != matching.StatusPending {
		t.Errorf("status = %s, want pending", rec.Status)
	}
}

func TestRespondFirstAcceptanceFlipsMatching(t *testing.T) {
	svc, _ := newTestService(false, activeCast(10, 22), activeCast(11, 28), activeCast(12, 35))
	ctx := context.Background()

	rec, _, err := svc.CreateGroupOffer(ctx, 1, groupRequest(3))
	if err != nil {
		t.Fatalf("CreateGroupOffer: %v", err)
	}

	updated, err := svc.Respond(ctx, rec.ID, 10, true)
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	// One acceptance is enough, the full headcount is not awaited
	if updated.Status != matching.StatusAccepted {
		t.Errorf("status = %s, want accepted after first acceptance", updated.Status)
	}

	if _, err := svc.Respond(ctx, rec.ID, 11, false); err != nil {
		t.Fatalf("reject: %v", err)
	}

	_, summary, _, err := svc.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if summary.Requested != 3 || summary.Invited != 3 || summary.Accepted != 1 || summary.Rejected != 1 {
		t.Errorf("summary = %+v, want requested 3 / invited 3 / accepted 1 / rejected 1", summary)
	}

	if _, err := svc.Respond(ctx, rec.ID, 99, true); !errors.Is(err, ErrNotInvited) {
		t.Errorf("uninvited cast: err = %v, want ErrNotInvited", err)
	}
}

func TestRespondHeadcountCap(t *testing.T) {
	svc, _ := newTestService(true, activeCast(10, 22), activeCast(11, 28))
	ctx := context.Background()

	rec, _, err := svc.CreateGroupOffer(ctx, 1, groupRequest(1))
	if err != nil {
		t.Fatalf("CreateGroupOffer: %v", err)
	}

	if _, err := svc.Respond(ctx, rec.ID, 10, true); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := svc.Respond(ctx, rec.ID, 11, true); !errors.Is(err, ErrRecruitmentFull) {
		t.Errorf("over-cap accept: err = %v, want ErrRecruitmentFull", err)
	}
	// Rejection is always allowed
	if _, err := svc.Respond(ctx, rec.ID, 11, false); err != nil {
		t.Errorf("reject at cap: %v", err)
	}
}

func TestJoinConcurrentSingleStart(t *testing.T) {
	svc, store := newTestService(false, activeCast(10, 22), activeCast(11, 28))
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	rec, _, err := svc.CreateGroupOffer(ctx, 1, groupRequest(2))
	if err != nil {
		t.Fatalf("CreateGroupOffer: %v", err)
	}
	if _, err := svc.Respond(ctx, rec.ID, 10, true); err != nil {
		t.Fatalf("accept 10: %v", err)
	}
	if _, err := svc.Respond(ctx, rec.ID, 11, true); err != nil {
		t.Fatalf("accept 11: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, castID := range []int64{10, 11} {
		wg.Add(1)
		go func(i int, castID int64) {
			defer wg.Done()
			_, errs[i] = svc.Join(ctx, rec.ID, castID)
		}(i, castID)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != matching.StatusInProgress {
		t.Errorf("status = %s, want in_progress", got.Status)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(start) {
		t.Errorf("startedAt = %v, want %v", got.StartedAt, start)
	}
	if got.ScheduledEndAt == nil || !got.ScheduledEndAt.Equal(start.Add(120*time.Minute)) {
		t.Errorf("scheduledEndAt = %v, want %v", got.ScheduledEndAt, start.Add(120*time.Minute))
	}
	if got.RecruitingEndedAt == nil || !got.RecruitingEndedAt.Equal(start) {
		t.Errorf("recruitingEndedAt = %v, want %v", got.RecruitingEndedAt, start)
	}

	// Both casts end up joined regardless of who won the start
	for _, castID := range []int64{10, 11} {
		p, err := store.GetParticipant(ctx, rec.ID, castID)
		if err != nil {
			t.Fatalf("GetParticipant: %v", err)
		}
		if p.Status != ParticipantJoined {
			t.Errorf("cast %d status = %s, want joined", castID, p.Status)
		}
	}
}

func TestCompletionPolicy(t *testing.T) {
	svc, store := newTestService(false, activeCast(10, 22), activeCast(11, 28))
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	rec, _, err := svc.CreateGroupOffer(ctx, 1, groupRequest(2))
	if err != nil {
		t.Fatalf("CreateGroupOffer: %v", err)
	}
	for _, castID := range []int64{10, 11} {
		if _, err := svc.Respond(ctx, rec.ID, castID, true); err != nil {
			t.Fatalf("accept %d: %v", castID, err)
		}
		if _, err := svc.Join(ctx, rec.ID, castID); err != nil {
			t.Fatalf("join %d: %v", castID, err)
		}
	}

	end := start.Add(125 * time.Minute)
	svc.now = func() time.Time { return end }

	// First finisher leaves the matching running
	mid, err := svc.CompleteParticipant(ctx, rec.ID, 10)
	if err != nil {
		t.Fatalf("complete 10: %v", err)
	}
	if mid.Status != matching.StatusInProgress {
		t.Errorf("status after first completion = %s, want in_progress", mid.Status)
	}

	// Last joined participant out completes the matching
	done, err := svc.CompleteParticipant(ctx, rec.ID, 11)
	if err != nil {
		t.Fatalf("complete 11: %v", err)
	}
	if done.Status != matching.StatusCompleted {
		t.Errorf("status after last completion = %s, want completed", done.Status)
	}
	if done.ActualEndAt == nil || !done.ActualEndAt.Equal(end) {
		t.Errorf("actualEndAt = %v, want %v", done.ActualEndAt, end)
	}

	p, err := store.GetParticipant(ctx, rec.ID, 10)
	if err != nil || p.Status != ParticipantCompleted {
		t.Errorf("cast 10 roster = %v (%v), want completed", p, err)
	}
}

func TestExtendGroup(t *testing.T) {
	svc, _ := newTestService(false, activeCast(10, 22), activeCast(11, 28))
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	rec, _, err := svc.CreateGroupOffer(ctx, 1, groupRequest(3))
	if err != nil {
		t.Fatalf("CreateGroupOffer: %v", err)
	}
	for _, castID := range []int64{10, 11} {
		if _, err := svc.Respond(ctx, rec.ID, castID, true); err != nil {
			t.Fatalf("accept %d: %v", castID, err)
		}
		if _, err := svc.Join(ctx, rec.ID, castID); err != nil {
			t.Fatalf("join %d: %v", castID, err)
		}
	}

	// Window not elapsed yet
	if _, err := svc.Extend(ctx, rec.ID, 1, 30); !errors.Is(err, matching.ErrExtensionNotDue) {
		t.Fatalf("extend mid-window: err = %v, want ErrExtensionNotDue", err)
	}

	svc.now = func() time.Time { return start.Add(120 * time.Minute) }

	if _, err := svc.Extend(ctx, rec.ID, 9, 30); !errors.Is(err, matching.ErrNotGuestOwner) {
		t.Errorf("foreign guest: err = %v, want ErrNotGuestOwner", err)
	}

	// Per-head rate derives back to the baseline: 18000 / 2h / 3 = 3000.
	// Only the two joined casts owe the extension fee.
	extended, err := svc.Extend(ctx, rec.ID, 1, 60)
	if err != nil {
		t.Fatalf("extend 60: %v", err)
	}
	if extended.ExtensionPoints != 6000 {
		t.Errorf("extension points = %d, want 6000", extended.ExtensionPoints)
	}
	if extended.TotalPoints != 24000 {
		t.Errorf("total points = %d, want 24000", extended.TotalPoints)
	}
	if !extended.ScheduledEndAt.Equal(start.Add(180 * time.Minute)) {
		t.Errorf("scheduledEndAt = %v, want %v", extended.ScheduledEndAt, start.Add(180*time.Minute))
	}

	// A later extension accrues at the same per-head rate
	svc.now = func() time.Time { return start.Add(180 * time.Minute) }
	extended, err = svc.Extend(ctx, rec.ID, 1, 30)
	if err != nil {
		t.Fatalf("extend 30: %v", err)
	}
	if extended.ExtensionPoints != 9000 {
		t.Errorf("cumulative extension points = %d, want 9000", extended.ExtensionPoints)
	}
	if extended.ExtensionMinutes != 90 {
		t.Errorf("cumulative extension minutes = %d, want 90", extended.ExtensionMinutes)
	}
}

func TestCancelGroup(t *testing.T) {
	svc, _ := newTestService(false, activeCast(10, 22))
	ctx := context.Background()

	rec, _, err := svc.CreateGroupOffer(ctx, 1, groupRequest(2))
	if err != nil {
		t.Fatalf("CreateGroupOffer: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, rec.ID, 1)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != matching.StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	// Roster rows become inert with their parent: the acceptance lands on
	// the row but can no longer flip a cancelled matching
	after, err := svc.Respond(ctx, rec.ID, 10, true)
	if err != nil {
		t.Fatalf("respond after cancel: %v", err)
	}
	if after.Status != matching.StatusCancelled {
		t.Errorf("status after late accept = %s, want cancelled", after.Status)
	}
}
