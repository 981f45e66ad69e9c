package autosave

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"visaprep/api/internal/confirm"
	"visaprep/api/internal/form"
	"visaprep/api/internal/store"
)

type fakeSubmissionStore struct {
	mu      sync.Mutex
	creates []store.Submission
	updates []store.Submission
	listed  atomic.Int32

	createFn func(ctx context.Context, item store.Submission) error
	updateFn func(ctx context.Context, item store.Submission) error
	listFn   func(ctx context.Context, ownerID string) ([]store.Submission, error)
}

func (f *fakeSubmissionStore) CreateSubmission(ctx context.Context, item store.Submission) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, item); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, item)
	return nil
}

func (f *fakeSubmissionStore) UpdateSubmission(ctx context.Context, item store.Submission) error {
	if f.updateFn != nil {
		if err := f.updateFn(ctx, item); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, item)
	return nil
}

func (f *fakeSubmissionStore) ListSubmissionsByOwner(ctx context.Context, ownerID string) ([]store.Submission, error) {
	f.listed.Add(1)
	if f.listFn != nil {
		return f.listFn(ctx, ownerID)
	}
	return nil, nil
}

func (f *fakeSubmissionStore) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

func (f *fakeSubmissionStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func newTestCoordinator(t *testing.T, submissions SubmissionStore) *Coordinator {
	t.Helper()
	return NewCoordinator(submissions, Options{
		Debounce:      20 * time.Millisecond,
		StatusDisplay: 30 * time.Millisecond,
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		query    string
		fallback string
		want     Mode
	}{
		{"", "load", ModeRestore},
		{"", "fresh", ModeFresh},
		{"fresh", "load", ModeFresh},
		{"mode=fresh", "load", ModeFresh},
		{"blank=1", "load", ModeFresh},
		{"load=1", "fresh", ModeRestore},
		{"mode=load", "fresh", ModeRestore},
		{"fresh&load=1", "load", ModeFresh}, // fresh wins
		{"mode=fresh&mode=load", "load", ModeFresh},
	}
	for _, tc := range cases {
		query, err := url.ParseQuery(tc.query)
		if err != nil {
			t.Fatalf("parse query %q: %v", tc.query, err)
		}
		if got := ParseMode(query, tc.fallback); got != tc.want {
			t.Errorf("ParseMode(%q, %q) = %v, want %v", tc.query, tc.fallback, got, tc.want)
		}
	}
}

func TestDebounceCollapsesEditBurst(t *testing.T) {
	fake := &fakeSubmissionStore{}
	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	c.Edit("surname", []string{"O"})
	c.Edit("surname", []string{"Ok"})
	c.Edit("surname", []string{"Oka"})
	c.Edit("surname", []string{"Okafor"})

	waitFor(t, time.Second, func() bool { return fake.createCount()+fake.updateCount() > 0 })
	time.Sleep(60 * time.Millisecond)

	if got := fake.createCount() + fake.updateCount(); got != 1 {
		t.Errorf("expected one save for the burst, got %d", got)
	}
	fake.mu.Lock()
	saved := fake.creates[0]
	fake.mu.Unlock()
	if saved.Fields["surname"] != "Okafor" {
		t.Errorf("expected final value Okafor, got %v", saved.Fields["surname"])
	}
}

func TestAtMostOneCreatePerOwner(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeSubmissionStore{}
	fake.createFn = func(ctx context.Context, item store.Submission) error {
		<-release
		return nil
	}

	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	c.Edit("surname", []string{"Okafor"})
	waitFor(t, time.Second, func() bool { return c.State() == StateSaving })

	// Trigger more work while the first save is stuck in flight.
	c.Edit("givenNames", []string{"Amara"})
	time.Sleep(50 * time.Millisecond)
	close(release)

	waitFor(t, time.Second, func() bool {
		return fake.createCount() == 1 && fake.updateCount() == 1
	})
	time.Sleep(60 * time.Millisecond)

	if got := fake.createCount(); got != 1 {
		t.Errorf("expected exactly one create, got %d", got)
	}
	if got := fake.updateCount(); got != 1 {
		t.Errorf("expected the dirty re-run to update, got %d updates", got)
	}
	fake.mu.Lock()
	rerun := fake.updates[0]
	fake.mu.Unlock()
	if rerun.Fields["givenNames"] != "Amara" {
		t.Errorf("expected re-run to carry the late edit, got %v", rerun.Fields["givenNames"])
	}
}

func TestFreshModeSkipsRestoreQuery(t *testing.T) {
	fake := &fakeSubmissionStore{}
	c := newTestCoordinator(t, fake)

	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	if got := fake.listed.Load(); got != 0 {
		t.Errorf("fresh mode must not query the store, saw %d list calls", got)
	}
	if len(c.Snapshot()) != 0 {
		// A fresh model still collects text controls as empty strings; check
		// nothing is filled instead of the raw length.
		for name, value := range c.Snapshot() {
			if form.IsFilled(value) {
				t.Errorf("fresh session started with %s filled: %v", name, value)
			}
		}
	}
	if c.State() != StateReady {
		t.Errorf("expected Ready, got %v", c.State())
	}
	if c.CanonicalID() != "" {
		t.Errorf("fresh session must not adopt a record id, got %q", c.CanonicalID())
	}
}

func TestRestoreAdoptsLatestRecord(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	fake := &fakeSubmissionStore{}
	fake.listFn = func(ctx context.Context, ownerID string) ([]store.Submission, error) {
		return []store.Submission{
			{ID: "sub-old", OwnerID: ownerID, Fields: form.Snapshot{"surname": "Old"}, ServerTS: base},
			{ID: "sub-new", OwnerID: ownerID, Fields: form.Snapshot{"surname": "New"}, ServerTS: base.Add(time.Minute)},
		}, nil
	}

	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeRestore); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	if c.CanonicalID() != "sub-new" {
		t.Errorf("expected sub-new to be canonical, got %q", c.CanonicalID())
	}
	if got := c.Snapshot()["surname"]; got != "New" {
		t.Errorf("expected restored surname New, got %v", got)
	}
}

func TestRestoreTieBreaksOnClientTimestamp(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	fake := &fakeSubmissionStore{}
	fake.listFn = func(ctx context.Context, ownerID string) ([]store.Submission, error) {
		return []store.Submission{
			{ID: "sub-a", Fields: form.Snapshot{"surname": "A"}, ServerTS: base, LastModifiedISO: "2026-08-29T09:00:00Z"},
			{ID: "sub-b", Fields: form.Snapshot{"surname": "B"}, ServerTS: base, LastModifiedISO: "2026-08-29T09:30:00Z"},
		}, nil
	}

	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeRestore); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	if c.CanonicalID() != "sub-b" {
		t.Errorf("expected client-timestamp tie-break to pick sub-b, got %q", c.CanonicalID())
	}
}

func TestRestoreOverlaysConfirmations(t *testing.T) {
	fake := &fakeSubmissionStore{}
	fake.listFn = func(ctx context.Context, ownerID string) ([]store.Submission, error) {
		return []store.Submission{{
			ID:            "sub-1",
			Fields:        form.Snapshot{"surname": "Okafor"},
			Confirmations: confirm.Set{"surname": true},
			ServerTS:      time.Now(),
		}}, nil
	}

	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeRestore); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	if !c.Confirmations().Confirmed("surname") {
		t.Error("expected restored confirmation on surname")
	}
}

func TestEditInvalidatesConfirmationBeforeSave(t *testing.T) {
	fake := &fakeSubmissionStore{}
	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	c.Edit("surname", []string{"Okafor"})
	c.ToggleConfirm("surname")
	if !c.Confirmations().Confirmed("surname") {
		t.Fatal("expected surname to be confirmed")
	}

	c.Edit("surname", []string{"Okafor-Eze"})
	if c.Confirmations().Confirmed("surname") {
		t.Error("edit must drop the confirmation mark immediately")
	}

	waitFor(t, time.Second, func() bool { return fake.createCount() > 0 })
	fake.mu.Lock()
	saved := fake.creates[len(fake.creates)-1]
	fake.mu.Unlock()
	if saved.Confirmations.Confirmed("surname") {
		t.Error("persisted record must not carry the stale confirmation")
	}
}

func TestSaveNowWhileSignedOut(t *testing.T) {
	fake := &fakeSubmissionStore{}
	c := newTestCoordinator(t, fake)

	err := c.SaveNow(context.Background())
	if !errors.Is(err, ErrSignInRequired) {
		t.Fatalf("expected ErrSignInRequired, got %v", err)
	}
	if got := fake.createCount() + fake.updateCount(); got != 0 {
		t.Errorf("signed-out save must not touch the store, saw %d calls", got)
	}
	if c.Status() == "" {
		t.Error("expected a visible status message")
	}
}

func TestSaveErrorRevertsToReady(t *testing.T) {
	fake := &fakeSubmissionStore{}
	fake.createFn = func(ctx context.Context, item store.Submission) error {
		return errors.New("store down")
	}
	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	if err := c.SaveNow(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if c.State() != StateSaveError {
		t.Fatalf("expected SaveError, got %v", c.State())
	}

	waitFor(t, time.Second, func() bool { return c.State() == StateReady })
	if c.Status() != "" {
		t.Errorf("expected status to clear, got %q", c.Status())
	}

	// No retry happens on its own.
	time.Sleep(60 * time.Millisecond)
	if got := fake.createCount(); got != 0 {
		t.Errorf("failed save must not retry, saw %d successful creates", got)
	}
}

func TestSecondSaveUpdatesCanonicalRecord(t *testing.T) {
	fake := &fakeSubmissionStore{}
	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	c.Edit("surname", []string{"Okafor"})
	if err := c.SaveNow(context.Background()); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	id := c.CanonicalID()
	if id == "" {
		t.Fatal("expected canonical id after first save")
	}

	c.Edit("givenNames", []string{"Amara"})
	if err := c.SaveNow(context.Background()); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	if fake.createCount() != 1 {
		t.Errorf("expected one create, got %d", fake.createCount())
	}
	if fake.updateCount() != 1 {
		t.Errorf("expected one update, got %d", fake.updateCount())
	}
	fake.mu.Lock()
	updated := fake.updates[0]
	fake.mu.Unlock()
	if updated.ID != id {
		t.Errorf("update must target the canonical record %s, got %s", id, updated.ID)
	}
}

func TestSignOutClearsState(t *testing.T) {
	fake := &fakeSubmissionStore{}
	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	c.Edit("surname", []string{"Okafor"})
	c.ToggleConfirm("surname")
	c.SignOut()

	if c.State() != StateUnauthenticated {
		t.Errorf("expected Unauthenticated, got %v", c.State())
	}
	if c.CanonicalID() != "" {
		t.Error("expected canonical id to be forgotten")
	}
	if form.IsFilled(c.Snapshot()["surname"]) {
		t.Error("expected the working copy to be cleared")
	}
	if len(c.Confirmations()) != 0 {
		t.Error("expected confirmations to be cleared")
	}

	// The armed debounce must not fire a save for the signed-out session.
	time.Sleep(60 * time.Millisecond)
	if got := fake.createCount() + fake.updateCount(); got != 0 {
		t.Errorf("no save may run after sign-out, saw %d", got)
	}
}

func TestResetClearsAndPersists(t *testing.T) {
	fake := &fakeSubmissionStore{}
	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	c.Edit("surname", []string{"Okafor"})
	c.ToggleConfirm("surname")
	c.Reset(context.Background())

	if form.IsFilled(c.Snapshot()["surname"]) {
		t.Error("expected cleared answer after reset")
	}
	if len(c.Confirmations()) != 0 {
		t.Error("expected cleared confirmations after reset")
	}

	waitFor(t, time.Second, func() bool { return fake.createCount() > 0 })
	fake.mu.Lock()
	saved := fake.creates[len(fake.creates)-1]
	fake.mu.Unlock()
	for name, value := range saved.Fields {
		if form.IsFilled(value) {
			t.Errorf("persisted reset carries filled field %s: %v", name, value)
		}
	}
}

func TestImportReplacesWorkingCopy(t *testing.T) {
	fake := &fakeSubmissionStore{}
	c := newTestCoordinator(t, fake)
	if err := c.SetIdentity(context.Background(), &Owner{ID: "owner-1"}, ModeFresh); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	c.Edit("surname", []string{"Okafor"})
	c.ToggleConfirm("surname")

	c.Import(form.Snapshot{"givenNames": "Amara", "socialMedia": []string{"FACEBOOK"}})

	snapshot := c.Snapshot()
	if form.IsFilled(snapshot["surname"]) {
		t.Error("import must replace, not merge: surname should be cleared")
	}
	if snapshot["givenNames"] != "Amara" {
		t.Errorf("expected imported given names, got %v", snapshot["givenNames"])
	}
	if len(c.Confirmations()) != 0 {
		t.Error("imported answers must start unconfirmed")
	}
}
