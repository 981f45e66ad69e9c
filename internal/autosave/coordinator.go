// Package autosave coordinates the questionnaire lifecycle for one owner:
// identity changes, edits, debounced persistence, and restore on session
// open. All state transitions happen under a single mutex; saves run off the
// calling goroutine.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"visaprep/api/internal/cache"
	"visaprep/api/internal/confirm"
	"visaprep/api/internal/form"
	"visaprep/api/internal/store"
	"visaprep/api/internal/util"
)

// State is the coordinator lifecycle state.
type State int

const (
	StateUnauthenticated State = iota
	StateRestoring
	StateReady
	StateSaving
	StateSaveError
)

func (s State) String() string {
	switch s {
	case StateRestoring:
		return "restoring"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateSaveError:
		return "save_error"
	default:
		return "unauthenticated"
	}
}

// ErrSignInRequired is returned when a save is requested without an owner.
var ErrSignInRequired = errors.New("sign in to save your progress")

// Owner identifies whose questionnaire this coordinator manages.
type Owner struct {
	ID    string
	Email string
	Name  string
}

// SubmissionStore is the persistence surface the coordinator needs.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, item store.Submission) error
	UpdateSubmission(ctx context.Context, item store.Submission) error
	ListSubmissionsByOwner(ctx context.Context, ownerID string) ([]store.Submission, error)
}

// DraftCache is the optional write-through cache for the working copy.
type DraftCache interface {
	SaveDraft(ctx context.Context, ownerID string, draft cache.Draft) error
	LoadDraft(ctx context.Context, ownerID string) (cache.Draft, error)
	DeleteDraft(ctx context.Context, ownerID string) error
}

// HistoryRecorder records each successful save into the audit trail.
type HistoryRecorder interface {
	RecordSave(ctx context.Context, ownerID string, fields form.Snapshot, confirmations confirm.Set, savedAt string) error
}

// Options tunes coordinator timing. Zero values fall back to defaults.
type Options struct {
	Debounce      time.Duration // delay between last edit and autosave
	StatusDisplay time.Duration // how long transient saved/error status shows
	SaveTimeout   time.Duration // per-save store deadline
	Cache         DraftCache
	History       HistoryRecorder
	Now           func() time.Time
}

// Coordinator is the per-owner persistence state machine.
type Coordinator struct {
	mu            sync.Mutex
	model         *form.Model
	confirmations confirm.Set
	owner         *Owner
	canonicalID   string
	state         State
	status        string

	saving bool
	dirty  bool

	timer       *time.Timer
	statusTimer *time.Timer

	store   SubmissionStore
	cache   DraftCache
	history HistoryRecorder

	debounce      time.Duration
	statusDisplay time.Duration
	saveTimeout   time.Duration
	now           func() time.Time
}

// NewCoordinator builds a coordinator with an empty model and no owner.
func NewCoordinator(submissions SubmissionStore, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.StatusDisplay <= 0 {
		opts.StatusDisplay = 2500 * time.Millisecond
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		model:         form.NewModel(),
		confirmations: confirm.Set{},
		state:         StateUnauthenticated,
		store:         submissions,
		cache:         opts.Cache,
		history:       opts.History,
		debounce:      opts.Debounce,
		statusDisplay: opts.StatusDisplay,
		saveTimeout:   opts.SaveTimeout,
		now:           opts.Now,
	}
}

// SetIdentity reacts to an auth change. A nil owner clears everything and
// disables autosave. With an owner, fresh mode starts blank while restore
// mode adopts the latest stored record (or the cached draft when the store
// has none).
func (c *Coordinator) SetIdentity(ctx context.Context, owner *Owner, mode Mode) error {
	c.mu.Lock()
	c.stopTimerLocked()
	c.model.Clear()
	c.confirmations.Clear()
	c.canonicalID = ""
	c.dirty = false

	if owner == nil {
		c.owner = nil
		c.state = StateUnauthenticated
		c.mu.Unlock()
		return nil
	}
	c.owner = &Owner{ID: owner.ID, Email: owner.Email, Name: owner.Name}

	if mode == ModeFresh {
		c.state = StateReady
		c.mu.Unlock()
		return nil
	}

	c.state = StateRestoring
	ownerID := owner.ID
	c.mu.Unlock()

	items, err := c.store.ListSubmissionsByOwner(ctx, ownerID)
	if err != nil {
		c.mu.Lock()
		c.state = StateReady
		c.mu.Unlock()
		return fmt.Errorf("restore submissions: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == nil || c.owner.ID != ownerID {
		// Identity changed underneath the restore; drop the result.
		return nil
	}

	if len(items) > 0 {
		latest := pickLatest(items)
		c.canonicalID = latest.ID
		c.model.Fill(latest.Fields)
		c.adoptConfirmationsLocked(latest.Confirmations)
		c.state = StateReady
		return nil
	}

	if c.cache != nil {
		if draft, err := c.cache.LoadDraft(ctx, ownerID); err == nil {
			c.model.Fill(draft.Fields)
			c.adoptConfirmationsLocked(draft.Confirmations)
		}
	}
	c.state = StateReady
	return nil
}

// pickLatest selects the most recent record: server timestamp first, the
// client wall-clock stamp as tie-break.
func pickLatest(items []store.Submission) store.Submission {
	best := items[0]
	for _, item := range items[1:] {
		if item.ServerTS.After(best.ServerTS) {
			best = item
			continue
		}
		if item.ServerTS.Equal(best.ServerTS) && item.LastModifiedISO > best.LastModifiedISO {
			best = item
		}
	}
	return best
}

func (c *Coordinator) adoptConfirmationsLocked(set confirm.Set) {
	c.confirmations.Clear()
	for _, name := range set.Names() {
		c.confirmations.Confirm(name)
	}
}

// Edit applies one field change. The confirmation mark is removed before the
// value changes so a stale mark can never be persisted, then the debounce
// timer is (re)armed. Edits are accepted while signed out; they just don't
// schedule a save.
func (c *Coordinator) Edit(field string, values []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmations.Unconfirm(field)
	applied := c.model.Set(field, values)
	if applied {
		c.armLocked()
	}
	return applied
}

// ToggleConfirm flips the reviewed mark on a field and schedules a save so
// the mark is persisted with the answers.
func (c *Coordinator) ToggleConfirm(field string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	confirmed := c.confirmations.Toggle(field)
	c.armLocked()
	return confirmed
}

// Import replaces the working copy with an uploaded snapshot. Confirmation
// marks are dropped since the imported answers were never reviewed here.
func (c *Coordinator) Import(snapshot form.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model.Clear()
	c.model.Fill(snapshot)
	c.confirmations.Clear()
	c.armLocked()
}

// Reset clears every answer and confirmation, drops the cached draft, and
// persists the cleared state.
func (c *Coordinator) Reset(ctx context.Context) {
	c.mu.Lock()
	c.model.Clear()
	c.confirmations.Clear()
	ownerID := ""
	if c.owner != nil {
		ownerID = c.owner.ID
	}
	c.armLocked()
	c.mu.Unlock()

	if ownerID != "" && c.cache != nil {
		if err := c.cache.DeleteDraft(ctx, ownerID); err != nil {
			log.Printf("autosave: delete draft: %v", err)
		}
	}
}

// SaveNow performs an immediate save, bypassing the debounce. Signed-out
// sessions get a visible rejection and no store call.
func (c *Coordinator) SaveNow(ctx context.Context) error {
	c.mu.Lock()
	if c.owner == nil {
		c.setTransientStatusLocked(ErrSignInRequired.Error())
		c.mu.Unlock()
		return ErrSignInRequired
	}
	c.stopTimerLocked()
	c.mu.Unlock()
	return c.runSave(ctx)
}

// SignOut forgets the canonical record and clears the working copy.
func (c *Coordinator) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.owner = nil
	c.canonicalID = ""
	c.dirty = false
	c.model.Clear()
	c.confirmations.Clear()
	c.state = StateUnauthenticated
	c.status = ""
}

// Snapshot collects a fresh read-out of the working copy.
func (c *Coordinator) Snapshot() form.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.Collect()
}

// Confirmations returns a copy of the current confirmation set.
func (c *Coordinator) Confirmations() confirm.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmations.Clone()
}

// State reports the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status reports the transient user-facing status line, if any.
func (c *Coordinator) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// CanonicalID reports the id of the record this session writes to, empty
// before the first save of a fresh session.
func (c *Coordinator) CanonicalID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canonicalID
}

// Flush waits out any pending debounce by saving immediately when a timer is
// armed. Used on logout and shutdown.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := c.timer != nil
	c.stopTimerLocked()
	owner := c.owner
	c.mu.Unlock()
	if !pending || owner == nil {
		return nil
	}
	return c.runSave(ctx)
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// armLocked (re)starts the debounce timer. Bursts of edits collapse into a
// single save because each call replaces the previous timer.
func (c *Coordinator) armLocked() {
	if c.owner == nil {
		return
	}
	c.stopTimerLocked()
	c.timer = time.AfterFunc(c.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
		defer cancel()
		if err := c.runSave(ctx); err != nil {
			log.Printf("autosave: %v", err)
		}
	})
}

// runSave executes one save. At most one save is in flight: a trigger during
// an active save marks the state dirty and the save re-runs once after the
// active one resolves, so a fresh session never creates two records.
func (c *Coordinator) runSave(ctx context.Context) error {
	c.mu.Lock()
	if c.owner == nil {
		c.mu.Unlock()
		return ErrSignInRequired
	}
	if c.saving {
		c.dirty = true
		c.mu.Unlock()
		return nil
	}
	c.saving = true
	c.state = StateSaving
	snapshot := c.model.Collect()
	confirmations := c.confirmations.Clone()
	owner := *c.owner
	id := c.canonicalID
	stamp := c.now().UTC().Format(time.RFC3339)
	c.mu.Unlock()

	item := store.Submission{
		ID:              id,
		OwnerID:         owner.ID,
		OwnerEmail:      owner.Email,
		OwnerName:       owner.Name,
		Fields:          snapshot,
		Confirmations:   confirmations,
		LastModifiedISO: stamp,
	}

	var err error
	if id == "" {
		item.ID = util.NewID("sub")
		err = c.store.CreateSubmission(ctx, item)
	} else {
		err = c.store.UpdateSubmission(ctx, item)
	}

	c.mu.Lock()
	c.saving = false
	rerun := c.dirty
	c.dirty = false
	sameOwner := c.owner != nil && c.owner.ID == owner.ID
	if err != nil {
		if sameOwner {
			c.state = StateSaveError
			c.setTransientStatusLocked("save failed")
		}
	} else if sameOwner {
		c.canonicalID = item.ID
		c.state = StateReady
		c.setTransientStatusLocked("saved")
	}
	c.mu.Unlock()

	if err == nil && sameOwner {
		c.mirror(owner.ID, snapshot, confirmations, stamp)
	}
	if rerun && sameOwner {
		go func() {
			reCtx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
			defer cancel()
			if err := c.runSave(reCtx); err != nil {
				log.Printf("autosave: rerun: %v", err)
			}
		}()
	}
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

// mirror writes the saved state through to the draft cache and the history
// trail. Both are best-effort; failures are logged, never surfaced.
func (c *Coordinator) mirror(ownerID string, snapshot form.Snapshot, confirmations confirm.Set, stamp string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
	defer cancel()
	if c.cache != nil {
		draft := cache.Draft{Fields: snapshot, Confirmations: confirmations, LastModifiedISO: stamp}
		if err := c.cache.SaveDraft(ctx, ownerID, draft); err != nil {
			log.Printf("autosave: mirror draft: %v", err)
		}
	}
	if c.history != nil {
		if err := c.history.RecordSave(ctx, ownerID, snapshot, confirmations, stamp); err != nil {
			log.Printf("autosave: record history: %v", err)
		}
	}
}

// setTransientStatusLocked shows a status line and schedules its removal. A
// SaveError state reverts to Ready when the status clears; the error is not
// retried.
func (c *Coordinator) setTransientStatusLocked(message string) {
	c.status = message
	if c.statusTimer != nil {
		c.statusTimer.Stop()
	}
	c.statusTimer = time.AfterFunc(c.statusDisplay, func() {
		c.mu.Lock()
		c.status = ""
		if c.state == StateSaveError {
			c.state = StateReady
		}
		c.mu.Unlock()
	})
}
