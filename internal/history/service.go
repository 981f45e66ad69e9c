// Package history keeps a per-owner audit trail of saved questionnaires. Each
// owner gets a bare-bones git repository with one snapshot.json; every save
// becomes a commit, so earlier answers stay recoverable without extra tables.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"visaprep/api/internal/confirm"
	"visaprep/api/internal/form"
)

// record is the committed file layout.
type record struct {
	Fields        form.Snapshot `json:"fields"`
	Confirmations []string      `json:"confirmations,omitempty"`
	SavedAt       string        `json:"saved_at"`
}

// Entry describes one save in an owner's trail.
type Entry struct {
	Hash    string    `json:"hash"`
	SavedAt string    `json:"saved_at"`
	When    time.Time `json:"when"`
	Filled  int       `json:"filled"`
}

// ErrNoHistory reports that the owner has never saved.
var ErrNoHistory = errors.New("history: no saves recorded")

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// RecordSave commits the saved state onto the owner's trail, initializing the
// repository on first use.
func (s *Service) RecordSave(ctx context.Context, ownerID string, fields form.Snapshot, confirmations confirm.Set, savedAt string) error {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepoLocked(ownerID)
	if err != nil {
		return err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(record{
		Fields:        fields,
		Confirmations: confirmations.Names(),
		SavedAt:       savedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, "snapshot.json"), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot.json: %w", err)
	}

	if _, err := worktree.Add("snapshot.json"); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}

	filled := 0
	for _, value := range fields {
		if form.IsFilled(value) {
			filled++
		}
	}
	message := fmt.Sprintf("Save at %s (%d answered)", savedAt, filled)
	_, err = worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  ownerID,
			Email: ownerID + "@local.visaprep.dev",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// History lists the owner's saves, newest first.
func (s *Service) History(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(ownerID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoHistory
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, ErrNoHistory
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	entries := make([]Entry, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		rec, err := readRecordFromCommit(commitObj)
		if err != nil {
			return err
		}
		filled := 0
		for _, value := range rec.Fields {
			if form.IsFilled(value) {
				filled++
			}
		}
		entries = append(entries, Entry{
			Hash:    commitObj.Hash.String()[:7],
			SavedAt: rec.SavedAt,
			When:    commitObj.Author.When,
			Filled:  filled,
		})
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return entries, nil
}

// SnapshotByHash loads the questionnaire state as of one save.
func (s *Service) SnapshotByHash(ctx context.Context, ownerID, hash string) (form.Snapshot, confirm.Set, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(ownerID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil, ErrNoHistory
		}
		return nil, nil, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, nil, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	rec, err := readRecordFromCommit(commitObj)
	if err != nil {
		return nil, nil, err
	}

	confirmations := confirm.Set{}
	for _, name := range rec.Confirmations {
		confirmations.Confirm(name)
	}
	return form.NormalizeSnapshot(rec.Fields), confirmations, nil
}

func (s *Service) ensureRepoLocked(ownerID string) (*git.Repository, error) {
	path := s.repoPath(ownerID)
	if _, err := os.Stat(path); err == nil {
		repo, err := git.PlainOpen(path)
		if err != nil {
			return nil, fmt.Errorf("open repo: %w", err)
		}
		return repo, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(ownerID string) string {
	return filepath.Join(s.baseDir, ownerID)
}

func (s *Service) ownerLock(ownerID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[ownerID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[ownerID] = lock
	return lock
}

func readRecordFromCommit(commitObj *object.Commit) (record, error) {
	file, err := commitObj.File("snapshot.json")
	if err != nil {
		return record{}, fmt.Errorf("load snapshot.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return record{}, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return record{}, fmt.Errorf("read snapshot bytes: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, fmt.Errorf("decode commit snapshot: %w", err)
	}
	return rec, nil
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
