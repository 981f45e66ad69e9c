// Package cache provides the fast-path working copy of an applicant's
// questionnaire. Reads on session open hit this cache before the database;
// every save writes through it. A missing or corrupt entry is treated as
// absent so a damaged cache never blocks a session.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"visaprep/api/internal/confirm"
	"visaprep/api/internal/form"
)

// keyPrefix is versioned so a change to the cached layout can be rolled out
// by bumping the suffix rather than flushing Redis.
const keyPrefix = "ds160:draft:v1:"

// ErrNotFound reports that no cached draft exists for the owner.
var ErrNotFound = errors.New("cache: draft not found")

type draftEnvelope struct {
	Fields          form.Snapshot `json:"fields"`
	Confirmations   []string      `json:"confirmations"`
	LastModifiedISO string        `json:"last_modified_iso"`
}

// Draft is the cached working copy for one owner.
type Draft struct {
	Fields          form.Snapshot
	Confirmations   confirm.Set
	LastModifiedISO string
}

// Store is a Redis-backed draft cache.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore wraps an existing Redis client. A zero ttl means drafts never
// expire from the cache.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(ownerID string) string {
	return keyPrefix + ownerID
}

// SaveDraft writes the owner's working copy through to Redis.
func (s *Store) SaveDraft(ctx context.Context, ownerID string, draft Draft) error {
	envelope := draftEnvelope{
		Fields:          draft.Fields,
		Confirmations:   draft.Confirmations.Names(),
		LastModifiedISO: draft.LastModifiedISO,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(ownerID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft reads the owner's working copy. A corrupt entry is deleted and
// reported as ErrNotFound.
func (s *Store) LoadDraft(ctx context.Context, ownerID string) (Draft, error) {
	data, err := s.client.Get(ctx, s.key(ownerID)).Bytes()
	if err == redis.Nil {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}

	var envelope draftEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		_ = s.client.Del(ctx, s.key(ownerID)).Err()
		return Draft{}, ErrNotFound
	}

	confirmations := confirm.Set{}
	for _, name := range envelope.Confirmations {
		confirmations.Confirm(name)
	}
	fields := envelope.Fields
	if fields == nil {
		fields = form.Snapshot{}
	}
	return Draft{
		Fields:          form.NormalizeSnapshot(fields),
		Confirmations:   confirmations,
		LastModifiedISO: envelope.LastModifiedISO,
	}, nil
}

// DeleteDraft removes the owner's working copy, as on reset.
func (s *Store) DeleteDraft(ctx context.Context, ownerID string) error {
	if err := s.client.Del(ctx, s.key(ownerID)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
