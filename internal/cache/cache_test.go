package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"visaprep/api/internal/confirm"
	"visaprep/api/internal/form"
)

func setupCache(t *testing.T) (*Store, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewStore(client, time.Hour), s
}

func TestSaveAndLoadDraft(t *testing.T) {
	cache, s := setupCache(t)
	defer s.Close()

	ctx := context.Background()
	confirmations := confirm.Set{}
	confirmations.Confirm("surname")

	draft := Draft{
		Fields: form.Snapshot{
			"surname":     "Okafor",
			"socialMedia": []string{"FACEBOOK", "TWITTER"},
		},
		Confirmations:   confirmations,
		LastModifiedISO: "2026-08-29T10:00:00Z",
	}

	if err := cache.SaveDraft(ctx, "owner-1", draft); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	got, err := cache.LoadDraft(ctx, "owner-1")
	if err != nil {
		t.Fatalf("LoadDraft failed: %v", err)
	}

	if got.Fields["surname"] != "Okafor" {
		t.Errorf("expected surname Okafor, got %v", got.Fields["surname"])
	}
	media := form.Values(got.Fields["socialMedia"])
	if len(media) != 2 || media[0] != "FACEBOOK" || media[1] != "TWITTER" {
		t.Errorf("unexpected socialMedia values: %v", media)
	}
	if !got.Confirmations.Confirmed("surname") {
		t.Error("expected surname confirmation to survive the round trip")
	}
	if got.LastModifiedISO != draft.LastModifiedISO {
		t.Errorf("expected timestamp %s, got %s", draft.LastModifiedISO, got.LastModifiedISO)
	}
}

func TestLoadMissingDraft(t *testing.T) {
	cache, s := setupCache(t)
	defer s.Close()

	_, err := cache.LoadDraft(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadCorruptDraft(t *testing.T) {
	cache, s := setupCache(t)
	defer s.Close()

	s.Set(keyPrefix+"owner-1", "{not json")

	_, err := cache.LoadDraft(context.Background(), "owner-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for corrupt entry, got %v", err)
	}

	// The corrupt entry should have been dropped.
	if s.Exists(keyPrefix + "owner-1") {
		t.Error("expected corrupt entry to be deleted")
	}
}

func TestDeleteDraft(t *testing.T) {
	cache, s := setupCache(t)
	defer s.Close()

	ctx := context.Background()
	draft := Draft{Fields: form.Snapshot{"surname": "Okafor"}}
	if err := cache.SaveDraft(ctx, "owner-1", draft); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	if err := cache.DeleteDraft(ctx, "owner-1"); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}

	if _, err := cache.LoadDraft(ctx, "owner-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDraftExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	cache := NewStore(client, time.Minute)

	ctx := context.Background()
	if err := cache.SaveDraft(ctx, "owner-1", Draft{Fields: form.Snapshot{"surname": "Okafor"}}); err != nil {
		t.Fatalf("SaveDraft failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := cache.LoadDraft(ctx, "owner-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestDraftIsolation(t *testing.T) {
	cache, s := setupCache(t)
	defer s.Close()

	ctx := context.Background()
	if err := cache.SaveDraft(ctx, "owner-1", Draft{Fields: form.Snapshot{"surname": "Okafor"}}); err != nil {
		t.Fatalf("SaveDraft owner-1 failed: %v", err)
	}
	if err := cache.SaveDraft(ctx, "owner-2", Draft{Fields: form.Snapshot{"surname": "Diaz"}}); err != nil {
		t.Fatalf("SaveDraft owner-2 failed: %v", err)
	}

	if err := cache.DeleteDraft(ctx, "owner-1"); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}

	got, err := cache.LoadDraft(ctx, "owner-2")
	if err != nil {
		t.Fatalf("LoadDraft owner-2 failed: %v", err)
	}
	if got.Fields["surname"] != "Diaz" {
		t.Errorf("expected Diaz, got %v", got.Fields["surname"])
	}
}
