package memory

import (
	"context"
	"errors"
	"testing"

	"ecoquest-service/internal/domain"
)

func TestProfileStoreUpdateCreatesLazily(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore()

	if _, err := store.Get(ctx, "u1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	p, err := store.Update(ctx, "u1", func(p *domain.Profile) error {
		p.EcoPoints += 10
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Level != 1 || p.EcoPoints != 10 || p.Version != 1 {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestProfileStoreUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore()
	_, _ = store.Update(ctx, "u1", func(p *domain.Profile) error {
		p.EcoPoints = 50
		return nil
	})

	boom := errors.New("boom")
	_, err := store.Update(ctx, "u1", func(p *domain.Profile) error {
		p.EcoPoints = 500
		p.Badges = append(p.Badges, domain.EarnedBadge{BadgeID: "b1"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := store.Get(ctx, "u1")
	if got.EcoPoints != 50 || len(got.Badges) != 0 {
		t.Fatalf("expected unchanged profile, got %+v", got)
	}
}
