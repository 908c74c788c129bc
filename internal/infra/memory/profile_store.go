package memory

import (
	"context"
	"sort"
	"sync"

	"ecoquest-service/internal/domain"
)

// ProfileStore is an in-memory implementation of app.ProfileRepository.
// Updates for all users are serialized by one lock.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.Profile)}
}

func (s *ProfileStore) Get(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p.Clone(), nil
}

// Update applies fn to a copy of the profile and stores it only if fn succeeds.
func (s *ProfileStore) Update(_ context.Context, userID string, fn func(p *domain.Profile) error) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.profiles[userID]
	if !ok {
		current = domain.NewProfile(userID)
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return domain.Profile{}, err
	}
	next.UserID = userID
	next.Version = current.Version + 1
	s.profiles[userID] = next
	return next.Clone(), nil
}

// List returns all profiles ordered by user id.
func (s *ProfileStore) List(_ context.Context) ([]domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
