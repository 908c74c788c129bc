package memory

import (
	"context"
	"sort"
	"sync"

	"ecoquest-service/internal/domain"
)

// CatalogStore holds badges, levels and certificate templates in memory.
type CatalogStore struct {
	mu        sync.RWMutex
	badges    map[string]domain.Badge
	levels    map[int]domain.Level
	templates map[string]domain.CertificateTemplate
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		badges:    make(map[string]domain.Badge),
		levels:    make(map[int]domain.Level),
		templates: make(map[string]domain.CertificateTemplate),
	}
}

func (s *CatalogStore) UpsertBadge(_ context.Context, badge domain.Badge) error {
	s.mu.Lock()
	s.badges[badge.ID] = badge
	s.mu.Unlock()
	return nil
}

func (s *CatalogStore) UpsertLevel(_ context.Context, level domain.Level) error {
	s.mu.Lock()
	s.levels[level.Level] = level
	s.mu.Unlock()
	return nil
}

func (s *CatalogStore) UpsertTemplate(_ context.Context, tpl domain.CertificateTemplate) error {
	s.mu.Lock()
	s.templates[tpl.ID] = tpl
	s.mu.Unlock()
	return nil
}

// Badges returns every badge ordered by id.
func (s *CatalogStore) Badges(_ context.Context) ([]domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Badge, 0, len(s.badges))
	for _, b := range s.badges {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Levels returns the level table ordered by level number, or the default table when none was loaded.
func (s *CatalogStore) Levels(_ context.Context) ([]domain.Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.levels) == 0 {
		return domain.DefaultLevels(), nil
	}
	out := make([]domain.Level, 0, len(s.levels))
	for _, l := range s.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (s *CatalogStore) Template(_ context.Context, templateID string) (domain.CertificateTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[templateID]
	if !ok {
		return domain.CertificateTemplate{}, domain.ErrTemplateNotFound
	}
	return tpl, nil
}
