package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ecoquest-service/internal/domain"
)

type badgeRow struct {
	bun.BaseModel `bun:"table:badges,alias:b"`

	ID          string               `bun:"id,pk"`
	Name        string               `bun:"name,notnull"`
	Description string               `bun:"description,notnull"`
	Criteria    domain.BadgeCriteria `bun:"criteria,type:jsonb,notnull"`
	Points      int                  `bun:"points,notnull"`
	Rarity      string               `bun:"rarity,notnull"`
	Active      bool                 `bun:"active,notnull"`
}

type levelRow struct {
	bun.BaseModel `bun:"table:levels,alias:l"`

	Level     int    `bun:"level,pk"`
	Name      string `bun:"name,notnull"`
	MinPoints int    `bun:"min_points,notnull"`
	MaxPoints *int   `bun:"max_points"`
}

type templateRow struct {
	bun.BaseModel `bun:"table:certificate_templates,alias:ct"`

	ID           string                         `bun:"id,pk"`
	Name         string                         `bun:"name,notnull"`
	HTML         string                         `bun:"html,notnull"`
	Requirements domain.CertificateRequirements `bun:"requirements,type:jsonb,notnull"`
}

// CatalogStore serves badges, levels and certificate templates from Postgres.
type CatalogStore struct {
	db *bun.DB
}

func NewCatalogStore(db *bun.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) Badges(ctx context.Context) ([]domain.Badge, error) {
	var rows []badgeRow
	if err := s.db.NewSelect().Model(&rows).Order("b.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	out := make([]domain.Badge, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Badge{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Criteria:    r.Criteria,
			Points:      r.Points,
			Rarity:      r.Rarity,
			Active:      r.Active,
		})
	}
	return out, nil
}

// Levels returns the level table ordered by level, or the default table when empty.
func (s *CatalogStore) Levels(ctx context.Context) ([]domain.Level, error) {
	var rows []levelRow
	if err := s.db.NewSelect().Model(&rows).Order("l.level ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	if len(rows) == 0 {
		return domain.DefaultLevels(), nil
	}
	out := make([]domain.Level, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Level{Level: r.Level, Name: r.Name, MinPoints: r.MinPoints, MaxPoints: r.MaxPoints})
	}
	return out, nil
}

func (s *CatalogStore) Template(ctx context.Context, templateID string) (domain.CertificateTemplate, error) {
	var row templateRow
	err := s.db.NewSelect().Model(&row).Where("ct.id = ?", templateID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CertificateTemplate{}, domain.ErrTemplateNotFound
	}
	if err != nil {
		return domain.CertificateTemplate{}, fmt.Errorf("select template: %w", err)
	}
	return domain.CertificateTemplate{ID: row.ID, Name: row.Name, HTML: row.HTML, Requirements: row.Requirements}, nil
}

func (s *CatalogStore) UpsertBadge(ctx context.Context, badge domain.Badge) error {
	row := badgeRow{
		ID:          badge.ID,
		Name:        badge.Name,
		Description: badge.Description,
		Criteria:    badge.Criteria,
		Points:      badge.Points,
		Rarity:      badge.Rarity,
		Active:      badge.Active,
	}
	if row.Rarity == "" {
		row.Rarity = "common"
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("description = EXCLUDED.description").
		Set("criteria = EXCLUDED.criteria").
		Set("points = EXCLUDED.points").
		Set("rarity = EXCLUDED.rarity").
		Set("active = EXCLUDED.active").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert badge %s: %w", badge.ID, err)
	}
	return nil
}

func (s *CatalogStore) UpsertLevel(ctx context.Context, level domain.Level) error {
	row := levelRow{Level: level.Level, Name: level.Name, MinPoints: level.MinPoints, MaxPoints: level.MaxPoints}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (level) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("min_points = EXCLUDED.min_points").
		Set("max_points = EXCLUDED.max_points").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert level %d: %w", level.Level, err)
	}
	return nil
}

func (s *CatalogStore) UpsertTemplate(ctx context.Context, tpl domain.CertificateTemplate) error {
	row := templateRow{ID: tpl.ID, Name: tpl.Name, HTML: tpl.HTML, Requirements: tpl.Requirements}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("html = EXCLUDED.html").
		Set("requirements = EXCLUDED.requirements").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert template %s: %w", tpl.ID, err)
	}
	return nil
}
