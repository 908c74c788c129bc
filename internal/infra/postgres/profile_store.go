package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ecoquest-service/internal/domain"
)

type profileRow struct {
	bun.BaseModel `bun:"table:gamification_profiles,alias:gp"`

	UserID      string         `bun:"user_id,pk"`
	DisplayName string         `bun:"display_name,notnull"`
	EcoPoints   int            `bun:"eco_points,notnull"`
	Level       int            `bun:"level,notnull"`
	Data        domain.Profile `bun:"data,type:jsonb,notnull"`
	Version     int            `bun:"version,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}

func toProfileRow(p domain.Profile) profileRow {
	return profileRow{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		EcoPoints:   p.EcoPoints,
		Level:       p.Level,
		Data:        p,
		Version:     p.Version,
		UpdatedAt:   time.Now(),
	}
}

func (r profileRow) toDomain() domain.Profile {
	p := r.Data
	p.UserID = r.UserID
	p.Version = r.Version
	return p
}

// ProfileStore keeps one JSONB document per user with indexed point and level columns.
// Update locks the row for the duration of the callback.
type ProfileStore struct {
	db *bun.DB
}

func NewProfileStore(db *bun.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (domain.Profile, error) {
	var row profileRow
	err := s.db.NewSelect().Model(&row).Where("gp.user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return row.toDomain(), nil
}

func (s *ProfileStore) Update(ctx context.Context, userID string, fn func(p *domain.Profile) error) (domain.Profile, error) {
	var updated domain.Profile
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// make sure a row exists so concurrent first writes serialize on its lock
		seed := toProfileRow(domain.NewProfile(userID))
		if _, err := tx.NewInsert().Model(&seed).On("CONFLICT (user_id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed profile: %w", err)
		}

		var row profileRow
		if err := tx.NewSelect().Model(&row).Where("gp.user_id = ?", userID).For("UPDATE").Scan(ctx); err != nil {
			return fmt.Errorf("lock profile: %w", err)
		}
		profile := row.toDomain()
		if err := fn(&profile); err != nil {
			return err
		}
		profile.UserID = userID
		profile.Version = row.Version + 1

		next := toProfileRow(profile)
		if _, err := tx.NewUpdate().Model(&next).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		updated = profile
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return updated, nil
}

func (s *ProfileStore) List(ctx context.Context) ([]domain.Profile, error) {
	var rows []profileRow
	if err := s.db.NewSelect().Model(&rows).Order("gp.user_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]domain.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
