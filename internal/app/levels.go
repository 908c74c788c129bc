package app

import (
	"fmt"
	"sort"
	"time"

	"ecoquest-service/internal/domain"
)

// levelUpBonusPerLevel is multiplied by the reached level number.
const levelUpBonusPerLevel = 10

// LevelFor returns the level whose band contains points.
// When no band contains it (gaps in the table) the highest level with MinPoints <= points wins.
// ok is false when levels is empty or points sit below every band.
func LevelFor(levels []domain.Level, points int) (domain.Level, bool) {
	sorted := append([]domain.Level(nil), levels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	var (
		best  domain.Level
		found bool
	)
	for _, l := range sorted {
		if l.Contains(points) {
			best, found = l, true
		}
	}
	if found {
		return best, true
	}
	for _, l := range sorted {
		if l.MinPoints <= points {
			best, found = l, true
		}
	}
	return best, found
}

// awardTx mutates one profile inside a ProfileRepository.Update call.
// Points, levels and badges are settled together and events are collected for after commit.
type awardTx struct {
	profile *domain.Profile
	levels  []domain.Level
	badges  []domain.Badge
	now     time.Time
	newID   func() string

	result AwardResult
	events []domain.Event
}

func (tx *awardTx) credit(points int, source domain.PointSource, description, sourceID string) {
	if points == 0 {
		return
	}
	p := tx.profile
	p.PointsHistory = append(p.PointsHistory, domain.LedgerEntry{
		ID:          tx.newID(),
		Points:      points,
		Source:      source,
		Description: description,
		SourceID:    sourceID,
		CreatedAt:   tx.now,
	})
	p.EcoPoints += points
	if p.EcoPoints < 0 {
		p.EcoPoints = 0
	}
	tx.result.PointsAwarded += points
	tx.events = append(tx.events, domain.Event{
		Type:      domain.EventPointsAwarded,
		UserID:    p.UserID,
		Points:    points,
		Total:     p.EcoPoints,
		Message:   description,
		Timestamp: tx.now,
	})
}

// settle alternates level and badge checks until neither changes anything, so bonus
// points that cross another threshold are picked up in the same call.
func (tx *awardTx) settle() {
	for {
		leveled := tx.levelUp()
		earned := tx.earnBadges()
		if !leveled && !earned {
			break
		}
	}
	tx.result.TotalPoints = tx.profile.EcoPoints
	tx.result.NewLevel = tx.profile.Level
}

// levelUp moves the profile to the level its points fall in, never down.
func (tx *awardTx) levelUp() bool {
	p := tx.profile
	target, ok := LevelFor(tx.levels, p.EcoPoints)
	if !ok || target.Level <= p.Level {
		return false
	}
	p.Level = target.Level
	p.LevelHistory = append(p.LevelHistory, domain.LevelChange{Level: target.Level, ReachedAt: tx.now})
	tx.result.LevelUp = true
	tx.events = append(tx.events, domain.Event{
		Type:      domain.EventLevelUp,
		UserID:    p.UserID,
		Level:     target.Level,
		Message:   fmt.Sprintf("Reached level %d: %s", target.Level, target.Name),
		Timestamp: tx.now,
	})

	bonus := target.Level * levelUpBonusPerLevel
	tx.result.BonusPoints += bonus
	tx.credit(bonus, domain.SourceLevelUp, fmt.Sprintf("Level %d bonus", target.Level), fmt.Sprintf("level-%d", target.Level))
	return true
}
