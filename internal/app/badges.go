package app

import (
	"time"

	"ecoquest-service/internal/domain"
)

// BadgeEligible evaluates a badge's criteria against a profile at now.
// Special badges are only granted explicitly and are never eligible here.
func BadgeEligible(p domain.Profile, badge domain.Badge, now time.Time) bool {
	c := badge.Criteria
	switch c.Type {
	case domain.CriteriaPoints:
		return p.EcoPoints >= c.Value
	case domain.CriteriaQuizzes:
		return countActivities(p, domain.ActivityQuiz, c.Timeframe, now) >= c.Value
	case domain.CriteriaGames:
		return countActivities(p, domain.ActivityGame, c.Timeframe, now) >= c.Value
	case domain.CriteriaExperiments:
		return countActivities(p, domain.ActivityExperiment, c.Timeframe, now) >= c.Value
	case domain.CriteriaStreak:
		return p.Streak.Current >= c.Value
	}
	return false
}

func countActivities(p domain.Profile, kind domain.ActivityKind, tf domain.Timeframe, now time.Time) int {
	start := tf.WindowStart(now)
	n := 0
	for _, a := range p.Activities {
		if a.Kind != kind {
			continue
		}
		if !start.IsZero() && a.CompletedAt.Before(start) {
			continue
		}
		n++
	}
	return n
}

// earnBadges grants every active, unheld, eligible badge and credits its points.
func (tx *awardTx) earnBadges() bool {
	earned := false
	for _, badge := range tx.badges {
		if !badge.Active || tx.profile.HasBadge(badge.ID) {
			continue
		}
		if !BadgeEligible(*tx.profile, badge, tx.now) {
			continue
		}
		tx.grantBadge(badge)
		earned = true
	}
	return earned
}

func (tx *awardTx) grantBadge(badge domain.Badge) {
	p := tx.profile
	p.Badges = append(p.Badges, domain.EarnedBadge{BadgeID: badge.ID, EarnedAt: tx.now})
	tx.result.NewBadges = append(tx.result.NewBadges, badge)
	tx.events = append(tx.events, domain.Event{
		Type:      domain.EventBadgeEarned,
		UserID:    p.UserID,
		BadgeID:   badge.ID,
		BadgeName: badge.Name,
		Message:   "Earned badge " + badge.Name,
		Timestamp: tx.now,
	})
	tx.credit(badge.Points, domain.SourceBadge, "Badge: "+badge.Name, badge.ID)
}
