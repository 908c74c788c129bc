package app

import (
	"time"

	"ecoquest-service/internal/domain"
)

// UpdateStreak applies one day of activity at now to s and reports whether it changed.
//
// Days are calendar days in now's location: same day is a no-op, the next day extends the
// streak, any larger gap restarts it at one. Longest never decreases.
func UpdateStreak(s *domain.Streak, now time.Time) bool {
	today := startOfDay(now)
	if s.LastActivity.IsZero() {
		s.Current = 1
		if s.Longest < 1 {
			s.Longest = 1
		}
		s.LastActivity = today
		return true
	}

	last := startOfDay(s.LastActivity.In(now.Location()))
	if !last.Before(today) {
		return false
	}
	if last.AddDate(0, 0, 1).Equal(today) {
		s.Current++
	} else {
		s.Current = 1
	}
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	s.LastActivity = today
	return true
}

// EffectiveStreak is the streak still alive at now: zero once a full day was missed.
func EffectiveStreak(s domain.Streak, now time.Time) int {
	if s.LastActivity.IsZero() {
		return 0
	}
	last := startOfDay(s.LastActivity.In(now.Location()))
	if last.AddDate(0, 0, 1).Before(startOfDay(now)) {
		return 0
	}
	return s.Current
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
