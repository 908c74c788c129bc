package domain

import "time"

// PointSource labels where a ledger entry came from.
type PointSource string

const (
	SourceQuiz         PointSource = "quiz"
	SourceGame         PointSource = "game"
	SourceExperiment   PointSource = "experiment"
	SourceTopic        PointSource = "topic"
	SourceBadge        PointSource = "badge"
	SourceLevelUp      PointSource = "level-up"
	SourceAdmin        PointSource = "admin"
	SourceFirstAttempt PointSource = "first-attempt"
)

// ActivityKind is a completed learning activity type.
type ActivityKind string

const (
	ActivityQuiz       ActivityKind = "quiz"
	ActivityGame       ActivityKind = "game"
	ActivityExperiment ActivityKind = "experiment"
	ActivityTopic      ActivityKind = "topic"
)

// Source maps an activity to the ledger source it earns points under.
func (k ActivityKind) Source() PointSource {
	switch k {
	case ActivityGame:
		return SourceGame
	case ActivityExperiment:
		return SourceExperiment
	case ActivityTopic:
		return SourceTopic
	default:
		return SourceQuiz
	}
}

// Points is what a self-reported activity of kind k earns. Quizzes earn their
// configured reward through completed attempts, so they report 0 here.
func (k ActivityKind) Points() int {
	switch k {
	case ActivityGame:
		return 15
	case ActivityExperiment:
		return 20
	case ActivityTopic:
		return 10
	default:
		return 0
	}
}

// LedgerEntry is an append-only points event.
type LedgerEntry struct {
	ID          string      `json:"id"`
	Points      int         `json:"points"`
	Source      PointSource `json:"source"`
	Description string      `json:"description"`
	SourceID    string      `json:"sourceId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Activity records a passed or completed learning activity.
type Activity struct {
	Kind        ActivityKind `json:"kind"`
	RefID       string       `json:"refId"`
	Category    string       `json:"category,omitempty"`
	Score       int          `json:"score"`
	SourceID    string       `json:"sourceId,omitempty"`
	CompletedAt time.Time    `json:"completedAt"`
}

// Streak tracks consecutive days of activity.
type Streak struct {
	Current      int       `json:"current"`
	Longest      int       `json:"longest"`
	LastActivity time.Time `json:"lastActivity"`
}

// EarnedBadge is a badge held by a user. Never revoked.
type EarnedBadge struct {
	BadgeID  string    `json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
}

// LevelChange is one entry of a user's level history.
type LevelChange struct {
	Level     int       `json:"level"`
	ReachedAt time.Time `json:"reachedAt"`
}

// Certificate is an issued certificate record.
type Certificate struct {
	ID               string    `json:"id"`
	TemplateID       string    `json:"templateId,omitempty"`
	Title            string    `json:"title"`
	QuizID           string    `json:"quizId,omitempty"`
	IssuedAt         time.Time `json:"issuedAt"`
	VerificationCode string    `json:"verificationCode"`
}

// Profile is the gamification state owned by a single user.
type Profile struct {
	UserID        string        `json:"userId"`
	DisplayName   string        `json:"displayName"`
	EcoPoints     int           `json:"ecoPoints"`
	Level         int           `json:"level"`
	LevelHistory  []LevelChange `json:"levelHistory"`
	Badges        []EarnedBadge `json:"badges"`
	Streak        Streak        `json:"streak"`
	Certificates  []Certificate `json:"certificates"`
	PointsHistory []LedgerEntry `json:"pointsHistory"`
	Activities    []Activity    `json:"activities"`
	Version       int           `json:"version"`
}

// NewProfile returns the lazily created starting profile.
func NewProfile(userID string) Profile {
	return Profile{UserID: userID, Level: 1}
}

// HasBadge reports whether the badge is already held.
func (p Profile) HasBadge(badgeID string) bool {
	for _, b := range p.Badges {
		if b.BadgeID == badgeID {
			return true
		}
	}
	return false
}

// HasLedgerEntry reports whether points were already granted for source/sourceID.
func (p Profile) HasLedgerEntry(source PointSource, sourceID string) bool {
	if sourceID == "" {
		return false
	}
	for _, e := range p.PointsHistory {
		if e.Source == source && e.SourceID == sourceID {
			return true
		}
	}
	return false
}

// HasActivity reports whether an activity with sourceID was already recorded.
func (p Profile) HasActivity(sourceID string) bool {
	if sourceID == "" {
		return false
	}
	for _, a := range p.Activities {
		if a.SourceID == sourceID {
			return true
		}
	}
	return false
}

// LastActivityAt returns the most recent activity completion time.
func (p Profile) LastActivityAt() time.Time {
	var last time.Time
	for _, a := range p.Activities {
		if a.CompletedAt.After(last) {
			last = a.CompletedAt
		}
	}
	return last
}

// Clone copies the slices so callers can mutate freely.
func (p Profile) Clone() Profile {
	out := p
	out.LevelHistory = append([]LevelChange(nil), p.LevelHistory...)
	out.Badges = append([]EarnedBadge(nil), p.Badges...)
	out.Certificates = append([]Certificate(nil), p.Certificates...)
	out.PointsHistory = append([]LedgerEntry(nil), p.PointsHistory...)
	out.Activities = append([]Activity(nil), p.Activities...)
	return out
}

// CriteriaType selects which statistic a badge is evaluated against.
type CriteriaType string

const (
	CriteriaPoints      CriteriaType = "points"
	CriteriaQuizzes     CriteriaType = "quizzes"
	CriteriaGames       CriteriaType = "games"
	CriteriaExperiments CriteriaType = "experiments"
	CriteriaStreak      CriteriaType = "streak"
	CriteriaSpecial     CriteriaType = "special"
)

// Timeframe bounds activity counting windows.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeAllTime Timeframe = "all-time"
)

// Timeframes lists every supported window.
var Timeframes = []Timeframe{TimeframeDaily, TimeframeWeekly, TimeframeMonthly, TimeframeAllTime}

// WindowStart returns the inclusive start of the timeframe containing now.
// The zero time means unbounded. Weeks start on Sunday.
func (t Timeframe) WindowStart(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch t {
	case TimeframeDaily:
		return midnight
	case TimeframeWeekly:
		return midnight.AddDate(0, 0, -int(midnight.Weekday()))
	case TimeframeMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}

// Valid reports whether t is a known timeframe.
func (t Timeframe) Valid() bool {
	for _, tf := range Timeframes {
		if tf == t {
			return true
		}
	}
	return false
}

// BadgeCriteria is the rule a badge is earned by.
type BadgeCriteria struct {
	Type      CriteriaType `json:"type"`
	Value     int          `json:"value"`
	Timeframe Timeframe    `json:"timeframe,omitempty"`
}

// Badge is admin-owned reference data.
type Badge struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Criteria    BadgeCriteria `json:"criteria"`
	Points      int           `json:"points"`
	Rarity      string        `json:"rarity,omitempty"`
	Active      bool          `json:"active"`
}

// Level is a point band. A nil MaxPoints marks the open-ended top level.
type Level struct {
	Level     int    `json:"level"`
	Name      string `json:"name"`
	MinPoints int    `json:"minPoints"`
	MaxPoints *int   `json:"maxPoints,omitempty"`
}

// Contains reports whether points fall inside the band.
func (l Level) Contains(points int) bool {
	if points < l.MinPoints {
		return false
	}
	return l.MaxPoints == nil || points <= *l.MaxPoints
}

// DefaultLevels is the level table used until one is imported.
func DefaultLevels() []Level {
	upTo := func(n int) *int { return &n }
	return []Level{
		{Level: 1, Name: "Seedling", MinPoints: 0, MaxPoints: upTo(99)},
		{Level: 2, Name: "Sprout", MinPoints: 100, MaxPoints: upTo(249)},
		{Level: 3, Name: "Sapling", MinPoints: 250, MaxPoints: upTo(499)},
		{Level: 4, Name: "Young Tree", MinPoints: 500, MaxPoints: upTo(999)},
		{Level: 5, Name: "Forest Guardian", MinPoints: 1000},
	}
}

// CertificateRequirements gate certificate generation.
type CertificateRequirements struct {
	QuizID   string   `json:"quizId,omitempty"`
	MinScore int      `json:"minScore,omitempty"`
	MinLevel int      `json:"minLevel,omitempty"`
	BadgeIDs []string `json:"badgeIds,omitempty"`
}

// CertificateTemplate is an HTML body with {{placeholder}} tokens.
type CertificateTemplate struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	HTML         string                  `json:"html"`
	Requirements CertificateRequirements `json:"requirements"`
}

// LeaderboardType selects what a leaderboard ranks.
type LeaderboardType string

const (
	LeaderboardPoints  LeaderboardType = "points"
	LeaderboardQuizzes LeaderboardType = "quizzes"
	LeaderboardStreak  LeaderboardType = "streak"
)

// CategoryAll is the category covering every activity.
const CategoryAll = "all"

// LeaderboardKey identifies one (type, timeframe, category) board.
type LeaderboardKey struct {
	Type      LeaderboardType `json:"type"`
	Timeframe Timeframe       `json:"timeframe"`
	Category  string          `json:"category"`
}

// String renders the key for storage lookups.
func (k LeaderboardKey) String() string {
	return string(k.Type) + ":" + string(k.Timeframe) + ":" + k.Category
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a key.
type Leaderboard struct {
	Key       LeaderboardKey     `json:"key"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// EventType names a gamification event pushed to clients.
type EventType string

const (
	EventPointsAwarded     EventType = "points_awarded"
	EventLevelUp           EventType = "level_up"
	EventBadgeEarned       EventType = "badge_earned"
	EventCertificateIssued EventType = "certificate_issued"
)

// Event is broadcast to a user's connected clients.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	Points    int       `json:"points,omitempty"`
	Total     int       `json:"total,omitempty"`
	Level     int       `json:"level,omitempty"`
	BadgeID   string    `json:"badgeId,omitempty"`
	BadgeName string    `json:"badgeName,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
