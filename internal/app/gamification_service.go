package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecoquest-service/internal/domain"
)

// AwardResult summarizes what one gamification call changed.
type AwardResult struct {
	PointsAwarded int            `json:"pointsAwarded"`
	TotalPoints   int            `json:"totalPoints"`
	LevelUp       bool           `json:"levelUp"`
	NewLevel      int            `json:"newLevel"`
	NewBadges     []domain.Badge `json:"newBadges"`
	BonusPoints   int            `json:"bonusPoints"`
	Duplicate     bool           `json:"duplicate,omitempty"`
}

// AwardInput is a direct points grant.
type AwardInput struct {
	UserID      string
	Points      int
	Source      domain.PointSource
	Description string
	SourceID    string
}

// ActivityInput records a completed activity and the points it earns.
type ActivityInput struct {
	UserID           string
	DisplayName      string
	Kind             domain.ActivityKind
	RefID            string
	Category         string
	Score            int
	Points           int
	Description      string
	SourceID         string
	BonusPoints      int
	BonusDescription string
}

// CertificateInput describes a certificate to record on a profile.
type CertificateInput struct {
	Title      string
	QuizID     string
	TemplateID string
}

// GamificationService owns points, streaks, levels, badges and certificate records.
type GamificationService struct {
	profiles ProfileRepository
	catalog  CatalogRepository
	events   Publisher
	now      func() time.Time
	newID    func() string
}

func NewGamificationService(profiles ProfileRepository, catalog CatalogRepository, events Publisher) *GamificationService {
	return NewGamificationServiceWithClock(profiles, catalog, events, time.Now)
}

// NewGamificationServiceWithClock is used by tests for deterministic windows and streaks.
func NewGamificationServiceWithClock(profiles ProfileRepository, catalog CatalogRepository, events Publisher, now func() time.Time) *GamificationService {
	if events == nil {
		events = noopPublisher{}
	}
	return &GamificationService{
		profiles: profiles,
		catalog:  catalog,
		events:   events,
		now:      now,
		newID:    uuid.NewString,
	}
}

// GetProfile returns the user's profile, or a fresh level-1 profile if none exists yet.
func (s *GamificationService) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return domain.NewProfile(userID), nil
	}
	if err != nil {
		return domain.Profile{}, domain.WrapOp("load profile", err)
	}
	return p, nil
}

// AwardPoints credits points and settles levels and badges.
// A repeated (source, sourceID) pair is a no-op reported as Duplicate.
func (s *GamificationService) AwardPoints(ctx context.Context, in AwardInput) (AwardResult, error) {
	if err := validateAward(in); err != nil {
		return AwardResult{}, err
	}
	var result AwardResult
	err := s.mutate(ctx, in.UserID, func(tx *awardTx) error {
		if tx.profile.HasLedgerEntry(in.Source, in.SourceID) {
			tx.result.Duplicate = true
			tx.result.TotalPoints = tx.profile.EcoPoints
			tx.result.NewLevel = tx.profile.Level
			return nil
		}
		tx.credit(in.Points, in.Source, in.Description, in.SourceID)
		tx.settle()
		return nil
	}, &result)
	return result, err
}

func validateAward(in AwardInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.UserID) == "" {
		fields["userId"] = "required"
	}
	switch {
	case in.Points == 0:
		fields["points"] = "must not be zero"
	case in.Points < 0 && in.Source != domain.SourceAdmin:
		fields["points"] = "negative points are reserved for admin corrections"
	}
	if in.Source == "" {
		fields["source"] = "required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Message: "invalid award", Fields: fields}
	}
	return nil
}

// RecordActivity logs an activity, extends the streak, credits its points and settles.
// Activities are idempotent per SourceID.
func (s *GamificationService) RecordActivity(ctx context.Context, in ActivityInput) (AwardResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return AwardResult{}, &domain.ValidationError{Message: "invalid activity", Fields: map[string]string{"userId": "required"}}
	}
	if in.Points < 0 || in.BonusPoints < 0 {
		return AwardResult{}, &domain.ValidationError{Message: "invalid activity", Fields: map[string]string{"points": "must not be negative"}}
	}
	var result AwardResult
	err := s.mutate(ctx, in.UserID, func(tx *awardTx) error {
		p := tx.profile
		if p.HasActivity(in.SourceID) {
			tx.result.Duplicate = true
			tx.result.TotalPoints = p.EcoPoints
			tx.result.NewLevel = p.Level
			return nil
		}
		if in.DisplayName != "" {
			p.DisplayName = in.DisplayName
		}
		UpdateStreak(&p.Streak, tx.now)
		p.Activities = append(p.Activities, domain.Activity{
			Kind:        in.Kind,
			RefID:       in.RefID,
			Category:    in.Category,
			Score:       in.Score,
			SourceID:    in.SourceID,
			CompletedAt: tx.now,
		})
		description := in.Description
		if description == "" {
			description = fmt.Sprintf("Completed %s %s", in.Kind, in.RefID)
		}
		tx.credit(in.Points, in.Kind.Source(), description, in.SourceID)
		if in.BonusPoints > 0 {
			bonusDescription := in.BonusDescription
			if bonusDescription == "" {
				bonusDescription = "First attempt bonus"
			}
			tx.result.BonusPoints += in.BonusPoints
			tx.credit(in.BonusPoints, domain.SourceFirstAttempt, bonusDescription, in.SourceID)
		}
		tx.settle()
		return nil
	}, &result)
	return result, err
}

// CheckAchievements re-runs the level and badge cascade without new points.
func (s *GamificationService) CheckAchievements(ctx context.Context, userID string) (AwardResult, error) {
	var result AwardResult
	err := s.mutate(ctx, userID, func(tx *awardTx) error {
		tx.settle()
		return nil
	}, &result)
	return result, err
}

// AwardBadge grants a badge explicitly, including special badges.
func (s *GamificationService) AwardBadge(ctx context.Context, userID, badgeID string) (AwardResult, error) {
	badges, err := s.catalog.Badges(ctx)
	if err != nil {
		return AwardResult{}, domain.WrapOp("load badges", err)
	}
	var badge *domain.Badge
	for i := range badges {
		if badges[i].ID == badgeID {
			badge = &badges[i]
			break
		}
	}
	if badge == nil {
		return AwardResult{}, &domain.NotFoundError{Message: "badge not found: " + badgeID, Err: domain.ErrBadgeNotFound}
	}

	var result AwardResult
	err = s.mutate(ctx, userID, func(tx *awardTx) error {
		if tx.profile.HasBadge(badge.ID) {
			return &domain.ConflictError{Message: "badge already earned: " + badge.Name}
		}
		tx.grantBadge(*badge)
		tx.settle()
		return nil
	}, &result)
	return result, err
}

// IssueCertificate records a certificate once per (template, quiz) pair and returns it.
func (s *GamificationService) IssueCertificate(ctx context.Context, userID string, in CertificateInput) (domain.Certificate, error) {
	var issued domain.Certificate
	var fresh bool
	_, err := s.profiles.Update(ctx, userID, func(p *domain.Profile) error {
		for _, c := range p.Certificates {
			if c.TemplateID == in.TemplateID && c.QuizID == in.QuizID {
				issued = c
				return nil
			}
		}
		id := s.newID()
		issued = domain.Certificate{
			ID:               id,
			TemplateID:       in.TemplateID,
			Title:            in.Title,
			QuizID:           in.QuizID,
			IssuedAt:         s.now(),
			VerificationCode: verificationCode(id),
		}
		p.Certificates = append(p.Certificates, issued)
		fresh = true
		return nil
	})
	if err != nil {
		return domain.Certificate{}, domain.WrapOp("issue certificate", err)
	}
	if fresh {
		s.events.Publish(ctx, domain.Event{
			Type:      domain.EventCertificateIssued,
			UserID:    userID,
			Message:   "Certificate issued: " + issued.Title,
			Timestamp: issued.IssuedAt,
		})
	}
	return issued, nil
}

func verificationCode(id string) string {
	code := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(code) > 12 {
		code = code[:12]
	}
	return code
}

// mutate loads the catalog, runs fn inside one profile update and publishes events after commit.
func (s *GamificationService) mutate(ctx context.Context, userID string, fn func(tx *awardTx) error, out *AwardResult) error {
	levels, err := s.catalog.Levels(ctx)
	if err != nil {
		return domain.WrapOp("load levels", err)
	}
	badges, err := s.catalog.Badges(ctx)
	if err != nil {
		return domain.WrapOp("load badges", err)
	}

	var tx *awardTx
	_, err = s.profiles.Update(ctx, userID, func(p *domain.Profile) error {
		// fn may run more than once when the store retries
		tx = &awardTx{
			profile: p,
			levels:  levels,
			badges:  badges,
			now:     s.now(),
			newID:   s.newID,
		}
		return fn(tx)
	})
	if err != nil {
		return domain.WrapOp("update profile", err)
	}

	*out = tx.result
	for _, event := range tx.events {
		s.events.Publish(ctx, event)
	}
	return nil
}
