package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"

	"ecoquest-service/internal/domain"
)

// Renderer turns an HTML document into PDF bytes.
type Renderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// CertificateService renders certificate PDFs from templates.
type CertificateService struct {
	catalog      CatalogRepository
	gamification *GamificationService
	renderer     Renderer
}

func NewCertificateService(catalog CatalogRepository, gamification *GamificationService, renderer Renderer) *CertificateService {
	return &CertificateService{catalog: catalog, gamification: gamification, renderer: renderer}
}

// Generate checks the template requirements, records the certificate and renders it.
// extra values fill template placeholders but never override the built-in ones.
func (s *CertificateService) Generate(ctx context.Context, userID, templateID string, extra map[string]string) ([]byte, domain.Certificate, error) {
	tpl, err := s.catalog.Template(ctx, templateID)
	if errors.Is(err, domain.ErrTemplateNotFound) {
		return nil, domain.Certificate{}, &domain.NotFoundError{Message: "certificate template not found: " + templateID, Err: err}
	}
	if err != nil {
		return nil, domain.Certificate{}, domain.WrapOp("load template", err)
	}

	profile, err := s.gamification.GetProfile(ctx, userID)
	if err != nil {
		return nil, domain.Certificate{}, err
	}
	if missing := CheckRequirements(profile, tpl.Requirements); len(missing) > 0 {
		return nil, domain.Certificate{}, &domain.RequirementsNotMetError{Missing: missing}
	}

	cert, err := s.gamification.IssueCertificate(ctx, userID, CertificateInput{
		Title:      tpl.Name,
		QuizID:     tpl.Requirements.QuizID,
		TemplateID: tpl.ID,
	})
	if err != nil {
		return nil, domain.Certificate{}, err
	}

	values := make(map[string]string, len(extra)+6)
	for k, v := range extra {
		values[k] = v
	}
	name := profile.DisplayName
	if name == "" {
		name = userID
	}
	values["userName"] = name
	values["ecoPoints"] = strconv.Itoa(profile.EcoPoints)
	values["level"] = strconv.Itoa(profile.Level)
	values["date"] = cert.IssuedAt.Format("January 2, 2006")
	values["certificateId"] = cert.ID
	values["verificationCode"] = cert.VerificationCode

	pdf, err := s.renderer.RenderPDF(ctx, RenderTemplate(tpl.HTML, values))
	if err != nil {
		return nil, domain.Certificate{}, &domain.OperationError{Op: "render certificate", Err: err}
	}
	return pdf, cert, nil
}

// CheckRequirements lists every unmet template requirement.
func CheckRequirements(p domain.Profile, req domain.CertificateRequirements) []string {
	var missing []string
	if req.QuizID != "" || req.MinScore > 0 {
		best := -1
		for _, a := range p.Activities {
			if a.Kind != domain.ActivityQuiz {
				continue
			}
			if req.QuizID != "" && a.RefID != req.QuizID {
				continue
			}
			if a.Score > best {
				best = a.Score
			}
		}
		switch {
		case best < 0 && req.QuizID != "":
			missing = append(missing, "pass quiz "+req.QuizID)
		case best < 0:
			missing = append(missing, "pass a quiz")
		case best < req.MinScore:
			missing = append(missing, fmt.Sprintf("score at least %d%%", req.MinScore))
		}
	}
	if req.MinLevel > 0 && p.Level < req.MinLevel {
		missing = append(missing, fmt.Sprintf("reach level %d", req.MinLevel))
	}
	for _, id := range req.BadgeIDs {
		if !p.HasBadge(id) {
			missing = append(missing, "earn badge "+id)
		}
	}
	return missing
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// RenderTemplate replaces {{key}} tokens with HTML-escaped values. Unknown tokens are left as is.
func RenderTemplate(body string, values map[string]string) string {
	return placeholder.ReplaceAllStringFunc(body, func(token string) string {
		key := placeholder.FindStringSubmatch(token)[1]
		if v, ok := values[key]; ok {
			return html.EscapeString(v)
		}
		return token
	})
}
