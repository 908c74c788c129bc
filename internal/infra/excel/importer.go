package excel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ecoquest-service/internal/domain"
)

// CatalogWriter receives imported catalog rows.
type CatalogWriter interface {
	UpsertBadge(ctx context.Context, badge domain.Badge) error
	UpsertLevel(ctx context.Context, level domain.Level) error
}

// ImportConfig names the sheets to read. Both sheets start with a header row.
//
// Badges columns: id, name, description, criteria type, criteria value, timeframe, points, rarity, active.
// Levels columns: level, name, min points, max points (blank for the top level).
type ImportConfig struct {
	FilePath    string
	BadgesSheet string
	LevelsSheet string
}

func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:    path,
		BadgesSheet: "Badges",
		LevelsSheet: "Levels",
	}
}

// ImportResult counts what happened to each row.
type ImportResult struct {
	Badges  int
	Levels  int
	Skipped int
	Errors  []string
}

// ImportCatalog reads badges and levels from a workbook into w.
// Bad rows are reported in the result and do not abort the import; a missing sheet is skipped.
func ImportCatalog(ctx context.Context, cfg ImportConfig, w CatalogWriter) (*ImportResult, error) {
	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	result := &ImportResult{Errors: make([]string, 0)}
	sheets := map[string]bool{}
	for _, name := range f.GetSheetList() {
		sheets[name] = true
	}

	if sheets[cfg.BadgesSheet] {
		rows, err := f.GetRows(cfg.BadgesSheet)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", cfg.BadgesSheet, err)
		}
		for i, row := range dataRows(rows) {
			badge, err := parseBadge(row)
			if err == nil {
				err = w.UpsertBadge(ctx, badge)
			}
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("%s row %d: %v", cfg.BadgesSheet, i+2, err))
				continue
			}
			result.Badges++
		}
	}

	if sheets[cfg.LevelsSheet] {
		rows, err := f.GetRows(cfg.LevelsSheet)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", cfg.LevelsSheet, err)
		}
		for i, row := range dataRows(rows) {
			level, err := parseLevel(row)
			if err == nil {
				err = w.UpsertLevel(ctx, level)
			}
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("%s row %d: %v", cfg.LevelsSheet, i+2, err))
				continue
			}
			result.Levels++
		}
	}
	return result, nil
}

// dataRows drops the header row and keeps blank rows so row numbers stay aligned.
func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseBadge(row []string) (domain.Badge, error) {
	id := cell(row, 0)
	if id == "" {
		return domain.Badge{}, fmt.Errorf("missing badge id")
	}
	name := cell(row, 1)
	if name == "" {
		return domain.Badge{}, fmt.Errorf("missing badge name")
	}
	criteria := domain.CriteriaType(strings.ToLower(cell(row, 3)))
	switch criteria {
	case domain.CriteriaPoints, domain.CriteriaQuizzes, domain.CriteriaGames,
		domain.CriteriaExperiments, domain.CriteriaStreak, domain.CriteriaSpecial:
	default:
		return domain.Badge{}, fmt.Errorf("unknown criteria type %q", cell(row, 3))
	}
	value, err := optionalInt(cell(row, 4))
	if err != nil {
		return domain.Badge{}, fmt.Errorf("criteria value: %w", err)
	}
	timeframe := domain.Timeframe(strings.ToLower(cell(row, 5)))
	if timeframe != "" && !timeframe.Valid() {
		return domain.Badge{}, fmt.Errorf("unknown timeframe %q", cell(row, 5))
	}
	points, err := optionalInt(cell(row, 6))
	if err != nil {
		return domain.Badge{}, fmt.Errorf("points: %w", err)
	}
	active := true
	if raw := cell(row, 8); raw != "" {
		active, err = strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return domain.Badge{}, fmt.Errorf("active: %w", err)
		}
	}
	return domain.Badge{
		ID:          id,
		Name:        name,
		Description: cell(row, 2),
		Criteria:    domain.BadgeCriteria{Type: criteria, Value: value, Timeframe: timeframe},
		Points:      points,
		Rarity:      cell(row, 7),
		Active:      active,
	}, nil
}

func parseLevel(row []string) (domain.Level, error) {
	number, err := strconv.Atoi(cell(row, 0))
	if err != nil || number < 1 {
		return domain.Level{}, fmt.Errorf("invalid level %q", cell(row, 0))
	}
	minPoints, err := optionalInt(cell(row, 2))
	if err != nil {
		return domain.Level{}, fmt.Errorf("min points: %w", err)
	}
	level := domain.Level{Level: number, Name: cell(row, 1), MinPoints: minPoints}
	if raw := cell(row, 3); raw != "" {
		maxPoints, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Level{}, fmt.Errorf("max points: %w", err)
		}
		if maxPoints < minPoints {
			return domain.Level{}, fmt.Errorf("max points %d below min points %d", maxPoints, minPoints)
		}
		level.MaxPoints = &maxPoints
	}
	return level, nil
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
