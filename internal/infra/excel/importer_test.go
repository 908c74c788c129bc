package excel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"ecoquest-service/internal/domain"
	"ecoquest-service/internal/infra/memory"
)

func writeWorkbook(t *testing.T, sheets map[string][][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for name, rows := range sheets {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for i, row := range rows {
			cellName, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(name, cellName, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func TestImportCatalog(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"Badges": {
			{"id", "name", "description", "type", "value", "timeframe", "points", "rarity", "active"},
			{"first-quiz", "First Quiz", "Pass a quiz", "quizzes", 1, "", 10, "common", "true"},
			{"daily-3", "Busy Bee", "Three quizzes in a day", "quizzes", 3, "daily", 25, "rare", ""},
			{"broken", "Broken", "", "teleport", 1, "", 0, "", ""},
		},
		"Levels": {
			{"level", "name", "min", "max"},
			{1, "Seedling", 0, 49},
			{2, "Sprout", 50, ""},
			{"x", "Bad", 0, 0},
		},
	})

	store := memory.NewCatalogStore()
	ctx := context.Background()
	res, err := ImportCatalog(ctx, DefaultImportConfig(path), store)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Badges != 2 || res.Levels != 2 || res.Skipped != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 row errors, got %v", res.Errors)
	}

	badges, _ := store.Badges(ctx)
	if len(badges) != 2 || badges[0].ID != "daily-3" {
		t.Fatalf("unexpected badges %+v", badges)
	}
	daily := badges[0]
	if daily.Criteria.Timeframe != domain.TimeframeDaily || daily.Criteria.Value != 3 || !daily.Active {
		t.Fatalf("daily badge not parsed: %+v", daily)
	}

	levels, _ := store.Levels(ctx)
	if len(levels) != 2 {
		t.Fatalf("expected imported levels to replace defaults, got %+v", levels)
	}
	if levels[0].MaxPoints == nil || *levels[0].MaxPoints != 49 {
		t.Fatalf("level 1 max not parsed: %+v", levels[0])
	}
	if levels[1].MaxPoints != nil {
		t.Fatalf("top level should be open ended: %+v", levels[1])
	}
}

func TestImportCatalogMissingSheets(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"Notes": {{"nothing to see"}},
	})
	res, err := ImportCatalog(context.Background(), DefaultImportConfig(path), memory.NewCatalogStore())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Badges != 0 || res.Levels != 0 || res.Skipped != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestImportCatalogMissingFile(t *testing.T) {
	if _, err := ImportCatalog(context.Background(), DefaultImportConfig(filepath.Join(t.TempDir(), "none.xlsx")), memory.NewCatalogStore()); err == nil {
		t.Fatalf("expected error for missing workbook")
	}
}
