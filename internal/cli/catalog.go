package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"ecoquest-service/internal/config"
	"ecoquest-service/internal/domain"
	"ecoquest-service/internal/infra/excel"
	"ecoquest-service/internal/infra/postgres"
)

// NewCatalogCmd groups commands that load reference data into Postgres.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Load badges, levels, certificate templates and quizzes",
	}
	cmd.AddCommand(newCatalogImportCmd(configPath))
	cmd.AddCommand(newCatalogTemplateCmd(configPath))
	cmd.AddCommand(newCatalogQuizCmd(configPath))
	return cmd
}

func newCatalogImportCmd(configPath *string) *cobra.Command {
	var badgesSheet, levelsSheet string
	cmd := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Import badges and levels from an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openCatalogDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			importCfg := excel.DefaultImportConfig(args[0])
			if badgesSheet != "" {
				importCfg.BadgesSheet = badgesSheet
			}
			if levelsSheet != "" {
				importCfg.LevelsSheet = levelsSheet
			}
			res, err := excel.ImportCatalog(cmd.Context(), importCfg, postgres.NewCatalogStore(db))
			if err != nil {
				return err
			}
			for _, e := range res.Errors {
				log.Printf("skipped %s", e)
			}
			log.Printf("catalog imported: %d badges, %d levels, %d skipped", res.Badges, res.Levels, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&badgesSheet, "badges-sheet", "", "sheet holding badges (default Badges)")
	cmd.Flags().StringVar(&levelsSheet, "levels-sheet", "", "sheet holding levels (default Levels)")
	return cmd
}

func newCatalogTemplateCmd(configPath *string) *cobra.Command {
	var tpl domain.CertificateTemplate
	var htmlPath string
	var badges []string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Create or replace a certificate template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tpl.ID == "" || htmlPath == "" {
				return fmt.Errorf("--id and --html are required")
			}
			body, err := os.ReadFile(htmlPath)
			if err != nil {
				return err
			}
			tpl.HTML = string(body)
			tpl.Requirements.BadgeIDs = badges
			if tpl.Name == "" {
				tpl.Name = tpl.ID
			}

			db, err := openCatalogDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.NewCatalogStore(db).UpsertTemplate(cmd.Context(), tpl); err != nil {
				return err
			}
			log.Printf("template %s saved", tpl.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&tpl.ID, "id", "", "template id")
	cmd.Flags().StringVar(&tpl.Name, "name", "", "certificate title")
	cmd.Flags().StringVar(&htmlPath, "html", "", "path to the HTML body")
	cmd.Flags().StringVar(&tpl.Requirements.QuizID, "quiz", "", "quiz that must be passed")
	cmd.Flags().IntVar(&tpl.Requirements.MinScore, "min-score", 0, "minimum quiz score")
	cmd.Flags().IntVar(&tpl.Requirements.MinLevel, "min-level", 0, "minimum level")
	cmd.Flags().StringSliceVar(&badges, "badge", nil, "required badge id (repeatable)")
	return cmd
}

func newCatalogQuizCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quiz <quiz.json>",
		Short: "Create or replace a quiz from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var quiz domain.Quiz
			if err := json.Unmarshal(raw, &quiz); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			svc, err := loadServices(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer svc.Close()
			if svc.pool == nil {
				return fmt.Errorf("postgres url not configured")
			}
			if err := postgres.NewQuizLoader(svc.pool).SaveQuiz(cmd.Context(), quiz); err != nil {
				return err
			}
			if svc.quizCache != nil {
				if err := svc.quizCache.Invalidate(cmd.Context(), quiz.ID); err != nil {
					log.Printf("invalidate cached quiz %s: %v", quiz.ID, err)
				}
			}
			log.Printf("quiz %s saved (%d questions)", quiz.ID, len(quiz.Questions))
			return nil
		},
	}
}

func openCatalogDB(configPath string) (*bun.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	return postgres.Open(cfg.Postgres.URL), nil
}
