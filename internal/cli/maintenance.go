package cli

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"ecoquest-service/internal/config"
)

// NewLeaderboardsCmd groups leaderboard maintenance commands.
func NewLeaderboardsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboards",
		Short: "Leaderboard maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Rebuild every leaderboard snapshot now",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer svc.Close()
			n, err := svc.leaderboards.UpdateLeaderboards(cmd.Context())
			if err != nil {
				return err
			}
			log.Printf("leaderboards refreshed: %d boards", n)
			return nil
		},
	})
	return cmd
}

// NewAttemptsCmd groups attempt maintenance commands.
func NewAttemptsCmd(configPath *string) *cobra.Command {
	var olderThan string
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Quiz attempt maintenance",
	}
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Mark idle in-progress attempts as abandoned",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer svc.Close()
			raw := olderThan
			if raw == "" {
				raw = svc.cfg.Quiz.AbandonAfter
			}
			n, err := svc.attempts.AbandonStale(cmd.Context(), config.TTLDuration(raw, 24*time.Hour))
			if err != nil {
				return err
			}
			log.Printf("abandoned %d stale attempts", n)
			return nil
		},
	}
	sweep.Flags().StringVar(&olderThan, "older-than", "", "idle duration before an attempt is abandoned (defaults to quiz.abandonAfter)")
	cmd.AddCommand(sweep)
	return cmd
}
