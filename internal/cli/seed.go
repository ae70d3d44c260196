package cli

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/authority"
	"quiz-attempt-service/internal/config"
	pginfra "quiz-attempt-service/internal/infra/postgres"
)

// NewSeedCmd stores the bundled sample quizzes in Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store the sample quizzes in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			logger := cfg.Logger()
			if err := runMigrationsWithConfig(cmd.Context(), cfg, logger); err != nil {
				return err
			}

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			loader := pginfra.NewQuizLoader(pool)
			validator := authority.NewValidator()
			for id, quiz := range sampleQuizzes() {
				if err := validator.Validate(quiz); err != nil {
					return fmt.Errorf("quiz %s: %w", id, err)
				}
				if err := loader.SaveQuiz(cmd.Context(), quiz); err != nil {
					return fmt.Errorf("save quiz %s: %w", id, err)
				}
				logger.Info("quiz seeded", "quiz_id", id, "questions", len(quiz.Questions))
			}
			return nil
		},
	}
}
