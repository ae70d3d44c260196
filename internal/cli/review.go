package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
)

// NewReviewCmd prints a finished attempt with per-question correctness.
func NewReviewCmd(configPath *string) *cobra.Command {
	var quizID, attemptID string
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Show the result of a submitted attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := cfg.Logger()

			d, err := buildDeps(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			m := app.NewMachine(d.backend, quizID, app.WithLogger(logger))
			defer m.Release()
			if err := m.LoadReplay(cmd.Context(), attemptID); err != nil {
				return err
			}
			return printReview(cmd.OutOrStdout(), m.State())
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id")
	cmd.Flags().StringVar(&attemptID, "attempt", "", "attempt id")
	_ = cmd.MarkFlagRequired("quiz")
	_ = cmd.MarkFlagRequired("attempt")
	return cmd
}

func printReview(out io.Writer, st app.State) error {
	if st.Verdict == nil {
		return fmt.Errorf("attempt %s has no verdict", st.AttemptID)
	}
	v := st.Verdict
	result := "failed"
	if v.Passed {
		result = "passed"
	}
	fmt.Fprintf(out, "attempt %s: %.2f%% (%g/%g) %s, %ds of %ds\n",
		v.AttemptID, v.Percentage, v.Score, v.MaxScore, result, v.TimeSpentSeconds, v.TotalTimeSeconds)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tQUESTION\tKIND\tANSWERED\tCORRECT")
	for i, q := range st.Questions {
		correct := i < len(st.Correctness) && st.Correctness[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\n", i+1, q.ID, q.Kind, domain.IsAnswered(st.Answers[i]), correct)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, id := range st.MissingCanonical {
		fmt.Fprintf(out, "no canonical answer for %s\n", id)
	}
	return nil
}
