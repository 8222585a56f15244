package cli

import (
	"fmt"

	"github.com/smith3v/mathquiz/pkg/statistics"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var id uint
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Read and update per-account statistics",
	}
	cmd.PersistentFlags().UintVar(&id, "id", 0, "account id")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			summary, err := statistics.NewRepository(a.db).Get(id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		}),
	})

	var correct bool
	attempt := &cobra.Command{
		Use:   "attempt",
		Short: "Record one answered question",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			repo := statistics.NewRepository(a.db)
			if err := repo.RecordAttempt(id, correct); err != nil {
				return err
			}
			summary, err := repo.Get(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "answered %d, correct %d, accuracy %.2f\n",
				summary.Answered, summary.CorrectAnswers, summary.Accuracy)
			return nil
		}),
	}
	attempt.Flags().BoolVar(&correct, "correct", false, "the answer was correct")
	cmd.AddCommand(attempt)

	var score int
	highscore := &cobra.Command{
		Use:   "highscore",
		Short: "Submit a score; the stored high score only increases",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			best, err := statistics.NewRepository(a.db).UpdateHighScore(id, score)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "high score %d\n", best)
			return nil
		}),
	}
	highscore.Flags().IntVar(&score, "score", 0, "score of the finished quiz")
	cmd.AddCommand(highscore)
	return cmd
}
