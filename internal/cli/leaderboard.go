package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"quizbot-engine/internal/app"
	"quizbot-engine/internal/config"
	"quizbot-engine/internal/infra/memory"
)

// NewLeaderboardCmd prints the ranked leaderboard of a quiz.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard <quizId>",
		Short: "Print the top entries of a quiz leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			engine := app.NewEngine(memory.NewSessionStore(), d.quizzes, nil, app.Options{})
			view, err := engine.Leaderboard(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of entries to print")
	return cmd
}

func printLeaderboard(out io.Writer, view app.LeaderboardView) error {
	fmt.Fprintf(out, "%s (%d questions, %ds each, %d participants)\n",
		view.Title, view.Questions, view.TimeLimit, view.Participants)
	if len(view.Entries) == 0 {
		_, err := fmt.Fprintln(out, "no results yet")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPARTICIPANT\tCORRECT\tWRONG\tSKIPPED\tFINISHED")
	for i, e := range view.Entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\n", i+1, e.Identity().DisplayName(),
			e.CorrectAnswers, e.WrongAnswers, e.SkippedQuestions, e.Timestamp.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
