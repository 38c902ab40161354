package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/filtering"
	"github.com/jobmatch/jobmatch/internal/matching"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previous matches",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		c := setup(ctx)
		defer c.close()

		limit, _ := cmd.Flags().GetInt("limit")
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		sortFlag, _ := cmd.Flags().GetString("sort")
		format, _ := cmd.Flags().GetString("format")

		key, err := matching.ParseSortKey(sortFlag)
		if err != nil {
			c.fatal("parsing sort key", err)
		}

		userID, err := c.userID(ctx)
		if err != nil {
			c.fatal("getting current user", err)
		}

		history, err := c.client.MatchHistory(ctx, userID, limit, minScore)
		if err != nil {
			c.fatal("getting match history", err)
		}

		// Only duplicates are dropped; the score threshold is the backend's.
		steps := []filtering.Filter{filtering.NewDuplicates()}
		matches, err := filtering.Run(ctx, nil, filtering.Deps{Logger: c.logger.Named("filtering")}, steps, history.Matches)
		if err != nil {
			c.fatal("filtering history", err)
		}

		c.logger.Info("got match history", zap.Int("count", len(matches)))

		if err := renderViews(cmd.OutOrStdout(), matching.Project(matches, key, c.config.Display), format); err != nil {
			c.fatal("rendering history", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", backend.DefaultHistoryLimit, "maximum number of matches")
	historyCmd.Flags().Float64("min-score", backend.DefaultHistoryMinScore, "minimum match score")
	historyCmd.Flags().StringP("sort", "s", string(matching.SortByScore), "sort key: score, date or company")
	historyCmd.Flags().StringP("format", "o", formatTable, "output format: table or json")
}
