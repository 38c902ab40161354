package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/logger"
	"github.com/jobmatch/jobmatch/internal/matching"
	"github.com/jobmatch/jobmatch/internal/store"
)

var jobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show a job and how well it matches your resume",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		c := setup(ctx)
		defer c.close()

		refresh, _ := cmd.Flags().GetBool("refresh")
		format, _ := cmd.Flags().GetString("format")

		detail, _, err := c.jobDetail(ctx, args[0], refresh)
		if err != nil {
			c.fatal("getting job", err)
		}

		view := matching.NewView(detail.Match, c.config.Display)
		if format == formatJSON {
			if err := renderJSON(cmd.OutOrStdout(), viewsPayload([]matching.View{view})[0]); err != nil {
				c.fatal("rendering job", err)
			}
			return
		}

		if err := renderDetail(cmd.OutOrStdout(), view, detail.Provisional); err != nil {
			c.fatal("rendering job", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(jobCmd)

	jobCmd.Flags().Bool("refresh", false, "fetch the job from the backend even when it is cached")
	jobCmd.Flags().StringP("format", "o", formatTable, "output format: table or json")
}

// job returns the cached snapshot of a job, fetching and caching it when needed.
func (c *cli) job(ctx context.Context, jobID string, refresh bool) (*backend.Job, error) {
	log := logger.WithFields(c.logger, logger.MatchFields(jobID, "")...)

	if !refresh {
		job, fetched, err := c.store.CachedJob(ctx, jobID)
		if err == nil {
			log.Debug("using cached job", zap.Duration("age", time.Since(fetched).Round(time.Second)))
			return &job, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("reading job cache", zap.Error(err))
		}
	}

	job, err := c.client.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := c.store.CacheJob(ctx, *job); err != nil {
		log.Warn("caching job", zap.Error(err))
	}

	return job, nil
}

// jobDetail pairs a job with the backend match from the user's history, or a
// provisional one when the job was never matched.
func (c *cli) jobDetail(ctx context.Context, jobID string, refresh bool) (matching.Detail, *backend.Resume, error) {
	job, err := c.job(ctx, jobID, refresh)
	if err != nil {
		return matching.Detail{}, nil, err
	}

	userID, err := c.userID(ctx)
	if err != nil {
		return matching.Detail{}, nil, err
	}

	history, err := c.client.MatchHistory(ctx, userID, backend.DefaultHistoryLimit, 0)
	if err != nil {
		return matching.Detail{}, nil, err
	}

	resume, err := c.resume(ctx, userID)
	if err != nil {
		return matching.Detail{}, nil, err
	}

	detail := matching.Reconcile(job, history.Matches, resume)
	if detail.Provisional {
		c.logger.Debug("job is not in match history", logger.MatchFields(job.JobID, job.Company)...)
	}

	return detail, resume, nil
}
