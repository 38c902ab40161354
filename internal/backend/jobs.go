package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/apierr"
)

const (
	DefaultHistoryLimit    = 50
	DefaultHistoryMinScore = 50
)

// SearchAndMatch runs a job search and scores the results against the user's resume.
func (c *Client) SearchAndMatch(ctx context.Context, params *SearchParams) (*SearchResult, error) {
	if params == nil {
		return nil, &apierr.ValidationError{Reason: "search parameters are required"}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var result SearchResult
	if err := c.getJSON(ctx, searchPath, buildParams(params), &result); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	for i := range result.Matches {
		result.Matches[i].normalize()
	}

	c.logger.Debug("got search results",
		zap.Int("total_jobs", result.TotalJobs),
		zap.Int("matches", len(result.Matches)),
	)

	return &result, nil
}

// GetJob returns a single job snapshot.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, &apierr.ValidationError{Field: "job_id", Reason: "is required"}
	}

	var job Job
	if err := c.getJSON(ctx, jobsPath+"/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	if job.JobID == "" {
		job.JobID = jobID
	}
	job.normalize()

	return &job, nil
}

// MatchHistory returns previous matches of the user scoring at least minScore.
func (c *Client) MatchHistory(ctx context.Context, userID string, limit int, minScore float64) (*History, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &apierr.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("min_score", strconv.FormatFloat(minScore, 'f', -1, 64))

	var history History
	if err := c.getJSON(ctx, historyPath, q, &history); err != nil {
		return nil, fmt.Errorf("match history: %w", err)
	}

	for i := range history.Matches {
		history.Matches[i].normalize()
	}

	return &history, nil
}
