package ai

import (
	"context"

	"github.com/jobmatch/jobmatch/internal/backend"
)

// Advice explains how a resume could close the gap to a job.
type Advice struct {
	Summary     string
	FocusSkills []string
	Steps       []string
	Raw         string
}

type Advisor interface {
	Advise(ctx context.Context, match backend.JobMatch, resume *backend.Resume) (*Advice, error)
}
