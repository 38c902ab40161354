package matching

import (
	"slices"

	"github.com/jobmatch/jobmatch/internal/backend"
)

// Detail is the match shown on a job page.
type Detail struct {
	Match backend.JobMatch
	// Provisional is set when the job is not in the user's match history
	// and the score was not computed by the backend.
	Provisional bool
}

// Reconcile pairs a job with the backend-computed match from history.
// When history has no entry for the job, a provisional match with score 0 is
// built from the job requirements and the resume.
func Reconcile(job *backend.Job, history []backend.JobMatch, resume *backend.Resume) Detail {
	if job == nil {
		return Detail{Provisional: true}
	}

	for _, m := range history {
		if m.JobID != job.JobID {
			continue
		}
		// The fetched snapshot is at least as fresh as the embedded one.
		m.Job = *job
		m.MatchedSkills = slices.Clone(m.MatchedSkills)
		m.MissingSkills = slices.Clone(m.MissingSkills)
		return Detail{Match: m}
	}

	m := backend.JobMatch{
		JobID:                   job.JobID,
		MatchScore:              0,
		MatchedSkills:           []string{},
		MissingSkills:           slices.Clone(job.Features.Skills),
		RequiredExperienceYears: sanitize(job.Features.RequiredExperienceYears),
		Job:                     *job,
	}
	if resume != nil {
		m.ResumeID = resume.ResumeID
		m.ResumeExperienceYears = sanitize(resume.Features.WorkExperienceYears)
	}

	return Detail{Match: m, Provisional: true}
}
