package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jobmatch/jobmatch/internal/ai"
	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/matching"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func listedDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

// skills renders a truncated skill list as "a, b, c (+2 more)".
func skills(shown []string, more int) string {
	s := strings.Join(shown, ", ")
	if s == "" {
		s = "-"
	}
	if more > 0 {
		s += fmt.Sprintf(" (+%d more)", more)
	}
	return s
}

// renderViews prints one row per match.
func renderViews(w io.Writer, views []matching.View, format string) error {
	if format == formatJSON {
		return renderJSON(w, viewsPayload(views))
	}

	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No matches.")
		return err
	}

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "#\tSCORE\tJOB ID\tTITLE\tCOMPANY\tLISTED\tSKILLS\tEXPERIENCE\tMATCHED\tMISSING")
	for i, v := range views {
		fmt.Fprintf(tw, "%d\t%d%% %s\t%s\t%s\t%s\t%s\t%d%%\t%d%%\t%s\t%s\n",
			i+1,
			v.Score, v.Band,
			v.Match.JobID,
			v.Match.Job.Title,
			v.Match.Job.Company,
			listedDate(v.Match.Job.ListedTime),
			v.SkillMatch,
			v.ExperienceMatch,
			skills(v.Matched, v.MoreMatched),
			skills(v.Missing, v.MoreMissing),
		)
	}
	return tw.Flush()
}

type viewPayload struct {
	JobID           string   `json:"jobId"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Location        string   `json:"location,omitempty"`
	ListedTime      string   `json:"listedTime,omitempty"`
	Score           int      `json:"score"`
	Band            string   `json:"band"`
	SkillMatch      int      `json:"skillMatch"`
	ExperienceMatch int      `json:"experienceMatch"`
	MatchedSkills   []string `json:"matchedSkills"`
	MissingSkills   []string `json:"missingSkills"`
	ApplyURL        string   `json:"applyUrl,omitempty"`
}

func viewsPayload(views []matching.View) []viewPayload {
	out := make([]viewPayload, 0, len(views))
	for _, v := range views {
		p := viewPayload{
			JobID:           v.Match.JobID,
			Title:           v.Match.Job.Title,
			Company:         v.Match.Job.Company,
			Location:        v.Match.Job.Location,
			Score:           v.Score,
			Band:            string(v.Band),
			SkillMatch:      v.SkillMatch,
			ExperienceMatch: v.ExperienceMatch,
			MatchedSkills:   v.Match.MatchedSkills,
			MissingSkills:   v.Match.MissingSkills,
			ApplyURL:        v.Match.Job.ApplyURL,
		}
		if !v.Match.Job.ListedTime.IsZero() {
			p.ListedTime = v.Match.Job.ListedTime.Format(time.RFC3339)
		}
		out = append(out, p)
	}
	return out
}

// renderDetail prints a single match with full skill lists.
func renderDetail(w io.Writer, v matching.View, provisional bool) error {
	job := v.Match.Job

	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Job:\t%s (%s)\n", job.Title, v.Match.JobID)
	fmt.Fprintf(tw, "Company:\t%s\n", job.Company)
	if job.Location != "" {
		fmt.Fprintf(tw, "Location:\t%s\n", job.Location)
	}
	if job.WorkplaceType != "" {
		fmt.Fprintf(tw, "Workplace:\t%s\n", job.WorkplaceType)
	}
	fmt.Fprintf(tw, "Listed:\t%s\n", listedDate(job.ListedTime))
	fmt.Fprintf(tw, "Match score:\t%d%% (%s)\n", v.Score, v.Band)
	fmt.Fprintf(tw, "Skill match:\t%d%%\n", v.SkillMatch)
	fmt.Fprintf(tw, "Experience match:\t%d%% (%g of %g years)\n",
		v.ExperienceMatch, v.Match.ResumeExperienceYears, v.Match.RequiredExperienceYears)
	fmt.Fprintf(tw, "Matched skills:\t%s\n", skills(v.Match.MatchedSkills, 0))
	fmt.Fprintf(tw, "Missing skills:\t%s\n", skills(v.Match.MissingSkills, 0))
	if job.ApplyURL != "" {
		fmt.Fprintf(tw, "Apply:\t%s\n", job.ApplyURL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if provisional {
		fmt.Fprintln(w, "\nThis job is not in your match history; the match score may not be accurate.")
	}
	if desc := strings.TrimSpace(job.Description); desc != "" {
		fmt.Fprintf(w, "\n%s\n", desc)
	}
	return nil
}

func renderUser(w io.Writer, user *backend.User) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "User ID:\t%s\n", user.UserID)
	fmt.Fprintf(tw, "Email:\t%s\n", user.Email)
	fmt.Fprintf(tw, "Name:\t%s\n", user.FullName)
	fmt.Fprintf(tw, "Active:\t%t\n", user.IsActive)
	fmt.Fprintf(tw, "Verified:\t%t\n", user.IsVerified)
	return tw.Flush()
}

func renderResume(w io.Writer, resume *backend.Resume) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Resume ID:\t%s\n", resume.ResumeID)
	fmt.Fprintf(tw, "Processed:\t%s\n", listedDate(resume.ProcessedDate))
	fmt.Fprintf(tw, "Experience:\t%g years\n", resume.Features.WorkExperienceYears)
	fmt.Fprintf(tw, "Skills:\t%s\n", skills(resume.Features.Skills, 0))
	return tw.Flush()
}

func renderAdvice(w io.Writer, advice *ai.Advice) error {
	if advice.Summary != "" {
		fmt.Fprintf(w, "%s\n", advice.Summary)
	}
	if len(advice.FocusSkills) > 0 {
		fmt.Fprintf(w, "\nFocus on: %s\n", strings.Join(advice.FocusSkills, ", "))
	}
	for i, step := range advice.Steps {
		fmt.Fprintf(w, "%d. %s\n", i+1, step)
	}
	return nil
}
