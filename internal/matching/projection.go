package matching

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/jobmatch/jobmatch/internal/backend"
)

type SortKey string

const (
	SortByScore   SortKey = "score"
	SortByDate    SortKey = "date"
	SortByCompany SortKey = "company"
)

// SortKeys lists the supported keys in menu order.
var SortKeys = []SortKey{SortByScore, SortByDate, SortByCompany}

// ParseSortKey accepts score (alias match), date and company.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "score", "match":
		return SortByScore, nil
	case "date":
		return SortByDate, nil
	case "company":
		return SortByCompany, nil
	default:
		return "", fmt.Errorf("unknown sort key %q (want score, date or company)", s)
	}
}

// ExperienceMatch is the share of required experience covered by the resume, 0..100.
func ExperienceMatch(required, actual float64) int {
	required = sanitize(required)
	actual = sanitize(actual)

	if required == 0 || actual >= required {
		return 100
	}

	return int(math.Round(math.Min(100, actual/required*100)))
}

// SkillMatch is the share of job skills found in the resume, 0..100.
func SkillMatch(matched, missing []string) int {
	total := len(matched) + len(missing)
	if total == 0 {
		return 0
	}

	return int(math.Round(float64(len(matched)) / float64(total) * 100))
}

// Sort returns a new slice ordered by key. Equal elements keep their input order.
func Sort(matches []backend.JobMatch, key SortKey) []backend.JobMatch {
	sorted := slices.Clone(matches)

	switch key {
	case SortByDate:
		slices.SortStableFunc(sorted, func(a, b backend.JobMatch) int {
			at, bt := a.Job.ListedTime, b.Job.ListedTime
			switch {
			case at.IsZero() && bt.IsZero():
				return 0
			case at.IsZero():
				return 1
			case bt.IsZero():
				return -1
			}
			return bt.Compare(at)
		})
	case SortByCompany:
		slices.SortStableFunc(sorted, func(a, b backend.JobMatch) int {
			return strings.Compare(a.Job.Company, b.Job.Company)
		})
	default:
		slices.SortStableFunc(sorted, func(a, b backend.JobMatch) int {
			return cmp.Compare(sanitize(b.MatchScore), sanitize(a.MatchScore))
		})
	}

	return sorted
}

// TruncateSkills returns the first limit skills and how many were left out.
func TruncateSkills(skills []string, limit int) ([]string, int) {
	if limit < 0 {
		limit = 0
	}
	if len(skills) <= limit {
		return slices.Clone(skills), 0
	}

	return slices.Clone(skills[:limit]), len(skills) - limit
}

type Band string

const (
	BandStrong Band = "strong"
	BandGood   Band = "good"
	BandFair   Band = "fair"
	BandWeak   Band = "weak"
)

// ScoreBand buckets a 0..100 score.
func ScoreBand(score float64) Band {
	score = sanitize(score)
	switch {
	case score >= 80:
		return BandStrong
	case score >= 60:
		return BandGood
	case score >= 40:
		return BandFair
	default:
		return BandWeak
	}
}

// DisplayCaps limits how many skills of each list are shown.
type DisplayCaps struct {
	Matched int `mapstructure:"matched-skills"`
	Missing int `mapstructure:"missing-skills"`
}

func DefaultDisplayCaps() DisplayCaps {
	return DisplayCaps{Matched: 5, Missing: 3}
}

// View is a match with everything needed to render it.
type View struct {
	Match           backend.JobMatch
	Score           int
	Band            Band
	SkillMatch      int
	ExperienceMatch int

	Matched     []string
	MoreMatched int
	Missing     []string
	MoreMissing int
}

// Project derives display metrics and returns the views ordered by key.
func Project(matches []backend.JobMatch, key SortKey, caps DisplayCaps) []View {
	sorted := Sort(matches, key)
	views := make([]View, 0, len(sorted))

	for _, m := range sorted {
		views = append(views, NewView(m, caps))
	}

	return views
}

func NewView(m backend.JobMatch, caps DisplayCaps) View {
	v := View{
		Match:           m,
		Score:           int(math.Round(sanitize(m.MatchScore))),
		Band:            ScoreBand(m.MatchScore),
		SkillMatch:      SkillMatch(m.MatchedSkills, m.MissingSkills),
		ExperienceMatch: ExperienceMatch(m.RequiredExperienceYears, m.ResumeExperienceYears),
	}
	v.Matched, v.MoreMatched = TruncateSkills(m.MatchedSkills, caps.Matched)
	v.Missing, v.MoreMissing = TruncateSkills(m.MissingSkills, caps.Missing)

	return v
}

// sanitize turns negative, NaN and infinite values into 0.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
