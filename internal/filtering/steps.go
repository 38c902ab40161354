package filtering

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/logger"
)

// toggle carries the enabled state shared by all filters.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// keep returns the matches for which pred is true, in order.
func keep(matches []backend.JobMatch, pred func(backend.JobMatch) bool) ([]backend.JobMatch, []string) {
	kept := make([]backend.JobMatch, 0, len(matches))
	var dropped []string
	for _, m := range matches {
		if pred(m) {
			kept = append(kept, m)
			continue
		}
		dropped = append(dropped, m.JobID)
	}
	return kept, dropped
}

func step(initial int, left []backend.JobMatch) Step {
	return Step{Initial: initial, Dropped: initial - len(left), Left: len(left)}
}

type duplicatesFilter struct {
	toggle
}

// NewDuplicates creates a filter that keeps the first match of every job.
func NewDuplicates() Filter {
	return &duplicatesFilter{}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Validate(*Config) error { return nil }

func (f *duplicatesFilter) Apply(_ context.Context, deps Deps, matches []backend.JobMatch) ([]backend.JobMatch, Step, error) {
	seen := make(map[string]struct{}, len(matches))
	left, dropped := keep(matches, func(m backend.JobMatch) bool {
		if m.JobID == "" {
			return true
		}
		if _, ok := seen[m.JobID]; ok {
			return false
		}
		seen[m.JobID] = struct{}{}
		return true
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding duplicated matches",
			zap.Strings("excluded_jobs", dropped),
			zap.Int("matches_left", len(left)),
		)
	}

	return left, step(len(matches), left), nil
}

func (f *duplicatesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type minScoreFilter struct {
	toggle
	min float64
}

// NewMinScore creates a filter that removes matches scoring below the configured minimum.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Validate(cfg *Config) error {
	f.min = 0
	if cfg == nil {
		return nil
	}
	if cfg.MinScore < 0 || cfg.MinScore > 100 {
		return fmt.Errorf("minimum score must be between 0 and 100, got %v", cfg.MinScore)
	}
	f.min = cfg.MinScore
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, matches []backend.JobMatch) ([]backend.JobMatch, Step, error) {
	if f.min == 0 {
		return matches, step(len(matches), matches), nil
	}

	left, dropped := keep(matches, func(m backend.JobMatch) bool {
		return m.MatchScore >= f.min
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding matches below minimum score",
			zap.Float64("min_score", f.min),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("matches_left", len(left)),
		)
	}

	return left, step(len(matches), left), nil
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_score": strconv.FormatFloat(f.min, 'f', -1, 64)},
	}
}

type companiesFilter struct {
	toggle
	companies map[string]struct{}
	names     []string
}

// NewCompanies creates a filter that removes matches by companies configured in the config.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = map[string]struct{}{}
	f.names = nil
	if cfg == nil {
		return nil
	}
	for _, c := range cfg.ExcludeCompanies {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			continue
		}
		f.companies[key] = struct{}{}
		f.names = append(f.names, strings.TrimSpace(c))
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, matches []backend.JobMatch) ([]backend.JobMatch, Step, error) {
	if len(f.companies) == 0 {
		return matches, step(len(matches), matches), nil
	}

	left, _ := keep(matches, func(m backend.JobMatch) bool {
		_, excluded := f.companies[strings.ToLower(strings.TrimSpace(m.Job.Company))]
		if excluded {
			deps.Logger.Debug("excluding match by company", logger.MatchFields(m.JobID, m.Job.Company)...)
		}
		return !excluded
	})

	return left, step(len(matches), left), nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["companies"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type workplaceFilter struct {
	toggle
	allowed map[string]struct{}
}

// NewWorkplace creates a filter that keeps only matches with an allowed workplace type.
// Matches without a workplace type are kept.
func NewWorkplace() Filter {
	return &workplaceFilter{}
}

func (f *workplaceFilter) Name() string { return "workplace" }

func (f *workplaceFilter) Validate(cfg *Config) error {
	f.allowed = map[string]struct{}{}
	if cfg == nil {
		return nil
	}
	for _, w := range cfg.WorkplaceTypes {
		if key := normalizeWorkplace(w); key != "" {
			f.allowed[key] = struct{}{}
		}
	}
	return nil
}

func (f *workplaceFilter) Apply(_ context.Context, deps Deps, matches []backend.JobMatch) ([]backend.JobMatch, Step, error) {
	if len(f.allowed) == 0 {
		return matches, step(len(matches), matches), nil
	}

	left, dropped := keep(matches, func(m backend.JobMatch) bool {
		key := normalizeWorkplace(m.Job.WorkplaceType)
		if key == "" {
			return true
		}
		_, ok := f.allowed[key]
		return ok
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding matches by workplace type",
			zap.Strings("excluded_jobs", dropped),
			zap.Int("matches_left", len(left)),
		)
	}

	return left, step(len(matches), left), nil
}

func (f *workplaceFilter) Status() Status {
	types := make([]string, 0, len(f.allowed))
	for k := range f.allowed {
		types = append(types, k)
	}
	slices.Sort(types)
	details := map[string]string{}
	if len(types) > 0 {
		details["workplace_types"] = strings.Join(types, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// normalizeWorkplace maps "On-site", "onsite" and "ON_SITE" to the same key.
func normalizeWorkplace(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}
