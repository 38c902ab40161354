package filtering

import (
	"context"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jobmatch/jobmatch/internal/backend"
)

func jm(id, company, workplace string, score float64) backend.JobMatch {
	return backend.JobMatch{
		JobID:      id,
		MatchScore: score,
		Job:        backend.Job{JobID: id, Company: company, WorkplaceType: workplace},
	}
}

func jobIDs(matches []backend.JobMatch) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.JobID)
	}
	return out
}

func TestRunDefaultPipeline(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	deps := Deps{Logger: zap.New(core)}

	input := []backend.JobMatch{
		jm("1", "Acme", "Remote", 90),
		jm("2", "Initech", "On-site", 85),
		jm("1", "Acme", "Remote", 10),
		jm("3", "Globex", "Hybrid", 30),
		jm("4", "Umbrella", "", 70),
		jm("5", "acme ", "remote", 75),
	}
	cfg := &Config{
		MinScore:         50,
		ExcludeCompanies: []string{"ACME"},
		WorkplaceTypes:   []string{"remote", "onsite"},
	}

	got, err := Run(context.Background(), cfg, deps, Default(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"2", "4"}; !reflect.DeepEqual(jobIDs(got), want) {
		t.Fatalf("expected %v, got %v", want, jobIDs(got))
	}
	if len(input) != 6 || input[2].MatchScore != 10 {
		t.Fatalf("input was modified: %v", jobIDs(input))
	}

	steps := logs.FilterMessage("filter step").All()
	if len(steps) != 4 {
		t.Fatalf("expected 4 step logs, got %d", len(steps))
	}
	first := steps[0].ContextMap()
	if first["name"] != "duplicates" || first["dropped"] != int64(1) {
		t.Fatalf("expected duplicates to run first, got %v", first)
	}
}

func TestDuplicatesKeepFirstOccurrence(t *testing.T) {
	input := []backend.JobMatch{jm("a", "X", "", 20), jm("b", "Y", "", 50), jm("a", "X", "", 99)}

	got, err := Run(context.Background(), nil, Deps{}, []Filter{NewDuplicates()}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].MatchScore != 20 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestRunSkipsDisabledFilters(t *testing.T) {
	steps := Default()
	DisableByName(steps, "min_score", "requested")

	input := []backend.JobMatch{jm("a", "X", "", 10)}
	got, err := Run(context.Background(), &Config{MinScore: 50}, Deps{}, steps, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected disabled filter to keep match, got %v", jobIDs(got))
	}

	for _, st := range Describe(steps) {
		if st.Name == "min_score" && (st.Enabled || st.Reason != "requested") {
			t.Fatalf("unexpected status: %+v", st)
		}
	}
}

func TestRunValidatesBeforeApplying(t *testing.T) {
	_, err := Run(context.Background(), &Config{MinScore: 150}, Deps{}, Default(), nil)
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, nil, Deps{}, Default(), []backend.JobMatch{jm("a", "X", "", 1)}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestDescribe(t *testing.T) {
	steps := Default()
	cfg := &Config{MinScore: 60, ExcludeCompanies: []string{" Acme "}, WorkplaceTypes: []string{"Remote", "ON_SITE"}}
	if _, err := Run(context.Background(), cfg, Deps{}, steps, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := Describe(steps)
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(statuses))
	}

	byName := map[string]Status{}
	for _, st := range statuses {
		byName[st.Name] = st
	}
	if byName["min_score"].Details["min_score"] != "60" {
		t.Fatalf("unexpected min score details: %v", byName["min_score"].Details)
	}
	if byName["companies"].Details["companies"] != "Acme" {
		t.Fatalf("unexpected companies details: %v", byName["companies"].Details)
	}
	if byName["workplace"].Details["workplace_types"] != "onsite,remote" {
		t.Fatalf("unexpected workplace details: %v", byName["workplace"].Details)
	}
}
