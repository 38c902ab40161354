package matching

import (
	"sync"
	"testing"

	"github.com/jobmatch/jobmatch/internal/backend"
)

func TestBoardDropsSupersededResults(t *testing.T) {
	b := NewBoard()

	first := b.Begin()
	second := b.Begin()

	fresh := []backend.JobMatch{{JobID: "new", MatchScore: 50}}
	if !b.Commit(second, &backend.SearchParams{Keywords: "go"}, fresh, 1) {
		t.Fatalf("expected latest request to commit")
	}

	stale := []backend.JobMatch{{JobID: "old"}}
	if b.Commit(first, &backend.SearchParams{Keywords: "java"}, stale, 9) {
		t.Fatalf("expected superseded request to be dropped")
	}

	if got := b.Matches(); len(got) != 1 || got[0].JobID != "new" {
		t.Fatalf("unexpected matches: %+v", got)
	}
	if b.Total() != 1 {
		t.Fatalf("unexpected total %d", b.Total())
	}
	if last := b.LastSearch(); last == nil || last.Keywords != "go" {
		t.Fatalf("unexpected last search: %+v", last)
	}
}

func TestBoardClear(t *testing.T) {
	b := NewBoard()
	b.SetLastSearch(&backend.SearchParams{Keywords: "go"})

	inflight := b.Begin()
	b.Clear()

	if b.Commit(inflight, nil, []backend.JobMatch{{JobID: "late"}}, 1) {
		t.Fatalf("expected request started before clear to be dropped")
	}
	if len(b.Matches()) != 0 || b.LastSearch() != nil {
		t.Fatalf("expected empty board")
	}
}

func TestBoardLastSearchIsIsolated(t *testing.T) {
	b := NewBoard()

	params := &backend.SearchParams{Keywords: "go", ExperienceLevel: []string{"2"}, Remote: []string{"2"}}
	if !b.Commit(b.Begin(), params, nil, 0) {
		t.Fatalf("expected commit")
	}
	params.ExperienceLevel[0] = "6"
	params.Remote = append(params.Remote[:0], "1")

	last := b.LastSearch()
	if last.ExperienceLevel[0] != "2" || last.Remote[0] != "2" {
		t.Fatalf("expected retained search to be unaffected by caller, got %+v", last)
	}

	last.ExperienceLevel[0] = "5"
	if again := b.LastSearch(); again.ExperienceLevel[0] != "2" {
		t.Fatalf("expected returned search to be a copy, got %+v", again)
	}

	restored := &backend.SearchParams{Keywords: "rust", JobType: []string{"F"}}
	b.SetLastSearch(restored)
	restored.JobType[0] = "V"
	if got := b.LastSearch(); got.JobType[0] != "F" {
		t.Fatalf("expected restored search to be copied, got %+v", got)
	}
}

func TestBoardViewsFollowSortKey(t *testing.T) {
	b := NewBoard()
	tk := b.Begin()
	b.Commit(tk, nil, []backend.JobMatch{
		match("acme", "Acme", 40, day(2024, 1, 1)),
		match("zeta", "Zeta", 90, day(2024, 6, 1)),
	}, 2)

	if v := b.Views(DefaultDisplayCaps()); v[0].Match.JobID != "zeta" {
		t.Fatalf("expected score order, got %s first", v[0].Match.JobID)
	}

	b.SetSort(SortByCompany)
	if v := b.Views(DefaultDisplayCaps()); v[0].Match.JobID != "acme" {
		t.Fatalf("expected company order, got %s first", v[0].Match.JobID)
	}

	if got := b.Matches(); got[0].JobID != "acme" || got[1].JobID != "zeta" {
		t.Fatalf("committed order changed: %v", ids(got))
	}

	if _, ok := b.FindByJobID("zeta"); !ok {
		t.Fatalf("expected to find zeta")
	}
	if _, ok := b.FindByJobID("missing"); ok {
		t.Fatalf("unexpected match")
	}
}

func TestBoardConcurrentCommits(t *testing.T) {
	b := NewBoard()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tickets []Ticket
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := b.Begin()
			mu.Lock()
			tickets = append(tickets, tk)
			mu.Unlock()
		}()
	}
	wg.Wait()

	committed := 0
	for _, tk := range tickets {
		if b.Commit(tk, nil, nil, 0) {
			committed++
		}
	}
	if committed != 1 {
		t.Fatalf("expected exactly one current ticket, got %d", committed)
	}
}
