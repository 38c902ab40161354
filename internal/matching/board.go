package matching

import (
	"slices"
	"sync"

	"github.com/jobmatch/jobmatch/internal/backend"
)

// Ticket identifies one search request. Only the latest ticket may commit.
type Ticket struct {
	gen uint64
}

// Board holds the result list of the current view. Responses of superseded
// requests are dropped instead of overwriting newer results.
type Board struct {
	mu      sync.Mutex
	gen     uint64
	matches []backend.JobMatch
	total   int
	last    *backend.SearchParams
	sortKey SortKey
}

func NewBoard() *Board {
	return &Board{sortKey: SortByScore}
}

// Begin starts a request and supersedes every earlier one.
func (b *Board) Begin() Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	return Ticket{gen: b.gen}
}

// Current reports whether t is still the latest request.
func (b *Board) Current(t Ticket) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return t.gen == b.gen
}

// Commit stores the results of t if it is still current. params is recorded
// as the last search when not nil.
func (b *Board) Commit(t Ticket, params *backend.SearchParams, matches []backend.JobMatch, total int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.gen != b.gen {
		return false
	}

	b.matches = slices.Clone(matches)
	b.total = total
	if params != nil {
		b.last = params.Clone()
	}

	return true
}

// Clear drops results and the last search. In-flight requests are superseded.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	b.matches = nil
	b.total = 0
	b.last = nil
}

func (b *Board) SetSort(key SortKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sortKey = key
}

func (b *Board) SortKey() SortKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortKey
}

// SetLastSearch restores the last search, e.g. from local storage.
func (b *Board) SetLastSearch(params *backend.SearchParams) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = params.Clone()
}

func (b *Board) LastSearch() *backend.SearchParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last.Clone()
}

func (b *Board) Matches() []backend.JobMatch {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.matches)
}

// Total is the number of jobs the backend reported for the last committed search.
func (b *Board) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Views projects the committed matches with the board's sort key.
func (b *Board) Views(caps DisplayCaps) []View {
	b.mu.Lock()
	matches, key := b.matches, b.sortKey
	b.mu.Unlock()

	return Project(matches, key, caps)
}

// FindByJobID returns the committed match for jobID.
func (b *Board) FindByJobID(jobID string) (backend.JobMatch, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.matches {
		if m.JobID == jobID {
			return m, true
		}
	}
	return backend.JobMatch{}, false
}
