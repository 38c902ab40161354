package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/session"
)

func openTemp(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, path
}

func TestCredentialRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	cred, err := s.LoadCredential(ctx)
	if err != nil || !cred.Empty() {
		t.Fatalf("expected empty credential, got %+v err=%v", cred, err)
	}

	want := session.Credential{AccessToken: "a1", RefreshToken: "r1"}
	if err := s.SaveCredential(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveUserID(ctx, "u1"); err != nil {
		t.Fatalf("save user: %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadCredential(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if id, err := reopened.UserID(ctx); err != nil || id != "u1" {
		t.Fatalf("expected user u1, got %q err=%v", id, err)
	}

	if err := reopened.ClearCredential(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = reopened.LoadCredential(ctx)
	if !got.Empty() {
		t.Fatalf("expected cleared credential, got %+v", got)
	}
	if _, err := reopened.UserID(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected user id to be cleared, got %v", err)
	}
}

func TestSaveCredentialDropsEmptyToken(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	if err := s.SaveCredential(ctx, session.Credential{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveCredential(ctx, session.Credential{AccessToken: "a2"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := s.LoadCredential(ctx)
	if got.AccessToken != "a2" || got.RefreshToken != "" {
		t.Fatalf("unexpected credential %+v", got)
	}
}

func TestLastSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	if p, err := s.LoadLastSearch(ctx); err != nil || p != nil {
		t.Fatalf("expected no last search, got %+v err=%v", p, err)
	}

	params := backend.DefaultSearchParams()
	params.Keywords = "golang"
	if err := s.SaveLastSearch(ctx, *params); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadLastSearch(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(*got, *params) {
		t.Fatalf("expected %+v, got %+v", *params, *got)
	}

	if err := s.ClearLastSearch(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if p, _ := s.LoadLastSearch(ctx); p != nil {
		t.Fatalf("expected last search to be cleared")
	}
}

func TestJobCache(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	if _, _, err := s.CachedJob(ctx, "j1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	job := backend.Job{
		JobID:      "j1",
		Title:      "Backend Engineer",
		Company:    "Acme",
		ListedTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Features:   backend.JobFeatures{RequiredExperienceYears: 3, Skills: []string{"go"}},
	}
	before := time.Now().Add(-time.Second)
	if err := s.CacheJob(ctx, job); err != nil {
		t.Fatalf("cache: %v", err)
	}

	job.Title = "Senior Backend Engineer"
	if err := s.CacheJob(ctx, job); err != nil {
		t.Fatalf("cache update: %v", err)
	}

	got, fetched, err := s.CachedJob(ctx, "j1")
	if err != nil {
		t.Fatalf("cached: %v", err)
	}
	if got.Title != "Senior Backend Engineer" || !got.ListedTime.Equal(job.ListedTime) || got.Features.Skills[0] != "go" {
		t.Fatalf("unexpected job %+v", got)
	}
	if fetched.Before(before) {
		t.Fatalf("unexpected fetch time %v", fetched)
	}

	if err := s.CacheJob(ctx, backend.Job{}); err == nil {
		t.Fatalf("expected error for job without id")
	}
}

type stallingRefresher struct{}

func (stallingRefresher) RefreshToken(ctx context.Context, _ string) (session.Credential, error) {
	<-ctx.Done()
	return session.Credential{}, ctx.Err()
}

func TestRefreshTimeoutClearsPersistedCredential(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	if err := s.SaveCredential(ctx, session.Credential{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveUserID(ctx, "u1"); err != nil {
		t.Fatalf("save user: %v", err)
	}

	sess := session.New(s, stallingRefresher{}, nil)
	sess.RefreshTimeout = 50 * time.Millisecond
	if err := sess.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if _, err := sess.Refresh(ctx, "a1"); err == nil {
		t.Fatalf("expected refresh to fail")
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	cred, err := reopened.LoadCredential(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cred.Empty() {
		t.Fatalf("expected no persisted credential, got %+v", cred)
	}
	if _, err := reopened.UserID(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected user id to be cleared, got %v", err)
	}

	restored := session.New(reopened, nil, nil)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.State() != session.LoggedOut {
		t.Fatalf("expected logged_out, got %s", restored.State())
	}
}

func TestLoginDropsPreviousUserID(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	sess := session.New(s, nil, nil)
	if err := sess.Login(ctx, session.Credential{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.SaveUserID(ctx, "u1"); err != nil {
		t.Fatalf("save user: %v", err)
	}

	if err := sess.Login(ctx, session.Credential{AccessToken: "b1", RefreshToken: "s1"}); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if _, err := s.UserID(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected previous user id to be dropped, got %v", err)
	}
	cred, err := s.LoadCredential(ctx)
	if err != nil || cred.AccessToken != "b1" || cred.RefreshToken != "s1" {
		t.Fatalf("expected new pair, got %+v err=%v", cred, err)
	}
}
