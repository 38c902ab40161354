package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/apierr"
	"github.com/jobmatch/jobmatch/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler, cred session.Credential) (*Client, *session.MemoryStore) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	store := session.NewMemoryStore(cred)
	c := New(store, zap.NewNop())
	c.APIURL = ts.URL + "/api"
	if err := c.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}

	return c, store
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchAndMatch(t *testing.T) {
	var gotQuery map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs/search_and_match", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get(session.RequestIDHeader) == "" {
			t.Errorf("expected request id header")
		}
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `{
			"message": "ok",
			"total_jobs": 2,
			"matches": [
				{"resume_id": "r1", "job_id": "j1", "match_score": 40, "matched_skills": ["go"], "missing_skills": ["go", "rust"],
				 "job": {"job_id": "j1", "company": "Acme", "listed_time": "2024-01-01"}},
				{"resume_id": "r1", "job_id": "j2", "match_score": "90",
				 "job": {"job_id": "j2", "company": "Zeta", "listed_time": "2024-06-01"}}
			]
		}`)
	})

	c, _ := newTestClient(t, mux, session.Credential{AccessToken: "a1", RefreshToken: "r1"})

	params := DefaultSearchParams()
	params.Keywords = "golang"
	params.UserID = "u1"

	result, err := c.SearchAndMatch(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantQuery := map[string][]string{
		"keywords":      {"golang"},
		"location_name": {"United States"},
		"experience":    {"2", "3"},
		"job_type":      {"F", "C"},
		"remote":        {"1", "2"},
		"limit":         {"5"},
		"user_id":       {"u1"},
	}
	if !reflect.DeepEqual(gotQuery, wantQuery) {
		t.Fatalf("unexpected query:\n got %v\nwant %v", gotQuery, wantQuery)
	}

	if result.TotalJobs != 2 || len(result.Matches) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	first := result.Matches[0]
	if !reflect.DeepEqual(first.MissingSkills, []string{"rust"}) {
		t.Fatalf("expected overlap removed from missing skills, got %v", first.MissingSkills)
	}
	if result.Matches[1].MatchScore != 90 {
		t.Fatalf("expected numeric string score, got %v", result.Matches[1].MatchScore)
	}
	if result.Matches[1].Job.ListedTime.Year() != 2024 || result.Matches[1].Job.ListedTime.Month() != time.June {
		t.Fatalf("unexpected listed time: %v", result.Matches[1].Job.ListedTime)
	}
}

func TestSearchAndMatchValidatesBeforeSending(t *testing.T) {
	var hits atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }), session.Credential{AccessToken: "a1"})

	cases := []struct {
		name   string
		mutate func(p *SearchParams)
		field  string
	}{
		{name: "keywords", mutate: func(p *SearchParams) { p.Keywords = " " }, field: "keywords"},
		{name: "location", mutate: func(p *SearchParams) { p.LocationName = "" }, field: "location_name"},
		{name: "limit", mutate: func(p *SearchParams) { p.Limit = 0 }, field: "limit"},
		{name: "user", mutate: func(p *SearchParams) { p.UserID = "" }, field: "user_id"},
		{name: "experience code", mutate: func(p *SearchParams) { p.ExperienceLevel = []string{"9"} }, field: "experience"},
		{name: "job type code", mutate: func(p *SearchParams) { p.JobType = []string{"X"} }, field: "job_type"},
		{name: "remote code", mutate: func(p *SearchParams) { p.Remote = []string{"4"} }, field: "remote"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultSearchParams()
			params.Keywords = "go"
			params.UserID = "u1"
			tc.mutate(params)

			_, err := c.SearchAndMatch(context.Background(), params)
			var ve *apierr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, ve.Field)
			}
		})
	}

	if hits.Load() != 0 {
		t.Fatalf("expected no requests, got %d", hits.Load())
	}
}

func TestLoginThenRefreshOnExpiredToken(t *testing.T) {
	var refreshes atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != contentTypeForm {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("username") != "ann@example.com" || r.PostForm.Get("password") != "secret" {
			http.Error(w, `{"detail":"Incorrect username or password"}`, http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"access_token": "a1", "refresh_token": "r1", "token_type": "bearer"})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "r1" {
			http.Error(w, "bad refresh token", http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"access_token": "a2", "refresh_token": "r2", "token_type": "bearer"})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"user_id": "u1", "email": "ann@example.com", "full_name": "Ann", "is_active": true, "role": "user"})
	})

	c, store := newTestClient(t, mux, session.Credential{})

	if _, err := c.Login(context.Background(), "ann@example.com", "wrong"); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad password, got %v", err)
	}

	tokens, err := c.Login(context.Background(), "ann@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.TokenType != "bearer" {
		t.Fatalf("unexpected token type %q", tokens.TokenType)
	}

	user, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.UserID != "u1" || user.FullName != "Ann" || !user.IsActive {
		t.Fatalf("unexpected user: %+v", user)
	}
	if refreshes.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", refreshes.Load())
	}
	if saved, _ := store.LoadCredential(context.Background()); saved.AccessToken != "a2" || saved.RefreshToken != "r2" {
		t.Fatalf("expected rotated tokens persisted, got %+v", saved)
	}
}

func TestExpiredRefreshTokenLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"Invalid refresh token"}`, http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c, store := newTestClient(t, mux, session.Credential{AccessToken: "a1", RefreshToken: "r1"})

	_, err := c.GetJob(context.Background(), "j1")
	if !errors.Is(err, apierr.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if c.Session().State() != session.LoggedOut {
		t.Fatalf("expected logged out, got %s", c.Session().State())
	}
	if saved, _ := store.LoadCredential(context.Background()); !saved.Empty() {
		t.Fatalf("expected stored tokens to be cleared")
	}
}

func TestGetJobNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"Job not found"}`, http.StatusNotFound)
	}), session.Credential{AccessToken: "a1"})

	_, err := c.GetJob(context.Background(), "missing")
	if !apierr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMatchHistoryFlattenedJobFields(t *testing.T) {
	var gotQuery map[string][]string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `{"message": "ok", "matches": [
			{"job_id": "j7", "match_score": 75, "matched_skills": ["go"], "missing_skills": [],
			 "title": "SRE", "company": "Globex", "location": "Remote", "workplace_type": "Remote",
			 "apply_url": "https://globex.example/apply", "listed_time": "2024-03-05T00:00:00"}
		]}`)
	}), session.Credential{AccessToken: "a1"})

	history, err := c.MatchHistory(context.Background(), "u1", 0, DefaultHistoryMinScore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantQuery := map[string][]string{"user_id": {"u1"}, "limit": {"50"}, "min_score": {"50"}}
	if !reflect.DeepEqual(gotQuery, wantQuery) {
		t.Fatalf("unexpected query: %v", gotQuery)
	}

	if len(history.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(history.Matches))
	}
	job := history.Matches[0].Job
	if job.JobID != "j7" || job.Company != "Globex" || job.Title != "SRE" || job.ApplyURL == "" {
		t.Fatalf("expected flattened fields folded into job, got %+v", job)
	}
	if job.ListedTime.IsZero() {
		t.Fatalf("expected listed time")
	}
}

func TestUploadResumeAndWait(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 resume"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	var polls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/resumes/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "u1" {
			t.Errorf("expected user id query")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "cv.pdf" || string(data) != "%PDF-1.4 resume" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		writeJSON(w, map[string]string{"status": "processing", "message": "started", "resume_id": "res-1"})
	})
	mux.HandleFunc("/api/resumes/res-1/status", func(w http.ResponseWriter, _ *http.Request) {
		status := "processing"
		if polls.Add(1) >= 2 {
			status = "completed"
		}
		writeJSON(w, map[string]string{"status": status})
	})

	c, _ := newTestClient(t, mux, session.Credential{AccessToken: "a1"})

	result, err := c.UploadResume(context.Background(), "u1", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ResumeID != "res-1" || result.Status != "processing" {
		t.Fatalf("unexpected result: %+v", result)
	}

	status, err := c.WaitResumeProcessed(context.Background(), result.ResumeID, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "completed" || polls.Load() != 2 {
		t.Fatalf("unexpected status %q after %d polls", status, polls.Load())
	}
}

func TestUploadResumeEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.txt")
	_ = os.WriteFile(path, []byte("resume"), 0o600)

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"data": map[string]any{"resumeId": "res-2", "features": map[string]any{"skills": []string{"go"}}}})
	}), session.Credential{AccessToken: "a1"})

	result, err := c.UploadResume(context.Background(), "u1", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ResumeID != "res-2" || result.Features["skills"] == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestUploadResumeRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	_ = os.WriteFile(path, nil, 0o600)

	c, _ := newTestClient(t, http.NotFoundHandler(), session.Credential{AccessToken: "a1"})

	var ve *apierr.ValidationError
	if _, err := c.UploadResume(context.Background(), "u1", path); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUserResumeTopLevelSkills(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"user_id": "u1", "resume_id": "res-1", "skills": ["go", "sql", "go"],
			"raw_text": "...", "created_at": "2024-02-02T12:00:00"}`)
	}), session.Credential{AccessToken: "a1"})

	resume, err := c.UserResume(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(resume.Features.Skills, []string{"go", "sql"}) {
		t.Fatalf("unexpected skills: %v", resume.Features.Skills)
	}
	if resume.ProcessedDate.IsZero() {
		t.Fatalf("expected processed date from created_at")
	}
}

func TestRegister(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("register must not carry a bearer")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["full_name"] != "Ann Lee" {
			t.Errorf("unexpected payload %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]string{"message": "User registered successfully", "user_id": "u9"})
	}), session.Credential{AccessToken: "a1"})

	reg, err := c.Register(context.Background(), "ann@example.com", "Ann Lee", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.UserID != "u9" {
		t.Fatalf("unexpected registration: %+v", reg)
	}
}
