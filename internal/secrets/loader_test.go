package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	pwFile := filepath.Join(dir, "password")
	if err := os.WriteFile(pwFile, []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("JOBMATCH_TEST_SECRET", " from-env ")

	cases := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{name: "file wins", src: Source{File: pwFile, Env: "JOBMATCH_TEST_SECRET", Value: "inline"}, want: "s3cret"},
		{name: "env before value", src: Source{Env: "JOBMATCH_TEST_SECRET", Value: "inline"}, want: "from-env"},
		{name: "unset env falls back", src: Source{Env: "JOBMATCH_TEST_UNSET", Value: "inline"}, want: "inline"},
		{name: "empty file", src: Source{Name: "password", File: emptyFile}, wantErr: "password file"},
		{name: "missing file", src: Source{Name: "api key", File: filepath.Join(dir, "nope")}, wantErr: "reading api key"},
		{name: "nothing", src: Source{}, wantErr: "secret is not configured"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Load(tc.src)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestConfigured(t *testing.T) {
	if (Source{Name: "x"}).Configured() {
		t.Fatalf("expected name alone not to count")
	}
	if !(Source{Env: "X"}).Configured() {
		t.Fatalf("expected env to count")
	}
}
