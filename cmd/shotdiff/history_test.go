package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/shotdiff/internal/database"
	"github.com/nao1215/shotdiff/internal/model"
)

// seedHistory stores two runs of one page: an older passing run and a
// newer failing one.
func seedHistory(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	runs := []struct {
		id   string
		at   time.Time
		item model.Item
	}{
		{
			id:   "aaaa1111-0000-0000-0000-000000000000",
			at:   base,
			item: model.Item{URL: "https://example.com/", Status: model.StatusOK, Metrics: &model.Metrics{SSIM: 0.9987, MSE: 0.5}},
		},
		{
			id:   "bbbb2222-0000-0000-0000-000000000000",
			at:   base.Add(time.Hour),
			item: model.Item{URL: "https://example.com/", Status: model.StatusFail, Metrics: &model.Metrics{SSIM: 0.8123, MSE: 42}},
		},
	}
	for _, r := range runs {
		rep := model.NewRunReport(r.id, r.at)
		rep.SSIMThreshold = 0.92
		rep.Execution = model.NewExecution(0, "", "")
		rep.AddItem(r.item)
		if err := db.SaveRun(context.Background(), rep); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runHistory(t *testing.T, dbDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"history", "--db-dir", dbDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestHistoryList(t *testing.T) {
	t.Parallel()

	t.Run("lists runs", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, seedHistory(t), "list")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"aaaa1111", "bbbb2222", "passed", "failed"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if strings.Index(out, "bbbb2222") > strings.Index(out, "aaaa1111") {
			t.Error("expected most recent run first")
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, seedHistory(t), "list", "-n", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(out, "aaaa1111") {
			t.Errorf("expected only the latest run:\n%s", out)
		}
	})

	t.Run("empty database", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, t.TempDir(), "list")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No runs recorded yet") {
			t.Errorf("unexpected output %q", out)
		}
	})
}

func TestHistoryShow(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	t.Run("json by prefix", func(t *testing.T) {
		out, err := runHistory(t, dir, "show", "bbbb", "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var rep model.RunReport
		if err := json.Unmarshal([]byte(out), &rep); err != nil {
			t.Fatalf("expected JSON output: %v\n%s", err, out)
		}
		if rep.RunID != "bbbb2222-0000-0000-0000-000000000000" || rep.Totals.Fail != 1 {
			t.Errorf("unexpected report %+v", rep)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		out, err := runHistory(t, dir, "show", "aaaa", "--markdown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# Visual Regression Report") {
			t.Errorf("expected markdown report:\n%s", out)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		if _, err := runHistory(t, dir, "show", "zzzz"); !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		if _, err := runHistory(t, dir, "show", "aaaa", "--json", "--markdown"); err == nil {
			t.Error("expected error for two formats")
		}
	})
}

func TestHistoryURL(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	out, err := runHistory(t, dir, "url", "example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"https://example.com/", "0.9987", "0.8123", "Fail"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	out, err = runHistory(t, dir, "url", "https://other.example/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No history for") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestHistoryPrune(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	out, err := runHistory(t, dir, "prune", "--keep", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Removed 1 run(s)") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = runHistory(t, dir, "list")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "aaaa1111") || !strings.Contains(out, "bbbb2222") {
		t.Errorf("expected only the latest run to remain:\n%s", out)
	}

	if _, err := runHistory(t, dir, "prune", "--keep", "-1"); err == nil {
		t.Error("expected error for negative keep")
	}
}

func TestShortID(t *testing.T) {
	t.Parallel()

	if got := shortID("0123456789"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID = %q", got)
	}
}
