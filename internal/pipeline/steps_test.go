package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/shotdiff/internal/model"
)

func TestNavigateStep(t *testing.T) {
	t.Parallel()

	t.Run("navigates to the page URL", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{}
		step := NewNavigateStep(session, time.Second)
		if step.Name() != "navigate" {
			t.Errorf("unexpected name %q", step.Name())
		}
		if err := step.Do(context.Background(), newTestPage()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fmt.Sprint(session.calls) != "[navigate https://example.com/]" {
			t.Errorf("unexpected calls %v", session.calls)
		}
	})

	t.Run("failure aborts the page", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{navigateErr: map[string]error{
			"https://example.com/": errors.New("net::ERR_NAME_NOT_RESOLVED"),
		}}
		err := NewNavigateStep(session, time.Second).Do(context.Background(), newTestPage())
		if !errors.Is(err, ErrAbortPage) {
			t.Errorf("expected ErrAbortPage, got %v", err)
		}
	})

	t.Run("browser receives the encoded address", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{}
		page := model.NewPageCapture("https://example.com/a b", "/tmp/example.com_a_b.png")
		if err := NewNavigateStep(session, time.Second).Do(context.Background(), page); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fmt.Sprint(session.calls) != "[navigate https://example.com/a%20b]" {
			t.Errorf("unexpected calls %v", session.calls)
		}
		if page.URL != "https://example.com/a b" {
			t.Errorf("page URL must stay as listed, got %q", page.URL)
		}
	})

	t.Run("invalid entry aborts without navigating", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{}
		page := model.NewPageCapture("https://bad host.example/page", "/tmp/bad.png")
		err := NewNavigateStep(session, time.Second).Do(context.Background(), page)
		if !errors.Is(err, ErrAbortPage) {
			t.Errorf("expected ErrAbortPage, got %v", err)
		}
		if len(session.calls) != 0 {
			t.Errorf("browser must not be called, got %v", session.calls)
		}
	})

	t.Run("non-positive timeout uses default", func(t *testing.T) {
		t.Parallel()

		if step := NewNavigateStep(&fakeSession{}, 0); step.timeout != DefaultPageTimeout {
			t.Errorf("expected default timeout, got %v", step.timeout)
		}
	})
}

func TestWaitReadyStep(t *testing.T) {
	t.Parallel()

	t.Run("polls until complete", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{states: []string{"loading", "interactive", "complete"}}
		page := newTestPage()
		if err := NewWaitReadyStep(session, time.Second, time.Millisecond).Do(context.Background(), page); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !page.Ready {
			t.Error("expected page to be ready")
		}
		if len(session.calls) != 3 {
			t.Errorf("expected 3 polls, got %d", len(session.calls))
		}
	})

	t.Run("timeout is not an abort", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{states: []string{"loading"}}
		page := newTestPage()
		err := NewWaitReadyStep(session, 30*time.Millisecond, time.Millisecond).Do(context.Background(), page)
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if errors.Is(err, ErrAbortPage) {
			t.Error("a slow page must still be captured")
		}
		if page.Ready {
			t.Error("page must not be marked ready")
		}
	})

	t.Run("reports the last evaluation error", func(t *testing.T) {
		t.Parallel()

		evalErr := errors.New("execution context was destroyed")
		session := &fakeSession{stateErr: evalErr}
		err := NewWaitReadyStep(session, 20*time.Millisecond, time.Millisecond).Do(context.Background(), newTestPage())
		if !errors.Is(err, evalErr) {
			t.Errorf("expected wrapped evaluation error, got %v", err)
		}
	})

	t.Run("parent cancellation wins", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		session := &fakeSession{states: []string{"loading"}}
		err := NewWaitReadyStep(session, time.Second, time.Millisecond).Do(ctx, newTestPage())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestSettleStep(t *testing.T) {
	t.Parallel()

	t.Run("scrolls until the offset stops advancing", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{maxOffset: 2000}
		page := newTestPage()
		step := NewSettleStep(session, 0, withSleep(noSleep))
		if err := step.Do(context.Background(), page); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := fmt.Sprint(session.scrolls); got != "[800 1600 2000 2000 2000]" {
			t.Errorf("unexpected scrolls %s", got)
		}
		if page.ScrollSteps != 4 || page.ScrollOffset != 2000 {
			t.Errorf("unexpected scroll state steps=%d offset=%d", page.ScrollSteps, page.ScrollOffset)
		}
	})

	t.Run("jumps to the stable document height", func(t *testing.T) {
		t.Parallel()

		// The document grows after the first scroll reaches the bottom.
		session := &fakeSession{maxOffset: 500, heights: []int64{500, 500, 1200}}
		step := NewSettleStep(session, 0, withSleep(noSleep))
		if err := step.Do(context.Background(), newTestPage()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if last := session.scrolls[len(session.scrolls)-1]; last != 1200 {
			t.Errorf("expected final jump to 1200, got %d", last)
		}
	})

	t.Run("bounded by max steps", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{maxOffset: math.MaxInt32}
		page := newTestPage()
		step := NewSettleStep(session, 0, withSleep(noSleep), WithMaxScrollSteps(3), WithScrollStep(100))
		if err := step.Do(context.Background(), page); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := fmt.Sprint(session.scrolls); got != "[100 200 300]" {
			t.Errorf("unexpected scrolls %s", got)
		}
		if page.ScrollSteps != 3 {
			t.Errorf("expected 3 steps, got %d", page.ScrollSteps)
		}
	})

	t.Run("waits before scrolling and pauses after each step", func(t *testing.T) {
		t.Parallel()

		var sleeps []time.Duration
		record := func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}
		session := &fakeSession{maxOffset: 0}
		step := NewSettleStep(session, 2*time.Second, withSleep(record), WithScrollPause(150*time.Millisecond))
		if err := step.Do(context.Background(), newTestPage()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sleeps) < 2 || sleeps[0] != 2*time.Second || sleeps[1] != 150*time.Millisecond {
			t.Errorf("unexpected sleeps %v", sleeps)
		}
	})

	t.Run("cancelled wait stops the step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		session := &fakeSession{maxOffset: 2000}
		err := NewSettleStep(session, time.Hour).Do(ctx, newTestPage())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(session.scrolls) != 0 {
			t.Error("must not scroll after cancellation")
		}
	})
}

func TestCaptureStep(t *testing.T) {
	t.Parallel()

	newPage := func(t *testing.T) *model.PageCapture {
		t.Helper()
		return model.NewPageCapture("https://example.com/", filepath.Join(t.TempDir(), "example.com.png"))
	}

	t.Run("captures the full content size", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{width: 1280.2, height: 5000.5}
		page := newPage(t)
		if err := NewCaptureStep(session, time.Second, nil).Do(context.Background(), page); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.overridden != [2]int64{1281, 5001} {
			t.Errorf("expected ceil of content size, got %v", session.overridden)
		}
		if !page.Saved || page.Bytes == 0 {
			t.Errorf("expected saved page, got %+v", page)
		}
		if _, err := os.Stat(page.OutputPath); err != nil {
			t.Errorf("expected PNG on disk: %v", err)
		}
		if got := fmt.Sprint(session.calls); got != "[override screenshot reset]" {
			t.Errorf("unexpected call order %s", got)
		}
	})

	t.Run("clamps oversized pages", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{width: 25000, height: 900000}
		page := newPage(t)
		if err := NewCaptureStep(session, time.Second, nil).Do(context.Background(), page); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.overridden != [2]int64{MaxCaptureWidth, MaxCaptureHeight} {
			t.Errorf("expected clamped size, got %v", session.overridden)
		}
	})

	t.Run("invalid PNG is not written", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{png: []byte("not a png")}
		page := newPage(t)
		if err := NewCaptureStep(session, time.Second, nil).Do(context.Background(), page); err == nil {
			t.Fatal("expected error for invalid PNG")
		}
		if page.Saved {
			t.Error("page must not be marked saved")
		}
		if _, err := os.Stat(page.OutputPath); err == nil {
			t.Error("invalid data must not be written")
		}
		if session.resets != 1 {
			t.Error("device metrics must be reset after a failed capture")
		}
	})

	t.Run("override failure skips the screenshot", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{overrideErr: errors.New("target closed")}
		if err := NewCaptureStep(session, time.Second, nil).Do(context.Background(), newPage(t)); err == nil {
			t.Fatal("expected error")
		}
		for _, c := range session.calls {
			if c == "screenshot" {
				t.Error("screenshot must not be taken")
			}
		}
	})

	t.Run("layout metrics failure", func(t *testing.T) {
		t.Parallel()

		session := &fakeSession{sizeErr: errors.New("no layout")}
		if err := NewCaptureStep(session, time.Second, nil).Do(context.Background(), newPage(t)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestClampDimension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		v     float64
		def   int64
		limit int64
		want  int64
	}{
		{name: "rounds up", v: 100.1, def: 1920, limit: 10000, want: 101},
		{name: "exact", v: 1080, def: 1920, limit: 10000, want: 1080},
		{name: "over limit", v: 12000, def: 1920, limit: 10000, want: 10000},
		{name: "zero uses default", v: 0, def: 1920, limit: 10000, want: 1920},
		{name: "negative uses default", v: -5, def: 1080, limit: 200000, want: 1080},
		{name: "NaN uses default", v: math.NaN(), def: 1080, limit: 200000, want: 1080},
		{name: "tiny is at least one", v: 0.2, def: 1920, limit: 10000, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := clampDimension(tt.v, tt.def, tt.limit); got != tt.want {
				t.Errorf("clampDimension(%v) = %d, want %d", tt.v, got, tt.want)
			}
		})
	}
}
