package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nao1215/shotdiff/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, page *model.PageCapture) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, page *model.PageCapture) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, page)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func newTestPage() *model.PageCapture {
	return model.NewPageCapture("https://example.com/", "/tmp/example.com.png")
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to default to false")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))

		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(nil))
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "navigate"})
	p.AddSteps(&mockStep{name: "wait_ready"}, &mockStep{name: "capture"})

	if p.StepCount() != 3 {
		t.Errorf("expected 3 steps, got %d", p.StepCount())
	}
	if got := fmt.Sprint(p.StepNames()); got != "[navigate wait_ready capture]" {
		t.Errorf("unexpected step names %s", got)
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		executionOrder := make([]string, 0)
		record := func(name string) *mockStep {
			return &mockStep{
				name: name,
				doFunc: func(_ context.Context, _ *model.PageCapture) error {
					executionOrder = append(executionOrder, name)
					return nil
				},
			}
		}

		p := New()
		p.AddSteps(record("step-1"), record("step-2"))

		page := newTestPage()
		if err := p.Execute(context.Background(), page); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fmt.Sprint(executionOrder) != "[step-1 step-2]" {
			t.Errorf("wrong execution order: %v", executionOrder)
		}
		if fmt.Sprint(page.Phases) != "[step-1 step-2]" {
			t.Errorf("expected phases to be recorded, got %v", page.Phases)
		}
		if page.Finished.IsZero() {
			t.Error("expected finish time")
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		second := &mockStep{name: "should-not-run"}

		p := New()
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *model.PageCapture) error {
				return expectedErr
			},
		})
		p.AddStep(second)

		page := newTestPage()
		err := p.Execute(context.Background(), page)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if second.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if !errors.Is(page.Err, expectedErr) {
			t.Errorf("expected error recorded on page, got %v", page.Err)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "should-run"}

		p := New(WithContinueOnError(true))
		p.AddStep(&mockStep{
			name: "settle",
			doFunc: func(_ context.Context, _ *model.PageCapture) error {
				return errors.New("scroll failed")
			},
		})
		p.AddStep(second)

		page := newTestPage()
		if err := p.Execute(context.Background(), page); err != nil {
			t.Errorf("expected nil error with continueOnError, got %v", err)
		}
		if second.callCount != 1 {
			t.Error("second step should have been called")
		}
		if len(page.Warnings) != 1 || page.Warnings[0] != "settle: scroll failed" {
			t.Errorf("expected warning, got %v", page.Warnings)
		}
		if page.Err != nil {
			t.Errorf("warnings must not set page error, got %v", page.Err)
		}
	})

	t.Run("aborting errors stop even when continuing", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "capture"}

		p := New(WithContinueOnError(true))
		p.AddStep(&mockStep{
			name: "navigate",
			doFunc: func(_ context.Context, _ *model.PageCapture) error {
				return fmt.Errorf("%w: navigate: net::ERR_CONNECTION_REFUSED", ErrAbortPage)
			},
		})
		p.AddStep(second)

		page := newTestPage()
		err := p.Execute(context.Background(), page)
		if !errors.Is(err, ErrAbortPage) {
			t.Errorf("expected ErrAbortPage, got %v", err)
		}
		if second.callCount != 0 {
			t.Error("capture must not run after an aborted navigation")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		p := New()
		p.AddStep(step)

		page := newTestPage()
		err := p.Execute(ctx, page)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
		if !errors.Is(page.Err, context.Canceled) {
			t.Errorf("expected cancellation on page, got %v", page.Err)
		}
	})
}
