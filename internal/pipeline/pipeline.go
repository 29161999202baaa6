package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/shotdiff/internal/model"
)

// ErrAbortPage marks a step failure after which the remaining steps for the
// page are pointless, e.g. a navigation that never started. Steps wrap it
// with fmt.Errorf("...: %w", ErrAbortPage).
var ErrAbortPage = errors.New("page aborted")

// Step is one named phase of a page capture.
// Steps are executed in sequence on the same PageCapture record.
type Step interface {
	// Do executes the phase. A returned error is recorded on the page; it
	// stops the pipeline only when it wraps ErrAbortPage or when the
	// pipeline does not continue on error.
	Do(ctx context.Context, page *model.PageCapture) error

	// Name returns the phase name for logging.
	Name() string
}

// Pipeline runs an ordered list of steps against one page.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError keeps later steps running after a non-aborting failure.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to keep executing steps after
// a step fails, unless the failure wraps ErrAbortPage.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in order against page.
//
// Cancellation is checked between steps; each step bounds its own waits.
// It returns the error that stopped the page, or nil when every step ran
// (failures of non-aborting steps are kept in page.Warnings).
func (p *Pipeline) Execute(ctx context.Context, page *model.PageCapture) error {
	defer func() {
		page.Finished = time.Now()
	}()

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", page.URL,
				"reason", ctx.Err(),
			)
			page.Err = ctx.Err()
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", page.URL,
		)

		page.Phases = append(page.Phases, step.Name())

		if err := step.Do(ctx, page); err != nil {
			if errors.Is(err, ErrAbortPage) || !p.continueOnError {
				p.logger.Error("step failed",
					"step", step.Name(),
					"url", page.URL,
					"error", err,
				)
				page.Err = err
				return err
			}

			p.logger.Warn("step failed, continuing",
				"step", step.Name(),
				"url", page.URL,
				"error", err,
			)
			page.AddWarning(step.Name() + ": " + err.Error())
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"url", page.URL,
		)
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
