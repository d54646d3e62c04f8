package export

import (
	"context"
	"log/slog"
)

// Step is one phase of an export. Steps execute in sequence, each receiving
// the run state accumulated by the steps before it.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and the performed-step list
// 3. It's more extensible for future features (e.g., per-step timing)
type Step interface {
	// Do executes the step. A returned error aborts the export: steps
	// feed each other, so continuing past a failed step would only
	// compound the failure. Recoverable problems are recorded on the
	// run's report and return nil.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes export steps in order.
//
// Design decision: Unlike a scan, an export has no independent phases. The
// tree cannot be planned before pages are fetched and nothing can be
// written before the tree is planned, so the pipeline always stops at the
// first error. Partial-failure tolerance lives inside the steps that can
// afford it, such as attachment downloads.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddSteps after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddSteps appends steps to the pipeline in execution order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence. It returns the first error
// encountered; the caller stamps it onto the report when finishing the run.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps handle their own cancellation internally. This
// allows graceful cleanup between steps while still respecting
// cancellation.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("export cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"space", run.Report.SpaceKey,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"space", run.Report.SpaceKey,
				"error", err,
			)
			return err
		}

		p.logger.Debug("step completed", "step", step.Name())
		run.Report.AddPerformedStep(step.Name())
	}

	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
