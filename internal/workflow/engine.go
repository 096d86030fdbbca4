package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/formats"
	"github.com/fabrica-labs/fabrica/internal/metrics"
)

// Validation errors returned by Run before any state is constructed.
var (
	ErrInvalidDomain = errors.New("unsupported domain")
	ErrInvalidFormat = errors.New("unsupported data format")
	ErrInvalidCount  = errors.New("num_records out of range")
)

// DomainChecker reports whether a domain is accepted for generation.
type DomainChecker interface {
	IsSupported(domain string) bool
}

// Engine drives one generation run through the research, generation, and
// evaluation phases to a terminal status. It holds no run-scoped state, so a
// single Engine serves concurrent runs; each run owns its GenerationState.
type Engine struct {
	research *ResearchStage
	generate *GenerateStage
	evaluate *EvaluateStage

	domains    DomainChecker
	maxRecords int
	tracker    *Tracker
	logger     *zap.Logger
}

// NewEngine wires the workflow engine. tracker may be nil when progress
// streaming is not needed.
func NewEngine(
	research *ResearchStage,
	generate *GenerateStage,
	evaluate *EvaluateStage,
	domains DomainChecker,
	maxRecords int,
	tracker *Tracker,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		research:   research,
		generate:   generate,
		evaluate:   evaluate,
		domains:    domains,
		maxRecords: maxRecords,
		tracker:    tracker,
		logger:     logger,
	}
}

// Run executes a complete generation workflow and returns the final state.
//
// Malformed input (unknown domain or format, out-of-range count) is rejected
// with an error before a state is constructed. Every other failure mode is
// absorbed into the returned state's terminal status and error message;
// callers never see a raw error from a stage.
func (e *Engine) Run(ctx context.Context, domain, format string, numRecords int, userContext string) (*GenerationState, error) {
	if err := e.validate(domain, format, numRecords); err != nil {
		return nil, err
	}

	s := NewState(uuid.New().String(), domain, format, numRecords, userContext)

	e.logger.Info("Starting workflow",
		zap.String("run_id", s.RunID),
		zap.String("domain", domain),
		zap.String("format", format),
		zap.Int("num_records", numRecords),
	)
	metrics.RunsStarted.WithLabelValues(domain, format).Inc()
	start := time.Now()

	e.drive(ctx, s)

	s.FinishedAt = time.Now()
	metrics.RunsCompleted.WithLabelValues(domain, format, string(s.Status)).Inc()
	metrics.RunDuration.WithLabelValues(domain, format).Observe(time.Since(start).Seconds())
	e.notify(s)

	e.logger.Info("Workflow finished",
		zap.String("run_id", s.RunID),
		zap.String("status", string(s.Status)),
		zap.Int("records", len(s.GeneratedData)),
		zap.Duration("duration", time.Since(start)),
	)
	return s, nil
}

// drive steps the state machine to a terminal phase. It is the single
// outermost safety net: a panic in a stage (a programming defect, not an
// expected collaborator failure) becomes status=failed rather than
// propagating to the caller.
func (e *Engine) drive(ctx context.Context, s *GenerationState) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Workflow execution panicked",
				zap.String("run_id", s.RunID),
				zap.Any("panic", r),
			)
			s.fail(StatusFailed, fmt.Sprintf("workflow execution failed: %v", r))
		}
	}()

	phase := PhaseResearch
	for phase != PhaseTerminate {
		switch phase {
		case PhaseResearch:
			e.research.Run(ctx, s)
		case PhaseGenerate:
			e.generate.Run(ctx, s)
		case PhaseEvaluate:
			e.evaluate.Run(ctx, s)
		}
		e.notify(s)
		phase = Next(phase, s)
	}
}

func (e *Engine) notify(s *GenerationState) {
	if e.tracker != nil {
		e.tracker.Update(TakeSnapshot(s))
	}
}

func (e *Engine) validate(domain, format string, numRecords int) error {
	if e.domains != nil && !e.domains.IsSupported(domain) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	if !formats.IsSupported(format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	if numRecords < 1 || numRecords > e.maxRecords {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidCount, numRecords, e.maxRecords)
	}
	return nil
}
