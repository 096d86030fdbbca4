package workflow

// Phase identifies one step of the pipeline. The engine drives phases; the
// Status on GenerationState records stage outcomes. Keeping the two apart
// makes the transition rules testable without any stage internals.
type Phase string

const (
	PhaseResearch  Phase = "research"
	PhaseGenerate  Phase = "generate"
	PhaseEvaluate  Phase = "evaluate"
	PhaseTerminate Phase = "terminate"
)

// Next returns the phase that follows phase for the given state.
//
// The pipeline shape is fixed: research runs once and feeds generation;
// every generation call is followed by an evaluation call; the continuation
// decision is taken only after evaluation. With each generation call either
// appending at least one record or ending the run, the loop takes at most
// total_batches+1 evaluation decisions.
func Next(phase Phase, s *GenerationState) Phase {
	switch phase {
	case PhaseResearch:
		if s.Status == StatusResearchFailed {
			return PhaseTerminate
		}
		return PhaseGenerate
	case PhaseGenerate:
		return PhaseEvaluate
	case PhaseEvaluate:
		return decide(s)
	default:
		return PhaseTerminate
	}
}

// decide is the continuation decision point evaluated after every
// evaluation-stage invocation.
func decide(s *GenerationState) Phase {
	switch {
	case s.Status.Failed():
		return PhaseTerminate
	case s.Status == StatusCompleted:
		return PhaseTerminate
	case len(s.GeneratedData) < s.NumRecords && s.Status != StatusGenerationCompleted:
		return PhaseGenerate
	default:
		// Quota met but not yet finalized. Full evaluation runs inside the
		// evaluation stage itself, so by the time we get here the run is
		// either completed or failed; this branch only fires if a stage
		// returned an unexpected status, and terminating is the safe answer.
		return PhaseTerminate
	}
}
