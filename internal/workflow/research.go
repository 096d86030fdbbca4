package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ResearchStage builds the domain research summary that conditions every
// generation batch. It is stateless and safe for concurrent reuse.
type ResearchStage struct {
	contexts   ContextProvider
	enricher   Enricher
	researcher Researcher
	logger     *zap.Logger
}

// NewResearchStage wires the research stage with its collaborators.
func NewResearchStage(contexts ContextProvider, enricher Enricher, researcher Researcher, logger *zap.Logger) *ResearchStage {
	return &ResearchStage{
		contexts:   contexts,
		enricher:   enricher,
		researcher: researcher,
		logger:     logger,
	}
}

// Run researches the run's domain and records the summary on the state.
//
// Enrichment failures are absorbed by the enricher itself. A failing
// research collaborator degrades to the enriched context as the summary;
// only failures outside the collaborator call mark the stage failed.
func (r *ResearchStage) Run(ctx context.Context, s *GenerationState) {
	r.logger.Info("Starting domain research",
		zap.String("run_id", s.RunID),
		zap.String("domain", s.Domain),
	)

	baseContext := r.contexts.BaseContext(s.Domain, s.Context)
	enriched := r.enricher.Enrich(ctx, s.Domain, baseContext, s.Context)

	summary, err := r.researcher.Research(ctx, s.Domain, enriched)
	if err != nil {
		// Degraded summary: the enriched context stands in for the model's
		// structured research. The run proceeds with less guidance.
		r.logger.Warn("Research service failed, using enriched context as summary",
			zap.String("run_id", s.RunID),
			zap.Error(err),
		)
		summary = ResearchSummary{
			Overview:        enriched,
			KeyConcepts:     []string{},
			Terminology:     []string{},
			EnrichedContext: enriched,
		}
	}

	serialized, err := json.Marshal(summary)
	if err != nil {
		s.fail(StatusResearchFailed, fmt.Sprintf("Research failed: %v", err))
		return
	}

	s.DomainResearch = string(serialized)
	s.Status = StatusResearchCompleted

	r.logger.Info("Domain research completed",
		zap.String("run_id", s.RunID),
		zap.String("domain", s.Domain),
		zap.Int("key_concepts", len(summary.KeyConcepts)),
	)
}
