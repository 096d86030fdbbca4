package workflow

import "context"

// ContextProvider maps a domain name to static background text. Lookups are
// fail-open: unknown domains yield an empty context, never an error.
type ContextProvider interface {
	BaseContext(domain, userContext string) string
}

// Enricher folds supplementary web context into the base context. It must
// not fail past its boundary: on any internal error it returns the base
// context unchanged.
type Enricher interface {
	Enrich(ctx context.Context, domain, baseContext, userContext string) string
}

// Researcher produces a structured research summary for a domain.
type Researcher interface {
	Research(ctx context.Context, domain, enrichedContext string) (ResearchSummary, error)
}

// GenerateRequest is one batch request to the generation service.
type GenerateRequest struct {
	Domain   string
	Format   string
	Count    int
	Research map[string]any
	Context  string
}

// Generator produces one batch of records. A nil or empty result signals
// failure to the caller; the slice is never longer than req.Count intends.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Record, error)
}

// Evaluator judges record quality with an external model.
type Evaluator interface {
	Evaluate(ctx context.Context, records []Record, format string) (EvaluationReport, error)
}

// RecordStore persists validated records to a tabular file and returns its
// path. ValidateShape is advisory and never blocks persistence.
type RecordStore interface {
	Persist(ctx context.Context, records []Record, domain, format string) (string, error)
	ValidateShape(records []Record, format string) bool
}
