package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/metrics"
)

// placeholderTokens are string values that mark a record as filler output.
// Matched case-insensitively against the trimmed field value.
var placeholderTokens = map[string]struct{}{
	"placeholder": {},
	"example":     {},
	"sample":      {},
	"test":        {},
	"...":         {},
}

const basicValidationIssue = "Basic validation only - LLM evaluation failed"

// EvaluateStage deduplicates, filters, and validates accumulated records,
// then persists the survivors. The orchestrator invokes it after every
// generation batch; while the quota is unmet it is a cheap pass-through so
// the model-based evaluation cost is paid once per run, not once per batch.
type EvaluateStage struct {
	evaluator Evaluator
	store     RecordStore
	logger    *zap.Logger
}

// NewEvaluateStage wires the evaluation stage.
func NewEvaluateStage(evaluator Evaluator, store RecordStore, logger *zap.Logger) *EvaluateStage {
	return &EvaluateStage{
		evaluator: evaluator,
		store:     store,
		logger:    logger,
	}
}

// Run applies the evaluation policy for the current loop iteration.
func (e *EvaluateStage) Run(ctx context.Context, s *GenerationState) {
	if s.Status.Failed() {
		// A failed generation batch terminates the run; there is nothing to
		// evaluate and the failure status must survive to the decision point.
		return
	}

	if len(s.GeneratedData) < s.NumRecords && s.Status != StatusGenerationCompleted {
		// Pass-through mode: quota unmet, keep generating.
		s.Status = StatusGenerating
		return
	}

	e.finalize(ctx, s)
}

// finalize runs the full two-tier policy plus model evaluation, then
// persists the valid set.
func (e *EvaluateStage) finalize(ctx context.Context, s *GenerationState) {
	e.logger.Info("Evaluating generated records",
		zap.String("run_id", s.RunID),
		zap.Int("records", len(s.GeneratedData)),
	)

	unique := removeExactDuplicates(s.GeneratedData)
	metrics.RecordsRejected.WithLabelValues("duplicate").Add(float64(len(s.GeneratedData) - len(unique)))

	survivors := basicQualityFilter(unique)
	metrics.RecordsRejected.WithLabelValues("quality").Add(float64(len(unique) - len(survivors)))

	e.logger.Info("Basic validation finished",
		zap.String("run_id", s.RunID),
		zap.Int("survivors", len(survivors)),
	)

	report := e.modelEvaluate(ctx, s, survivors)

	valid := report.ValidRecords
	e.logger.Info("Model evaluation finished",
		zap.String("run_id", s.RunID),
		zap.Int("valid", len(valid)),
		zap.Int("duplicates", report.DuplicateCount),
		zap.Strings("quality_issues", report.QualityIssues),
	)

	if len(valid) == 0 {
		s.fail(StatusEvaluationFailed, "No valid records after evaluation")
		return
	}

	if !e.store.ValidateShape(valid, s.DataFormat) {
		e.logger.Warn("Record shape validation failed, proceeding with save",
			zap.String("run_id", s.RunID),
			zap.String("format", s.DataFormat),
		)
	}

	filePath, err := e.store.Persist(ctx, valid, s.Domain, s.DataFormat)
	if err != nil {
		s.fail(StatusEvaluationFailed, fmt.Sprintf("Evaluation failed: %v", err))
		return
	}

	// The one sanctioned wholesale replacement of GeneratedData.
	s.GeneratedData = valid
	s.FilePath = filePath
	s.Status = StatusCompleted
	metrics.RecordsPersisted.Add(float64(len(valid)))

	e.logger.Info("Evaluation completed",
		zap.String("run_id", s.RunID),
		zap.Int("records", len(valid)),
		zap.String("file_path", filePath),
	)
}

// modelEvaluate invokes the evaluation collaborator, falling back to basic
// validation over the original input when it fails. The fallback loses the
// model's near-duplicate detection; only exact duplicates are caught on that
// path, and the report says so.
func (e *EvaluateStage) modelEvaluate(ctx context.Context, s *GenerationState, survivors []Record) EvaluationReport {
	report, err := e.evaluator.Evaluate(ctx, survivors, s.DataFormat)
	if err == nil {
		return report
	}

	e.logger.Warn("LLM evaluation failed, using basic validation",
		zap.String("run_id", s.RunID),
		zap.Error(err),
	)
	metrics.EvaluationFallbacks.Inc()

	unique := removeExactDuplicates(s.GeneratedData)
	valid := basicQualityFilter(unique)
	return EvaluationReport{
		ValidRecords:     valid,
		DuplicateCount:   len(s.GeneratedData) - len(unique),
		QualityIssues:    []string{basicValidationIssue},
		PassedValidation: len(valid) > 0,
	}
}

// removeExactDuplicates drops records whose canonical form has been seen,
// preserving first-seen order. The canonical form sorts field/value pairs,
// so field insertion order does not defeat the comparison; semantically
// equivalent but textually different records are not caught here.
func removeExactDuplicates(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	unique := make([]Record, 0, len(records))
	for _, record := range records {
		key := canonicalForm(record)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, record)
	}
	return unique
}

// canonicalForm renders a record as its duplicate-detection key. JSON
// marshaling emits map keys in sorted order at every nesting level, which is
// exactly the sorted field/value comparison we need.
func canonicalForm(record Record) string {
	data, err := json.Marshal(record)
	if err == nil {
		return string(data)
	}
	// Unmarshalable values: fall back to sorted key=value rendering.
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, record[k])
	}
	return b.String()
}

// basicQualityFilter rejects records with trivially bad fields: trimmed
// string values shorter than 3 characters, placeholder tokens, or empty
// mapping values.
func basicQualityFilter(records []Record) []Record {
	valid := make([]Record, 0, len(records))
	for _, record := range records {
		if recordPassesBasicChecks(record) {
			valid = append(valid, record)
		}
	}
	return valid
}

func recordPassesBasicChecks(record Record) bool {
	for _, value := range record {
		switch v := value.(type) {
		case string:
			trimmed := strings.TrimSpace(v)
			if len(trimmed) < 3 {
				return false
			}
			if _, bad := placeholderTokens[strings.ToLower(trimmed)]; bad {
				return false
			}
		case map[string]any:
			if len(v) == 0 {
				return false
			}
		case Record:
			if len(v) == 0 {
				return false
			}
		}
	}
	return true
}
