// Package workflow implements the synthetic data generation pipeline: a
// research stage, a batched generation loop, and an evaluation stage, driven
// by an explicit state machine over a single GenerationState value.
package workflow

import (
	"encoding/json"
	"time"
)

// Status is the state-machine discriminator for a generation run.
type Status string

const (
	StatusPending             Status = "pending"
	StatusResearchCompleted   Status = "research_completed"
	StatusResearchFailed      Status = "research_failed"
	StatusGenerating          Status = "generating"
	StatusGenerationCompleted Status = "generation_completed"
	StatusGenerationFailed    Status = "generation_failed"
	StatusCompleted           Status = "completed"
	StatusEvaluationFailed    Status = "evaluation_failed"
	StatusFailed              Status = "failed"
)

// Failed reports whether the status is a failure variant.
func (s Status) Failed() bool {
	switch s {
	case StatusResearchFailed, StatusGenerationFailed, StatusEvaluationFailed, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the state machine takes no further stage action
// from this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s.Failed()
}

// Record is one generated data record: field name to value, where values are
// strings, numbers, or nested mappings, shaped by the run's data format.
type Record map[string]any

// ResearchSummary is the structured output of the research stage.
type ResearchSummary struct {
	Overview        string   `json:"overview"`
	KeyConcepts     []string `json:"key_concepts"`
	Terminology     []string `json:"terminology"`
	EnrichedContext string   `json:"enriched_context"`
}

// EvaluationReport is the output of the model-based evaluation collaborator.
type EvaluationReport struct {
	ValidRecords     []Record `json:"valid_records"`
	DuplicateCount   int      `json:"duplicate_count"`
	QualityIssues    []string `json:"quality_issues"`
	PassedValidation bool     `json:"passed_validation"`
}

// GenerationState is the single mutable value threaded through every stage.
// It is owned exclusively by one run; stages mutate it in place and the
// engine hands it back to the caller once a terminal status is reached.
type GenerationState struct {
	RunID      string `json:"run_id"`
	Domain     string `json:"domain"`
	DataFormat string `json:"data_format"`
	NumRecords int    `json:"num_records"`
	Context    string `json:"context,omitempty"`

	// DomainResearch holds the serialized ResearchSummary, set once by the
	// research stage and read-only thereafter.
	DomainResearch string `json:"domain_research,omitempty"`

	// GeneratedData is append-only during generation. The evaluation stage
	// may replace it wholesale with the filtered subset; that is the only
	// sanctioned non-append mutation.
	GeneratedData []Record `json:"generated_data"`

	CurrentBatch int `json:"current_batch"`
	TotalBatches int `json:"total_batches"`

	FilePath     string `json:"file_path,omitempty"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewState builds the initial state for a validated request.
func NewState(runID, domain, format string, numRecords int, userContext string) *GenerationState {
	return &GenerationState{
		RunID:         runID,
		Domain:        domain,
		DataFormat:    format,
		NumRecords:    numRecords,
		Context:       userContext,
		GeneratedData: make([]Record, 0, numRecords),
		Status:        StatusPending,
		StartedAt:     time.Now(),
	}
}

func (s *GenerationState) fail(status Status, message string) {
	s.Status = status
	s.ErrorMessage = message
}

// Snapshot is the progress projection exposed to callers.
type Snapshot struct {
	RunID              string  `json:"run_id"`
	Domain             string  `json:"domain"`
	DataFormat         string  `json:"data_format"`
	TargetRecords      int     `json:"target_records"`
	GeneratedRecords   int     `json:"generated_records"`
	CurrentBatch       int     `json:"current_batch"`
	TotalBatches       int     `json:"total_batches"`
	Status             Status  `json:"status"`
	ProgressPercentage float64 `json:"progress_percentage"`
	FilePath           string  `json:"file_path,omitempty"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// TakeSnapshot projects the state into its progress view.
func TakeSnapshot(s *GenerationState) Snapshot {
	var progress float64
	if s.NumRecords > 0 {
		progress = float64(len(s.GeneratedData)) / float64(s.NumRecords) * 100
		if progress > 100 {
			progress = 100
		}
	}
	return Snapshot{
		RunID:              s.RunID,
		Domain:             s.Domain,
		DataFormat:         s.DataFormat,
		TargetRecords:      s.NumRecords,
		GeneratedRecords:   len(s.GeneratedData),
		CurrentBatch:       s.CurrentBatch,
		TotalBatches:       s.TotalBatches,
		Status:             s.Status,
		ProgressPercentage: progress,
		FilePath:           s.FilePath,
		ErrorMessage:       s.ErrorMessage,
	}
}

// parseResearch decodes the serialized research summary into a loose mapping
// for prompt construction. A summary that does not parse is wrapped under a
// single key rather than failing the caller.
func parseResearch(serialized string) map[string]any {
	if serialized == "" {
		return map[string]any{}
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(serialized), &data); err != nil {
		return map[string]any{"overview": serialized}
	}
	return data
}
