package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fabrica-labs/fabrica/internal/workflow"
)

const evaluateSystemPrompt = `You are a data quality expert evaluating synthetic datasets. Check every record for uniqueness (including near-duplicates that are worded differently), quality (realistic, coherent, well-structured), format compliance, and domain relevance. Respond with a single JSON object with these keys:
- "valid_records": the records that pass all checks, unchanged (array of objects)
- "duplicate_count": number of duplicate or near-duplicate records removed (integer)
- "quality_issues": descriptions of problems found (array of strings)
- "passed_validation": whether the dataset as a whole is acceptable (boolean)`

// Evaluate asks the model to judge a candidate record set.
func (c *Client) Evaluate(ctx context.Context, records []workflow.Record, format string) (workflow.EvaluationReport, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return workflow.EvaluationReport{}, fmt.Errorf("llm: encode records: %w", err)
	}

	user := fmt.Sprintf("Data format: %s\nRecords to evaluate: %d\n\nData:\n%s\n\nEvaluate these records and respond with the JSON object described in your instructions.",
		format, len(records), payload)

	content, err := c.complete(ctx, "evaluate", evaluateSystemPrompt, user)
	if err != nil {
		return workflow.EvaluationReport{}, err
	}

	var report workflow.EvaluationReport
	if err := decodeJSON(content, &report); err != nil {
		return workflow.EvaluationReport{}, fmt.Errorf("llm: parse evaluation report: %w", err)
	}
	if report.ValidRecords == nil {
		report.ValidRecords = []workflow.Record{}
	}
	if report.QualityIssues == nil {
		report.QualityIssues = []string{}
	}
	return report, nil
}
