package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fabrica-labs/fabrica/internal/formats"
	"github.com/fabrica-labs/fabrica/internal/workflow"
)

var formatGuidance = map[string]string{
	"qna":                  "Generate question-answer pairs with context for educational or training purposes.",
	"entity_relationships": "Generate entity relationships showing connections between domain concepts.",
	"rag_chunks":           "Generate content chunks optimized for retrieval augmented generation; the metadata field must be a non-empty JSON object.",
	"fine_tuning":          "Generate instruction-input-output triplets for model training.",
}

// Generate requests one batch of records shaped to the format's field set.
// The returned slice never exceeds req.Count; an empty slice means the
// service produced nothing usable and signals failure to the caller.
func (c *Client) Generate(ctx context.Context, req workflow.GenerateRequest) ([]workflow.Record, error) {
	format, ok := formats.Lookup(req.Format)
	if !ok {
		return nil, fmt.Errorf("llm: unknown data format %q", req.Format)
	}

	system := fmt.Sprintf(`You are a synthetic data generation expert specializing in %s. %s
Each record must be a JSON object with exactly these fields: %s.
Records must be unique, realistic, domain-appropriate, and vary in complexity. Never use placeholder or filler text.
Respond with a single JSON object: {"records": [...]} containing exactly %d records.`,
		req.Domain,
		formatGuidance[req.Format],
		strings.Join(format.Fields, ", "),
		req.Count,
	)

	research, err := json.Marshal(req.Research)
	if err != nil {
		research = []byte("{}")
	}
	userContext := req.Context
	if userContext == "" {
		userContext = "General domain knowledge"
	}
	user := fmt.Sprintf("Domain: %s\nFormat: %s\nRecords needed: %d\nContext: %s\n\nDomain research:\n%s\n\nGenerate exactly %d diverse records now.",
		req.Domain, req.Format, req.Count, userContext, research, req.Count)

	content, err := c.complete(ctx, "generate", system, user)
	if err != nil {
		return nil, err
	}

	var batch struct {
		Records []workflow.Record `json:"records"`
	}
	if err := decodeJSON(content, &batch); err != nil {
		return nil, fmt.Errorf("llm: parse generated batch: %w", err)
	}

	if len(batch.Records) > req.Count {
		batch.Records = batch.Records[:req.Count]
	}
	return batch.Records, nil
}
