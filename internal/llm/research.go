package llm

import (
	"context"
	"fmt"

	"github.com/fabrica-labs/fabrica/internal/workflow"
)

const researchSystemPrompt = `You are a domain research expert. Research the given domain thoroughly: key terminology and jargon, common processes and workflows, typical challenges, industry standards, and current developments. Respond with a single JSON object with these keys:
- "overview": comprehensive domain overview (string)
- "key_concepts": list of key domain concepts (array of strings)
- "terminology": list of domain-specific terms (array of strings)
- "enriched_context": enhanced context for data generation (string)`

// Research asks the model for a structured research summary of the domain.
func (c *Client) Research(ctx context.Context, domain, enrichedContext string) (workflow.ResearchSummary, error) {
	user := fmt.Sprintf("Domain: %s\n\nContext:\n%s\n\nResearch this domain and respond with the JSON object described in your instructions.", domain, enrichedContext)

	content, err := c.complete(ctx, "research", researchSystemPrompt, user)
	if err != nil {
		return workflow.ResearchSummary{}, err
	}

	var summary workflow.ResearchSummary
	if err := decodeJSON(content, &summary); err != nil {
		return workflow.ResearchSummary{}, fmt.Errorf("llm: parse research summary: %w", err)
	}
	if summary.Overview == "" {
		summary.Overview = enrichedContext
	}
	if summary.EnrichedContext == "" {
		summary.EnrichedContext = enrichedContext
	}
	if summary.KeyConcepts == nil {
		summary.KeyConcepts = []string{}
	}
	if summary.Terminology == nil {
		summary.Terminology = []string{}
	}
	return summary, nil
}
