package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResearchStageSuccess(t *testing.T) {
	researcher := &fakeResearcher{summary: ResearchSummary{
		Overview:        "Healthcare data overview",
		KeyConcepts:     []string{"HIPAA", "EHR"},
		Terminology:     []string{"ICD-10"},
		EnrichedContext: "enriched",
	}}
	stage := NewResearchStage(fakeContexts{}, fakeEnricher{}, researcher, zap.NewNop())

	s := NewState("run-1", "healthcare", "qna", 10, "patient privacy")
	stage.Run(context.Background(), s)

	require.Equal(t, StatusResearchCompleted, s.Status)
	var summary ResearchSummary
	require.NoError(t, json.Unmarshal([]byte(s.DomainResearch), &summary))
	assert.Equal(t, "Healthcare data overview", summary.Overview)
	assert.Equal(t, []string{"HIPAA", "EHR"}, summary.KeyConcepts)
}

func TestResearchStageDegradesOnResearcherFailure(t *testing.T) {
	researcher := &fakeResearcher{err: errors.New("model unavailable")}
	stage := NewResearchStage(fakeContexts{base: "base"}, fakeEnricher{}, researcher, zap.NewNop())

	s := NewState("run-1", "finance", "qna", 10, "")
	stage.Run(context.Background(), s)

	// A failing research collaborator does not fail the run; the enriched
	// context stands in for the structured summary.
	require.Equal(t, StatusResearchCompleted, s.Status)
	var summary ResearchSummary
	require.NoError(t, json.Unmarshal([]byte(s.DomainResearch), &summary))
	assert.Equal(t, "base [enriched]", summary.Overview)
	assert.Equal(t, "base [enriched]", summary.EnrichedContext)
	assert.Empty(t, summary.KeyConcepts)
}
