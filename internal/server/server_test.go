package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/catalog"
	"github.com/fabrica-labs/fabrica/internal/store"
	"github.com/fabrica-labs/fabrica/internal/workflow"
)

type stubResearcher struct{}

func (stubResearcher) Research(ctx context.Context, domain, enrichedContext string) (workflow.ResearchSummary, error) {
	return workflow.ResearchSummary{Overview: "overview", EnrichedContext: enrichedContext}, nil
}

type stubEnricher struct{}

func (stubEnricher) Enrich(ctx context.Context, domain, baseContext, userContext string) string {
	return baseContext
}

type stubGenerator struct {
	err error
}

func (g stubGenerator) Generate(ctx context.Context, req workflow.GenerateRequest) ([]workflow.Record, error) {
	if g.err != nil {
		return nil, g.err
	}
	records := make([]workflow.Record, req.Count)
	for i := range records {
		records[i] = workflow.Record{
			"question": fmt.Sprintf("Question number %d", i),
			"answer":   fmt.Sprintf("A realistic answer number %d", i),
			"context":  "generated in test",
		}
	}
	return records, nil
}

type stubEvaluator struct{}

func (stubEvaluator) Evaluate(ctx context.Context, records []workflow.Record, format string) (workflow.EvaluationReport, error) {
	return workflow.EvaluationReport{ValidRecords: records, PassedValidation: true}, nil
}

type serverFixture struct {
	srv     *httptest.Server
	store   *store.CSVStore
	tracker *workflow.Tracker
}

func newServerFixture(t *testing.T, genErr error) serverFixture {
	t.Helper()
	logger := zap.NewNop()
	cat := catalog.New("", logger)
	csvStore, err := store.NewCSVStore(t.TempDir(), logger)
	require.NoError(t, err)

	tracker := workflow.NewTracker()
	engine := workflow.NewEngine(
		workflow.NewResearchStage(cat, stubEnricher{}, stubResearcher{}, logger),
		workflow.NewGenerateStage(stubGenerator{err: genErr}, 15, logger),
		workflow.NewEvaluateStage(stubEvaluator{}, csvStore, logger),
		cat,
		1000,
		tracker,
		logger,
	)

	s := New(engine, tracker, nil, csvStore, cat, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return serverFixture{srv: srv, store: csvStore, tracker: tracker}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestGenerateHappyPath(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := postJSON(t, f.srv.URL+"/api/v1/generate", GenerateRequest{
		Domain:     "healthcare",
		DataFormat: "qna",
		NumRecords: 5,
		Context:    "patient privacy",
	})
	body := decodeBody[GenerateResponse](t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body.Status)
	assert.Equal(t, 5, body.TotalRecords)
	assert.NotEmpty(t, body.RunID)
	assert.NotEmpty(t, body.FilePath)
	assert.Equal(t, "Data generation completed successfully", body.Message)
	assert.Contains(t, body.GenerationTime, "seconds")
}

func TestGenerateValidationErrors(t *testing.T) {
	f := newServerFixture(t, nil)

	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"unknown domain", GenerateRequest{Domain: "astrology", DataFormat: "qna", NumRecords: 5}},
		{"unknown format", GenerateRequest{Domain: "healthcare", DataFormat: "parquet", NumRecords: 5}},
		{"zero records", GenerateRequest{Domain: "healthcare", DataFormat: "qna", NumRecords: 0}},
		{"too many records", GenerateRequest{Domain: "healthcare", DataFormat: "qna", NumRecords: 1001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, f.srv.URL+"/api/v1/generate", tt.req)
			body := decodeBody[map[string]string](t, resp)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGenerateMalformedBody(t *testing.T) {
	f := newServerFixture(t, nil)
	resp, err := http.Post(f.srv.URL+"/api/v1/generate", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateFailedRunReturns500(t *testing.T) {
	f := newServerFixture(t, errors.New("provider down"))

	resp := postJSON(t, f.srv.URL+"/api/v1/generate", GenerateRequest{
		Domain:     "finance",
		DataFormat: "qna",
		NumRecords: 5,
	})
	body := decodeBody[GenerateResponse](t, resp)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "generation_failed", body.Status)
	assert.Contains(t, body.Message, "Data generation failed")
	assert.Empty(t, body.FilePath)
}

func TestListRuns(t *testing.T) {
	f := newServerFixture(t, nil)
	f.tracker.Update(workflow.Snapshot{RunID: "live-1", Status: workflow.StatusGenerating})

	resp, err := http.Get(f.srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	body := decodeBody[map[string]json.RawMessage](t, resp)

	var active []workflow.Snapshot
	require.NoError(t, json.Unmarshal(body["active"], &active))
	require.Len(t, active, 1)
	assert.Equal(t, "live-1", active[0].RunID)
}

func TestGetRunFromTracker(t *testing.T) {
	f := newServerFixture(t, nil)
	f.tracker.Update(workflow.Snapshot{RunID: "live-1", Status: workflow.StatusGenerating, GeneratedRecords: 7})

	resp, err := http.Get(f.srv.URL + "/api/v1/runs/live-1")
	require.NoError(t, err)
	body := decodeBody[workflow.Snapshot](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 7, body.GeneratedRecords)
}

func TestGetRunNotFound(t *testing.T) {
	f := newServerFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/api/v1/runs/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDomainsEndpoint(t *testing.T) {
	f := newServerFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/api/v1/domains")
	require.NoError(t, err)
	body := decodeBody[map[string]json.RawMessage](t, resp)

	var domains []string
	require.NoError(t, json.Unmarshal(body["domains"], &domains))
	assert.Equal(t, []string{"healthcare", "finance", "business", "law", "technology", "education"}, domains)
}

func TestFormatsEndpoint(t *testing.T) {
	f := newServerFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/api/v1/formats")
	require.NoError(t, err)
	body := decodeBody[map[string]json.RawMessage](t, resp)

	var names []string
	require.NoError(t, json.Unmarshal(body["formats"], &names))
	assert.Contains(t, names, "qna")
	assert.Contains(t, names, "fine_tuning")
}

func TestFileEndpoints(t *testing.T) {
	f := newServerFixture(t, nil)

	// Produce a file to inspect.
	resp := postJSON(t, f.srv.URL+"/api/v1/generate", GenerateRequest{
		Domain: "law", DataFormat: "qna", NumRecords: 4,
	})
	gen := decodeBody[GenerateResponse](t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(f.srv.URL + "/api/v1/files/stats?file_path=" + gen.FilePath)
	require.NoError(t, err)
	stats := decodeBody[store.FileStats](t, resp)
	assert.True(t, stats.Exists)
	assert.Equal(t, 4, stats.RecordCount)

	resp, err = http.Get(f.srv.URL + "/api/v1/files/sample?file_path=" + gen.FilePath + "&num_rows=2")
	require.NoError(t, err)
	sample := decodeBody[map[string]json.RawMessage](t, resp)
	var rows []map[string]string
	require.NoError(t, json.Unmarshal(sample["data"], &rows))
	assert.Len(t, rows, 2)
}

func TestFileStatsValidation(t *testing.T) {
	f := newServerFixture(t, nil)

	resp, err := http.Get(f.srv.URL + "/api/v1/files/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/api/v1/files/stats?file_path=/etc/passwd")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/api/v1/files/stats?file_path=missing.csv")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFileSampleValidation(t *testing.T) {
	f := newServerFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/api/v1/files/sample?file_path=x.csv&num_rows=500")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFileCleanup(t *testing.T) {
	f := newServerFixture(t, nil)

	req, err := http.NewRequest(http.MethodDelete, f.srv.URL+"/api/v1/files/cleanup?days_old=7", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["files_removed"])
}

func TestFileCleanupRejectsBadAge(t *testing.T) {
	f := newServerFixture(t, nil)
	req, err := http.NewRequest(http.MethodDelete, f.srv.URL+"/api/v1/files/cleanup?days_old=0", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamRejectsInactiveRun(t *testing.T) {
	f := newServerFixture(t, nil)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/runs/ghost/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "run not active", closeErr.Text)
}

func TestStreamDeliversSnapshots(t *testing.T) {
	f := newServerFixture(t, nil)
	f.tracker.Update(workflow.Snapshot{RunID: "live-1", Status: workflow.StatusGenerating, GeneratedRecords: 3})

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/runs/live-1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var first workflow.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 3, first.GeneratedRecords)

	f.tracker.Update(workflow.Snapshot{RunID: "live-1", Status: workflow.StatusGenerating, GeneratedRecords: 8})
	var second workflow.Snapshot
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, 8, second.GeneratedRecords)

	// Terminal update delivers the final snapshot, then a normal close.
	f.tracker.Update(workflow.Snapshot{RunID: "live-1", Status: workflow.StatusCompleted, GeneratedRecords: 10})
	var final workflow.Snapshot
	require.NoError(t, conn.ReadJSON(&final))
	assert.Equal(t, workflow.StatusCompleted, final.Status)

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}
