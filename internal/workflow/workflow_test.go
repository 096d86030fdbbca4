package workflow

import (
	"context"
	"fmt"
)

// Shared test doubles for the stage and engine tests.

type fakeContexts struct {
	base string
}

func (f fakeContexts) BaseContext(domain, userContext string) string {
	if f.base != "" {
		return f.base
	}
	return "Base context for " + domain
}

type fakeEnricher struct{}

func (fakeEnricher) Enrich(ctx context.Context, domain, baseContext, userContext string) string {
	return baseContext + " [enriched]"
}

type fakeResearcher struct {
	summary ResearchSummary
	err     error
	calls   int
}

func (f *fakeResearcher) Research(ctx context.Context, domain, enrichedContext string) (ResearchSummary, error) {
	f.calls++
	if f.err != nil {
		return ResearchSummary{}, f.err
	}
	return f.summary, nil
}

// fakeGenerator returns req.Count distinct records per call unless fn or err
// overrides that behavior.
type fakeGenerator struct {
	calls int
	err   error
	fn    func(call int, req GenerateRequest) ([]Record, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Record, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(f.calls, req)
	}
	if f.err != nil {
		return nil, f.err
	}
	records := make([]Record, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		records = append(records, Record{
			"question": fmt.Sprintf("Question %d of call %d", i, f.calls),
			"answer":   fmt.Sprintf("A sufficiently long answer %d-%d", f.calls, i),
			"category": req.Domain,
		})
	}
	return records, nil
}

type fakeEvaluator struct {
	calls  int
	err    error
	report *EvaluationReport
	got    []Record
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, records []Record, format string) (EvaluationReport, error) {
	f.calls++
	f.got = records
	if f.err != nil {
		return EvaluationReport{}, f.err
	}
	if f.report != nil {
		return *f.report, nil
	}
	return EvaluationReport{
		ValidRecords:     records,
		PassedValidation: true,
		QualityIssues:    []string{},
	}, nil
}

type fakeStore struct {
	persisted  []Record
	calls      int
	path       string
	persistErr error
	shapeOK    bool
}

func (f *fakeStore) Persist(ctx context.Context, records []Record, domain, format string) (string, error) {
	f.calls++
	if f.persistErr != nil {
		return "", f.persistErr
	}
	f.persisted = records
	if f.path == "" {
		f.path = "responses/" + domain + "_" + format + ".csv"
	}
	return f.path, nil
}

func (f *fakeStore) ValidateShape(records []Record, format string) bool {
	return f.shapeOK
}

type allowAllDomains struct{}

func (allowAllDomains) IsSupported(domain string) bool { return true }

type domainList []string

func (d domainList) IsSupported(domain string) bool {
	for _, v := range d {
		if v == domain {
			return true
		}
	}
	return false
}
