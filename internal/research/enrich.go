// Package research provides the web enrichment collaborator and the Redis
// cache in front of the structured research service.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/catalog"
	"github.com/fabrica-labs/fabrica/internal/config"
	"github.com/fabrica-labs/fabrica/internal/metrics"
)

// Enricher folds instant-answer search results into a domain's base context.
// It never fails past its boundary: every error path degrades to the base
// context, per-query failures degrade to a placeholder result.
type Enricher struct {
	catalog    *catalog.Catalog
	baseURL    string
	maxQueries int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewEnricher builds the enrichment client.
func NewEnricher(cat *catalog.Catalog, cfg config.SearchConfig, logger *zap.Logger) *Enricher {
	return &Enricher{
		catalog:    cat,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxQueries: cfg.MaxQueries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Enrich runs the domain's search queries concurrently and combines the
// results with the base context, domain keywords, and user context.
func (e *Enricher) Enrich(ctx context.Context, domain, baseContext, userContext string) string {
	queries := e.catalog.SearchQueries(domain, userContext, e.maxQueries)
	if len(queries) == 0 {
		return baseContext
	}

	// Queries run concurrently; each either produces a result or degrades to
	// a placeholder, so a failing search never aborts enrichment.
	results := make([]string, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			results[i] = e.searchOne(ctx, query)
		}(i, query)
	}
	wg.Wait()

	combined := strings.Join(results, " | ")
	if strings.TrimSpace(combined) == "" {
		return baseContext
	}

	entry, _ := e.catalog.Get(domain)
	var b strings.Builder
	fmt.Fprintf(&b, "Base Context: %s\n\n", baseContext)
	fmt.Fprintf(&b, "Web Research Results: %s\n\n", combined)
	fmt.Fprintf(&b, "Domain Keywords: %s", strings.Join(entry.Keywords, ", "))
	if userContext != "" {
		fmt.Fprintf(&b, "\nUser Specific Context: %s", userContext)
	}
	return strings.TrimSpace(b.String())
}

// instantAnswer is the subset of the instant-answer API response we read.
type instantAnswer struct {
	Abstract      string `json:"Abstract"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

// searchOne queries the instant-answer API for one topic. Failures degrade
// to a generic placeholder string.
func (e *Enricher) searchOne(ctx context.Context, query string) string {
	result, err := e.fetch(ctx, query)
	if err != nil {
		e.logger.Warn("Enrichment query failed",
			zap.String("query", query),
			zap.Error(err),
		)
		metrics.EnrichmentQueries.WithLabelValues("failed").Inc()
		return fmt.Sprintf("General knowledge about %s", query)
	}
	metrics.EnrichmentQueries.WithLabelValues("ok").Inc()
	return result
}

func (e *Enricher) fetch(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search: status %d", resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return "", fmt.Errorf("search: decode response: %w", err)
	}

	var parts []string
	if answer.Abstract != "" {
		parts = append(parts, "Overview: "+answer.Abstract)
	}
	for i, topic := range answer.RelatedTopics {
		if i >= 3 {
			break
		}
		if topic.Text != "" {
			parts = append(parts, "Related: "+topic.Text)
		}
	}
	if answer.Answer != "" {
		parts = append(parts, "Answer: "+answer.Answer)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Basic information about %s", query), nil
	}
	return strings.Join(parts, " | "), nil
}
