// Package catalog provides domain background knowledge for generation runs.
//
// The catalog maps a domain name to a description, keywords, a base context
// paragraph, and an ordered list of research-source hints. Lookups are
// fail-open: an unknown domain yields empty values, never an error, so a
// run against an unlisted domain degrades instead of failing.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Domain describes one catalog entry.
type Domain struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description" yaml:"description"`
	Keywords        []string `json:"keywords" yaml:"keywords"`
	BaseContext     string   `json:"-" yaml:"base_context"`
	ResearchSources []string `json:"research_sources" yaml:"research_sources"`
}

// Catalog holds the merged built-in and overlay domain entries.
// Safe for concurrent use; Reload swaps the entry map atomically.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Domain

	overlayPath string
	logger      *zap.Logger
}

// New builds a catalog from the built-in entries, merged with the optional
// overlay file. An unreadable overlay is logged and skipped.
func New(overlayPath string, logger *zap.Logger) *Catalog {
	c := &Catalog{
		entries:     builtinEntries(),
		overlayPath: overlayPath,
		logger:      logger,
	}
	if overlayPath != "" {
		if err := c.Reload(); err != nil {
			logger.Warn("Failed to load catalog overlay, using built-in catalog only",
				zap.String("path", overlayPath),
				zap.Error(err),
			)
		}
	}
	return c
}

// Reload re-reads the overlay file and merges it over the built-in catalog.
func (c *Catalog) Reload() error {
	if c.overlayPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.overlayPath)
	if err != nil {
		return fmt.Errorf("read catalog overlay: %w", err)
	}
	var overlay map[string]Domain
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse catalog overlay: %w", err)
	}

	merged := builtinEntries()
	for name, d := range overlay {
		d.Name = name
		merged[name] = d
	}

	c.mu.Lock()
	c.entries = merged
	c.mu.Unlock()

	c.logger.Info("Domain catalog loaded",
		zap.String("path", c.overlayPath),
		zap.Int("domains", len(merged)),
	)
	return nil
}

// IsSupported reports whether the domain is listed in the catalog.
func (c *Catalog) IsSupported(domain string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[domain]
	return ok
}

// Names returns the listed domain names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for _, name := range builtinOrder {
		if _, ok := c.entries[name]; ok {
			names = append(names, name)
		}
	}
	for name := range c.entries {
		if !contains(builtinOrder, name) {
			names = append(names, name)
		}
	}
	return names
}

// Get returns the catalog entry for a domain.
func (c *Catalog) Get(domain string) (Domain, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[domain]
	return d, ok
}

// All returns every catalog entry in listing order.
func (c *Catalog) All() []Domain {
	out := make([]Domain, 0)
	for _, name := range c.Names() {
		if d, ok := c.Get(name); ok {
			out = append(out, d)
		}
	}
	return out
}

// BaseContext returns the background text for a domain, with the optional
// user context folded in. Unknown domains yield an empty base context.
func (c *Catalog) BaseContext(domain, userContext string) string {
	d, _ := c.Get(domain)
	if userContext != "" {
		if d.BaseContext == "" {
			return fmt.Sprintf("Specific focus: %s", userContext)
		}
		return fmt.Sprintf("%s Specific focus: %s", d.BaseContext, userContext)
	}
	return d.BaseContext
}

// SearchQueries derives enrichment queries for a domain from its keywords
// and the optional user context, capped at max.
func (c *Catalog) SearchQueries(domain, userContext string, max int) []string {
	d, _ := c.Get(domain)

	queries := []string{
		fmt.Sprintf("%s best practices", domain),
		fmt.Sprintf("%s terminology glossary", domain),
		fmt.Sprintf("%s industry standards", domain),
		fmt.Sprintf("%s common procedures", domain),
		fmt.Sprintf("%s key concepts", domain),
	}
	for i, kw := range d.Keywords {
		if i >= 3 {
			break
		}
		queries = append(queries, fmt.Sprintf("%s %s guide", kw, domain))
	}
	if userContext != "" {
		queries = append(queries, fmt.Sprintf("%s %s", domain, userContext))
	}

	if max > 0 && len(queries) > max {
		queries = queries[:max]
	}
	return queries
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var builtinOrder = []string{"healthcare", "finance", "business", "law", "technology", "education"}

func builtinEntries() map[string]Domain {
	entries := map[string]Domain{
		"healthcare": {
			Name:        "healthcare",
			Description: "Medical, pharmaceutical, clinical research, patient care, diagnostics",
			Keywords:    []string{"medical", "patient", "diagnosis", "treatment", "healthcare", "clinical"},
			BaseContext: strings.TrimSpace(`Healthcare domain encompasses medical practice, patient care, clinical research, pharmaceutical development, medical devices, healthcare administration, and public health initiatives. Key areas include diagnosis, treatment protocols, preventive care, medical ethics, and healthcare technology.`),
			ResearchSources: []string{
				"medical journals and publications",
				"clinical research databases",
				"healthcare guidelines and protocols",
				"medical terminology resources",
				"patient care standards",
			},
		},
		"finance": {
			Name:        "finance",
			Description: "Banking, investments, trading, financial planning, risk management",
			Keywords:    []string{"banking", "investment", "finance", "trading", "risk", "financial"},
			BaseContext: strings.TrimSpace(`Finance domain covers banking services, investment management, financial planning, risk assessment, insurance, regulatory compliance, and financial markets. Key areas include portfolio management, credit analysis, financial modeling, and regulatory frameworks.`),
			ResearchSources: []string{
				"financial regulations and compliance",
				"investment and trading platforms",
				"banking procedures and policies",
				"risk management frameworks",
				"financial market analysis",
			},
		},
		"business": {
			Name:        "business",
			Description: "Management, operations, strategy, marketing, entrepreneurship",
			Keywords:    []string{"business", "strategy", "management", "operations", "marketing"},
			BaseContext: strings.TrimSpace(`Business domain includes strategic planning, operations management, marketing, sales, human resources, and organizational development. Key areas include business models, competitive analysis, process optimization, and stakeholder management.`),
			ResearchSources: []string{
				"business strategy frameworks",
				"management best practices",
				"operational procedures",
				"marketing and sales methodologies",
				"entrepreneurship resources",
			},
		},
		"law": {
			Name:        "law",
			Description: "Legal procedures, contracts, regulations, compliance, litigation",
			Keywords:    []string{"legal", "law", "contract", "regulation", "compliance", "court"},
			BaseContext: strings.TrimSpace(`Legal domain encompasses various practice areas including corporate law, litigation, regulatory compliance, contract negotiation, and legal advisory services. Key areas include legal research, case analysis, document preparation, and client representation.`),
			ResearchSources: []string{
				"legal statutes and regulations",
				"court procedures and protocols",
				"contract law and agreements",
				"compliance and regulatory frameworks",
				"legal precedents and case studies",
			},
		},
		"technology": {
			Name:        "technology",
			Description: "Software development, AI/ML, cybersecurity, cloud computing",
			Keywords:    []string{"technology", "software", "AI", "cybersecurity", "cloud", "development"},
			BaseContext: strings.TrimSpace(`Technology domain includes software development, system architecture, cybersecurity, artificial intelligence, cloud computing, and emerging technologies. Key areas include programming, system design, security protocols, and technology innovation.`),
			ResearchSources: []string{
				"software development practices",
				"AI and machine learning concepts",
				"cybersecurity frameworks",
				"cloud computing architectures",
				"technology standards and protocols",
			},
		},
		"education": {
			Name:        "education",
			Description: "Learning, curriculum, pedagogy, assessment, educational technology",
			Keywords:    []string{"education", "learning", "curriculum", "teaching", "assessment"},
			BaseContext: strings.TrimSpace(`Education domain covers teaching methodologies, curriculum design, student assessment, educational technology, and academic administration. Key areas include learning theories, instructional design, educational psychology, and institutional management.`),
			ResearchSources: []string{
				"pedagogical methodologies",
				"curriculum development frameworks",
				"educational assessment techniques",
				"learning technologies and tools",
				"educational psychology research",
			},
		},
	}
	return entries
}
