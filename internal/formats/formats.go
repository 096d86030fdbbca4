// Package formats defines the data formats a generation run can produce.
//
// Each format fixes the field set a record must carry and the column order
// used when the record store writes tabular output. The registry is static;
// callers treat unknown format names as a request validation error.
package formats

import "sort"

// Format describes one supported output shape.
type Format struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	// Fields is the declared field order. The record store emits columns in
	// exactly this order; generation prompts request exactly these fields.
	Fields []string `json:"fields"`
}

var registry = map[string]Format{
	"qna": {
		Name:        "qna",
		Description: "Question and Answer pairs with context",
		Fields:      []string{"question", "answer", "context"},
	},
	"entity_relationships": {
		Name:        "entity_relationships",
		Description: "Entity relationship mappings",
		Fields:      []string{"entity1", "relationship", "entity2"},
	},
	"rag_chunks": {
		Name:        "rag_chunks",
		Description: "RAG-optimized content chunks with metadata",
		Fields:      []string{"content", "metadata", "summary"},
	},
	"fine_tuning": {
		Name:        "fine_tuning",
		Description: "Instruction-input-output format for model training",
		Fields:      []string{"instruction", "input", "output"},
	},
}

// Lookup returns the format by name.
func Lookup(name string) (Format, bool) {
	f, ok := registry[name]
	return f, ok
}

// IsSupported reports whether name is a known format.
func IsSupported(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns the supported format names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered format, sorted by name.
func All() []Format {
	out := make([]Format, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name])
	}
	return out
}
