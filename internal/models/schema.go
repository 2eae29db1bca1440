// Package models defines core data structures for table schemas, registry
// entries, queries, and the error kinds surfaced by the registry core.
package models

// ColumnSchema describes a single column of a table schema.
type ColumnSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// TableSchema is the external input describing one logical table. Name is
// required; all other fields are optional descriptive content that feeds the
// generated registry document.
type TableSchema struct {
	Name          string         `json:"table_name" yaml:"table_name"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Columns       []ColumnSchema `json:"columns,omitempty" yaml:"columns,omitempty"`
	Relationships []string       `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	// Attributes are free-form scalar attributes denormalized into entry
	// metadata. Nested values are rejected at encode time.
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// RegistryEntry is one persisted collection entry: a schema's (or ad hoc
// document's) id, rendered text, flat metadata, and embedding.
type RegistryEntry struct {
	ID        string            `json:"id"`
	Document  string            `json:"document"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"-"`
}

// DocumentInput is the input for adding an ad hoc document outside the
// registry-derived id namespace. ID is generated when empty.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Document string                 `json:"document"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
