// Package registry converts table schemas into embeddable registry entries
// and manages their lifecycle in the vector collection.
package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/meibo/internal/models"
)

// IDPrefix is the reserved id namespace for registry-managed entries.
// An entry for table "patients" always has id "table_patients".
const IDPrefix = "table_"

// TableID derives the registry entry id for a table name.
func TableID(name string) string {
	return IDPrefix + name
}

// IsRegistryID reports whether id belongs to the registry namespace.
func IsRegistryID(id string) bool {
	return strings.HasPrefix(id, IDPrefix)
}

// Encode converts a table schema into its registry entry without an
// embedding. It is pure and deterministic: identical input always yields an
// identical (id, document, metadata) triple, so reinitialization is
// reproducible and duplicate registration is detected by id alone.
func Encode(schema *models.TableSchema) (*models.RegistryEntry, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is nil", models.ErrInvalidSchema)
	}
	name := strings.TrimSpace(schema.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: table_name is required", models.ErrInvalidSchema)
	}
	metadata, err := buildMetadata(name, schema)
	if err != nil {
		return nil, err
	}
	return &models.RegistryEntry{
		ID:       TableID(name),
		Document: buildDocument(name, schema),
		Metadata: metadata,
	}, nil
}

// buildDocument renders the schema into text using a fixed template so that
// re-encoding the same schema yields byte-identical output. Absent optional
// fields are omitted.
func buildDocument(name string, schema *models.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", name)
	if schema.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", schema.Description)
	}
	if len(schema.Columns) > 0 {
		b.WriteString("Columns:\n")
		for _, col := range schema.Columns {
			b.WriteString("  - ")
			b.WriteString(col.Name)
			if col.Type != "" {
				fmt.Fprintf(&b, " (%s)", col.Type)
			}
			if col.Description != "" {
				fmt.Fprintf(&b, ": %s", col.Description)
			}
			b.WriteString("\n")
		}
	}
	if len(schema.Relationships) > 0 {
		b.WriteString("Relationships:\n")
		for _, rel := range schema.Relationships {
			fmt.Fprintf(&b, "  - %s\n", rel)
		}
	}
	// Attributes in sorted key order to keep the rendering deterministic.
	if len(schema.Attributes) > 0 {
		keys := make([]string, 0, len(schema.Attributes))
		for k := range schema.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Attributes:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  - %s: %v\n", k, schema.Attributes[k])
		}
	}
	return b.String()
}

// buildMetadata extracts flat queryable attributes from the schema.
// Vector-store metadata is flat key/value, so nested attributes are rejected
// here rather than at the store layer.
func buildMetadata(name string, schema *models.TableSchema) (map[string]string, error) {
	metadata := map[string]string{
		"table_name":   name,
		"column_count": strconv.Itoa(len(schema.Columns)),
	}
	if schema.Description != "" {
		metadata["description"] = schema.Description
	}
	flat, err := FlattenMetadata(schema.Attributes)
	if err != nil {
		return nil, err
	}
	for k, v := range flat {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}
	return metadata, nil
}

// FlattenMetadata converts free-form scalar metadata into the flat string
// form the collection stores. Nested maps and lists are rejected with
// ErrInvalidSchema.
func FlattenMetadata(in map[string]interface{}) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case float64:
			out[k] = strconv.FormatFloat(val, 'g', -1, 64)
		case nil:
			out[k] = ""
		default:
			return nil, fmt.Errorf("%w: metadata value for %q must be a scalar, got %T", models.ErrInvalidSchema, k, v)
		}
	}
	return out, nil
}
