package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/meibo/internal/models"
)

// schemaFileExts are the file extensions recognized as schema files.
var schemaFileExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// IsSchemaFile reports whether path looks like a schema file.
func IsSchemaFile(path string) bool {
	return schemaFileExts[strings.ToLower(filepath.Ext(path))]
}

// LoadSchemaFile reads one table schema from a YAML or JSON file.
// JSON is parsed by the YAML decoder (a superset).
func LoadSchemaFile(path string) (*models.TableSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema file %s: %v", models.ErrInvalidSchema, path, err)
	}
	var schema models.TableSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("%w: parse schema file %s: %v", models.ErrInvalidSchema, path, err)
	}
	if strings.TrimSpace(schema.Name) == "" {
		return nil, fmt.Errorf("%w: schema file %s has no table_name", models.ErrInvalidSchema, path)
	}
	return &schema, nil
}

// LoadCanonicalSchemas reads the canonical schema set from dir, one schema
// per file, in file name order. A missing or empty directory yields an empty
// set, not an error.
func LoadCanonicalSchemas(dir string) ([]*models.TableSchema, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read schemas dir: %w", err)
	}
	var schemas []*models.TableSchema
	for _, entry := range entries {
		if entry.IsDir() || !IsSchemaFile(entry.Name()) {
			continue
		}
		schema, err := LoadSchemaFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}
