package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/meibo/internal/models"
)

func patientsSchema() *models.TableSchema {
	return &models.TableSchema{
		Name:        "patients",
		Description: "Patient master records",
		Columns: []models.ColumnSchema{
			{Name: "patient_id", Type: "uuid", Description: "primary key"},
			{Name: "name", Type: "text"},
			{Name: "medication", Type: "text", Description: "current medication"},
		},
		Relationships: []string{"visits.patient_id -> patients.patient_id"},
		Attributes:    map[string]interface{}{"domain": "clinical", "row_estimate": 120000},
	}
}

func TestEncode_Deterministic(t *testing.T) {
	a, err := Encode(patientsSchema())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(patientsSchema())
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Errorf("ids differ: %q vs %q", a.ID, b.ID)
	}
	if a.Document != b.Document {
		t.Errorf("documents differ:\n%q\n%q", a.Document, b.Document)
	}
	if len(a.Metadata) != len(b.Metadata) {
		t.Fatalf("metadata sizes differ")
	}
	for k, v := range a.Metadata {
		if b.Metadata[k] != v {
			t.Errorf("metadata %q differs: %q vs %q", k, v, b.Metadata[k])
		}
	}
}

func TestEncode_StableID(t *testing.T) {
	entry, err := Encode(&models.TableSchema{Name: "orders"})
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID != "table_orders" {
		t.Errorf("ID=%q, want table_orders", entry.ID)
	}
}

func TestEncode_MissingName(t *testing.T) {
	for _, schema := range []*models.TableSchema{nil, {}, {Name: "  "}} {
		if _, err := Encode(schema); !errors.Is(err, models.ErrInvalidSchema) {
			t.Errorf("schema %+v: err=%v, want ErrInvalidSchema", schema, err)
		}
	}
}

func TestEncode_DocumentTemplate(t *testing.T) {
	entry, err := Encode(patientsSchema())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Table: patients",
		"Description: Patient master records",
		"  - patient_id (uuid): primary key",
		"  - name (text)",
		"Relationships:",
		"  - visits.patient_id -> patients.patient_id",
	} {
		if !strings.Contains(entry.Document, want) {
			t.Errorf("document missing %q:\n%s", want, entry.Document)
		}
	}
}

func TestEncode_OmitsAbsentFields(t *testing.T) {
	entry, err := Encode(&models.TableSchema{Name: "bare"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(entry.Document, "Description") || strings.Contains(entry.Document, "Columns") {
		t.Errorf("absent fields should be omitted:\n%s", entry.Document)
	}
}

func TestEncode_MetadataFlat(t *testing.T) {
	entry, err := Encode(patientsSchema())
	if err != nil {
		t.Fatal(err)
	}
	if entry.Metadata["table_name"] != "patients" {
		t.Errorf("table_name=%q", entry.Metadata["table_name"])
	}
	if entry.Metadata["column_count"] != "3" {
		t.Errorf("column_count=%q", entry.Metadata["column_count"])
	}
	if entry.Metadata["domain"] != "clinical" {
		t.Errorf("domain=%q", entry.Metadata["domain"])
	}
}

func TestEncode_RejectsNestedMetadata(t *testing.T) {
	schema := &models.TableSchema{
		Name:       "broken",
		Attributes: map[string]interface{}{"nested": map[string]interface{}{"a": 1}},
	}
	if _, err := Encode(schema); !errors.Is(err, models.ErrInvalidSchema) {
		t.Errorf("err=%v, want ErrInvalidSchema", err)
	}
}

func TestFlattenMetadata_Scalars(t *testing.T) {
	out, err := FlattenMetadata(map[string]interface{}{
		"s": "x", "b": true, "i": 7, "f": 2.5, "n": nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"s": "x", "b": "true", "i": "7", "f": "2.5", "n": ""}
	for k, v := range want {
		if out[k] != v {
			t.Errorf("%s=%q, want %q", k, out[k], v)
		}
	}
}
