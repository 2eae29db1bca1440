package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/meibo/internal/collection"
	"github.com/hyperjump/meibo/internal/config"
	"github.com/hyperjump/meibo/internal/embedding"
	"github.com/hyperjump/meibo/internal/models"
	"github.com/hyperjump/meibo/internal/registry"
	"github.com/hyperjump/meibo/internal/search"
)

const testDims = 16

func newTestServer(t *testing.T, canonical []*models.TableSchema) *Server {
	t.Helper()
	col := collection.NewMemoryCollection(testDims)
	emb := embedding.NewMockEmbedder(testDims)
	logger := zap.NewNop()
	manager := registry.NewManager(col, emb, canonical, logger)
	engine := search.NewEngine(col, emb, logger)
	cfg := &config.ServerConfig{Host: "localhost", Port: 8000, AllowedOrigins: []string{"*"}}
	return NewServer(manager, engine, cfg, logger)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ok" {
		t.Errorf("body: %v", out)
	}
}

func TestHandleAddAndListTables(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	w := doJSON(t, h, http.MethodPost, "/registry/table", map[string]interface{}{
		"table_schema": map[string]interface{}{
			"table_name":  "patients",
			"description": "patient records",
			"columns":     []map[string]string{{"name": "patient_id", "type": "uuid"}},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add table status: got %d, body %s", w.Code, w.Body.String())
	}
	var added map[string]string
	_ = json.NewDecoder(w.Body).Decode(&added)
	if added["id"] != "table_patients" {
		t.Errorf("id: %v", added)
	}

	w = doJSON(t, h, http.MethodGet, "/registry/tables", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var listed struct {
		Tables []string `json:"tables"`
		Count  int      `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&listed); err != nil {
		t.Fatal(err)
	}
	if listed.Count != 1 || listed.Tables[0] != "patients" {
		t.Errorf("listed: %+v", listed)
	}
}

func TestHandleAddTable_InvalidSchema(t *testing.T) {
	srv := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodPost, "/registry/table", map[string]interface{}{
		"table_schema": map[string]interface{}{"description": "no name"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleRemoveTable_MissingIsOK(t *testing.T) {
	srv := newTestServer(t, nil)
	w := doJSON(t, srv.Router(), http.MethodDelete, "/registry/table/nonexistent", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
}

func TestHandleQuery(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	doJSON(t, h, http.MethodPost, "/registry/table", map[string]interface{}{
		"table_schema": map[string]interface{}{"table_name": "orders"},
	})

	w := doJSON(t, h, http.MethodPost, "/query", map[string]interface{}{
		"query": "orders and shipments",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.QueryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("results: %d", len(resp.Results))
	}
}

func TestHandleQuery_Invalid(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	w := doJSON(t, h, http.MethodPost, "/query", map[string]interface{}{"query": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status: got %d, want 400", w.Code)
	}
	w = doJSON(t, h, http.MethodPost, "/query", map[string]interface{}{"query": "x", "n_results": 50})
	if w.Code != http.StatusBadRequest {
		t.Errorf("n_results=50 status: got %d, want 400", w.Code)
	}
}

func TestHandleReinitialize(t *testing.T) {
	canonical := []*models.TableSchema{{Name: "patients"}}
	srv := newTestServer(t, canonical)
	h := srv.Router()

	doJSON(t, h, http.MethodPost, "/registry/table", map[string]interface{}{
		"table_schema": map[string]interface{}{"table_name": "scratch"},
	})

	w := doJSON(t, h, http.MethodPost, "/registry/reinitialize", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Status  string `json:"status"`
		Removed int    `json:"removed"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "reinitialized" || out.Removed != 1 {
		t.Errorf("out: %+v", out)
	}

	w = doJSON(t, h, http.MethodGet, "/registry/tables", nil)
	var listed struct {
		Tables []string `json:"tables"`
	}
	_ = json.NewDecoder(w.Body).Decode(&listed)
	if len(listed.Tables) != 1 || listed.Tables[0] != "patients" {
		t.Errorf("tables after reinitialize: %v", listed.Tables)
	}
}

func TestHandleDocumentLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	w := doJSON(t, h, http.MethodPost, "/documents", map[string]interface{}{
		"document": "ad hoc note about billing",
		"metadata": map[string]interface{}{"source": "ops"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status: got %d, body %s", w.Code, w.Body.String())
	}
	var added map[string]string
	_ = json.NewDecoder(w.Body).Decode(&added)
	if added["id"] == "" {
		t.Fatal("expected generated id")
	}

	w = doJSON(t, h, http.MethodGet, "/documents/"+added["id"], nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: got %d", w.Code)
	}
	var entry models.RegistryEntry
	if err := json.NewDecoder(w.Body).Decode(&entry); err != nil {
		t.Fatal(err)
	}
	if entry.Document != "ad hoc note about billing" || entry.Metadata["source"] != "ops" {
		t.Errorf("entry: %+v", entry)
	}

	w = doJSON(t, h, http.MethodDelete, "/documents/"+added["id"], nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/documents/"+added["id"], nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status: got %d, want 404", w.Code)
	}
}

func TestHandleReset(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	doJSON(t, h, http.MethodPost, "/registry/table", map[string]interface{}{
		"table_schema": map[string]interface{}{"table_name": "orders"},
	})
	doJSON(t, h, http.MethodPost, "/documents", map[string]interface{}{"document": "note"})

	w := doJSON(t, h, http.MethodPost, "/admin/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Removed int `json:"removed"`
	}
	_ = json.NewDecoder(w.Body).Decode(&out)
	if out.Removed != 2 {
		t.Errorf("removed: %d, want 2", out.Removed)
	}

	w = doJSON(t, h, http.MethodGet, "/info", nil)
	var info struct {
		EntryCount int `json:"entry_count"`
	}
	_ = json.NewDecoder(w.Body).Decode(&info)
	if info.EntryCount != 0 {
		t.Errorf("entry_count after reset: %d", info.EntryCount)
	}
}

func TestHandleInfo(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()
	doJSON(t, h, http.MethodPost, "/registry/table", map[string]interface{}{
		"table_schema": map[string]interface{}{"table_name": "orders"},
	})
	doJSON(t, h, http.MethodPost, "/documents", map[string]interface{}{"document": "note"})

	w := doJSON(t, h, http.MethodGet, "/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var info struct {
		Version    string   `json:"version"`
		EntryCount int      `json:"entry_count"`
		TableCount int      `json:"table_count"`
		Tables     []string `json:"tables"`
	}
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != Version || info.EntryCount != 2 || info.TableCount != 1 {
		t.Errorf("info: %+v", info)
	}
}
