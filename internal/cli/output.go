// Package cli provides CLI output utilities for Meibo.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hyperjump/meibo/internal/models"
)

// OutputFormat is the format for query result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteQueryResults writes query results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeQueryResultsText(w, response)
		return nil
	}
}

func writeQueryResultsText(w io.Writer, response *models.QueryResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(response.Results), response.Query)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", i+1, result.Distance)
		if name, ok := result.Metadata["table_name"]; ok {
			fmt.Fprintf(w, "Table: %s\n", name)
		}
		for _, k := range sortedKeys(result.Metadata) {
			if k == "table_name" {
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", k, result.Metadata[k])
		}
		fmt.Fprintf(w, "\n%s\n", Truncate(result.Document, 300))
		fmt.Fprintln(w)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteTableList writes table names to w, one per line.
func WriteTableList(w io.Writer, tables []string, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"tables": tables, "count": len(tables)})
	default:
		for _, name := range tables {
			fmt.Fprintln(w, name)
		}
		return nil
	}
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
