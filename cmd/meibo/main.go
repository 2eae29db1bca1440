// Package main is the Meibo CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/meibo/internal/cli"
	"github.com/hyperjump/meibo/internal/collection"
	"github.com/hyperjump/meibo/internal/config"
	"github.com/hyperjump/meibo/internal/embedding"
	"github.com/hyperjump/meibo/internal/models"
	"github.com/hyperjump/meibo/internal/registry"
	"github.com/hyperjump/meibo/internal/search"
	"github.com/hyperjump/meibo/internal/server"
	"github.com/hyperjump/meibo/internal/watcher"
	"github.com/hyperjump/meibo/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/meibo/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "query":
		runQuery()
	case "add":
		runAdd()
	case "remove":
		runRemove()
	case "list":
		runList()
	case "reinit":
		runReinit()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("meibo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Manager.Initialize(ctx); err != nil {
		logger.Fatal("Failed to initialize registry", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Registry.Watch && cfg.Registry.SchemasDir != "" {
		sync := registry.NewDirSync(components.Manager, logger)
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.NewWatcher(cfg.Registry.SchemasDir, registry.IsSchemaFile,
			sync.OnUpsert, sync.OnRemove, watchOpts...)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start schema watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Manager, components.Engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// buildQueryText joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// queryArgsReorder moves any flags (and their values) that appear after the
// query text to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument.
func queryArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	nResults := fs.Int("n", 0, "number of results (1-20, default 3)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(queryArgsReorder(os.Args[2:]))

	queryStr := buildQueryText(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: meibo query [flags] <query text>")
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	req := &models.QueryRequest{Query: queryStr, NResults: *nResults}
	var response models.QueryResponse
	if err := postJSON(*serverURL+"/query", req, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryResults(os.Stdout, &response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: meibo add [flags] <schema-file.yaml|json>")
		os.Exit(1)
	}
	schema, err := registry.LoadSchemaFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load schema: %v\n", err)
		os.Exit(1)
	}
	var out map[string]string
	if err := postJSON(*serverURL+"/registry/table", map[string]interface{}{"table_schema": schema}, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Registered table: %s (%s)\n", out["table_name"], out["id"])
}

func runRemove() {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: meibo remove [flags] <table-name>")
		os.Exit(1)
	}
	name := fs.Arg(0)
	req, _ := http.NewRequest(http.MethodDelete,
		*serverURL+"/registry/table/"+url.PathEscape(name), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Remove failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Remove failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Removed table: %s\n", name)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var out struct {
		Tables []string `json:"tables"`
	}
	if err := getJSON(*serverURL+"/registry/tables", &out); err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	format := cli.OutputText
	if *outputFormat == "json" {
		format = cli.OutputJSON
	}
	if err := cli.WriteTableList(os.Stdout, out.Tables, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runReinit() {
	fs := flag.NewFlagSet("reinit", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	var out struct {
		Status  string `json:"status"`
		Removed int    `json:"removed"`
	}
	if err := postJSON(*serverURL+"/registry/reinitialize", nil, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Reinitialize failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reinitialized registry (%d entries removed)\n", out.Removed)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var info struct {
		Version    string   `json:"version"`
		EntryCount int64    `json:"entry_count"`
		TableCount int      `json:"table_count"`
		Tables     []string `json:"tables"`
	}
	if err := getJSON(*serverURL+"/info", &info); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("version:      %s\n", info.Version)
		fmt.Printf("entries:      %d   # all entries in the collection\n", info.EntryCount)
		fmt.Printf("tables:       %d   # registered table schemas\n", info.TableCount)
		for _, name := range info.Tables {
			fmt.Printf("  - %s\n", name)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func postJSON(endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	resp, err := http.Post(endpoint, "application/json", reader)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getJSON(endpoint string, out interface{}) error {
	resp, err := http.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Collection collection.Collection
	Embedder   embedding.Embedder
	Manager    *registry.Manager
	Engine     *search.Engine
}

func (c *Components) Close() {
	if c.Collection != nil {
		_ = c.Collection.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// newEmbedder builds the configured embedder. A failed ONNX model load is an
// error, not a fallback: entries embedded with the real model would compare
// against hash-derived mock vectors and every distance would be meaningless.
// The mock is only used when the config names it.
func newEmbedder(cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "onnx", "":
		embedder, err := embedding.NewONNXEmbedder(
			cfg.ModelPath,
			cfg.Dimensions,
			cfg.MaxTokens,
			cfg.CacheSize,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load embedding model %s: %w", cfg.ModelPath, err)
		}
		return embedder, nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, mock)", cfg.Provider)
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	col, err := collection.New(context.Background(), cfg.Collection.Backend, collection.Options{
		Name:       cfg.Collection.Name,
		Path:       cfg.Collection.Path,
		Dimensions: cfg.Embedding.Dimensions,
		QdrantHost: cfg.Collection.QdrantHost,
		QdrantPort: cfg.Collection.QdrantPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize collection: %w", err)
	}

	embedder, err := newEmbedder(&cfg.Embedding)
	if err != nil {
		_ = col.Close()
		return nil, err
	}

	canonical, err := registry.LoadCanonicalSchemas(cfg.Registry.SchemasDir)
	if err != nil {
		_ = col.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to load canonical schemas: %w", err)
	}
	logger.Info("components initialized",
		zap.String("backend", cfg.Collection.Backend),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Int("canonical_schemas", len(canonical)))

	manager := registry.NewManager(col, embedder, canonical, logger)
	engine := search.NewEngine(col, embedder, logger)

	return &Components{
		Collection: col,
		Embedder:   embedder,
		Manager:    manager,
		Engine:     engine,
	}, nil
}

func printUsage() {
	fmt.Println(`meibo - Semantic database schema registry

Usage:
  meibo server [flags]            Start the HTTP server
  meibo query [flags] <text>      Find tables relevant to a natural-language question
  meibo add [flags] <file>        Register a table schema from a YAML/JSON file
  meibo remove [flags] <name>     Remove a table from the registry
  meibo list [flags]              List registered tables
  meibo reinit [flags]            Clear registry entries and reload canonical schemas
  meibo status [flags]            Show registry status
  meibo version                   Show version
  meibo help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/meibo/config.yaml)
  --debug            Enable debug logging

Client Flags (query, add, remove, list, reinit, status):
  --server string    Server URL (default: http://localhost:8000)
  --output string    Output format: text or json (query, list, status)
  -n int             Number of query results, 1-20 (query; default 3)

Examples:
  meibo server
  meibo query which table holds patient medications
  meibo query --output json "customer orders" -n 5
  meibo add schemas/patients.yaml
  meibo remove patients
  meibo list
  meibo reinit
  meibo status --output json`)
}
