// Package main is the fulltextable CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/fulltextable/internal/cli"
	"github.com/hyperjump/fulltextable/internal/config"
	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/server"
	"github.com/hyperjump/fulltextable/internal/storage"
	"github.com/hyperjump/fulltextable/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/fulltextable/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
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
	case "search":
		runSearch()
	case "reindex":
		runReindex()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("fulltextable version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger and components, exiting on failure.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (index writes, search requests, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	srv := server.NewServer(components.Engine, components.Content, components.Storage, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: fulltextable search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Every word is matched as a prefix.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  fulltextable search apple
  fulltextable search -only Article,Comment appl
  fulltextable search -parent 12 -refs apple       # comments of article 12, references only
  fulltextable search -page 2 -per-page 20 apple
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
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

// searchFlags are the parsed search flag values; set records which were given explicitly.
type searchFlags struct {
	limit, offset, page, perPage int
	only, parent                 string
	refs                         bool
	set                          map[string]bool
}

// buildSearchRequest turns search flags into a request. Unset -limit and -offset
// leave the engine defaults in place; -limit 0 asks for every match.
func buildSearchRequest(query string, f searchFlags) (*models.SearchRequest, error) {
	req := &models.SearchRequest{Query: query, Page: f.page, PageSize: f.perPage}
	if f.set["limit"] {
		req.Limit = models.Int(f.limit)
	}
	if f.set["offset"] {
		req.Offset = models.Int(f.offset)
	}
	if f.only != "" {
		for _, t := range strings.Split(f.only, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.OnlyTypes = append(req.OnlyTypes, t)
			}
		}
	}
	if f.set["parent"] {
		keys := models.ParentKeys{}
		for _, p := range strings.Split(f.parent, ",") {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			k, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid parent key %q", p)
			}
			keys = append(keys, k)
		}
		req.ParentKeys = keys
	}
	if f.refs {
		req.Hydrate = models.Bool(false)
	}
	return req, nil
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", searchConfigPathFromArgs(searchArgs, defaultConfigPath), "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	var f searchFlags
	fs.IntVar(&f.limit, "limit", 10, "maximum number of results (0 = all)")
	fs.IntVar(&f.offset, "offset", 0, "number of results to skip")
	fs.IntVar(&f.page, "page", 0, "page number (enables page mode)")
	fs.IntVar(&f.perPage, "per-page", 0, "page size in page mode (default from config)")
	fs.StringVar(&f.only, "only", "", "comma-separated record types to search")
	fs.StringVar(&f.parent, "parent", "", "comma-separated parent keys to restrict to")
	fs.BoolVar(&f.refs, "refs", false, "return (type, id) references instead of records")
	outputFormat := fs.String("format", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	f.set = map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	req, err := buildSearchRequest(queryStr, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var results *models.Results
	if *serverURL != "" {
		// Use HTTP API when server is running (avoids index lock conflicts).
		results, err = searchViaHTTP(*serverURL, req)
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		results, err = components.Engine.Search(context.Background(), req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.Results, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var results models.Results
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &results, nil
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	_, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	n, err := components.Reindex(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reindex failed after %d records: %v\n", n, err)
		os.Exit(1)
	}
	fmt.Printf("Reindexed %d records\n", n)
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file path to write")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*configPath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

// writeDefaultConfig writes a config with every default filled in. An existing
// file is left alone unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Rows           int64                  `json:"rows"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		rows, err := components.Storage.CountRows(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count rows failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Rows: rows,
			Config: map[string]interface{}{
				"backend":       cfg.Storage.Backend,
				"table":         cfg.Storage.Table,
				"database_path": cfg.Storage.DatabasePath,
			},
		}
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("rows:               %d   # count of index rows\n", status.Rows)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d   # index on disk\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"backend", "table", "database_path", "bleve_index_path", "content_database_path", "strict_references"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-20s%v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func printUsage() {
	fmt.Println(`fulltextable - Full-text search across heterogeneous records

Usage:
  fulltextable server [flags]           Start the HTTP server
  fulltextable search [flags] <query>   Search indexed records
  fulltextable reindex [flags]          Rebuild index rows for every stored record
  fulltextable status [flags]           Show index status
  fulltextable init [flags]             Write a default config file
  fulltextable version                  Show version
  fulltextable help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/fulltextable/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --limit int        Maximum results (default: 10; 0 = all)
  --offset int       Results to skip
  --page int         Page number; switches to page mode
  --per-page int     Page size in page mode (default: 30)
  --only string      Comma-separated record types (e.g. Article,Comment)
  --parent string    Comma-separated parent keys
  --refs             Return (type, id) references instead of records
  --format string    Output format: text or json (default: text)

Init Flags:
  --config string    Path to write (default: config.yaml)
  --force            Overwrite an existing file

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --format string    Output format: text or json (default: text)

Environment:
  FULLTEXT_ROW_TABLE, FULLTEXT_BACKEND, FULLTEXT_DATABASE_PATH, FULLTEXT_PORT, ... override
  the config file; a .env file next to the config or in the working directory is loaded first.

Examples:
  fulltextable server
  fulltextable search apple pie
  fulltextable search --only Comment --parent 3 apple
  fulltextable search --format json "apple"
  fulltextable reindex
  fulltextable status --format json`)
}
