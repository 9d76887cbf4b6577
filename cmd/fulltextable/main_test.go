package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/fulltextable/internal/config"
	"github.com/hyperjump/fulltextable/internal/content"
	"github.com/hyperjump/fulltextable/internal/models"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"apple pie", "-limit", "5"},
			expected: []string{"-limit", "5", "apple pie"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-only", "Article", "apple pie"},
			expected: []string{"-only", "Article", "apple pie"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"apple pie"},
			expected: []string{"apple pie"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-page", "2"},
			expected: []string{"-page", "2", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"apple"}, "apple"},
		{"multiple words", []string{"apple", "pie"}, "apple pie"},
		{"single quoted phrase", []string{"apple pie"}, "apple pie"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestSearchConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-limit", "5", "query"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "query"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"config at end", []string{"query", "-config", "/end.yaml"}, "/default.yaml", "/end.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchConfigPathFromArgs(tt.args, tt.defaultPath)
			if got != tt.want {
				t.Errorf("searchConfigPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildSearchRequest(t *testing.T) {
	req, err := buildSearchRequest("apple", searchFlags{limit: 10, set: map[string]bool{}})
	if err != nil {
		t.Fatal(err)
	}
	if req.Limit != nil || req.Offset != nil || req.ParentKeys != nil || !req.Hydrated() {
		t.Errorf("defaults should leave optional fields unset: %+v", req)
	}

	req, err = buildSearchRequest("apple", searchFlags{
		limit: 0, offset: 4, only: "Article, Comment,", parent: "3,7", refs: true,
		set: map[string]bool{"limit": true, "offset": true, "parent": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if req.Limit == nil || *req.Limit != 0 || req.Offset == nil || *req.Offset != 4 {
		t.Errorf("limit/offset: got %v/%v", req.Limit, req.Offset)
	}
	if !reflect.DeepEqual(req.OnlyTypes, []string{"Article", "Comment"}) {
		t.Errorf("only types: got %v", req.OnlyTypes)
	}
	if !reflect.DeepEqual(req.ParentKeys, models.ParentKeys{3, 7}) {
		t.Errorf("parent keys: got %v", req.ParentKeys)
	}
	if req.Hydrated() {
		t.Error("-refs should disable hydration")
	}

	// An explicitly empty parent list matches nothing rather than everything.
	req, err = buildSearchRequest("apple", searchFlags{set: map[string]bool{"parent": true}})
	if err != nil {
		t.Fatal(err)
	}
	if req.ParentKeys == nil || len(req.ParentKeys) != 0 {
		t.Errorf("empty -parent: got %#v", req.ParentKeys)
	}

	if _, err := buildSearchRequest("apple", searchFlags{parent: "x", set: map[string]bool{"parent": true}}); err == nil {
		t.Error("expected error for non-numeric parent key")
	}
}

func TestSearchViaHTTP_keepsEmptyParentFilter(t *testing.T) {
	var got models.SearchRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(&models.Results{Query: got.Query})
	}))
	defer ts.Close()

	req, err := buildSearchRequest("apple", searchFlags{parent: ",", set: map[string]bool{"parent": true}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := searchViaHTTP(ts.URL, req); err != nil {
		t.Fatal(err)
	}
	if got.ParentKeys == nil || len(got.ParentKeys) != 0 {
		t.Errorf("server saw parent keys %#v, want an empty non-nil set", got.ParentKeys)
	}

	got = models.SearchRequest{}
	req, _ = buildSearchRequest("apple", searchFlags{set: map[string]bool{}})
	if _, err := searchViaHTTP(ts.URL, req); err != nil {
		t.Fatal(err)
	}
	if got.ParentKeys != nil {
		t.Errorf("server saw parent keys %#v, want no filter", got.ParentKeys)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")
	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if cfg.Storage.Backend != config.BackendSQLite || cfg.Search.DefaultLimit != 10 {
		t.Errorf("unexpected defaults: backend=%q limit=%d", cfg.Storage.Backend, cfg.Search.DefaultLimit)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected error when config already exists")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("force overwrite: %v", err)
	}
}

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.Backend = backend
	cfg.Storage.DatabasePath = filepath.Join(dir, "fulltext.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Storage.ContentDatabasePath = filepath.Join(dir, "content.db")
	config.ApplyDefaults(cfg)
	return cfg
}

func TestInitializeComponents(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendBleve} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			c, err := initializeComponents(cfg, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()

			ctx := context.Background()
			a := &content.Article{Title: "apple pie"}
			if err := c.Content.CreateArticle(ctx, a); err != nil {
				t.Fatal(err)
			}
			res, err := c.Engine.Search(ctx, &models.SearchRequest{Query: "appl"})
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Hits) != 1 || res.Hits[0].Record.(*content.Article).ID != a.ID {
				t.Errorf("search hits = %+v", res.Hits)
			}
			if names := c.Registry.Names(); !reflect.DeepEqual(names, []string{content.TypeArticle, content.TypeComment}) {
				t.Errorf("registered types = %v", names)
			}
		})
	}
}

func TestInitializeComponents_reindexRebuildsLostRows(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite)
	c, err := initializeComponents(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a := &content.Article{Title: "apple pie"}
	if err := c.Content.CreateArticle(ctx, a); err != nil {
		t.Fatal(err)
	}
	c.Close()

	// A fresh row table (as after a table rename) starts empty until reindexed.
	cfg.Storage.Table = "fulltext_rows_v2"
	c, err = initializeComponents(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if n, _ := c.Storage.CountRows(ctx); n != 0 {
		t.Fatalf("new table rows = %d, want 0", n)
	}
	n, err := c.Reindex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("reindexed = %d, want 1", n)
	}
	if rows, _ := c.Storage.CountRows(ctx); rows != 1 {
		t.Errorf("rows after reindex = %d, want 1", rows)
	}
	res, err := c.Engine.Search(ctx, &models.SearchRequest{Query: "apple"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Hits) != 1 {
		t.Errorf("search after reindex: got %d hits, want 1", len(res.Hits))
	}
}

func TestComponentsReindex_bleveHasNoRebuildStep(t *testing.T) {
	c, err := initializeComponents(testConfig(t, config.BackendBleve), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()
	if err := c.Content.CreateArticle(ctx, &content.Article{Title: "apple pie"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Storage.(rebuilder); ok {
		t.Fatal("bleve storage should not expose Rebuild")
	}
	n, err := c.Reindex(ctx)
	if err != nil || n != 1 {
		t.Errorf("Reindex = %d, %v; want 1", n, err)
	}
}

func TestOpenStorage_unknownBackend(t *testing.T) {
	if _, err := openStorage(&config.StorageConfig{Backend: "mysql"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
