package integration_tests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/sift/pkg/config"
	"github.com/rubiojr/sift/pkg/fetch"
	"github.com/rubiojr/sift/pkg/render"
	"github.com/rubiojr/sift/pkg/search"
	"github.com/rubiojr/sift/pkg/storage"
)

// TestSite serves a handful of pages with known titles and icons.
//
//	/go      title "The Go Programming Language", icon /images/favicon-gopher.svg
//	/sqlite  title "SQLite Home Page", no icon link
//	/apple   apple-touch-icon with an absolute href
//	/slow    answers after 3 seconds
//	/gone    404
//	/binary  image/png body
func StartTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/go", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!DOCTYPE html><html><head>
<title>The Go Programming Language</title>
<link rel="stylesheet" href="/css/styles.css">
<link rel="icon" href="/images/favicon-gopher.svg" type="image/svg+xml">
</head><body>go</body></html>`)
	})
	mux.HandleFunc("/sqlite", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>SQLite Home Page</title></head></html>`)
	})
	mux.HandleFunc("/apple", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Apple</title><link rel="apple-touch-icon" href="https://cdn.example/touch.png"></head></html>`)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(3 * time.Second):
			fmt.Fprint(w, `<title>Too late</title>`)
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/gone", http.NotFound)
	mux.HandleFunc("/binary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG<title>not text</title>"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestEnv is a config file, an index and a template in a temp directory.
type TestEnv struct {
	Dir        string
	ConfigPath string
	Config     *config.Config
	Store      *storage.Store
}

// CreateTestEnv writes a config pointing at a fresh index and a minimal
// template, and loads index (word -> urls) into it.
func CreateTestEnv(t *testing.T, index map[string][]string) *TestEnv {
	t.Helper()
	dir := t.TempDir()

	tmplPath := filepath.Join(dir, "frontend", "search.html")
	if err := os.MkdirAll(filepath.Dir(tmplPath), 0755); err != nil {
		t.Fatalf("Failed to create template dir: %v", err)
	}
	if err := os.WriteFile(tmplPath, []byte("<main>"+render.DefaultPlaceholder+"</main>"), 0644); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
database_path = %q
template_path = %q

[enrich]
concurrency = 4
fetch_timeout = "500ms"
`, filepath.Join(dir, "index.db"), tmplPath)))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	configPath := filepath.Join(dir, "config.toml")
	if err := cfg.SaveConfig(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Warning: failed to close store: %v", err)
		}
	})

	for word, urls := range index {
		if err := store.Put(context.Background(), word, urls); err != nil {
			t.Fatalf("Failed to put %q: %v", word, err)
		}
	}

	return &TestEnv{Dir: dir, ConfigPath: configPath, Config: cfg, Store: store}
}

// Pipeline builds a pipeline from the env config the way `sift web` does.
func (e *TestEnv) Pipeline() *search.Pipeline {
	return NewPipeline(e.Config, e.Store)
}

func NewPipeline(cfg *config.Config, store *storage.Store) *search.Pipeline {
	client := fetch.New(fetch.Options{
		MaxBodyBytes: cfg.Enrich.MaxBodyBytes,
		MaxRedirects: cfg.Enrich.MaxRedirects,
		UserAgent:    cfg.Enrich.UserAgent,
	})
	return search.NewPipeline(store, client,
		render.NewBuilder(cfg.TemplatePath, cfg.Placeholder),
		search.WithConcurrency(cfg.Enrich.Concurrency),
		search.WithFetchTimeout(cfg.Enrich.FetchTimeout.Duration),
	)
}

// Fragment is the rendered result line expected for one url.
func Fragment(url, title, favicon string) string {
	return fmt.Sprintf(`<div class="result"><img src="%s" class="favicon" alt=""><a href="%s">%s</a></div>`,
		favicon, url, title)
}

// ExpectPage compares a rendered page against the template filled with
// fragments.
func ExpectPage(t *testing.T, got string, fragments ...string) {
	t.Helper()
	want := "<main>" + strings.Join(fragments, "") + "</main>"
	if got != want {
		t.Errorf("Unexpected page:\n got: %s\nwant: %s", got, want)
	}
}
