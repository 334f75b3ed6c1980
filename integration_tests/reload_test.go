package integration_tests

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/sift/pkg/api"
	"github.com/rubiojr/sift/pkg/config"
	"github.com/rubiojr/sift/pkg/render"
)

// TestConfigFileReload mirrors what `sift web` does on a config change: the
// watcher fires, the config is reloaded and a new pipeline is swapped in.
func TestConfigFileReload(t *testing.T) {
	env := CreateTestEnv(t, nil)

	server := api.NewServer(env.Pipeline(), env.Store)
	ts := httptest.NewServer(server.Handler(false))
	defer ts.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			t.Errorf("Failed to close watcher: %v", err)
		}
	}()
	if err := watcher.Add(env.ConfigPath); err != nil {
		t.Fatalf("Failed to watch config: %v", err)
	}

	reloaded := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := config.LoadConfig(env.ConfigPath)
				if err != nil {
					// Partial writes show up as parse errors; the next event retries.
					continue
				}
				server.Swap(&api.Backend{Pipeline: NewPipeline(cfg, env.Store), Stats: env.Store})
				select {
				case reloaded <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	if got := fetchPage(t, ts.URL); got != "<main></main>" {
		t.Fatalf("Unexpected initial page: %q", got)
	}

	newTemplate := filepath.Join(env.Dir, "frontend", "v2.html")
	if err := os.WriteFile(newTemplate, []byte("<article>"+render.DefaultPlaceholder+"</article>"), 0644); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}
	cfg := *env.Config
	cfg.TemplatePath = newTemplate
	if err := cfg.SaveConfig(env.ConfigPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatalf("Timed out waiting for config reload")
		}
		if fetchPage(t, ts.URL) == "<article></article>" {
			return
		}
	}
}

func fetchPage(t *testing.T, base string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", base+"/search/?query=nothing", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to get page: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read page: %v", err)
	}
	return string(body)
}
