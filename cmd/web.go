package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/sift/pkg/api"
	"github.com/rubiojr/sift/pkg/config"
	"github.com/rubiojr/sift/pkg/log"
	"github.com/rubiojr/sift/pkg/storage"
	"github.com/urfave/cli/v3"
)

// WebCommand creates the web command serving the search page and the API
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the search web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides config)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (overrides config)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("host"), c.String("port"))
		},
	}
}

// webReloader rebuilds the serving backend when the configuration changes
type webReloader struct {
	configPath string
	server     *api.Server
	logger     *log.Logger
	// closeDelay lets requests still holding the previous index finish
	// before it is closed.
	closeDelay time.Duration

	mu    sync.Mutex
	cfg   *config.Config
	store *storage.Store
}

func newWebReloader(configPath string) (*webReloader, error) {
	cfg, store, err := openIndex(configPath)
	if err != nil {
		return nil, err
	}

	return &webReloader{
		configPath: configPath,
		server:     api.NewServer(newPipeline(cfg, store), store),
		logger:     log.ForService("web"),
		closeDelay: 30 * time.Second,
		cfg:        cfg,
		store:      store,
	}, nil
}

// reload re-reads the configuration and swaps in a new pipeline. The index
// is reopened only when its path changed.
func (r *webReloader) reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := config.LoadConfig(r.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := r.store
	if cfg.DatabasePath != r.cfg.DatabasePath {
		store, err = storage.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening index %s: %w", cfg.DatabasePath, err)
		}
		r.logger.Infof("Switched index to %s", cfg.DatabasePath)
	}

	r.server.Swap(&api.Backend{Pipeline: newPipeline(cfg, store), Stats: store})

	if store != r.store {
		old := r.store
		time.AfterFunc(r.closeDelay, func() { closeStore(old) })
	}
	if cfg.Web != r.cfg.Web {
		r.logger.Warnf("Web settings changed, restart sift web to apply them")
	}

	r.cfg, r.store = cfg, store
	return nil
}

func (r *webReloader) config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func (r *webReloader) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	closeStore(r.store)
}

// startWebServer serves until interrupted, reloading on config changes
func startWebServer(ctx context.Context, configPath, host, port string) error {
	logger := log.ForService("web")

	reloader, err := newWebReloader(configPath)
	if err != nil {
		return err
	}
	defer reloader.close()

	webCfg := reloader.config().Web
	if host != "" {
		webCfg.Host = host
	}
	if port != "" {
		webCfg.Port = port
	}

	server := &http.Server{
		Addr:              webCfg.Addr(),
		Handler:           reloader.server.Handler(webCfg.Compress),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting web server on http://%s", ln.Addr())
		logger.Infof("Available endpoints:")
		logger.Infof("  GET /                  - Search form")
		logger.Infof("  GET /search/?query=    - Results page")
		logger.Infof("  GET /api/search?query= - Results as JSON")
		logger.Infof("  GET /ws/search?query=  - Streamed results (websocket)")
		logger.Infof("  GET /api/stats         - Index statistics")
		logger.Infof("  GET /health            - Health check")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("Failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("Failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("Failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("Watching config file for changes: %s", configPath)
		}
		events, watchErrors = watcher.Events, watcher.Errors
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return shutdown(server, logger)
		case err := <-serveErr:
			return fmt.Errorf("web server failed: %w", err)
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				logger.Infof("Received SIGHUP, reloading configuration...")
				reloadAndLog(reloader, logger)
				continue
			}
			return shutdown(server, logger)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Infof("Config file changed: %s (event: %s), reloading configuration...", event.Name, event.Op.String())

			// Editors replace the file on save, the watch has to be re-added.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Infof("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("Failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reloadAndLog(reloader, logger)
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("Config file watcher error: %v", err)
		}
	}
}

func reloadAndLog(r *webReloader, logger *log.Logger) {
	if err := r.reload(); err != nil {
		logger.Errorf("Failed to reload configuration: %v", err)
		return
	}
	logger.Infof("Configuration reloaded successfully")
}

func shutdown(server *http.Server, logger *log.Logger) error {
	logger.Infof("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
