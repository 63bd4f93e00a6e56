package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vango-dev/helmet"
	"github.com/vango-dev/helmet/internal/config"
	"github.com/vango-dev/helmet/pkg/assets"
	"github.com/vango-dev/helmet/pkg/server"
)

type serveOptions struct {
	port        int
	host        string
	configPath  string
	maxSessions int
	cycle       string
	site        string
	manifest    string
	verbose     bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo server",
		Long: `Start the head reconciliation demo server.

Every browser that connects gets its own session. The server mounts a
rotating set of head views into the session and streams insert and
remove operations to the page, which mirrors them into its own <head>.

Examples:
  helmet-demo serve
  helmet-demo serve --port=9090
  helmet-demo serve --cycle=2s --site="My Site"
  helmet-demo serve --manifest=dist/manifest.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default from helmet.json)")
	cmd.Flags().StringVarP(&opts.host, "host", "H", "", "Host to bind to (default from helmet.json)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to helmet.json")
	cmd.Flags().IntVar(&opts.maxSessions, "max-sessions", -1, "Cap concurrent sessions, 0 means no limit")
	cmd.Flags().StringVar(&opts.cycle, "cycle", "", "Interval between head view rotations (e.g. 2s)")
	cmd.Flags().StringVar(&opts.site, "site", "", "Site name woven into demo titles")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "Path to an asset manifest JSON file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runServe(opts serveOptions) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	printBanner()
	fmt.Println("  serve")
	fmt.Println()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.maxSessions >= 0 {
		cfg.Server.MaxSessions = opts.maxSessions
	}
	if opts.cycle != "" {
		cfg.Demo.CycleInterval = opts.cycle
	}
	if opts.site != "" {
		cfg.Demo.SiteName = opts.site
	}
	if opts.manifest != "" {
		cfg.Assets.Manifest = opts.manifest
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	manifest := loadManifest(cfg, opts.manifest)

	driver := newDemoDriver(cfg.Demo.SiteName, cfg.CycleInterval(), slog.Default())

	sessionCfg := server.DefaultSessionConfig()
	sessionCfg.HeartbeatInterval = cfg.Heartbeat()

	srv := server.New(&server.ServerConfig{
		Address:      cfg.Address(),
		MaxSessions:  cfg.Server.MaxSessions,
		Manifest:     manifest,
		Session:      sessionCfg,
		ResumeWindow: cfg.ResumeWindow(),
		OnSession:    driver.drive,
	})

	// The boot head backs /head.html and runs through the package-level
	// engine, the same path a library consumer gets with zero setup.
	var engineOpts []helmet.Option
	if manifest != nil {
		engineOpts = append(engineOpts, helmet.WithManifest(manifest))
	}
	engine := helmet.New(engineOpts...)
	boot := engine.Mount(context.Background(), bootHead(cfg.Demo.SiteName)...)
	defer boot.Unmount()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/", handleIndex)
	r.Get("/head.html", handleBootHead)
	r.Get("/live", srv.HandleWebSocket)
	r.Get("/sessions/{id}/head", srv.HandleSessionHead)
	r.Get("/healthz", srv.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	success("Listening on %s", cfg.URL())
	info("demo page  %s/", cfg.URL())
	info("boot head  %s/head.html", cfg.URL())
	info("metrics    %s/metrics", cfg.URL())
	fmt.Println()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		fmt.Println("\n\n  Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		return httpServer.Shutdown(ctx)
	}
}

// loadConfig resolves the effective configuration. A missing helmet.json
// is not an error; the demo runs fine on defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	cfg, err := config.LoadFromWorkingDir()
	if errors.Is(err, config.ErrNotFound) {
		info("No helmet.json found, using defaults")
		return config.New(), nil
	}
	if err != nil {
		return nil, err
	}
	info("Config loaded from %s", cfg.Path())
	return cfg, nil
}

// loadManifest loads the configured asset manifest, if any. Failure to
// load is downgraded to a warning so the demo still starts.
func loadManifest(cfg *config.Config, override string) *assets.Manifest {
	path := cfg.ManifestPath()
	if override != "" {
		path = override
	}
	if path == "" {
		return nil
	}

	m, err := assets.Load(path)
	if err != nil {
		warn("Asset manifest unavailable: %v", err)
		return nil
	}
	success("Asset manifest: %d entries", m.Len())
	return m
}

// bootHead is the static declaration set mounted into the process-level
// engine at startup. It backs the /head.html snapshot.
func bootHead(site string) []*helmet.VNode {
	return []*helmet.VNode{
		helmet.Title(helmet.Text(site + " · Demo Server")),
		helmet.Meta(helmet.Charset("utf-8")),
		helmet.Meta(helmet.Name("generator"), helmet.Content("helmet-demo/"+version)),
		helmet.Link(helmet.Rel("icon"), helmet.Href("/favicon.svg"), helmet.Type("image/svg+xml")),
	}
}
