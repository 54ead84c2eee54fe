// Package main is the entry point for the virtend mock server: a
// standalone HTTP server that answers requests from fixture-defined
// virtual endpoints and forwards everything else to an optional
// upstream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/virtend/virtend"
	"github.com/virtend/virtend/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	fixturesPath   string
	listenAddr     string
	adminAddr      string
	adminTokenHash string
	upstream       string
	otlpEndpoint   string
	logLevel       string
	logFormat      string
	cacheTTL       time.Duration
	watch          bool
	showVersion    bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	app := initApplication(flags, logger)
	runServer(app, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	fixturesPath := flag.String("fixtures", getEnvOrDefault("VIRTEND_FIXTURES", "configs/fixtures.yaml"),
		"Path to the fixture file (empty runs without fixtures)")
	listenAddr := flag.String("listen", getEnvOrDefault("VIRTEND_LISTEN", ":8080"),
		"Address the mock server listens on")
	adminAddr := flag.String("admin", getEnvOrDefault("VIRTEND_ADMIN", ""),
		"Address the admin API listens on (empty disables it)")
	adminTokenHash := flag.String("admin-token-hash", getEnvOrDefault("VIRTEND_ADMIN_TOKEN_HASH", ""),
		"Bcrypt hash of the admin bearer token (empty leaves the API open)")
	upstream := flag.String("upstream", getEnvOrDefault("VIRTEND_UPSTREAM", ""),
		"Base URL unmatched requests are forwarded to (empty rejects them)")
	otlpEndpoint := flag.String("otlp-endpoint", getEnvOrDefault("VIRTEND_OTLP_ENDPOINT", ""),
		"OTLP gRPC endpoint for traces (empty disables tracing)")
	logLevel := flag.String("log-level", getEnvOrDefault("VIRTEND_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("VIRTEND_LOG_FORMAT", "json"),
		"Log format (json, console)")
	cacheTTL := flag.Duration("cache-ttl", 0, "Response cache TTL (0 keeps the default)")
	watch := flag.Bool("watch", false, "Reload fixtures when the file changes")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		fixturesPath:   *fixturesPath,
		listenAddr:     *listenAddr,
		adminAddr:      *adminAddr,
		adminTokenHash: *adminTokenHash,
		upstream:       *upstream,
		otlpEndpoint:   *otlpEndpoint,
		logLevel:       *logLevel,
		logFormat:      *logFormat,
		cacheTTL:       *cacheTTL,
		watch:          *watch,
		showVersion:    *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("virtend version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// fatal logs the error and exits. The logger interface carries no Fatal
// level, so the exit lives here.
func fatal(logger observability.Logger, msg string, err error) {
	logger.Error(msg, observability.Error(err))
	_ = logger.Sync()
	os.Exit(1)
}

// application holds all application components.
type application struct {
	interceptor *virtend.Interceptor
	server      *http.Server
	admin       *http.Server
	stopWatch   func()
}

// initApplication initializes all application components.
func initApplication(flags cliFlags, logger observability.Logger) *application {
	logger.Info("starting virtend",
		observability.String("version", version),
		observability.String("listen", flags.listenAddr),
		observability.String("fixtures", flags.fixturesPath),
		observability.String("upstream", flags.upstream),
	)

	in, err := virtend.New(buildOptions(flags, logger)...)
	if err != nil {
		fatal(logger, "failed to create interceptor", err)
	}

	app := &application{
		interceptor: in,
		server: &http.Server{
			Addr:              flags.listenAddr,
			Handler:           &dispatchHandler{interceptor: in, logger: logger},
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	if flags.adminAddr != "" {
		app.admin = newAdminServer(in, flags)
	}

	loadFixtures(app, flags, logger)
	return app
}

// buildOptions translates flags into interceptor options.
func buildOptions(flags cliFlags, logger observability.Logger) []virtend.Option {
	opts := []virtend.Option{virtend.WithLogger(logger)}

	if flags.upstream != "" {
		opts = append(opts, virtend.WithBaseURL(flags.upstream))
	}
	if flags.cacheTTL > 0 {
		opts = append(opts, virtend.WithCacheTTL(flags.cacheTTL))
	}
	if flags.otlpEndpoint != "" {
		opts = append(opts, virtend.WithTracer(virtend.TracerConfig{
			ServiceName:  "virtend",
			OTLPEndpoint: flags.otlpEndpoint,
			SamplingRate: 1.0,
			Enabled:      true,
		}))
	}

	return opts
}

// newAdminServer builds the admin API server.
func newAdminServer(in *virtend.Interceptor, flags cliFlags) *http.Server {
	var opts []virtend.AdminOption
	if flags.adminTokenHash != "" {
		opts = append(opts, virtend.WithAdminToken(flags.adminTokenHash))
	}

	return &http.Server{
		Addr:              flags.adminAddr,
		Handler:           in.AdminHandler(opts...),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// loadFixtures registers the fixture endpoints, optionally watching the
// file for changes.
func loadFixtures(app *application, flags cliFlags, logger observability.Logger) {
	if flags.fixturesPath == "" {
		logger.Info("no fixtures configured")
		return
	}

	if flags.watch {
		stop, err := app.interceptor.WatchFixtures(flags.fixturesPath)
		if err != nil {
			fatal(logger, "failed to watch fixtures", err)
		}
		app.stopWatch = stop
	} else if err := app.interceptor.LoadFixtures(flags.fixturesPath); err != nil {
		fatal(logger, "failed to load fixtures", err)
	}

	logger.Info("fixtures loaded",
		observability.String("path", flags.fixturesPath),
		observability.Int("endpoints", len(app.interceptor.Endpoints())),
		observability.Bool("watch", flags.watch),
	)
}

// runServer runs the HTTP servers and handles shutdown.
func runServer(app *application, logger observability.Logger) {
	go serveHTTP(app.server, "mock server", logger)
	if app.admin != nil {
		go serveHTTP(app.admin, "admin server", logger)
	}

	waitForShutdown(app, logger)
}

// serveHTTP serves one listener until it is shut down.
func serveHTTP(server *http.Server, name string, logger observability.Logger) {
	logger.Info("starting "+name, observability.String("address", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(name+" error", observability.Error(err))
	}
}

// waitForShutdown waits for a shutdown signal and performs graceful
// shutdown: stop reloading fixtures, drain the listeners, then tear
// down the interceptor.
func waitForShutdown(app *application, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if app.stopWatch != nil {
		app.stopWatch()
	}

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop mock server gracefully", observability.Error(err))
	}

	if app.admin != nil {
		if err := app.admin.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop admin server gracefully", observability.Error(err))
		}
	}

	app.interceptor.Destroy()

	logger.Info("mock server stopped")
}

// dispatchHandler bridges inbound HTTP traffic onto the interceptor.
// Request URLs stay relative, so unmatched requests resolve against the
// upstream base instead of the mock server itself.
type dispatchHandler struct {
	interceptor *virtend.Interceptor
	logger      observability.Logger
}

func (h *dispatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &virtend.Request{
		Method: r.Method,
		URL:    r.URL.String(),
		Header: r.Header.Clone(),
	}

	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(data) > 0 {
			req.Body = data
		}
	}

	resp, err := h.interceptor.Do(r.Context(), req)
	if err != nil {
		var statusErr *virtend.StatusError
		if errors.As(err, &statusErr) {
			writeResponse(w, virtend.NewResponse(statusErr.Code, nil, statusErr.Body))
			return
		}

		h.logger.Error("dispatch failed",
			observability.String("method", r.Method),
			observability.String("url", r.URL.String()),
			observability.Error(err),
		)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeResponse(w, resp)
}

// writeResponse copies a dispatched response onto the wire.
func writeResponse(w http.ResponseWriter, resp *virtend.Response) {
	header := w.Header()
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
