package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/config"
	"github.com/comfortablynumb/pmp-unit-test/internal/loader"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocks"
	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"github.com/comfortablynumb/pmp-unit-test/internal/requests"
	"github.com/comfortablynumb/pmp-unit-test/internal/watcher"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

var (
	configFile  = flag.String("config", "", "Path to a harness config file (default $PMP_CONFIG)")
	fixturesDir = flag.String("fixtures-dir", "", "Comma-separated fixture directories, overriding the config")
	watch       = flag.Bool("watch", false, "Keep running and re-validate fixtures when they change")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while watching (e.g. ':9090')")
	recordURLs  = flag.String("record", "", "Comma-separated URLs to fetch and export as a fixture file")
	output      = flag.String("output", "", "Output path for recorded fixtures (default stdout)")
	dev         = flag.Bool("dev", false, "Use development logging")
)

var (
	passLine = color.New(color.FgGreen)
	failLine = color.New(color.FgRed)
	warnLine = color.New(color.FgYellow)
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	if err := observability.InitLogger(cfg.LogLevel, *dev); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer observability.Sync()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracing("pmp-unit-test", cfg.OTLPEndpoint)
		if err != nil {
			observability.Warn("Failed to initialize tracing", zap.Error(err))
		} else {
			defer shutdown(context.Background()) //nolint:errcheck // cleanup
		}
	}

	if *recordURLs != "" {
		if err := record(cfg, splitList(*recordURLs), *output); err != nil {
			log.Fatalf("Failed to record fixtures: %v\n", err)
		}
		return
	}

	if len(cfg.FixturesDirs) == 0 {
		fmt.Println("Error: no fixture directories, set --fixtures-dir or " + config.EnvFixturesDir)
		flag.Usage()
		os.Exit(1)
	}

	valid := validate(cfg.FixturesDirs)
	if !*watch {
		if !valid {
			os.Exit(1)
		}
		return
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	w, err := watcher.NewWatcher(func() error {
		validate(cfg.FixturesDirs)
		return nil
	}, cfg.FixturesDirs...)
	if err != nil {
		log.Fatalf("Failed to create watcher: %v\n", err)
	}
	defer w.Close() //nolint:errcheck // cleanup

	if err := w.Start(); err != nil {
		log.Fatalf("Failed to start watcher: %v\n", err)
	}
	log.Printf("Watching %d directory(ies) for changes\n", len(cfg.FixturesDirs))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("\nShutting down gracefully...")
}

// loadConfig reads the config file and environment, then applies the flags
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if *fixturesDir != "" {
		cfg.FixturesDirs = splitList(*fixturesDir)
	}
	return cfg, nil
}

// validate loads every fixture file under dirs and prints one line per file.
// It reports whether all of them are valid.
func validate(dirs []string) bool {
	l, err := loader.NewLoader(dirs...)
	if err != nil {
		failLine.Printf("✗ %v\n", err)
		return false
	}
	if err := l.LoadAll(); err != nil {
		failLine.Printf("✗ %v\n", err)
		return false
	}

	results := l.Results()
	invalid := 0
	for _, r := range results {
		if r.Validation.Valid {
			passLine.Printf("✓ %s (%d fixtures)\n", r.Path, r.Fixtures)
		} else {
			invalid++
			failLine.Printf("✗ %s\n", r.Path)
			for _, e := range r.Validation.Errors {
				fmt.Printf("    %s\n", e)
			}
		}
		for _, w := range r.Validation.Warnings {
			warnLine.Printf("    ! %s\n", w)
		}
	}

	if invalid > 0 {
		failLine.Printf("%d of %d fixture file(s) invalid\n", invalid, len(results))
		return false
	}
	passLine.Printf("%d fixture file(s) valid, %d fixture(s)\n", len(results), len(l.GetFixtures()))
	return true
}

// record fetches urls through the HTTP mocker with recording on and writes
// the responses as a fixture file.
func record(cfg *config.Config, urls []string, path string) error {
	remote := requests.NewNetTransport(requests.NewClient(cfg.PassthroughTimeout))
	h := mocks.NewHTTP(cms.NewEnv(), mocks.WithRemoteTransport(remote))
	defer h.Reset()

	h.Enable()
	h.Recorder().Start()

	for _, u := range urls {
		resp, err := requests.Get(context.Background(), u, nil)
		if err != nil {
			failLine.Fprintf(os.Stderr, "✗ %s: %v\n", u, err)
			continue
		}
		passLine.Fprintf(os.Stderr, "✓ %s (%d)\n", u, resp.StatusCode)
	}

	if h.Recorder().Count() == 0 {
		return errors.New("no responses recorded")
	}

	data, err := h.Recorder().ExportYAML()
	if err != nil {
		return err
	}

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Printf("✓ Fixtures saved to: %s\n", path)
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("Serving metrics on %s/metrics\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		observability.Error("Metrics server failed", zap.Error(err))
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
