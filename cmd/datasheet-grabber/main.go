package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/br00k-3/Datasheet-Grabber/internal/config"
	"github.com/br00k-3/Datasheet-Grabber/internal/input"
	"github.com/br00k-3/Datasheet-Grabber/internal/manufacturer"
	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
	"github.com/br00k-3/Datasheet-Grabber/internal/pipeline"
	"github.com/br00k-3/Datasheet-Grabber/internal/storage"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	partsFile := flag.Arg(0)
	if partsFile == "" {
		usage()
		os.Exit(2)
	}

	cfg := loadConfiguration()
	obs := initializeObservability(cfg)
	defer obs.Close()

	orch := buildOrchestrator(cfg, obs)

	records, err := input.LoadParts(partsFile)
	if err != nil {
		log.Fatalf("Failed to load parts: %v", err)
	}

	// SIGINT/SIGTERM stops intake; in-flight work drains with a bounded
	// grace period and the report still covers every input.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := orch.Run(ctx, records)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	printSummary(summary)
	if summary.Interrupted {
		os.Exit(130)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <parts.csv>\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Downloads the datasheet PDF for every part in the CSV file.")
	fmt.Fprintln(os.Stderr, "Configuration is read from the environment (and a local .env file).")
	flag.PrintDefaults()
}

func loadConfiguration() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// initializeObservability sets up logging and metrics, serving the
// Prometheus endpoint when an address is configured.
func initializeObservability(cfg *config.Config) observability.Provider {
	reg := prometheus.NewRegistry()
	obs := observability.NewProvider(observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		LogOutput:   os.Stderr,
	}, reg)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				obs.Logger("main").Error(context.Background(), "Metrics server stopped", err, nil)
			}
		}()
	}

	return obs
}

func buildOrchestrator(cfg *config.Config, obs observability.Provider) *pipeline.Orchestrator {
	keys, err := config.LoadAPIKeys(cfg.APIKeysPath)
	if err != nil {
		log.Fatalf("Failed to load API keys: %v", err)
	}

	resolver, err := manufacturer.LoadResolver(cfg.ManufacturerDirPath)
	if err != nil {
		log.Fatalf("Failed to load manufacturer directory: %v", err)
	}

	archive, err := storage.NewFromConfig(context.Background(), cfg,
		obs.Logger("storage"), obs.Metrics("storage"))
	if err != nil {
		log.Fatalf("Failed to initialize archive storage: %v", err)
	}

	return pipeline.NewOrchestrator(cfg, keys, resolver, archive, newConsoleSink(os.Stdout), obs)
}

func printSummary(s *pipeline.Summary) {
	fmt.Println()
	fmt.Printf("Run %s finished in %s\n", s.RunID, s.Duration.Round(timePrecision))
	for _, status := range pipeline.StatusOrder {
		if n := s.Counts[status]; n > 0 {
			fmt.Printf("  %-16s %d\n", status, n)
		}
	}
	if s.ReportPath != "" {
		fmt.Printf("Report: %s\n", s.ReportPath)
	}
}
