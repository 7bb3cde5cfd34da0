// Package main wires together the crawler binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/api"
	chromedpbrowser "github.com/JakeFAU/historic-sites-crawler/internal/browser/chromedp"
	staticbrowser "github.com/JakeFAU/historic-sites-crawler/internal/browser/static"
	"github.com/JakeFAU/historic-sites-crawler/internal/clock/system"
	"github.com/JakeFAU/historic-sites-crawler/internal/config"
	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
	"github.com/JakeFAU/historic-sites-crawler/internal/id/uuid"
	"github.com/JakeFAU/historic-sites-crawler/internal/logging"
	"github.com/JakeFAU/historic-sites-crawler/internal/operator"
	"github.com/JakeFAU/historic-sites-crawler/internal/policy/pacing"
	pubsubpublisher "github.com/JakeFAU/historic-sites-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/historic-sites-crawler/internal/storage/csvfile"
	gcsstore "github.com/JakeFAU/historic-sites-crawler/internal/storage/gcs"
	localstore "github.com/JakeFAU/historic-sites-crawler/internal/storage/local"
	memorystore "github.com/JakeFAU/historic-sites-crawler/internal/storage/memory"
	"github.com/JakeFAU/historic-sites-crawler/internal/storage/postgres"
	"github.com/JakeFAU/historic-sites-crawler/internal/summarize"
)

const shutdownGrace = 15 * time.Second

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	serveMode := flag.Bool("serve", false, "Serve the HTTP trigger instead of running one crawl")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, *serveMode, logger)
	stop()
	if err != nil {
		logger.Error("sitecrawler exited with error", zap.Error(err))
	}
	if syncErr := logging.Sync(logger); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, serveMode bool, logger *zap.Logger) error {
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	hint := operator.ConsoleHint
	if serveMode {
		hint = operator.HTTPHint
	}
	gate := operator.NewGate(os.Stdout, hint, logger.Named("operator"))
	deps, err := buildDependencies(ctx, cfg, gate, logger, func(fn func()) { closers = append(closers, fn) })
	if err != nil {
		return err
	}

	orch, err := crawler.NewOrchestrator(cfg.CrawlerSettings(), cfg.ExtractRules(), deps, logger.Named("crawler"))
	if err != nil {
		// The orchestrator did not take ownership; release what was opened.
		_ = deps.Browser.Close()
		_ = deps.Store.Close()
		return fmt.Errorf("build orchestrator: %w", err)
	}
	defer func() {
		if cerr := orch.Close(); cerr != nil {
			logger.Warn("close crawler failed", zap.Error(cerr))
		}
	}()

	if serveMode {
		return serve(ctx, cfg, orch, gate, logger)
	}

	go gate.ListenConsole(ctx, os.Stdin)
	report, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl run %s: %w", report.RunID, err)
	}
	logger.Info("records collected",
		zap.Int("count", report.Persisted),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return nil
}

func buildDependencies(
	ctx context.Context,
	cfg config.Config,
	gate *operator.Gate,
	logger *zap.Logger,
	onClose func(func()),
) (crawler.Dependencies, error) {
	pacer, err := pacing.New(cfg.PacingSettings())
	if err != nil {
		return crawler.Dependencies{}, fmt.Errorf("build pacer: %w", err)
	}

	policy := crawler.Policy(cfg.Summarizer.FailurePolicy)
	var client summarize.Client
	if cfg.Summarizer.Endpoint != "" {
		client = summarize.NewHTTPClient(cfg.Summarizer.Endpoint, cfg.Summarizer.APIKey, cfg.Summarizer.Timeout)
	} else {
		logger.Warn("summarizer.endpoint not set; descriptions use the sentence fallback",
			zap.String("failure_policy", string(policy)))
	}
	summarizer, err := summarize.NewAdapter(client, policy, logger.Named("summarizer"))
	if err != nil {
		return crawler.Dependencies{}, fmt.Errorf("build summarizer: %w", err)
	}

	dumps, err := buildDumps(cfg)
	if err != nil {
		return crawler.Dependencies{}, err
	}

	deps := crawler.Dependencies{
		Summarizer: summarizer,
		Operator:   gate,
		Pacer:      pacer,
		Dumps:      dumps,
		Clock:      system.New(),
		IDs:        uuid.New(),
	}

	if cfg.Storage.GCSBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			return crawler.Dependencies{}, fmt.Errorf("create gcs client: %w", err)
		}
		onClose(func() { closeQuietly(logger, "gcs client", gcsClient) })
		snapshots, err := gcsstore.New(gcsClient, gcsstore.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.GCSPrefix,
		})
		if err != nil {
			return crawler.Dependencies{}, fmt.Errorf("build snapshot store: %w", err)
		}
		deps.Snapshots = snapshots
	}

	if cfg.PubSub.TopicName != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return crawler.Dependencies{}, fmt.Errorf("create pubsub client: %w", err)
		}
		onClose(func() { closeQuietly(logger, "pubsub client", psClient) })
		publisher := pubsubpublisher.New(psClient)
		onClose(publisher.Close)
		deps.Publisher = publisher
	}

	store, err := buildRecordStore(ctx, cfg, logger)
	if err != nil {
		return crawler.Dependencies{}, err
	}
	deps.Store = store
	deps.Browser = buildBrowser(cfg, logger)
	return deps, nil
}

// buildDumps returns the page dump store, which only the abort policy
// writes to. Other policies get no store and no dump directory.
func buildDumps(cfg config.Config) (crawler.BlobStore, error) {
	if crawler.Policy(cfg.Crawler.MissingFieldPolicy) != crawler.PolicyAbort {
		return nil, nil
	}
	dumps, err := localstore.New(cfg.Crawler.DumpDir)
	if err != nil {
		return nil, fmt.Errorf("build dump store: %w", err)
	}
	return dumps, nil
}

func buildRecordStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.RecordStore, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:         cfg.Storage.PostgresDSN,
			Table:       cfg.Storage.PostgresTable,
			CreateTable: cfg.Storage.PostgresCreateTable,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case "memory":
		return memorystore.NewRecordStore(), nil
	default:
		store, err := csvfile.Open(cfg.Storage.CSVPath, logger.Named("csv"))
		if err != nil {
			return nil, fmt.Errorf("open csv store: %w", err)
		}
		return store, nil
	}
}

func buildBrowser(cfg config.Config, logger *zap.Logger) crawler.Browser {
	if cfg.Browser.Driver == "static" {
		return staticbrowser.New(staticbrowser.Config{UserAgent: cfg.Browser.UserAgent})
	}
	return chromedpbrowser.New(chromedpbrowser.Config{
		UserAgent: cfg.Browser.UserAgent,
		Headless:  cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ExecPath,
	}, logger.Named("browser"))
}

func serve(ctx context.Context, cfg config.Config, orch *crawler.Orchestrator, gate *operator.Gate, logger *zap.Logger) error {
	port := cfg.Server.Port
	if envPort := os.Getenv("PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil && p > 0 {
			port = p
		}
	}
	apiServer := api.NewServer(ctx, orch, gate, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	logger.Info("shutting down http server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func closeQuietly(logger *zap.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", zap.String("resource", name), zap.Error(err))
	}
}
