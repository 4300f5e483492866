package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/cip-designer/internal/assistant"
	"github.com/joelkehle/cip-designer/internal/catalog"
	"github.com/joelkehle/cip-designer/internal/config"
	"github.com/joelkehle/cip-designer/internal/design"
	"github.com/joelkehle/cip-designer/internal/httpapi"
	"github.com/joelkehle/cip-designer/internal/llm"
	"github.com/joelkehle/cip-designer/internal/logging"
	"github.com/joelkehle/cip-designer/internal/report"
	"github.com/joelkehle/cip-designer/internal/store"
	"github.com/joelkehle/cip-designer/internal/telemetry"
)

var version = "dev"

func main() {
	cfg := config.Load()

	addrFlag := flag.String("addr", "", "listen address (overrides PORT env var)")
	dbFlag := flag.String("db", "", "path to SQLite database file (overrides DB_PATH env var)")
	memFlag := flag.Bool("memory", false, "keep design history in memory only")
	flag.Parse()

	addr := cfg.Addr()
	if *addrFlag != "" {
		addr = *addrFlag
	}
	if *dbFlag != "" {
		cfg.DBPath = *dbFlag
	}
	if *memFlag {
		cfg.DBPath = ""
	}

	log, err := logging.New(cfg.LogMode)
	if err != nil {
		log = logging.Nop()
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		ServiceName:    telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.LogMode,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Fatal("failed to initialize tracing", "error", err)
	}
	metrics := telemetry.NewMetrics()

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		cat, err = catalog.Load(cfg.CatalogFile)
		if err != nil {
			log.Fatal("failed to load catalog", "path", cfg.CatalogFile, "error", err)
		}
		log.Info("loaded catalog", "path", cfg.CatalogFile, "entries", len(cat.Entries()))
	}

	var st store.Store
	if cfg.DBPath != "" {
		ss, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatal("failed to initialize sqlite store", "path", cfg.DBPath, "error", err)
		}
		st = ss
		log.Info("using sqlite store", "path", cfg.DBPath)
	} else {
		st = store.NewMemoryStore()
		log.Info("using in-memory store")
	}
	defer st.Close()

	caller, err := llm.NewCaller(llm.Config{
		Provider:        cfg.LLMProvider,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Warn("no LLM provider configured; enhancement and chat are disabled")
	case err != nil:
		log.Warn("LLM provider unavailable", "error", err)
		caller = nil
	default:
		log.Info("LLM provider configured", "provider", caller.Provider())
	}

	opts := []design.Option{design.WithLogger(log), design.WithMetrics(metrics)}
	if caller != nil && cfg.EnhanceEnabled {
		opts = append(opts, design.WithEnhancer(assistant.NewEnhancer(caller, cfg.LLMTimeout, log)))
	}
	svc := design.NewService(st, cat, opts...)

	pdf := report.NewChromiumPDFRenderer(cfg.ChromePath)
	if !pdf.Available() {
		log.Warn("no Chrome/Chromium found; pdf export disabled")
	}

	handler := httpapi.NewServer(httpapi.Config{
		Service:            svc,
		Catalog:            cat,
		Chat:               assistant.NewChat(caller, log),
		PDF:                pdf,
		Metrics:            metrics,
		Logger:             log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		EnhanceEnabled:     svc.EnhancementAvailable(),
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("cip-api listening", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		return shutdownTracing(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal("server exited", "error", err)
	}
	log.Info("cip-api stopped")
}
