package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/galois26/event-ingester/internal/config"
	"github.com/galois26/event-ingester/internal/enrich"
	"github.com/galois26/event-ingester/internal/metrics"
	"github.com/galois26/event-ingester/internal/pipeline"
	"github.com/galois26/event-ingester/internal/server"
	"github.com/galois26/event-ingester/internal/source"
	"github.com/galois26/event-ingester/internal/store"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath  = flag.String("config", "config.yml", "path to YAML config")
		interval = flag.Duration("interval", 0, "refresh interval, overrides refresh.interval when > 0")
		once     = flag.Bool("once", false, "run a single cycle then exit")
		verbose  = flag.Bool("verbose", false, "log per-step timings")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Log.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}))
	}
	log.Printf("event-ingester %s starting...", Version)

	window, err := cfg.ListingWindow()
	if err != nil {
		log.Fatalf("window: %v", err)
	}
	if *interval > 0 {
		cfg.Refresh.Interval = *interval
	}
	if cfg.Enrich.APIKey == "" {
		log.Printf("%s not set: every cycle will abort at enrichment", config.EnvAPIKey)
	}

	fs := afero.NewOsFs()
	m := metrics.New()
	st := store.New(fs, cfg.Output.Path)
	p := pipeline.New(
		source.NewHTTPSource(cfg.Source),
		enrich.NewGemini(cfg.Enrich, nil),
		st,
		m,
		pipeline.Options{
			Window:      window,
			ChunkSize:   cfg.Enrich.ChunkSize,
			MinInterval: cfg.Enrich.MinInterval,
			Verbose:     *verbose,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		n, err := p.Refresh(ctx)
		if err != nil {
			log.Fatalf("refresh: %v", err)
		}
		log.Printf("published %d events to %s", n, st.Path())
		return
	}

	var srv *server.Server
	if cfg.Server.ListenAddress != "" {
		srv = server.New(cfg.Server, fs, cfg.Output.Path, m.Registry)
		go func() {
			log.Printf("[server] listening on %s", cfg.Server.ListenAddress)
			if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[server] %v", err)
				cancel()
			}
		}()
	}

	log.Printf("window %s..%s, interval=%s, output=%s",
		cfg.Window.Start, cfg.Window.End, cfg.Refresh.Interval, cfg.Output.Path)
	p.Run(ctx, cfg.Refresh.Interval)

	if srv != nil {
		log.Println("shutting down...")
		shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(shutdownCtx)
	}
}
