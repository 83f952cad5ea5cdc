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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ripplz/QuakeReport/internal/api"
	"github.com/Ripplz/QuakeReport/internal/config"
	"github.com/Ripplz/QuakeReport/internal/loader"
	"github.com/Ripplz/QuakeReport/internal/metrics"
	"github.com/Ripplz/QuakeReport/internal/model"
	"github.com/Ripplz/QuakeReport/internal/source"
	"github.com/Ripplz/QuakeReport/internal/store"
	"github.com/Ripplz/QuakeReport/internal/tracing"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to YAML config (optional)")
		interval = flag.Duration("interval", 0, "refresh interval; overrides the config value when set")
		once     = flag.Bool("once", false, "fetch a single time, print the events and exit")
	)
	flag.Parse()

	log.Printf("quakereport %s starting...", Version)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *interval > 0 {
		cfg.Interval = *interval
	}

	settings, err := store.OpenSettings(cfg.Settings.Path, store.Settings{
		MinMagnitude: cfg.Settings.MinMagnitude,
		OrderBy:      cfg.Settings.OrderBy,
	})
	if err != nil {
		log.Fatalf("open settings: %v", err)
	}

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing)
	if err != nil {
		log.Fatalf("setup tracing: %v", err)
	}
	flushTraces := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}
	defer flushTraces()

	m := metrics.New(prometheus.DefaultRegisterer)
	fetcher, err := source.NewFromConfig(cfg.Feed, m, log.Default())
	if err != nil {
		log.Fatalf("build fetcher: %v", err)
	}
	probe := source.AlwaysOnline
	if cfg.Feed.Connectivity != "none" {
		probe = source.NewInterfaceProbe()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ld := loader.New(ctx, fetcher, m, log.Default())
	board := api.NewBoard()
	srv := api.NewServer(api.Options{
		Server:   cfg.Server,
		Feed:     cfg.Feed,
		Loader:   ld,
		Board:    board,
		Settings: settings,
		Probe:    probe,
		Logger:   log.Default(),
	})

	if *once {
		code := runOnce(ctx, srv, ld, board)
		cancel()
		flushTraces()
		os.Exit(code)
	}

	ld.Register(board.Observe)

	go func() {
		log.Printf("serving /api, /metrics on %s", cfg.Server.ListenAddress)
		if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
			cancel()
		}
	}()

	refresh := func() {
		if err := srv.Refresh(ctx); err != nil {
			log.Printf("refresh: %v", err)
		}
	}
	refresh()

	var tick <-chan time.Time
	if cfg.Interval > 0 {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
		log.Printf("refreshing every %s", cfg.Interval)
	}
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping: %v", ctx.Err())
			ld.Abandon()
			shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(shutdownCtx)
			return
		case <-tick:
			refresh()
		}
	}
}

// runOnce performs a single load and prints the result. It returns the exit code.
func runOnce(ctx context.Context, srv *api.Server, ld *loader.Loader, board *api.Board) int {
	done := make(chan model.LoadResult, 1)
	ld.Register(func(res model.LoadResult) {
		board.Observe(res)
		done <- res
	})
	if err := srv.Refresh(ctx); err != nil {
		log.Printf("refresh: %v", err)
		return 1
	}

	var res model.LoadResult
	select {
	case res = <-done:
	case <-ctx.Done():
		ld.Abandon()
		log.Printf("stopping: %v", ctx.Err())
		return 1
	}
	if res.Err != nil {
		log.Printf("load failed (%s): %v", model.ReasonOf(res.Err), res.Err)
		return 1
	}
	for _, e := range res.Records {
		offset, primary := e.SplitLocation()
		fmt.Printf("%4.1f  %-12s %-40s %s  %s\n", e.Magnitude, offset, primary, e.Time().Format("Jan 02, 2006 3:04 PM"), e.URL)
	}
	log.Printf("%d event(s), %d skipped", len(res.Records), res.Dropped)
	return 0
}
