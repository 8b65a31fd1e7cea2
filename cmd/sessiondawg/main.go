package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/iFixRobots/sessiondawg/pkg/common"
	"github.com/iFixRobots/sessiondawg/pkg/config"
	"github.com/iFixRobots/sessiondawg/pkg/csrf"
	"github.com/iFixRobots/sessiondawg/pkg/gate"
	"github.com/iFixRobots/sessiondawg/pkg/logging"
	"github.com/iFixRobots/sessiondawg/pkg/markerstore"
	"github.com/iFixRobots/sessiondawg/pkg/navguard"
	"github.com/iFixRobots/sessiondawg/pkg/reliability"
	"github.com/iFixRobots/sessiondawg/pkg/session"
)

// Information to find out exactly which commit the binary was built from.
// These are filled at build time with the -X linker flag.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sessiondawg:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sessiondawg %s (%s, built %s)\n", Tag, Commit, BuildTime)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := logging.NewLogger(logging.WriterConfig{
		Level:    cfg.Log.Level,
		Writers:  cfg.Log.Writer,
		FilePath: cfg.Log.File,
	})
	log.Info().Str("base_url", cfg.BaseURL).Msg("Starting session watcher")

	var markers markerstore.Markers
	if cfg.StorePath != "" {
		store, err := markerstore.Open(cfg.StorePath)
		if err != nil {
			return err
		}
		markers = store
	} else {
		markers = markerstore.NewMemory()
	}
	defer markers.Close()

	tokens, err := csrf.NewManager(cfg.BaseURL, nil, log)
	if err != nil {
		return err
	}
	tokens.SetFetchPath(cfg.CsrfFetchPath)

	breaker, err := reliability.NewBreaker(cfg.Breaker.Threshold, time.Duration(cfg.Breaker.CooldownMS)*time.Millisecond)
	if err != nil {
		return err
	}

	guard := navguard.NewGuard(time.Duration(cfg.NavCooldownMS) * time.Millisecond)
	store := session.NewStore(breaker, tokens, markers, log)
	store.SetProbePath(cfg.ProbePath)

	g := gate.New(store, guard, markers, log)
	g.SetThrottle(time.Duration(cfg.RedirectCooldownMS) * time.Millisecond)
	g.SetPaths(cfg.LoginPath, cfg.NoStorePath)

	nav := navguard.NewNavigator(guard, cfg.NoStorePath, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watch(ctx, cfg, log, store, g, nav)

	log.Info().Msg("Session watcher stopped")
	return nil
}

// watch re-evaluates the gate on a debounced interval and logs decision
// transitions until the context is cancelled. Ticks that pile up while a
// check is already pending coalesce into a single evaluation.
func watch(ctx context.Context, cfg *config.Config, log zerolog.Logger, store *session.Store, g *gate.Gate, nav *navguard.Navigator) {
	interval := time.Duration(cfg.WatchIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 15 * time.Second
	}

	var mu sync.Mutex
	last := gate.Outcome{Decision: gate.Decision(-1)}
	// The debounce timer runs evaluate on its own goroutine; a panic there
	// must reach the log instead of taking the process down silently.
	panics := make(chan error, 1)
	evaluate := func() {
		defer common.RecoverToError(panics)
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, err := store.CheckAuth(ctx); err != nil {
			// Circuit-open resolutions land here; the gate still renders a
			// loader from the committed state.
			log.Debug().Err(err).Msg("Authentication check did not probe")
		}
		outcome := g.Evaluate(ctx, nav.Current())
		if outcome != last {
			log.Info().
				Str("decision", outcome.Decision.String()).
				Str("path", nav.Current()).
				Str("last_error", store.GetState().LastError.String()).
				Msg("Gate decision changed")
			last = outcome
		}
	}

	task := reliability.NewDebouncedTask(250*time.Millisecond, evaluate)
	defer task.Stop()

	task.Trigger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-panics:
			log.Error().Err(err).Msg("Recovered panic in watch evaluation")
		case <-ticker.C:
			task.Trigger()
		}
	}
}
