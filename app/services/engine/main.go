package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/fhesim/fhesim/app/services/engine/handlers"
	"github.com/fhesim/fhesim/business/core/batch"
	"github.com/fhesim/fhesim/business/sys/optimism"
	"github.com/fhesim/fhesim/foundation/events"
	"github.com/fhesim/fhesim/foundation/fhe"
	"github.com/fhesim/fhesim/foundation/gas"
	"github.com/fhesim/fhesim/foundation/logger"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ENGINE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			APIHost         string        `conf:"default:0.0.0.0:3000"`
			DebugHost       string        `conf:"default:0.0.0.0:4000"`
		}
		Engine struct {
			SchemeFile string   `conf:"help:path to a scheme parameter file, defaults used when empty"`
			NumBlocks  int      `conf:"default:4"`
			Seeds      []string `conf:"help:initial balances as 0xaddress:amount pairs"`
		}
		Optimism struct {
			BaseURL    string        `conf:"default:https://api-optimistic.etherscan.io/api"`
			APIKey     string        `conf:"mask"`
			Retries    int           `conf:"default:3"`
			RetryDelay time.Duration `conf:"default:2s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "ENGINE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Scheme Support

	// Load the scheme parameters that govern noise budgets and operation
	// costs, falling back to the built in defaults.
	params := fhe.DefaultParams()
	if cfg.Engine.SchemeFile != "" {
		params, err = fhe.LoadParams(cfg.Engine.SchemeFile)
		if err != nil {
			return fmt.Errorf("loading scheme parameters: %w", err)
		}
	}
	log.Infow("startup", "status", "scheme loaded", "scheme", params.Scheme, "fresh_budget", params.FreshNoiseBudget)

	seeds, err := parseSeeds(cfg.Engine.Seeds)
	if err != nil {
		return fmt.Errorf("parsing seed balances: %w", err)
	}
	for party, balance := range seeds {
		log.Infow("startup", "status", "seed", "party", party.Hex(), "balance", balance)
	}

	// =========================================================================
	// Batch Support

	// The engine packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	client := optimism.New(optimism.Config{
		APIKey:     cfg.Optimism.APIKey,
		BaseURL:    cfg.Optimism.BaseURL,
		Retries:    cfg.Optimism.Retries,
		RetryDelay: cfg.Optimism.RetryDelay,
		EvHandler:  ev,
	})

	runner := batch.NewRunner(batch.Config{
		Params:    params,
		Table:     gas.DefaultTable(),
		Client:    client,
		NumBlocks: cfg.Engine.NumBlocks,
		Seeds:     seeds,
		EvHandler: ev,
	})

	// The batch runs in the background while the API serves whatever has
	// been produced so far. A failed run leaves the report endpoints in
	// their not ready state.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	go func() {
		if err := runner.Run(runCtx); err != nil {
			log.Errorw("batch", "status", "run failed", "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Construct the mux for the API calls.
	apiMux := handlers.APIMux(handlers.APIMuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Runner:   runner,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Stop the batch if it is still running.
		runCancel()

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown API started")
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop service gracefully: %w", err)
		}
	}

	return nil
}

// parseSeeds converts 0xaddress:amount pairs into the seed balance map the
// batch runner expects.
func parseSeeds(pairs []string) (map[common.Address]float64, error) {
	seeds := make(map[common.Address]float64)

	for _, pair := range pairs {
		addr, amount, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("seed %q is not in 0xaddress:amount form", pair)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("seed %q has an invalid address", pair)
		}
		value, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return nil, fmt.Errorf("seed %q has an invalid amount: %w", pair, err)
		}
		seeds[common.HexToAddress(addr)] = value
	}

	return seeds, nil
}
