// Command corvid runs Corvid: a caching, zone-routed DNS forwarder with a
// management REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jroosing/corvid/internal/api"
	"github.com/jroosing/corvid/internal/cache"
	"github.com/jroosing/corvid/internal/config"
	"github.com/jroosing/corvid/internal/frontend"
	"github.com/jroosing/corvid/internal/logging"
	"github.com/jroosing/corvid/internal/metrics"
	"github.com/jroosing/corvid/internal/resolver"
	"github.com/jroosing/corvid/internal/store"
	"github.com/jroosing/corvid/internal/upstream"
	"github.com/jroosing/corvid/internal/zones"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	configPath string
	udpAddr    string
	tcpAddr    string
	noTCP      bool
	noUDP      bool
	jsonLogs   bool
	debug      bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file (or set CORVID_CONFIG)")
	flag.StringVar(&f.udpAddr, "udp-addr", "", "Override UDP bind address")
	flag.StringVar(&f.tcpAddr, "tcp-addr", "", "Override TCP bind address")
	flag.BoolVar(&f.noUDP, "no-udp", false, "Disable the UDP frontend")
	flag.BoolVar(&f.noTCP, "no-tcp", false, "Disable the TCP frontend")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.udpAddr != "" {
		cfg.Server.UDPAddr = f.udpAddr
	}
	if f.tcpAddr != "" {
		cfg.Server.TCPAddr = f.tcpAddr
	}
	if f.noUDP {
		cfg.Server.EnableUDP = false
	}
	if f.noTCP {
		cfg.Server.EnableTCP = false
	}
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})

	if !cfg.Server.EnableUDP && !cfg.Server.EnableTCP {
		return errors.New("both UDP and TCP frontends disabled, nothing to serve")
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = "corvid.db"
	}
	st, err := store.Open(storePath)
	if err != nil {
		return fmt.Errorf("open zone store: %w", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := seedZoneStore(ctx, st, cfg); err != nil {
		return fmt.Errorf("seed zone store: %w", err)
	}

	zoneTable, err := st.BuildZoneTable(ctx)
	if err != nil {
		return fmt.Errorf("build zone table: %w", err)
	}
	router := zones.NewAtomicTable(zoneTable)

	reg := metrics.New()
	c := cache.New()
	reg.SetCacheSizeGauge(c.SizeEstimate)

	cacheStop := make(chan struct{})
	go c.Run(cacheStop)
	defer close(cacheStop)

	exchanger := upstream.NewExchanger()
	exchanger.UDP.Timeout = config.ParseDuration(cfg.Upstream.UDPTimeout, exchanger.UDP.Timeout)
	exchanger.UDP.TCPTimeout = config.ParseDuration(cfg.Upstream.TCPTimeout, exchanger.UDP.TCPTimeout)
	exchanger.DoH.Timeout = config.ParseDuration(cfg.Upstream.DoHTimeout, exchanger.DoH.Timeout)

	res := resolver.New(c, router, exchanger)
	res.Logger = logger
	res.Metrics = reg

	reload := func(ctx context.Context) error {
		tbl, err := st.BuildZoneTable(ctx)
		if err != nil {
			return err
		}
		router.Store(tbl)
		return nil
	}

	queryTimeout := config.ParseDuration(cfg.Server.QueryTimeout, frontend.DefaultQueryTimeout)
	handler := &frontend.Handler{Resolver: res, Logger: logger, Timeout: queryTimeout, Metrics: reg}

	apiSrv := api.New(cfg, logger, api.Deps{
		Store:         st,
		Metrics:       reg,
		CacheSize:     c.SizeEstimate,
		ReloadRouting: reload,
	})

	logger.Info("corvid starting",
		"udp_addr", cfg.Server.UDPAddr,
		"tcp_addr", cfg.Server.TCPAddr,
		"api_addr", apiSrv.Addr(),
	)

	return serve(ctx, cfg, logger, handler, apiSrv)
}

// seedZoneStore adds to st every zone from cfg that st does not already
// hold by name, leaving stored zones (including API edits) untouched. It
// runs on every start, so a config zone deleted through the API returns.
func seedZoneStore(ctx context.Context, st *store.Store, cfg *config.Config) error {
	entries, err := config.BuildZoneEntries(cfg)
	if err != nil {
		return err
	}
	return st.SeedFromConfig(ctx, entries)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, handler *frontend.Handler, apiSrv *api.Server) error {
	errCh := make(chan error, 3)

	var udp *frontend.UDPFrontend
	if cfg.Server.EnableUDP {
		udp = &frontend.UDPFrontend{Handler: handler, Logger: logger}
		go func() {
			if err := udp.Run(ctx, cfg.Server.UDPAddr); err != nil {
				errCh <- fmt.Errorf("udp frontend: %w", err)
				return
			}
			errCh <- nil
		}()
	}

	var tcp *frontend.TCPFrontend
	if cfg.Server.EnableTCP {
		tcp = &frontend.TCPFrontend{Handler: handler, Logger: logger}
		go func() {
			if err := tcp.Run(ctx, cfg.Server.TCPAddr); err != nil {
				errCh <- fmt.Errorf("tcp frontend: %w", err)
				return
			}
			errCh <- nil
		}()
	}

	if cfg.API.Enabled {
		go func() {
			serveErr := apiSrv.ListenAndServe()
			if serveErr == nil || errors.Is(serveErr, http.ErrServerClosed) {
				errCh <- nil
				return
			}
			errCh <- fmt.Errorf("api server: %w", serveErr)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)

	want := 0
	if cfg.API.Enabled {
		want++
	}
	if udp != nil {
		want++
	}
	if tcp != nil {
		want++
	}

	var firstErr error
	for i := 0; i < want; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
