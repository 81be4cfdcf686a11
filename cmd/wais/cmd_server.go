package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/akitasoftware/wais/internal/config"
	"github.com/akitasoftware/wais/internal/identity"
	"github.com/akitasoftware/wais/internal/termcolor"
	"github.com/akitasoftware/wais/internal/transport"
	"github.com/akitasoftware/wais/internal/watchdog"
	"github.com/akitasoftware/wais/pkg/wais"

	"log/slog"
)

// defaultServerIdentityPath is used when identity.server_identity_path is
// unset in the config, mirroring identity.LoadOrCreateIdentity's
// create-on-first-run behavior.
const defaultServerIdentityPath = "wais_server_identity.key"

// defaultPeerCachePath backs PeerCache persistence when
// client.server_cache_path is unset. Reused for both roles: spec.md
// defines a single PeerCache concept and only documents the client-facing
// config key for it, so the server's own cache (used for peer_list
// responses and requester-capability lookups) shares the same field.
const defaultPeerCachePath = "wais_peer_cache.json"

// metricsListenAddr is the fixed bind address for the Prometheus /metrics
// endpoint. Spec.md's Configuration section has no knob for this; carried
// per the ambient-stack rule that a metrics surface is never conditioned
// on a functional Non-goal.
const metricsListenAddr = "127.0.0.1:9090"

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configFlag := fs.String("config", "", "path to config file")
	noAnnounce := fs.Bool("no-announce", false, "disable periodic announcing")
	fs.Parse(args)

	fmt.Printf("wais server %s (%s)\n", version, commit)

	cfg, err := config.LoadOrDefault(*configFlag)
	if err != nil {
		fatal("config error: %v", err)
	}
	if *configFlag != "" {
		config.ResolveConfigPaths(cfg, filepath.Dir(*configFlag))
	}
	if err := config.ValidateServerConfig(cfg); err != nil {
		fatal("config error: %v", err)
	}
	setupLogging(cfg.Logging.Level)

	identityPath := cfg.Identity.ServerIdentityPath
	if identityPath == "" {
		identityPath = defaultServerIdentityPath
	}
	priv, err := identity.LoadOrCreateIdentity(identityPath)
	if err != nil {
		fatal("failed to load identity: %v", err)
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
		fatal("failed to create data_dir %q: %v", cfg.Server.DataDir, err)
	}

	tr, err := transport.New(transport.Config{PrivKey: priv})
	if err != nil {
		fatal("failed to initialize transport: %v", err)
	}

	selfHex := tr.Self().Hex()
	metrics := wais.NewMetrics(version, runtime.Version())

	cachePath := cfg.Client.ServerCachePath
	if cachePath == "" {
		cachePath = defaultPeerCachePath
	}
	peerCache, err := wais.NewPeerCache(cachePath)
	if err != nil {
		slog.Warn("peer cache load failed, starting empty", "path", cachePath, "error", err)
	}

	catalog := wais.NewServerCatalog(cfg.Server.DataDir)
	sender := wais.NewFileSender(catalog, metrics)
	dispatcher := wais.NewRequestDispatcher(catalog, peerCache, sender, metrics, selfHex)

	ctx, cancel := context.WithCancel(context.Background())

	if err := tr.Serve(wais.ServiceAspect, func(link wais.Link) {
		dispatcher.Serve(ctx, link)
	}); err != nil {
		cancel()
		tr.Close()
		fatal("failed to register service handler: %v", err)
	}

	discovery := wais.NewDiscoveryListener(tr, cfg.Aspect(), peerCache, nil)
	go func() {
		if err := discovery.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("discovery listener stopped", "error", err)
		}
	}()

	var announceEngine *wais.AnnounceEngine
	if !*noAnnounce {
		info := cfg.Server.ServerInfo
		payload := func() wais.AnnouncePayload {
			return wais.AnnouncePayload{
				Name: info.Name,
				Desc: info.Description,
				V:    wais.ProtocolVersion,
				Caps: []string{wais.CapZlib, wais.CapSHA256},
			}
		}
		interval := time.Duration(cfg.Server.AnnounceInterval()) * time.Second
		announceEngine = wais.NewAnnounceEngine(tr, cfg.Aspect(), interval, payload)
		announceEngine.Start(ctx)
	}

	metricsServer := &http.Server{
		Addr:         metricsListenAddr,
		Handler:      metricsMux(metrics),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics endpoint error", "error", err)
		}
	}()

	watchdog.Ready()
	go watchdog.Run(ctx, watchdog.Config{}, []watchdog.HealthCheck{
		{Name: "metrics-endpoint", Check: func() error { return nil }},
	})

	termcolor.Green("Server identity: %s", selfHex)
	fmt.Printf("Serving %s over %s\n", cfg.Server.DataDir, wais.ServiceAspect)
	fmt.Printf("Metrics:  http://%s/metrics\n", metricsListenAddr)
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	fmt.Printf("\nReceived %s, shutting down...\n", sig)

	watchdog.Stopping()
	if announceEngine != nil {
		announceEngine.Stop()
	}
	cancel()
	metricsServer.Close()
	if err := peerCache.Save(); err != nil {
		slog.Warn("failed to persist peer cache", "error", err)
	}
	tr.Close()

	fmt.Println("Server stopped.")
}

func metricsMux(metrics *wais.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
