package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/akitasoftware/wais/internal/config"
	"github.com/akitasoftware/wais/internal/identity"
	"github.com/akitasoftware/wais/internal/transport"
	"github.com/akitasoftware/wais/pkg/wais"

	"log/slog"
)

// defaultClientIdentityPath is used when identity.client_identity_path is
// unset in the config.
const defaultClientIdentityPath = "wais_client_identity.key"

func runClient(args []string) {
	if err := doClient(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doClient(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFlag := fs.String("config", "", "path to config file")
	peerFlag := fs.String("peer", "", "server's identity hash")
	actionFlag := fs.String("action", "list", "list|search|get|peer_list")
	queryFlag := fs.String("query", "", "search query (action=search)")
	fileFlag := fs.String("file", "", "filename to fetch (action=get)")
	outDirFlag := fs.String("out-dir", ".", "directory to write fetched files into (action=get)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *peerFlag == "" {
		return fmt.Errorf("usage: wais client --peer <hash> [--action list|search|get|peer_list] [--config path]")
	}

	cfg, err := config.LoadOrDefault(*configFlag)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if *configFlag != "" {
		config.ResolveConfigPaths(cfg, filepath.Dir(*configFlag))
	}
	setupLogging(cfg.Logging.Level)

	identityPath := cfg.Identity.ClientIdentityPath
	if identityPath == "" {
		identityPath = defaultClientIdentityPath
	}
	priv, err := identity.LoadOrCreateIdentity(identityPath)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	tr, err := transport.New(transport.Config{PrivKey: priv})
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}
	defer tr.Close()

	timeout := time.Duration(cfg.Client.RequestTimeout()) * time.Second

	cachePath := cfg.Client.ServerCachePath
	if cachePath == "" {
		cachePath = defaultPeerCachePath
	}
	peerCache, err := wais.NewPeerCache(cachePath)
	if err != nil {
		slog.Warn("peer cache load failed, starting empty", "path", cachePath, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := waitForPeerAnnounce(ctx, tr, cfg.Aspect(), *peerFlag, peerCache); err != nil {
		return err
	}

	metrics := wais.NewMetrics(version, runtime.Version())
	receiver := wais.NewFileReceiver(*outDirFlag, metrics)
	client := wais.NewLinkClient(tr, wais.ServiceAspect, timeout, receiver, metrics)

	session, link, err := client.Establish(ctx, cliIdentity(*peerFlag))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", *peerFlag, err)
	}
	defer client.Close(session, link)

	req := wais.Request{
		Action:   *actionFlag,
		Query:    *queryFlag,
		Filename: *fileFlag,
	}
	resp, err := client.Request(ctx, session, link, req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.Status == wais.StatusError {
		return fmt.Errorf("server error: %s", resp.Message)
	}

	printClientResponse(stdout, *actionFlag, resp)

	if err := peerCache.Save(); err != nil {
		slog.Warn("failed to persist peer cache", "error", err)
	}
	return nil
}

func printClientResponse(stdout io.Writer, action string, resp wais.Response) {
	switch action {
	case wais.ActionList:
		for _, f := range resp.Files {
			fmt.Fprintln(stdout, f)
		}
	case wais.ActionSearch:
		for _, r := range resp.Results {
			fmt.Fprintln(stdout, r)
		}
	case wais.ActionPeerList:
		for _, p := range resp.Peers {
			fmt.Fprintf(stdout, "%s\t%s\t%s\tlast_seen=%d\n", p.Hash, p.Name, p.Description, p.LastSeenUnixSec)
		}
	case wais.ActionGet:
		fmt.Fprintln(stdout, resp.Message)
	}
}

// waitForPeerAnnounce blocks until an announce from peerHex is observed on
// aspect, upserting it into cache, or ctx expires. Dialing a peer over
// libp2p needs a known address in the host's peerstore; this is how that
// address arrives for a client that has never seen peerHex before (spec
// §4.1's discovery flow, repurposed here as an address-resolution step
// ahead of §4.5's Establish).
func waitForPeerAnnounce(ctx context.Context, tr *transport.Transport, aspect, peerHex string, cache *wais.PeerCache) error {
	if cache.Get(peerHex) != nil {
		return nil
	}

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan struct{}, 1)
	go func() {
		tr.Listen(listenCtx, aspect, func(ev wais.AnnounceEvent) {
			if ev.Identity == nil || ev.Identity.Hex() != peerHex {
				return
			}
			select {
			case found <- struct{}{}:
			default:
			}
		})
	}()

	select {
	case <-found:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for an announce from peer %s", peerHex)
	}
}

// cliIdentity adapts a peer hash string typed on the command line into a
// wais.Identity, letting internal/transport's peerIDFromIdentity fallback
// path (peer.Decode) recover the real peer.ID without this package needing
// to depend on libp2p's peer package directly.
type cliIdentity string

func (c cliIdentity) Hex() string { return string(c) }
