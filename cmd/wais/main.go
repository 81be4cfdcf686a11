package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X main.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)" -o wais ./cmd/wais
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		printUsage()
		osExit(1)
		return
	}

	switch os.Args[1] {
	case "server":
		runServer(os.Args[2:])
	case "client":
		runClient(os.Args[2:])
	case "version", "--version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		osExit(1)
	}
}

func printVersion() {
	fmt.Printf("wais %s (%s) built %s\n", version, commit, buildDate)
	fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Println("Usage: wais <command> [options]")
	fmt.Println()
	fmt.Println("  server [--config path] [--no-announce]   Serve data_dir over the mesh")
	fmt.Println("  client --peer <hash> [options]           Query a server over the mesh")
	fmt.Println("  version                                  Show version information")
	fmt.Println()
	fmt.Println("Client options (--peer is always required):")
	fmt.Println("  --action list|search|get|peer_list   Request to send (default list)")
	fmt.Println("  --query <q>                          Search query (action=search)")
	fmt.Println("  --file <name>                        File to fetch (action=get)")
	fmt.Println("  --out-dir <dir>                      Directory for fetched files (default .)")
	fmt.Println()
	fmt.Println("All commands support --config <path> to specify a config file.")
	fmt.Println("Without --config, wais runs with default configuration (spec §6:")
	fmt.Println("\"null config ⇒ transport default\").")
}
