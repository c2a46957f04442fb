package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/image-roi-mcp/internal/config"
	"github.com/ironsheep/image-roi-mcp/internal/logger"
	"github.com/ironsheep/image-roi-mcp/internal/measure"
	"github.com/ironsheep/image-roi-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-roi-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("image-roi-mcp - MCP server for region-of-interest measurement")
			fmt.Println()
			fmt.Println("Usage: image-roi-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  IMAGE_ROI_CONFIG=path.toml       Read settings from a TOML file")
			fmt.Println("  IMAGE_ROI_LOG_LEVEL=debug        Log level (debug, info, warn, error)")
			fmt.Println("  IMAGE_ROI_LOG_FORMAT=text        Log format (json, text)")
			fmt.Println("  IMAGE_ROI_CACHE_SIZE=16          Decoded images kept in memory")
			fmt.Println("  IMAGE_ROI_WORKERS=4              Statistics workers (0 = one per CPU)")
			fmt.Println("  IMAGE_ROI_HANDLE_TOLERANCE=4     Handle hit radius in pixels")
			fmt.Println("  IMAGE_ROI_POINT_SIZE=1           Default point diameter in pixels")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	// Logs go to stderr; stdout is for MCP protocol
	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(2)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		logger.WithError(err).Fatal("invalid measurement overrides")
	}

	logger.WithField("version", Version).
		WithField("commit", GitCommit).
		WithField("config", cfg.Path).
		Info("image-roi-mcp starting")

	server.Version = Version
	srv := server.New(
		server.WithConfig(cfg),
		server.WithEngine(measure.NewEngine(catalog)),
	)
	defer srv.Close()

	if err := srv.Run(); err != nil {
		logger.WithError(err).Error("server error")
		srv.Close()
		os.Exit(1)
	}
}
