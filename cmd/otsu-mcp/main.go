package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/otsu-mcp/internal/config"
	"github.com/ironsheep/otsu-mcp/internal/logging"
	"github.com/ironsheep/otsu-mcp/internal/server"
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
			fmt.Printf("otsu-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("otsu-mcp - MCP server for Otsu image thresholding")
			fmt.Println()
			fmt.Println("Usage: otsu-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Printf("  %s=debug          Log level (debug, info, warn, error)\n", config.EnvLogLevel)
			fmt.Printf("  %s=json          Log format (console, json)\n", config.EnvLogFormat)
			fmt.Printf("  %s=4               Goroutines per local threshold run\n", config.EnvWorkers)
			fmt.Printf("  %s=8            Decoded images kept in memory\n", config.EnvCacheSize)
			fmt.Printf("  %s=eng          Default Tesseract language\n", config.EnvOCRLanguage)
			fmt.Printf("  %s=/path    Tesseract language data directory\n", config.EnvTessdataPrefix)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "otsu-mcp: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is for MCP protocol
	logger := logging.New(cfg)
	logger.Debug().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("commit", GitCommit).
		Int("workers", cfg.Workers).
		Int("cache_size", cfg.CacheSize).
		Msg("starting otsu-mcp")

	srv := server.New(cfg, logger)
	if Version != "dev" {
		srv.Version = Version
	}
	if err := srv.Run(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
