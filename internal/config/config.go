// Package config reads server settings from the environment.
//
// All settings are optional:
//
//	OTSU_MCP_LOG_LEVEL        debug | info | warn | error (default info)
//	OTSU_MCP_LOG_FORMAT       console | json (default console)
//	OTSU_MCP_WORKERS          goroutines per local threshold run (default NumCPU)
//	OTSU_MCP_CACHE_SIZE       decoded images kept in memory (default 8)
//	OTSU_MCP_OCR_LANGUAGE     Tesseract language code (default eng)
//	OTSU_MCP_TESSDATA_PREFIX  Tesseract language data directory
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvLogLevel       = "OTSU_MCP_LOG_LEVEL"
	EnvLogFormat      = "OTSU_MCP_LOG_FORMAT"
	EnvWorkers        = "OTSU_MCP_WORKERS"
	EnvCacheSize      = "OTSU_MCP_CACHE_SIZE"
	EnvOCRLanguage    = "OTSU_MCP_OCR_LANGUAGE"
	EnvTessdataPrefix = "OTSU_MCP_TESSDATA_PREFIX"
)

// Config holds the server settings.
type Config struct {
	LogLevel       string
	LogFormat      string
	Workers        int
	CacheSize      int
	OCRLanguage    string
	TessdataPrefix string
}

// Default returns the settings used when no variables are set.
func Default() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "console",
		Workers:     runtime.NumCPU(),
		CacheSize:   8,
		OCRLanguage: "eng",
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which has the signature of
// os.LookupEnv. Unset or blank variables keep their defaults.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvLogLevel); ok {
		v = strings.ToLower(v)
		switch v {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = v
		case "warning":
			cfg.LogLevel = "warn"
		default:
			return Config{}, fmt.Errorf("%s: unknown level %q", EnvLogLevel, v)
		}
	}

	if v, ok := get(EnvLogFormat); ok {
		v = strings.ToLower(v)
		if v != "console" && v != "json" {
			return Config{}, fmt.Errorf("%s: unknown format %q (expected console or json)", EnvLogFormat, v)
		}
		cfg.LogFormat = v
	}

	if v, ok := get(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("%s: must be a positive integer, got %q", EnvWorkers, v)
		}
		cfg.Workers = n
	}

	if v, ok := get(EnvCacheSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("%s: must be a positive integer, got %q", EnvCacheSize, v)
		}
		cfg.CacheSize = n
	}

	if v, ok := get(EnvOCRLanguage); ok {
		cfg.OCRLanguage = v
	}
	if v, ok := get(EnvTessdataPrefix); ok {
		cfg.TessdataPrefix = v
	}

	return cfg, nil
}
