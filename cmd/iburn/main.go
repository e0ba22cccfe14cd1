package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "iburn"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// LogFile is the session log, nil when logging to stdout
	LogFile *os.File

	SessionStartTime time.Time = time.Now()
)

// configDir returns where iburn.cfg.json is looked up.
func configDir() string {
	if dir := os.Getenv("IBURN_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

// setupLogging loads configuration and routes logs to the session file and,
// when enabled, Graylog.
func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(os.Stderr, viper.GetString("logLevel"), nil, nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir()); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	var err error
	LogFile, err = logging.OpenLogFile(viper.GetString("logsDir"), AppName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err)
	}

	var remote io.Writer
	if viper.GetBool("graylog.enabled") {
		gelfWriter, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			Logger.Warn("Failed to connect to Graylog", "error", err)
		} else {
			remote = gelfWriter
		}
	}

	var out io.Writer = os.Stderr
	if LogFile != nil {
		out = LogFile
	}
	SlogManager.Setup(out, viper.GetString("logLevel"), remote, func() []slog.Attr {
		return []slog.Attr{
			slog.Int("festivalYear", viper.GetInt("festival.year")),
			slog.String("version", CurrentVersion),
		}
	})
	Logger = SlogManager.Logger()
	if LogFile != nil {
		Logger.Info("Logging to file", "path", LogFile.Name())
	}
}

func closeLogging() {
	_ = SlogManager.Close()
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `%s %s (%s)

Usage: %s <command> [args]

Commands:
  serve                     run the local API, workers and location tracking
  import [dir]              import the feed, or a bundled data directory
  search <query>            full-text search, grouped for display
  events [YYYY-MM-DD]       events starting on a festival day (today by default)
  favorite <type> <uid>     toggle a favorite
  favorites                 list favorites
  pins <file.geojson>       add user pins from a GeoJSON point collection
  track [since]             print the breadcrumb track as GeoJSON (since is RFC3339)
  dump <path>               snapshot the database to a file
  status                    print a status snapshot
`, AppName, CurrentVersion, BuildDate, AppName)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	setupLogging()
	defer closeLogging()
	Logger.Info("Starting up...", "version", CurrentVersion, "command", args[0])

	if err := runCommand(strings.ToLower(args[0]), args[1:]); err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		closeLogging()
		os.Exit(1)
	}
}
