package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/bugboard/internal/logging"
	"github.com/joescharf/bugboard/internal/output"
	"github.com/joescharf/bugboard/internal/store"
	"github.com/joescharf/bugboard/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore store.Store

	verbose bool
	dryRun  bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "bugboard",
	Short: "Bugboard - log, triage and resolve bugs on a board",
	Long: `bugboard tracks bugs on a three-column board (todo, in-progress,
resolved) with severities, tags and discussion comments.

Run without a subcommand to show the board.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if dataStore != nil {
		_ = dataStore.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return boardRun(cmd.Context())
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/bugboard/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "Storage backend: sqlite or memory")
	_ = viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func setDefaults(configDir string) {
	viper.SetDefault("state_dir", configDir)
	viper.SetDefault("db_path", filepath.Join(configDir, "bugboard.db"))
	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.latency", "0s")
	viper.SetDefault("defaults.reporter", "Dev Team")
	viper.SetDefault("defaults.assignee", "Unassigned")
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "auto")
	viper.SetDefault("serve.port", 8420)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BUGBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	if noColor {
		output.SetNoColor(true)
	}
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := logging.ParseLogLevel(viper.GetString("log.level"))
	if verbose {
		level = slog.LevelDebug
	}
	format, err := logging.ParseFormat(viper.GetString("log.format"))
	if err != nil {
		ui.Warning("%v, using auto", err)
		format = logging.FormatAuto
	}
	logger = logging.New(level, os.Stderr, format)
	slog.SetDefault(logger)

	// The store opens lazily so config and version run without a database.
}

// getStore returns the shared store, opening it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	switch backend := viper.GetString("store.backend"); backend {
	case "memory":
		latency, err := time.ParseDuration(viper.GetString("store.latency"))
		if err != nil {
			return nil, fmt.Errorf("parse store.latency: %w", err)
		}
		dataStore = store.NewMemoryStore(store.WithSeed(store.DemoSeed()), store.WithLatency(latency))
		logger.Debug("using memory store", "latency", latency)
	case "sqlite", "":
		dbPath := viper.GetString("db_path")
		s, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := s.Migrate(context.Background()); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		dataStore = s
		logger.Debug("using sqlite store", "path", dbPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want sqlite, memory)", backend)
	}
	return dataStore, nil
}

// uiNotifier prints tracker notices as CLI messages.
func uiNotifier() tracker.Notifier {
	return tracker.NotifierFunc(func(n tracker.Notice) {
		if n.Level == tracker.NoticeError {
			ui.Error("%s", n.Message)
			return
		}
		ui.Success("%s", n.Message)
	})
}

// getTracker opens the store and returns a loaded tracker session whose
// notices go to n.
func getTracker(ctx context.Context, n tracker.Notifier) (*tracker.Tracker, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	t := tracker.New(s, s,
		tracker.WithNotifier(n),
		tracker.WithLogger(logger),
		tracker.WithActivityLog(s),
	)
	if err := t.LoadAll(ctx); err != nil {
		return nil, err
	}
	return t, nil
}
