package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justyntemme/pikeru/internal/config"
	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/logging"
)

var (
	configPath  string
	debugLog    bool
	trace       string
	recursive   bool
	showHidden  bool
	query       string
	sortBy      string
	descending  bool
	thumbs      int
	keepWatch   bool
	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pikeru [roots...]",
		Short: "Index directories with thumbnails and fuzzy search",
		Long: `pikeru lists one or more directories, optionally crawls their
descendants, generates thumbnails into a content-addressed cache and ranks
entries against a fuzzy query over file names and stored descriptions.
Example: pikeru -r -q sunset ~/Pictures`,
		SilenceUsage: true,
		RunE:         runIndex,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/pikeru/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&trace, "trace", "", "Trace categories in -tags debug builds (all, none or APP,THUMB,...)")

	rootCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Crawl descendants of the roots")
	rootCmd.Flags().BoolVarP(&showHidden, "hidden", "H", false, "Include dotfiles")
	rootCmd.Flags().StringVarP(&query, "query", "q", "", "Fuzzy query over names and descriptions")
	rootCmd.Flags().StringVar(&sortBy, "sort", "", "Sort column: name, date, size or type")
	rootCmd.Flags().BoolVar(&descending, "desc", false, "Sort descending")
	rootCmd.Flags().IntVar(&thumbs, "thumbs", 0, "Thumbnail workers (0 = config default, -1 = disabled)")
	rootCmd.Flags().BoolVarP(&keepWatch, "watch", "w", false, "Keep running and print changes")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(configCmd(), describeCmd(), helpersCmd(), drivesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and initializes logging from it.
func loadConfig() (config.Config, error) {
	m := config.NewManager(configPath)
	if err := m.Load(); err != nil {
		return config.Config{}, err
	}
	cfg := m.Get()

	if trace != "" {
		debug.Set(trace)
	}

	level := cfg.Logging.Level
	if debugLog {
		level = "debug"
	}
	if err := logging.Init(logging.Config{Level: level, Format: cfg.Logging.Format}); err != nil {
		return cfg, fmt.Errorf("init logging: %w", err)
	}
	if err := m.ParseError(); err != nil {
		logging.Warn("config is invalid, using defaults", zap.String("path", m.Path()), zap.Error(err))
	}
	return cfg, nil
}
