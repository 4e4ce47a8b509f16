package cli

import (
	"github.com/spf13/cobra"

	"github.com/aymanhs/capvid/internal/config"
	"github.com/aymanhs/capvid/internal/logging"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "capvid",
	Short: "Timeline-driven video exporter",
	Long: `Capvid turns an edited timeline into a finished video: it plans
frame timestamps around subtitle and overlay fades, captures frames from a
rendered image sequence, streams them into ffmpeg, and stitches chunked
exports back together.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)

		var err error
		cfg, err = config.Load(configPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file path (default capvid.toml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
}
