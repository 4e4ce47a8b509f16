package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aymanhs/capvid/internal/encoder"
)

var backgroundCmd = &cobra.Command{
	Use:   "background [video_file]",
	Short: "Prepare a normalized background segment",
	Long: `Background trims a source video to a time range and normalizes it to
the export dimensions and frame rate, optionally blurred to fill the frame.
Results are cached by parameter hash, so repeated invocations are free.

Examples:
  capvid background screen.mp4 --start 0 --end 60000 --width 1920 --height 1080
  capvid background screen.mp4 --end 30000 --width 1280 --height 720 --blur`,
	Args: cobra.ExactArgs(1),
	RunE: runBackground,
}

func init() {
	rootCmd.AddCommand(backgroundCmd)

	backgroundCmd.Flags().Int64("start", 0, "Segment start in ms")
	backgroundCmd.Flags().Int64("end", 0, "Segment end in ms (required)")
	backgroundCmd.Flags().Int("width", 1920, "Output width")
	backgroundCmd.Flags().Int("height", 1080, "Output height")
	backgroundCmd.Flags().Bool("blur", false, "Blur-fill instead of pillarboxing")
	_ = backgroundCmd.MarkFlagRequired("end")
}

func runBackground(cmd *cobra.Command, args []string) error {
	start, _ := cmd.Flags().GetInt64("start")
	end, _ := cmd.Flags().GetInt64("end")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	blur, _ := cmd.Flags().GetBool("blur")

	if end <= start {
		return fmt.Errorf("end (%d) must exceed start (%d)", end, start)
	}

	cacheDir := cfg.ScratchDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "capvid")
	}
	cacheDir = filepath.Join(cacheDir, "backgrounds")

	path, err := encoder.PrepareBackground(cmd.Context(), encoder.BackgroundParams{
		SourcePath: args[0],
		StartMs:    start,
		EndMs:      end,
		Width:      width,
		Height:     height,
		FPS:        cfg.FPS,
		Blur:       blur || cfg.Encoder.BackgroundBlur,
	}, cacheDir, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Background segment ready: %s\n", path)
	return nil
}
