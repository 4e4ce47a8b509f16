package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aymanhs/capvid/internal/encoder"
)

var concatCmd = &cobra.Command{
	Use:   "concat [chunk files...]",
	Short: "Concatenate video chunks into a single file",
	Long: `Concat stitches chunk files together in argument order with the
concat demuxer, copying video streams. Input files are deleted on success
and kept on failure.

Useful for resuming after a failed chunked export, whose intermediate
chunks are left in the scratch directory.

Examples:
  capvid concat chunk_000.mov chunk_001.mov -o final.mp4
  capvid concat chunk_*.mov -o final.mp4 --audio voice.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConcat,
}

func init() {
	rootCmd.AddCommand(concatCmd)

	concatCmd.Flags().
		StringArray("audio", nil, "Audio file to mux into the output, repeatable")
}

func runConcat(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	audioPaths, _ := cmd.Flags().GetStringArray("audio")

	if outputPath == "" {
		return fmt.Errorf("output path required (-o)")
	}

	var audio []encoder.AudioInput
	for _, path := range audioPaths {
		audio = append(audio, encoder.AudioInput{Path: path})
	}

	logger.Infow("Concatenating chunks", "inputs", len(args), "output", outputPath)

	err := encoder.Concat(cmd.Context(), encoder.ConcatParams{
		Inputs:       args,
		OutputPath:   outputPath,
		Audio:        audio,
		AudioBitrate: cfg.Encoder.AudioBitrate,
	}, logger)
	if err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Concatenated %d files: %s\n", len(args), absOutput)
	return nil
}
