package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aymanhs/capvid/internal/encoder"
	"github.com/aymanhs/capvid/internal/export"
	"github.com/aymanhs/capvid/internal/render"
)

var exportCmd = &cobra.Command{
	Use:   "export [timeline.json]",
	Short: "Export a timeline to a video file",
	Long: `Export renders a timeline document to a video. Frames come from a
directory of pre-rendered PNGs named by their millisecond timestamp.

Exports longer than the configured chunk target are captured in chunks and
concatenated. Fast mode skips fade transitions and renders overlays at full
opacity, trading smoothness for speed.

Examples:
  capvid export timeline.json --frames ./frames -o final.mp4
  capvid export timeline.json --frames ./frames --fast
  capvid export timeline.json --frames ./frames --audio voice.wav --audio music.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().
		StringP("frames", "f", "", "Directory of timestamp-named PNG frames (required)")
	exportCmd.Flags().
		Bool("fast", false, "Fast mode: skip fade transitions")
	exportCmd.Flags().
		StringArray("audio", nil, "Additional audio file, repeatable")
	exportCmd.Flags().
		String("bg", "", "Background video composited under the overlay frames")
	_ = exportCmd.MarkFlagRequired("frames")
}

func runExport(cmd *cobra.Command, args []string) error {
	framesDir, _ := cmd.Flags().GetString("frames")
	fast, _ := cmd.Flags().GetBool("fast")
	extraAudio, _ := cmd.Flags().GetStringArray("audio")
	bgPath, _ := cmd.Flags().GetString("bg")
	outputPath, _ := cmd.Flags().GetString("output")

	if outputPath == "" {
		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		outputPath = base + ".mp4"
	}

	doc, err := loadTimeline(args[0])
	if err != nil {
		return err
	}

	audio := make([]encoder.AudioInput, 0, len(doc.Audio)+len(extraAudio))
	for _, a := range doc.Audio {
		audio = append(audio, encoder.AudioInput{
			Path:        a.Path,
			OffsetMs:    a.OffsetMs,
			TrimStartMs: a.TrimStartMs,
			TrimEndMs:   a.TrimEndMs,
		})
	}
	for _, path := range extraAudio {
		audio = append(audio, encoder.AudioInput{Path: path})
	}

	clips := doc.Clips()
	renderer, err := render.NewImageSequence(framesDir, clips, cfg.FadeDurationMs, logger)
	if err != nil {
		return fmt.Errorf("opening frame sequence: %w", err)
	}

	var background *export.BackgroundOptions
	if bgPath != "" {
		w, h := renderer.Size()
		background = &export.BackgroundOptions{SourcePath: bgPath, Width: w, Height: h}
	}

	logger.Infow("Exporting timeline",
		"timeline", args[0],
		"output", outputPath,
		"duration_ms", doc.Range.Duration(),
		"clips", len(clips),
		"fast", fast,
	)

	pub := export.NewPublisher(logger)
	pub.Subscribe("", progressPrinter())

	exporter := export.New(&cfg, renderer, encoder.NewFFmpegService(logger), pub, logger)

	res, err := exporter.Export(cmd.Context(), export.Request{
		Range:      doc.Range,
		Clips:      clips,
		Audio:      audio,
		Background: background,
		OutputPath: outputPath,
		FastMode:   fast,
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	absOutput, _ := filepath.Abs(res.OutputPath)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Export", "Chunks", "Frames", "Elapsed", "Output"})
	t.AppendRow(table.Row{
		res.ExportID,
		res.Chunks,
		res.FramesSent,
		res.Elapsed.Round(10 * time.Millisecond),
		absOutput,
	})
	t.Render()

	return nil
}

// progressPrinter emits one line per state change and at 10% steps.
func progressPrinter() func(export.Progress) {
	lastState := export.State("")
	lastStep := -1
	return func(p export.Progress) {
		step := int(p.Percent) / 10
		if p.State == lastState && step == lastStep {
			return
		}
		lastState, lastStep = p.State, step

		if p.Message != "" {
			fmt.Printf("%6.1f%%  %s  %s\n", p.Percent, p.State, p.Message)
			return
		}
		fmt.Printf("%6.1f%%  %s\n", p.Percent, p.State)
	}
}
