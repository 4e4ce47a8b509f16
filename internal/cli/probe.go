package cli

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aymanhs/capvid/internal/encoder"
)

var probeCmd = &cobra.Command{
	Use:   "probe [media files...]",
	Short: "Show duration and audio presence of media files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"File", "Duration", "Audio"})

	var firstErr error
	for _, path := range args {
		dur, err := encoder.Duration(path)
		if err != nil {
			t.AppendRow(table.Row{path, "error", err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		hasAudio, err := encoder.HasAudio(path)
		if err != nil {
			t.AppendRow(table.Row{path, dur.Round(time.Millisecond), err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		t.AppendRow(table.Row{path, dur.Round(time.Millisecond), hasAudio})
	}
	t.Render()

	return firstErr
}
