package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aymanhs/capvid/internal/timeline"
)

var planCmd = &cobra.Command{
	Use:   "plan [timeline.json]",
	Short: "Show the capture plan for a timeline without exporting",
	Long: `Plan prints the frame timestamps, transition zones and chunk layout
an export of this timeline would use.

Examples:
  capvid plan timeline.json
  capvid plan timeline.json --fast`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().Bool("fast", false, "Fast mode: skip fade transitions")
}

func runPlan(cmd *cobra.Command, args []string) error {
	fast, _ := cmd.Flags().GetBool("fast")

	doc, err := loadTimeline(args[0])
	if err != nil {
		return err
	}
	clips := doc.Clips()

	plan := timeline.BuildPlan(doc.Range, clips, cfg.FadeDurationMs, fast)

	target := cfg.Chunking.HighFidelityChunkMs
	if fast {
		target = cfg.Chunking.FastChunkMs
	}
	var chunks []timeline.Chunk
	if doc.Range.Duration() > target {
		chunks = timeline.SplitChunks(doc.Range, clips, target)
	} else {
		chunks = []timeline.Chunk{{Start: doc.Range.Start, End: doc.Range.End}}
	}

	segments := table.NewWriter()
	segments.SetOutputMirror(os.Stdout)
	segments.SetTitle("Segments")
	segments.AppendHeader(table.Row{"#", "Start (ms)", "End (ms)", "Transition"})
	for i := 1; i < len(plan.Timestamps); i++ {
		start, end := plan.Timestamps[i-1], plan.Timestamps[i]
		mid := start + (end-start)/2
		segments.AppendRow(table.Row{i, start, end, plan.InTransition(mid)})
	}
	segments.Render()

	chunkTable := table.NewWriter()
	chunkTable.SetOutputMirror(os.Stdout)
	chunkTable.SetTitle("Chunks")
	chunkTable.AppendHeader(table.Row{"#", "Start (ms)", "End (ms)", "Duration (ms)"})
	for _, c := range chunks {
		chunkTable.AppendRow(table.Row{c.Index, c.Start, c.End, c.Duration()})
	}
	chunkTable.Render()

	fmt.Printf("\n%d segments, %d transition zones, %d chunks over %dms\n",
		len(plan.Timestamps)-1, len(plan.Zones), len(chunks), doc.Range.Duration())
	return nil
}

func loadTimeline(path string) (timeline.Document, error) {
	doc, err := timeline.LoadDocument(path)
	if err != nil {
		return doc, err
	}
	logger.Debugw("timeline loaded",
		"path", path,
		"tracks", len(doc.Tracks),
		"clips", len(doc.Clips()),
		"audio", len(doc.Audio),
	)
	return doc, nil
}
