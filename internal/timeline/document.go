package timeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// AudioRef places an audio file on the export timeline.
type AudioRef struct {
	Path        string `json:"path"`
	OffsetMs    int64  `json:"offset_ms"`
	TrimStartMs int64  `json:"trim_start_ms"`
	TrimEndMs   int64  `json:"trim_end_ms"`
}

// Document is the on-disk project description an export consumes.
type Document struct {
	Range  TimeRange  `json:"range"`
	Tracks []Track    `json:"tracks"`
	Audio  []AudioRef `json:"audio,omitempty"`
}

// Clips flattens all tracks into a single clip list; the planner does not
// care about lanes.
func (d Document) Clips() []Clip {
	var clips []Clip
	for _, tr := range d.Tracks {
		clips = append(clips, tr.Clips...)
	}
	return clips
}

func (d Document) Validate() error {
	if err := d.Range.Validate(); err != nil {
		return err
	}
	for _, tr := range d.Tracks {
		for _, c := range tr.Clips {
			switch c.Kind {
			case KindSubtitle, KindSilence, KindOverlay, KindAsset:
			default:
				return fmt.Errorf("track %q: unknown clip kind %q", tr.Name, c.Kind)
			}
			if c.End < c.Start {
				return fmt.Errorf("track %q: clip [%d,%d) ends before it starts",
					tr.Name, c.Start, c.End)
			}
		}
	}
	for _, a := range d.Audio {
		if a.Path == "" {
			return fmt.Errorf("audio entry missing path")
		}
	}
	return nil
}

// LoadDocument reads and validates a timeline JSON file.
func LoadDocument(path string) (Document, error) {
	var doc Document

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading timeline: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing timeline %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return doc, fmt.Errorf("invalid timeline %s: %w", path, err)
	}
	return doc, nil
}
