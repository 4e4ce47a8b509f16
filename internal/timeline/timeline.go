package timeline

import "fmt"

// ClipKind identifies the timeline clip variants
type ClipKind string

const (
	KindSubtitle ClipKind = "subtitle"
	KindSilence  ClipKind = "silence"
	KindOverlay  ClipKind = "overlay"
	KindAsset    ClipKind = "asset"
)

// TimeRange is a half-open interval [Start, End) in milliseconds
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (r TimeRange) Duration() int64 {
	return r.End - r.Start
}

func (r TimeRange) Contains(t int64) bool {
	return t >= r.Start && t < r.End
}

func (r TimeRange) Validate() error {
	if r.End <= r.Start {
		return fmt.Errorf("invalid range [%d, %d): end must exceed start", r.Start, r.End)
	}
	return nil
}

// overlay-capable clip styling
type Style struct {
	FadeMs      int64 `json:"fade_ms"`
	AlwaysShow  bool  `json:"always_show"`
	AppearMs    int64 `json:"appear_ms"`
	DisappearMs int64 `json:"disappear_ms"`
}

// Clip is one timeline entry. The pipeline only reads clips; tracks own them.
type Clip struct {
	Kind  ClipKind `json:"kind"`
	Start int64    `json:"start"`
	End   int64    `json:"end"`
	Style Style    `json:"style"`

	// GroupKey groups silence clips whose blank frames are interchangeable.
	// The planner treats it as opaque.
	GroupKey string `json:"group_key,omitempty"`
}

func (c Clip) Range() TimeRange {
	return TimeRange{Start: c.Start, End: c.End}
}

func (c Clip) intersects(r TimeRange) bool {
	return c.End > r.Start && c.Start < r.End
}

// Track is an ordered set of clips sharing a lane in the editor
type Track struct {
	Name  string `json:"name"`
	Clips []Clip `json:"clips"`
}

// TransitionZone marks a sub-range where overlay opacity is actively
// changing. Zones may overlap; membership is a containment test.
type TransitionZone struct {
	Start int64
	End   int64
}

func (z TransitionZone) Contains(t int64) bool {
	return t >= z.Start && t < z.End
}

// Chunk is a bounded sub-range of the export timeline processed as one
// independent encoder session.
type Chunk struct {
	Start int64
	End   int64
	Index int
}

func (c Chunk) Duration() int64 {
	return c.End - c.Start
}

func (c Chunk) Range() TimeRange {
	return TimeRange{Start: c.Start, End: c.End}
}

// reports whether any custom overlay clip that is not always-shown is
// active inside the range; those clips force high-fidelity capture
func HasCustomOverlay(clips []Clip, r TimeRange) bool {
	for _, c := range clips {
		if c.Kind == KindOverlay && !c.Style.AlwaysShow && c.intersects(r) {
			return true
		}
	}
	return false
}
