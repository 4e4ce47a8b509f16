package timeline

import "sort"

// Plan is the sampling schedule for one range: every timestamp at which the
// rendered frame content changes discontinuously, plus the zones where it
// changes continuously (fades).
type Plan struct {
	// Timestamps is strictly ascending, deduplicated, bounded by the range,
	// and contains both range endpoints.
	Timestamps []int64

	// Zones are the fade sub-intervals registered while planning. They may
	// overlap across clips; use InTransition for membership.
	Zones []TransitionZone

	// ReusableSilences maps a group key to the end timestamps of silence
	// clips after the first in that group. A capture stage may reuse the
	// group's blank frame at these times instead of sampling again; ignoring
	// the map is also correct.
	ReusableSilences map[string][]int64
}

// reports whether t falls inside any registered transition zone
func (p Plan) InTransition(t int64) bool {
	for _, z := range p.Zones {
		if z.Contains(t) {
			return true
		}
	}
	return false
}

// BuildPlan computes the minimal sample schedule for r.
//
// Every clip boundary where content appears or disappears is sampled. In
// fast mode fades collapse into a single visual segment per clip: only the
// clip boundaries are sampled and no zones are registered, trading fade
// smoothness for fewer captures. Otherwise each fade edge contributes its
// own boundary pair and a transition zone.
func BuildPlan(r TimeRange, clips []Clip, fadeMs int64, fastMode bool) Plan {
	set := map[int64]struct{}{
		r.Start: {},
		r.End:   {},
	}
	var zones []TransitionZone
	reusable := make(map[string][]int64)
	seenSilence := make(map[string]bool)

	add := func(t int64) {
		if t < r.Start {
			t = r.Start
		}
		if t > r.End {
			t = r.End
		}
		set[t] = struct{}{}
	}
	addZone := func(start, end int64) {
		if start < r.Start {
			start = r.Start
		}
		if end > r.End {
			end = r.End
		}
		if end > start {
			zones = append(zones, TransitionZone{Start: start, End: end})
		}
	}

	for _, c := range clips {
		if c.End <= c.Start {
			continue
		}
		if !c.intersects(r) {
			continue
		}

		switch c.Kind {
		case KindSilence:
			key := c.GroupKey
			if !seenSilence[key] {
				seenSilence[key] = true
				add(c.End)
			} else {
				reusable[key] = append(reusable[key], c.End)
			}

		case KindAsset:
			// backgrounds and audio never change the overlay surface

		case KindOverlay:
			if c.Style.AlwaysShow {
				add(c.Start)
				add(c.End)
				continue
			}
			planFades(c, clipFade(c, fadeMs), fastMode, add, addZone)

		default: // subtitles
			planFades(c, clipFade(c, fadeMs), fastMode, add, addZone)
		}
	}

	ts := make([]int64, 0, len(set))
	for t := range set {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	return Plan{Timestamps: ts, Zones: zones, ReusableSilences: reusable}
}

// adds the fade-in and fade-out boundaries for one overlay-bearing clip
func planFades(c Clip, fade int64, fastMode bool, add func(int64), addZone func(start, end int64)) {
	if fastMode {
		add(c.Start)
		add(c.End)
		return
	}

	add(c.Start)
	fadeInEnd := c.Start + fade
	if fadeInEnd > c.End {
		fadeInEnd = c.End
	}
	add(fadeInEnd)
	if fadeInEnd > c.Start {
		addZone(c.Start, fadeInEnd)
	}

	// a fade-out exists only when the clip is long enough to hold it
	if fadeOutStart := c.End - fade; fadeOutStart > c.Start {
		add(fadeOutStart)
		add(c.End)
		addZone(fadeOutStart, c.End)
	}
}

// per-clip fade override; falls back to the project-wide duration
func clipFade(c Clip, fadeMs int64) int64 {
	if c.Style.FadeMs > 0 {
		return c.Style.FadeMs
	}
	return fadeMs
}
