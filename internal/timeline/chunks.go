package timeline

import "sort"

// SplitChunks partitions r into an ordered, non-overlapping sequence of
// chunks that exactly covers it. Each chunk aims for targetMs but is
// extended forward to the nearest fade-out completion so no fade is ever
// split across two encoder sessions.
func SplitChunks(r TimeRange, clips []Clip, targetMs int64) []Chunk {
	fadeEnds := FadeOutEnds(clips, r)

	var chunks []Chunk
	cur := r.Start
	for cur < r.End {
		ideal := cur + targetMs
		if ideal >= r.End {
			chunks = append(chunks, Chunk{Start: cur, End: r.End, Index: len(chunks)})
			break
		}

		end := ideal
		if snapped, ok := nextFadeEnd(fadeEnds, ideal); ok && snapped <= r.End {
			end = snapped
		}
		if end > r.End {
			end = r.End
		}

		chunks = append(chunks, Chunk{Start: cur, End: end, Index: len(chunks)})
		cur = end
	}
	return chunks
}

// FadeOutEnds collects the sorted, deduplicated timestamps at which a fade
// completes inside r: the end times of every clip that fades (silence clips
// and always-shown overlays never fade).
func FadeOutEnds(clips []Clip, r TimeRange) []int64 {
	set := map[int64]struct{}{}
	for _, c := range clips {
		if c.End <= c.Start || !c.intersects(r) {
			continue
		}
		switch c.Kind {
		case KindSilence, KindAsset:
			continue
		case KindOverlay:
			if c.Style.AlwaysShow {
				continue
			}
		}
		if c.End > r.Start && c.End <= r.End {
			set[c.End] = struct{}{}
		}
	}

	ends := make([]int64, 0, len(set))
	for t := range set {
		ends = append(ends, t)
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i] < ends[j] })
	return ends
}

// returns the earliest fade-out end at or after t
func nextFadeEnd(sorted []int64, t int64) (int64, bool) {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= t })
	if i == len(sorted) {
		return 0, false
	}
	return sorted[i], true
}
