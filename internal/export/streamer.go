package export

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aymanhs/capvid/internal/encoder"
	"github.com/aymanhs/capvid/internal/logging"
	"github.com/aymanhs/capvid/internal/render"
	"github.com/aymanhs/capvid/internal/timeline"
)

// StreamParams drives one chunk's frame capture.
type StreamParams struct {
	ExportID string
	Range    timeline.TimeRange
	Plan     *timeline.Plan
	FPS      int

	// Clips gates per-frame capture for spans overlapped by animated
	// custom overlays; leave empty in fast mode, where a single repeated
	// frame per span is the point.
	Clips []timeline.Clip

	// progress window this chunk owns, in overall percent
	PhaseStart float64
	PhaseEnd   float64

	// full export bounds, for the time fields on progress events
	ExportStartMs int64
	ExportEndMs   int64
}

// Streamer captures frames from the renderer and feeds them to an encoder
// session. Static spans between plan timestamps are rendered once and
// repeated; spans inside transition zones are rendered frame by frame so
// fades stay smooth.
type Streamer struct {
	renderer  render.Renderer
	readiness time.Duration
	pub       *Publisher
	log       *logging.Logger
}

func NewStreamer(r render.Renderer, readiness time.Duration, pub *Publisher, log *logging.Logger) *Streamer {
	return &Streamer{renderer: r, readiness: readiness, pub: pub, log: log}
}

// Stream walks the plan's segments inside the chunk range and returns the
// number of frames actually sent. Frame counts use cumulative rounding
// against the chunk start so per-segment drift never accumulates: segment
// frames are frameAt(t1)-frameAt(t0), and the totals always sum to the
// chunk's expected frame count.
func (s *Streamer) Stream(ctx context.Context, session encoder.Session, p StreamParams) (int64, error) {
	start, end := p.Range.Start, p.Range.End
	frameAt := func(t int64) int64 {
		return int64(math.Round(float64(t-start) * float64(p.FPS) / 1000))
	}
	total := frameAt(end)
	if total == 0 {
		return 0, nil
	}

	cuts := segmentCuts(p.Plan, start, end)

	var sent int64
	for i := 1; i < len(cuts); i++ {
		t0, t1 := cuts[i-1], cuts[i]
		f0, f1 := frameAt(t0), frameAt(t1)
		if f1 == f0 {
			continue
		}

		mid := t0 + (t1-t0)/2
		perFrame := p.Plan.InTransition(mid) ||
			timeline.HasCustomOverlay(p.Clips, timeline.TimeRange{Start: t0, End: t1})
		if perFrame {
			// fades and animated overlays give every frame distinct pixels
			for f := f0; f < f1; f++ {
				t := start + int64(math.Round(float64(f)*1000/float64(p.FPS)))
				n, err := s.captureAndSend(ctx, session, t, 1)
				if err != nil {
					return sent, err
				}
				sent += n
				s.publishProgress(p, f+1, total, t)
			}
		} else {
			n, err := s.captureAndSend(ctx, session, mid, int(f1-f0))
			if err != nil {
				return sent, err
			}
			sent += n
			s.publishProgress(p, f1, total, t1)
		}
	}

	return sent, nil
}

// publishProgress emits one event for the emission that just completed:
// done of total frames reached, at timeline position t.
func (s *Streamer) publishProgress(p StreamParams, done, total, t int64) {
	s.pub.Publish(Progress{
		ExportID:      p.ExportID,
		State:         StateCapturingFrames,
		Percent:       p.PhaseStart + (p.PhaseEnd-p.PhaseStart)*float64(done)/float64(total),
		CurrentTimeMs: t - p.ExportStartMs,
		TotalTimeMs:   p.ExportEndMs - p.ExportStartMs,
	})
}

// captureAndSend seeks the renderer, waits for readiness, rasterizes and
// feeds the frame to the session. A readiness timeout degrades to capturing
// whatever the surface shows; an empty capture is skipped rather than
// failing the export.
func (s *Streamer) captureAndSend(ctx context.Context, session encoder.Session, t int64, repeat int) (int64, error) {
	if err := s.renderer.Seek(ctx, t); err != nil {
		return 0, fmt.Errorf("seeking to %dms: %w", t, err)
	}
	if err := s.renderer.AwaitReady(ctx, t, s.readiness); err != nil {
		if !errors.Is(err, render.ErrNotReady) {
			return 0, err
		}
		s.log.Warnw("render not confirmed in time, capturing anyway", "position_ms", t)
	}

	frame, err := s.renderer.Rasterize(ctx)
	if err != nil {
		return 0, fmt.Errorf("rasterizing at %dms: %w", t, err)
	}
	if len(frame) == 0 {
		s.log.Warnw("empty capture, skipping frame", "position_ms", t, "repeat", repeat)
		return 0, nil
	}

	if err := session.SendFrame(ctx, frame, repeat); err != nil {
		return 0, err
	}
	return int64(repeat), nil
}

// segmentCuts returns the plan timestamps strictly inside (start,end),
// bracketed by the chunk bounds.
func segmentCuts(plan *timeline.Plan, start, end int64) []int64 {
	cuts := []int64{start}
	for _, ts := range plan.Timestamps {
		if ts > start && ts < end {
			cuts = append(cuts, ts)
		}
	}
	return append(cuts, end)
}
