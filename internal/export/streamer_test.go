package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aymanhs/capvid/internal/logging"
	"github.com/aymanhs/capvid/internal/timeline"
)

func TestStreamerRendersTransitionsFrameByFrame(t *testing.T) {
	r := &fakeRenderer{}
	pub := NewPublisher(logging.NewNopLogger())
	st := NewStreamer(r, time.Second, pub, logging.NewNopLogger())

	rng := timeline.TimeRange{Start: 0, End: 12000}
	clips := []timeline.Clip{{Kind: timeline.KindSubtitle, Start: 1000, End: 5000}}
	plan := timeline.BuildPlan(rng, clips, 500, false)

	session := &fakeSession{}
	sent, err := st.Stream(context.Background(), session, StreamParams{
		ExportID: "s", Range: rng, Plan: &plan, FPS: 30,
		PhaseStart: 0, PhaseEnd: 95,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent != 360 {
		t.Fatalf("sent = %d, want 360", sent)
	}

	// each 500ms fade holds 15 distinct frames at 30fps; static spans
	// arrive as a single frame with a repeat count
	var singles, repeated int
	for _, f := range session.sent {
		if f.repeat == 1 {
			singles++
		} else {
			repeated++
		}
	}
	if singles != 30 {
		t.Errorf("per-frame sends = %d, want 30 across two fades", singles)
	}
	if repeated != 3 {
		t.Errorf("repeated sends = %d, want 3 static spans", repeated)
	}
}

func TestStreamerFastPlanUsesOnlyRepeats(t *testing.T) {
	r := &fakeRenderer{}
	pub := NewPublisher(logging.NewNopLogger())
	st := NewStreamer(r, time.Second, pub, logging.NewNopLogger())

	rng := timeline.TimeRange{Start: 0, End: 12000}
	clips := []timeline.Clip{{Kind: timeline.KindSubtitle, Start: 1000, End: 5000}}
	plan := timeline.BuildPlan(rng, clips, 500, true)

	session := &fakeSession{}
	sent, err := st.Stream(context.Background(), session, StreamParams{
		ExportID: "s", Range: rng, Plan: &plan, FPS: 30,
		PhaseStart: 0, PhaseEnd: 95,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent != 360 {
		t.Fatalf("sent = %d, want 360", sent)
	}
	// fast plans register no transition zones: three segments, three sends
	if len(session.sent) != 3 {
		t.Fatalf("sends = %d, want 3", len(session.sent))
	}
}

func TestStreamerChunkOffsetUsesLocalFrameIndexing(t *testing.T) {
	r := &fakeRenderer{}
	pub := NewPublisher(logging.NewNopLogger())
	st := NewStreamer(r, time.Second, pub, logging.NewNopLogger())

	// second chunk of a longer export: frame counts are relative to the
	// chunk start, not the export start
	full := timeline.TimeRange{Start: 0, End: 400_000}
	plan := timeline.BuildPlan(full, nil, 500, true)

	session := &fakeSession{}
	sent, err := st.Stream(context.Background(), session, StreamParams{
		ExportID: "s",
		Range:    timeline.TimeRange{Start: 300_000, End: 400_000},
		Plan:     &plan, FPS: 30,
		PhaseStart: 47.5, PhaseEnd: 95,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent != 3000 {
		t.Fatalf("sent = %d, want 3000 (100s at 30fps)", sent)
	}
}

func TestStreamerCustomOverlaySpansRenderPerFrame(t *testing.T) {
	r := &fakeRenderer{}
	pub := NewPublisher(logging.NewNopLogger())
	st := NewStreamer(r, time.Second, pub, logging.NewNopLogger())

	rng := timeline.TimeRange{Start: 0, End: 4000}
	clips := []timeline.Clip{
		{Kind: timeline.KindOverlay, Start: 1000, End: 3000},
	}
	plan := timeline.BuildPlan(rng, clips, 500, false)

	session := &fakeSession{}
	sent, err := st.Stream(context.Background(), session, StreamParams{
		ExportID: "s", Range: rng, Plan: &plan, Clips: clips, FPS: 30,
		PhaseStart: 0, PhaseEnd: 95,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent != 120 {
		t.Fatalf("sent = %d, want 120", sent)
	}

	// the overlay's steady span [1500,2500) must not be collapsed into a
	// single repeated frame
	for _, f := range session.sent {
		if f.repeat > 1 && strings.HasPrefix(f.frame, "frame@2") {
			t.Fatalf("overlay span collapsed to a repeated frame: %+v", f)
		}
	}
}

func TestStreamerPublishesProgressPerEmission(t *testing.T) {
	r := &fakeRenderer{}
	pub := NewPublisher(logging.NewNopLogger())
	st := NewStreamer(r, time.Second, pub, logging.NewNopLogger())

	var events []Progress
	pub.Subscribe("s", func(p Progress) { events = append(events, p) })

	// an animated overlay across the whole minute forces per-frame capture;
	// every frame sent must surface as its own progress event
	rng := timeline.TimeRange{Start: 0, End: 60_000}
	clips := []timeline.Clip{{Kind: timeline.KindOverlay, Start: 0, End: 60_000}}
	plan := timeline.BuildPlan(rng, clips, 500, false)

	session := &fakeSession{}
	sent, err := st.Stream(context.Background(), session, StreamParams{
		ExportID: "s", Range: rng, Plan: &plan, Clips: clips, FPS: 30,
		PhaseStart: 0, PhaseEnd: 95,
		ExportStartMs: 0, ExportEndMs: 60_000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent != 1800 {
		t.Fatalf("sent = %d, want 1800 (60s at 30fps)", sent)
	}
	if len(events) != 1800 {
		t.Fatalf("progress events = %d, want one per emitted frame (1800)", len(events))
	}

	last := -1.0
	for _, ev := range events {
		if ev.State != StateCapturingFrames {
			t.Fatalf("unexpected state %v during capture", ev.State)
		}
		if ev.Percent < last {
			t.Fatalf("percent decreased: %v after %v", ev.Percent, last)
		}
		last = ev.Percent
	}
	final := events[len(events)-1]
	if final.Percent != 95 || final.TotalTimeMs != 60_000 {
		t.Fatalf("final capture event = %+v, want 95%% at 60000ms total", final)
	}
}

func TestStreamerZeroLengthRange(t *testing.T) {
	r := &fakeRenderer{}
	pub := NewPublisher(logging.NewNopLogger())
	st := NewStreamer(r, time.Second, pub, logging.NewNopLogger())

	plan := timeline.BuildPlan(timeline.TimeRange{Start: 0, End: 10}, nil, 500, false)
	session := &fakeSession{}
	sent, err := st.Stream(context.Background(), session, StreamParams{
		ExportID: "s",
		Range:    timeline.TimeRange{Start: 5, End: 5},
		Plan:     &plan, FPS: 30,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent != 0 || len(session.sent) != 0 {
		t.Fatalf("zero-length range produced frames: %d", sent)
	}
}
