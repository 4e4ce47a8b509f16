package export

import (
	"testing"

	"github.com/aymanhs/capvid/internal/logging"
)

func TestPublisherClampsDecreasingPercent(t *testing.T) {
	pub := NewPublisher(logging.NewNopLogger())
	var got []float64
	pub.Subscribe("a", func(p Progress) { got = append(got, p.Percent) })

	pub.Publish(Progress{ExportID: "a", State: StateCapturingFrames, Percent: 40})
	pub.Publish(Progress{ExportID: "a", State: StateCapturingFrames, Percent: 30})
	pub.Publish(Progress{ExportID: "a", State: StateCapturingFrames, Percent: 55})

	want := []float64{40, 40, 55}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestPublisherDropsEventsAfterTerminal(t *testing.T) {
	pub := NewPublisher(logging.NewNopLogger())
	var states []State
	pub.Subscribe("a", func(p Progress) { states = append(states, p.State) })

	pub.Publish(Progress{ExportID: "a", State: StateExported})
	pub.Publish(Progress{ExportID: "a", State: StateCapturingFrames, Percent: 50})
	pub.Publish(Progress{ExportID: "a", State: StateError})

	if len(states) != 1 || states[0] != StateExported {
		t.Fatalf("states = %v, want just [exported]", states)
	}
}

func TestPublisherExportedForcesHundredPercent(t *testing.T) {
	pub := NewPublisher(logging.NewNopLogger())
	var last Progress
	pub.Subscribe("a", func(p Progress) { last = p })

	pub.Publish(Progress{ExportID: "a", State: StateExported, Percent: 97})

	if last.Percent != 100 {
		t.Fatalf("exported percent = %v, want 100", last.Percent)
	}
}

func TestPublisherFiltersByExportID(t *testing.T) {
	pub := NewPublisher(logging.NewNopLogger())
	var aCount, allCount int
	pub.Subscribe("a", func(Progress) { aCount++ })
	pub.Subscribe("", func(Progress) { allCount++ })

	pub.Publish(Progress{ExportID: "a", State: StateCapturingFrames, Percent: 10})
	pub.Publish(Progress{ExportID: "b", State: StateCapturingFrames, Percent: 10})

	if aCount != 1 {
		t.Errorf("filtered subscriber saw %d events, want 1", aCount)
	}
	if allCount != 2 {
		t.Errorf("wildcard subscriber saw %d events, want 2", allCount)
	}
}

func TestPublisherCancelStopsDelivery(t *testing.T) {
	pub := NewPublisher(logging.NewNopLogger())
	count := 0
	cancel := pub.Subscribe("a", func(Progress) { count++ })

	pub.Publish(Progress{ExportID: "a", State: StateCapturingFrames, Percent: 10})
	cancel()
	pub.Publish(Progress{ExportID: "a", State: StateCapturingFrames, Percent: 20})

	if count != 1 {
		t.Fatalf("events after cancel: count = %d, want 1", count)
	}
}

func TestPublisherForgetAllowsReuse(t *testing.T) {
	pub := NewPublisher(logging.NewNopLogger())
	var states []State
	pub.Subscribe("a", func(p Progress) { states = append(states, p.State) })

	pub.Publish(Progress{ExportID: "a", State: StateError})
	pub.Forget("a")
	pub.Publish(Progress{ExportID: "a", State: StateCapturingFrames, Percent: 5})

	if len(states) != 2 {
		t.Fatalf("states = %v, want terminal then fresh event", states)
	}
}
