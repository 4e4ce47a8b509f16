package export

import (
	"sync"

	"github.com/aymanhs/capvid/internal/logging"
)

// State names an export lifecycle phase.
type State string

const (
	StateInitializing    State = "initializing"
	StateCapturingFrames State = "capturing_frames"
	StateCreatingVideo   State = "creating_video"
	StateExported        State = "exported"
	StateError           State = "error"
)

// Terminal reports whether no further events may follow this state.
func (s State) Terminal() bool {
	return s == StateExported || s == StateError
}

// Progress is one export status event.
type Progress struct {
	ExportID      string
	State         State
	Percent       float64 // 0..100
	CurrentTimeMs int64   // timeline time processed so far
	TotalTimeMs   int64   // full export duration
	Message       string
}

type subscriber struct {
	exportID string // empty subscribes to all exports
	fn       func(Progress)
}

// Publisher fans export progress out to subscribers. It enforces the
// event contract per export: percent never decreases, and exactly one
// terminal event is delivered, after which further events are dropped.
type Publisher struct {
	mu   sync.Mutex
	subs map[int]subscriber
	next int
	last map[string]float64
	done map[string]bool
	log  *logging.Logger
}

func NewPublisher(log *logging.Logger) *Publisher {
	return &Publisher{
		subs: make(map[int]subscriber),
		last: make(map[string]float64),
		done: make(map[string]bool),
		log:  log,
	}
}

// Subscribe registers fn for events of exportID (all exports when empty)
// and returns a cancel func. fn runs on the publishing goroutine.
func (p *Publisher) Subscribe(exportID string, fn func(Progress)) (cancel func()) {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = subscriber{exportID: exportID, fn: fn}
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Publish delivers an event, normalized to the contract.
func (p *Publisher) Publish(pr Progress) {
	p.mu.Lock()

	if p.done[pr.ExportID] {
		p.mu.Unlock()
		p.log.Debugw("dropping event after terminal state",
			"export", pr.ExportID, "state", pr.State)
		return
	}

	if pr.Percent < 0 {
		pr.Percent = 0
	}
	if pr.Percent > 100 {
		pr.Percent = 100
	}
	if last := p.last[pr.ExportID]; pr.Percent < last {
		pr.Percent = last
	}
	if pr.State.Terminal() {
		pr.Percent = 100
	}

	p.last[pr.ExportID] = pr.Percent
	if pr.State.Terminal() {
		p.done[pr.ExportID] = true
	}

	var targets []func(Progress)
	for _, s := range p.subs {
		if s.exportID == "" || s.exportID == pr.ExportID {
			targets = append(targets, s.fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range targets {
		fn(pr)
	}
}

// Forget clears the tracked state for an export id so it can be reused.
func (p *Publisher) Forget(exportID string) {
	p.mu.Lock()
	delete(p.last, exportID)
	delete(p.done, exportID)
	p.mu.Unlock()
}
