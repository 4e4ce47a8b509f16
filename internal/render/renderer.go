package render

import (
	"context"
	"errors"
	"time"
)

// ErrNotReady reports that the presentation layer did not confirm the
// requested playhead position before the timeout. Callers degrade
// and capture anyway.
var ErrNotReady = errors.New("render: position not confirmed before timeout")

// Renderer is the preview/presentation collaborator the pipeline captures
// from. Implementations own a playhead position and a full-opacity override
// flag; the orchestrator snapshots and restores both around an export.
type Renderer interface {
	// moves the playhead to the given timeline position (ms)
	Seek(ctx context.Context, positionMs int64) error

	// blocks until the surface confirms it shows positionMs, or returns
	// ErrNotReady after the timeout
	AwaitReady(ctx context.Context, positionMs int64, timeout time.Duration) error

	// returns the current surface as encoded PNG bytes at output size
	Rasterize(ctx context.Context) ([]byte, error)

	// current playhead position (ms)
	Position() int64

	// forces overlays to render fully opaque regardless of fade state;
	// used by the fast capture strategy, which delegates fades to the
	// encoder
	SetFullOpacity(on bool)
	FullOpacity() bool
}

// Snapshot captures the renderer state an export mutates, so every exit
// path can restore the editor's preview exactly as it was.
type Snapshot struct {
	PositionMs  int64
	FullOpacity bool
}

func TakeSnapshot(r Renderer) Snapshot {
	return Snapshot{PositionMs: r.Position(), FullOpacity: r.FullOpacity()}
}

// Restore puts the renderer back into the snapshotted state. Errors are
// deliberately swallowed: restoration runs on error paths where the
// original failure must win.
func (s Snapshot) Restore(r Renderer) {
	r.SetFullOpacity(s.FullOpacity)
	_ = r.Seek(context.Background(), s.PositionMs)
}
