package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aymanhs/capvid/internal/logging"
	"github.com/aymanhs/capvid/internal/timeline"
)

func writeFrame(t *testing.T, dir string, name string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func decodeNRGBA(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding rasterized frame: %v", err)
	}
	out := image.NewNRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func newTestSequence(t *testing.T, clips []timeline.Clip) *ImageSequence {
	t.Helper()
	dir := t.TempDir()
	writeFrame(t, dir, "0.png", color.NRGBA{R: 50, G: 50, B: 50, A: 255})
	writeFrame(t, dir, "1000.png", color.NRGBA{R: 200, G: 0, B: 0, A: 255})
	writeFrame(t, dir, "notaframe.png", color.NRGBA{A: 255})

	seq, err := NewImageSequence(dir, clips, 500, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	return seq
}

func TestImageSequencePicksLatestFrameAtOrBeforePlayhead(t *testing.T) {
	seq := newTestSequence(t, nil)
	ctx := context.Background()

	if err := seq.Seek(ctx, 999); err != nil {
		t.Fatal(err)
	}
	data, err := seq.Rasterize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := decodeNRGBA(t, data).NRGBAAt(1, 1); got.R != 50 {
		t.Fatalf("at 999ms expected the 0ms frame (R=50), got %+v", got)
	}

	if err := seq.Seek(ctx, 1000); err != nil {
		t.Fatal(err)
	}
	data, err = seq.Rasterize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := decodeNRGBA(t, data).NRGBAAt(1, 1); got.R != 200 {
		t.Fatalf("at 1000ms expected the 1000ms frame (R=200), got %+v", got)
	}
}

func TestImageSequenceAppliesFadeUnlessFullOpacity(t *testing.T) {
	clips := []timeline.Clip{
		{Kind: timeline.KindSubtitle, Start: 1000, End: 5000},
	}
	seq := newTestSequence(t, clips)
	ctx := context.Background()

	// mid fade-in: alpha 0.5 over a black background halves the red channel
	if err := seq.Seek(ctx, 1250); err != nil {
		t.Fatal(err)
	}
	data, err := seq.Rasterize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := decodeNRGBA(t, data).NRGBAAt(1, 1)
	if got.R < 98 || got.R > 101 {
		t.Fatalf("mid-fade R = %d, want ≈ 99", got.R)
	}

	seq.SetFullOpacity(true)
	data, err = seq.Rasterize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := decodeNRGBA(t, data).NRGBAAt(1, 1); got.R != 200 {
		t.Fatalf("full-opacity override ignored, R = %d", got.R)
	}
}

func TestImageSequenceAwaitReady(t *testing.T) {
	seq := newTestSequence(t, nil)
	ctx := context.Background()

	if err := seq.Seek(ctx, 500); err != nil {
		t.Fatal(err)
	}
	if err := seq.AwaitReady(ctx, 500, 100*time.Millisecond); err != nil {
		t.Fatalf("ready position reported not ready: %v", err)
	}
	if err := seq.AwaitReady(ctx, 9999, 20*time.Millisecond); err != ErrNotReady {
		t.Fatalf("expected ErrNotReady for mismatched position, got %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	seq := newTestSequence(t, nil)
	ctx := context.Background()

	if err := seq.Seek(ctx, 750); err != nil {
		t.Fatal(err)
	}
	snap := TakeSnapshot(seq)

	seq.SetFullOpacity(true)
	if err := seq.Seek(ctx, 4000); err != nil {
		t.Fatal(err)
	}

	snap.Restore(seq)
	if seq.Position() != 750 || seq.FullOpacity() {
		t.Fatalf("restore failed: pos=%d full=%v", seq.Position(), seq.FullOpacity())
	}
}
