package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aymanhs/capvid/internal/compositor"
	"github.com/aymanhs/capvid/internal/logging"
	"github.com/aymanhs/capvid/internal/timeline"
)

// ImageSequence is a Renderer backed by a folder of pre-rendered overlay
// frames named <timestampMs>.png. For a given playhead position it picks
// the frame with the greatest timestamp not past the playhead, fades it
// according to the clip it belongs to, and composites it over a solid
// background. Output dimensions come from the first frame in the folder.
type ImageSequence struct {
	dir        string
	clips      []timeline.Clip
	fadeMs     int64
	background color.NRGBA
	log        *logging.Logger

	frames []sequenceFrame // ascending by timestamp
	width  int
	height int

	mu          sync.Mutex
	positionMs  int64
	fullOpacity bool
	cacheTs     int64
	cacheImg    image.Image
}

type sequenceFrame struct {
	tsMs int64
	path string
}

// NewImageSequence indexes dir and sizes the output after its first frame.
// Files whose names are not integer millisecond timestamps are skipped.
func NewImageSequence(dir string, clips []timeline.Clip, fadeMs int64, log *logging.Logger) (*ImageSequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame dir: %w", err)
	}

	var frames []sequenceFrame
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSuffix(e.Name(), ".png"), 10, 64)
		if err != nil {
			log.Debugw("skipping non-timestamp frame file", "file", e.Name())
			continue
		}
		frames = append(frames, sequenceFrame{tsMs: ts, path: filepath.Join(dir, e.Name())})
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no timestamped .png frames in %s", dir)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].tsMs < frames[j].tsMs })

	first, err := loadPNG(frames[0].path)
	if err != nil {
		return nil, fmt.Errorf("probing frame size: %w", err)
	}
	b := first.Bounds()

	return &ImageSequence{
		dir:        dir,
		clips:      clips,
		fadeMs:     fadeMs,
		background: color.NRGBA{A: 255},
		log:        log,
		frames:     frames,
		width:      b.Dx(),
		height:     b.Dy(),
		cacheTs:    frames[0].tsMs,
		cacheImg:   first,
	}, nil
}

// Size reports the output dimensions in pixels.
func (s *ImageSequence) Size() (w, h int) { return s.width, s.height }

func (s *ImageSequence) Seek(_ context.Context, positionMs int64) error {
	s.mu.Lock()
	s.positionMs = positionMs
	s.mu.Unlock()
	return nil
}

// AwaitReady is immediate for an image sequence: frames are decoded on
// demand, so the surface is "ready" as soon as the position is set. The
// timeout still bounds a mismatched-seek wait so the contract holds for
// callers that race Seek and AwaitReady.
func (s *ImageSequence) AwaitReady(ctx context.Context, positionMs int64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		ok := s.positionMs == positionMs
		s.mu.Unlock()
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotReady
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *ImageSequence) Rasterize(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	pos := s.positionMs
	full := s.fullOpacity
	s.mu.Unlock()

	dst := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(s.background), image.Point{}, draw.Src)

	if frame := s.frameAt(pos); frame != nil {
		overlay, err := s.loadCached(frame)
		if err != nil {
			return nil, err
		}
		alpha := 1.0
		if !full {
			alpha = s.alphaAt(pos)
		}
		compositor.Compose(dst, overlay, alpha)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ImageSequence) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionMs
}

func (s *ImageSequence) SetFullOpacity(on bool) {
	s.mu.Lock()
	s.fullOpacity = on
	s.mu.Unlock()
}

func (s *ImageSequence) FullOpacity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullOpacity
}

// frameAt returns the latest frame at or before pos, or nil when pos
// precedes the sequence.
func (s *ImageSequence) frameAt(pos int64) *sequenceFrame {
	i := sort.Search(len(s.frames), func(i int) bool { return s.frames[i].tsMs > pos })
	if i == 0 {
		return nil
	}
	return &s.frames[i-1]
}

// alphaAt resolves the fade opacity from the clip covering pos. Overlapping
// clips take the maximum so a fading-out clip never dims one fading in.
func (s *ImageSequence) alphaAt(pos int64) float64 {
	alpha := 0.0
	covered := false
	for _, c := range s.clips {
		if pos < c.Start || pos >= c.End {
			continue
		}
		covered = true
		if a := compositor.FadeAlpha(pos, c, s.fadeMs); a > alpha {
			alpha = a
		}
	}
	if !covered {
		// no clip metadata for this frame: show it as-is
		return 1
	}
	return alpha
}

func (s *ImageSequence) loadCached(frame *sequenceFrame) (image.Image, error) {
	s.mu.Lock()
	if s.cacheImg != nil && s.cacheTs == frame.tsMs {
		img := s.cacheImg
		s.mu.Unlock()
		return img, nil
	}
	s.mu.Unlock()

	img, err := loadPNG(frame.path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cacheTs = frame.tsMs
	s.cacheImg = img
	s.mu.Unlock()
	return img, nil
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", path, err)
	}
	return img, nil
}
