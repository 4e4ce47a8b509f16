package compositor

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/aymanhs/capvid/internal/timeline"
)

// Compose alpha-blends overlay over dst with the overlay's own alpha
// channel scaled by a single uniform opacity factor. Color channels pass
// through untouched, so the fade is driven purely by the scalar — the
// overlay content never needs re-rendering between opacity steps.
//
// opacity outside [0,1] is clamped.
func Compose(dst *image.NRGBA, overlay image.Image, opacity float64) {
	if dst == nil || overlay == nil {
		return
	}
	opacity = clamp01(opacity)
	if opacity == 0 {
		return
	}
	if opacity == 1 {
		draw.Draw(dst, dst.Bounds(), overlay, overlay.Bounds().Min, draw.Over)
		return
	}

	bounds := dst.Bounds().Intersect(overlay.Bounds())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			src := color.NRGBAModel.Convert(overlay.At(x, y)).(color.NRGBA)
			a := uint32(float64(src.A) * opacity)
			if a == 0 {
				continue
			}

			i := dst.PixOffset(x, y)
			bg := dst.Pix[i : i+4 : i+4]
			inv := 255 - a
			bg[0] = uint8((uint32(src.R)*a + uint32(bg[0])*inv) / 255)
			bg[1] = uint8((uint32(src.G)*a + uint32(bg[1])*inv) / 255)
			bg[2] = uint8((uint32(src.B)*a + uint32(bg[2])*inv) / 255)
			if ba := uint32(bg[3]); ba < 255 {
				out := a + ba*inv/255
				if out > 255 {
					out = 255
				}
				bg[3] = uint8(out)
			}
		}
	}
}

// FadeAlpha returns the uniform opacity for a timestamp inside a clip:
// a linear ramp over fadeMs at both edges, 1.0 in the steady middle.
// Timestamps outside the clip yield 0.
func FadeAlpha(t int64, c timeline.Clip, fadeMs int64) float64 {
	if t < c.Start || t >= c.End {
		return 0
	}
	if c.Style.AlwaysShow || fadeMs <= 0 {
		return 1
	}
	if f := c.Style.FadeMs; f > 0 {
		fadeMs = f
	}

	alpha := 1.0
	if in := t - c.Start; in < fadeMs {
		alpha = float64(in) / float64(fadeMs)
	}
	if out := c.End - t; out < fadeMs {
		if a := float64(out) / float64(fadeMs); a < alpha {
			alpha = a
		}
	}
	return clamp01(alpha)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
