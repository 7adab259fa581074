// Package mask normalizes repair masks authored against a scaled-down
// preview of the photo into the single-channel form the inpainting
// stage consumes.
package mask

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultFeatherSigma softens mask edges before a mask is submitted to
// the remote inpainting service, so repairs blend instead of seaming.
const DefaultFeatherSigma = 3.0

// Normalize resamples an authored mask onto the source photo's exact
// pixel grid and thresholds it to a binary grayscale mask. The
// authoring surface draws red strokes on a transparent overlay, so any
// pixel with a non-zero red channel counts as flagged (255); everything
// else is untouched (0). Nearest-neighbor resampling keeps the
// threshold binary.
func Normalize(authored image.Image, size image.Rectangle) (*image.Gray, error) {
	if authored == nil {
		return nil, errors.New("authored mask is required")
	}
	w, h := size.Dx(), size.Dy()
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("invalid target dimensions %dx%d", w, h)
	}

	resampled := imaging.Resize(authored, w, h, imaging.NearestNeighbor)

	out := image.NewGray(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(resampled.Pix); i, j = i+4, j+1 {
		if resampled.Pix[i] > 0 {
			out.Pix[j] = 255
		}
	}
	return out, nil
}

// Feather applies a Gaussian blur so the mask's hard edges become soft
// blend weights. A sigma <= 0 falls back to DefaultFeatherSigma.
func Feather(m *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		sigma = DefaultFeatherSigma
	}

	blurred := imaging.Blur(m, sigma)

	out := image.NewGray(image.Rect(0, 0, m.Bounds().Dx(), m.Bounds().Dy()))
	for i, j := 0, 0; i < len(blurred.Pix); i, j = i+4, j+1 {
		out.Pix[j] = blurred.Pix[i]
	}
	return out
}

// Empty reports whether no pixel is flagged at all, which lets the
// pipeline skip the repair stage entirely.
func Empty(m *image.Gray) bool {
	for _, v := range m.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}
