package inpaint

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/dunamismax/holoflow/internal/imagecodec"
)

const (
	// DefaultMaskedBlurSigma approximates the heavy smoothing kernel
	// the demo-mode repair has always used.
	DefaultMaskedBlurSigma = 7.0
	// DefaultSoftenSigma is the light whole-image blur used when a
	// masked repair is not possible.
	DefaultSoftenSigma = 3.0
)

// MaskedBlurRepairer fakes a reconstruction by blending a heavily
// blurred copy of the photo into the flagged region, weighted by mask
// intensity. Untouched pixels pass through bit-identical.
type MaskedBlurRepairer struct {
	Sigma float64
}

func (r MaskedBlurRepairer) Repair(_ context.Context, photoPNG, maskPNG []byte) ([]byte, error) {
	sigma := r.Sigma
	if sigma <= 0 {
		sigma = DefaultMaskedBlurSigma
	}

	photo, _, err := imagecodec.Decode(photoPNG)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	maskImg, _, err := imagecodec.Decode(maskPNG)
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}

	src := imaging.Clone(photo)
	m := imaging.Clone(maskImg)
	if !src.Bounds().Eq(m.Bounds()) {
		return nil, fmt.Errorf("mask size %v does not match photo size %v", m.Bounds(), src.Bounds())
	}

	blurred := imaging.Blur(src, sigma)

	out := image.NewNRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		weight := uint32(m.Pix[i])
		inverse := 255 - weight
		out.Pix[i] = uint8((uint32(src.Pix[i])*inverse + uint32(blurred.Pix[i])*weight) / 255)
		out.Pix[i+1] = uint8((uint32(src.Pix[i+1])*inverse + uint32(blurred.Pix[i+1])*weight) / 255)
		out.Pix[i+2] = uint8((uint32(src.Pix[i+2])*inverse + uint32(blurred.Pix[i+2])*weight) / 255)
		out.Pix[i+3] = src.Pix[i+3]
	}

	return imagecodec.EncodePNG(out)
}

// SoftenRepairer blurs the whole photo lightly. It ignores the mask
// and stands in when even a masked repair cannot be produced.
type SoftenRepairer struct {
	Sigma float64
}

func (r SoftenRepairer) Repair(_ context.Context, photoPNG, _ []byte) ([]byte, error) {
	sigma := r.Sigma
	if sigma <= 0 {
		sigma = DefaultSoftenSigma
	}

	photo, _, err := imagecodec.Decode(photoPNG)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	return imagecodec.EncodePNG(imaging.Blur(photo, sigma))
}
