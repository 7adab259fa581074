// Package hologram renders the four-faced pyramid-net composite that a
// reflective prism display needs to fake a rotating 3D object from a
// single photograph.
package hologram

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// CanvasSize is the fixed edge length of the square composite.
const CanvasSize = 1024

const (
	// Faces are thumbnailed so neither dimension exceeds this before
	// compositing; together with edgeMargin this keeps every face
	// inside the canvas.
	maxFaceSize = 380

	// Clearance between each face and the canvas edge, fixed by the
	// physical prism's reflection geometry.
	edgeMargin = 70

	// Compensates for the dimming of alpha compositing and the
	// backlight washing through the prism.
	contrastFactor = 1.4

	// Side faces are narrowed to this fraction of the front face's
	// width before rotation.
	sideWidthRatio = 0.8
)

// Compose turns one processed source image into the pyramid-net
// composite: a black 1024x1024 canvas with the front face at the top,
// a mirrored and flipped back face at the bottom, and two narrowed,
// rotated side faces. When preserveTransparency is true each face is
// blended onto the canvas through its own alpha channel; otherwise
// faces overwrite their rectangle opaquely.
//
// Compose never fails. Any degenerate input, and any panic out of an
// intermediate transform, degrades to a solid black canvas so the
// interactive surfaces upstream stay responsive. The result is always
// fully opaque and the call is deterministic for a fixed input.
func Compose(src image.Image, preserveTransparency bool) (composite *image.NRGBA) {
	defer func() {
		if recover() != nil {
			composite = blackCanvas()
		}
	}()

	if src == nil {
		return blackCanvas()
	}
	if b := src.Bounds(); b.Dx() < 1 || b.Dy() < 1 {
		return blackCanvas()
	}

	prepared := imaging.Clone(src)
	if !preserveTransparency {
		// Opaque pastes must keep the source color under transparent
		// pixels. The resamplers weight samples by alpha, so a
		// zero-alpha pixel would otherwise collapse to black before
		// the paste ever happens.
		flatten(prepared)
	}
	prepared = boostContrast(prepared, contrastFactor)
	prepared = imaging.Fit(prepared, maxFaceSize, maxFaceSize, imaging.Lanczos)

	faceW := prepared.Bounds().Dx()
	faceH := prepared.Bounds().Dy()
	if faceW < 1 || faceH < 1 {
		return blackCanvas()
	}

	front := prepared
	back := imaging.Rotate180(imaging.FlipH(prepared))

	sideW := int(float64(faceW) * sideWidthRatio)
	if sideW < 1 {
		sideW = 1
	}
	left := imaging.Rotate270(imaging.Resize(prepared, sideW, faceH, imaging.Lanczos))
	right := imaging.Rotate90(imaging.Resize(imaging.FlipH(prepared), sideW, faceH, imaging.Lanczos))

	// left and right share a height after rotation: both equal sideW.
	cx := (CanvasSize - faceW) / 2
	sy := (CanvasSize - left.Bounds().Dy()) / 2

	canvas := blackCanvas()
	canvas = paste(canvas, front, image.Pt(cx, edgeMargin), preserveTransparency)
	canvas = paste(canvas, back, image.Pt(cx, CanvasSize-faceH-edgeMargin), preserveTransparency)
	canvas = paste(canvas, left, image.Pt(edgeMargin, sy), preserveTransparency)
	canvas = paste(canvas, right, image.Pt(CanvasSize-right.Bounds().Dx()-edgeMargin, sy), preserveTransparency)

	return flatten(canvas)
}

func blackCanvas() *image.NRGBA {
	return imaging.New(CanvasSize, CanvasSize, color.NRGBA{A: 0xff})
}

func paste(canvas, face *image.NRGBA, pos image.Point, withAlpha bool) *image.NRGBA {
	if withAlpha {
		return imaging.Overlay(canvas, face, pos, 1.0)
	}
	return imaging.Paste(canvas, face, pos)
}

// boostContrast blends every pixel away from the image-wide mean
// luminance (Rec.601 weights). Alpha is left untouched so transparent
// regions still vanish against the black backdrop.
func boostContrast(img *image.NRGBA, factor float64) *image.NRGBA {
	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return img
	}

	p := img.Pix
	var sum float64
	for i := 0; i < len(p); i += 4 {
		sum += 0.299*float64(p[i]) + 0.587*float64(p[i+1]) + 0.114*float64(p[i+2])
	}
	mean := math.Floor(sum/float64(pixels) + 0.5)

	for i := 0; i < len(p); i += 4 {
		p[i] = clampByte(mean + (float64(p[i])-mean)*factor)
		p[i+1] = clampByte(mean + (float64(p[i+1])-mean)*factor)
		p[i+2] = clampByte(mean + (float64(p[i+2])-mean)*factor)
	}
	return img
}

// flatten forces full opacity, dropping any residual alpha without
// re-blending pixel colors.
func flatten(img *image.NRGBA) *image.NRGBA {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
