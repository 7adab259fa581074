package hologram

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestComposeSizeAndOpacity(t *testing.T) {
	src := solidImage(300, 200, color.NRGBA{R: 200, G: 40, B: 40, A: 255})

	out := Compose(src, false)

	if got := out.Bounds().Dx(); got != CanvasSize {
		t.Fatalf("expected width %d, got %d", CanvasSize, got)
	}
	if got := out.Bounds().Dy(); got != CanvasSize {
		t.Fatalf("expected height %d, got %d", CanvasSize, got)
	}
	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 0xff {
			t.Fatalf("expected fully opaque composite, found alpha %d at offset %d", out.Pix[i], i)
		}
	}
}

func TestComposeDeterministic(t *testing.T) {
	src := gradientImage(240, 180)

	first := Compose(src, true)
	second := Compose(src, true)

	if !bytes.Equal(first.Pix, second.Pix) {
		t.Fatal("expected repeated calls with identical input to produce identical pixels")
	}
}

func TestComposeFacePlacement(t *testing.T) {
	// 300x200 already fits inside the thumbnail bound, so the front
	// face keeps its dimensions: cx = (1024-300)/2 = 362.
	src := solidImage(300, 200, color.NRGBA{R: 255, A: 255})

	out := Compose(src, false)

	const (
		faceW = 300
		faceH = 200
		cx    = (CanvasSize - faceW) / 2
	)

	assertRed := func(x, y int, where string) {
		t.Helper()
		c := out.NRGBAAt(x, y)
		if c.R < 200 || c.G > 50 || c.B > 50 {
			t.Fatalf("expected red face pixel at %s (%d,%d), got %+v", where, x, y, c)
		}
	}
	assertBlack := func(x, y int, where string) {
		t.Helper()
		c := out.NRGBAAt(x, y)
		if c.R != 0 || c.G != 0 || c.B != 0 {
			t.Fatalf("expected black canvas at %s (%d,%d), got %+v", where, x, y, c)
		}
	}

	// Front face interior and its margins.
	assertRed(cx+faceW/2, edgeMargin+faceH/2, "front center")
	assertBlack(cx-1, edgeMargin+faceH/2, "left of front")
	assertBlack(cx+faceW, edgeMargin+faceH/2, "right of front")
	assertBlack(cx+faceW/2, edgeMargin-1, "above front")

	// Back face sits mirrored at the bottom with the same margin.
	backY := CanvasSize - faceH - edgeMargin
	assertRed(cx+faceW/2, backY+faceH/2, "back center")
	assertBlack(cx+faceW/2, backY+faceH, "below back")

	// Side faces: 80% width then rotated, so both are 200x240 and
	// vertically centered at sy = (1024-240)/2 = 392.
	sideW := faceW * 8 / 10
	sy := (CanvasSize - sideW) / 2
	assertRed(edgeMargin+faceH/2, sy+sideW/2, "left center")
	assertRed(CanvasSize-edgeMargin-faceH/2, sy+sideW/2, "right center")
	assertBlack(edgeMargin-1, sy+sideW/2, "outside left")
	assertBlack(CanvasSize-edgeMargin, sy+sideW/2, "outside right")
}

func TestComposeDegenerateInputs(t *testing.T) {
	cases := []struct {
		name string
		src  image.Image
	}{
		{"nil", nil},
		{"zero size", image.NewNRGBA(image.Rect(0, 0, 0, 0))},
		{"zero width", image.NewNRGBA(image.Rect(0, 0, 0, 10))},
	}

	for _, tc := range cases {
		out := Compose(tc.src, true)
		if out.Bounds().Dx() != CanvasSize || out.Bounds().Dy() != CanvasSize {
			t.Fatalf("%s: expected %dx%d fallback canvas", tc.name, CanvasSize, CanvasSize)
		}
		for i := 0; i < len(out.Pix); i += 4 {
			if out.Pix[i] != 0 || out.Pix[i+1] != 0 || out.Pix[i+2] != 0 || out.Pix[i+3] != 0xff {
				t.Fatalf("%s: expected solid black fallback, found %v at offset %d", tc.name, out.Pix[i:i+4], i)
			}
		}
	}
}

func TestComposeOnePixelSource(t *testing.T) {
	src := solidImage(1, 1, color.NRGBA{R: 120, G: 120, B: 120, A: 255})

	out := Compose(src, false)

	if out.Bounds().Dx() != CanvasSize || out.Bounds().Dy() != CanvasSize {
		t.Fatalf("expected %dx%d composite for 1x1 source", CanvasSize, CanvasSize)
	}
}

func TestComposeTransparencyToggle(t *testing.T) {
	// White source with large fully-transparent corner blocks. The
	// corners land untouched on the canvas only when the alpha channel
	// is honored as a paste mask.
	const size = 400
	const corner = 120
	src := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			alpha := uint8(255)
			if (x < corner || x >= size-corner) && (y < corner || y >= size-corner) {
				alpha = 0
			}
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: alpha})
		}
	}

	// 400x400 thumbnails to 380x380: cx = (1024-380)/2 = 322. Sample
	// well inside the transparent corner of the front face.
	const (
		faceEdge = 380
		cx       = (CanvasSize - faceEdge) / 2
		probeX   = cx + 20
		probeY   = edgeMargin + 20
	)

	masked := Compose(src, true)
	if c := masked.NRGBAAt(probeX, probeY); c.R != 0 || c.G != 0 || c.B != 0 {
		t.Fatalf("expected black canvas under transparent corner, got %+v", c)
	}

	opaque := Compose(src, false)
	if c := opaque.NRGBAAt(probeX, probeY); c.R < 200 {
		t.Fatalf("expected opaque paste to overwrite the corner, got %+v", c)
	}

	// The side faces go through a separate resize; their corners map to
	// source corners too, so the same toggle must hold there. Left face:
	// 380x304 at (70, (1024-304)/2).
	const (
		sideProbeX = edgeMargin + 20
		sideProbeY = (CanvasSize-304)/2 + 20
	)
	if c := masked.NRGBAAt(sideProbeX, sideProbeY); c.R != 0 || c.G != 0 || c.B != 0 {
		t.Fatalf("expected black canvas under transparent side corner, got %+v", c)
	}
	if c := opaque.NRGBAAt(sideProbeX, sideProbeY); c.R < 200 {
		t.Fatalf("expected opaque side paste to overwrite the corner, got %+v", c)
	}
}

func TestComposeThumbnailsLargeSources(t *testing.T) {
	// An 800x400 source must shrink to 380x190 before placement, so
	// nothing may appear outside the centered 380-wide front band.
	src := solidImage(800, 400, color.NRGBA{R: 10, G: 200, B: 10, A: 255})

	out := Compose(src, false)

	const cx = (CanvasSize - 380) / 2
	if c := out.NRGBAAt(cx-2, edgeMargin+10); c.G != 0 {
		t.Fatalf("expected black outside thumbnailed front face, got %+v", c)
	}
	if c := out.NRGBAAt(CanvasSize/2, edgeMargin+95); c.G < 100 {
		t.Fatalf("expected green inside thumbnailed front face, got %+v", c)
	}
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}
	return img
}
