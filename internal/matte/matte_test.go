package matte

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/dunamismax/holoflow/internal/imagecodec"
)

func TestThresholdMatterKeysNearWhite(t *testing.T) {
	photo := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			c := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
			if x >= 10 {
				c = color.NRGBA{R: 120, G: 60, B: 30, A: 255}
			}
			photo.SetNRGBA(x, y, c)
		}
	}

	out, err := ThresholdMatter{}.Matte(context.Background(), encodePNG(t, photo))
	if err != nil {
		t.Fatalf("threshold matte: %v", err)
	}

	img, _, err := imagecodec.Decode(out)
	if err != nil {
		t.Fatalf("decode matted photo: %v", err)
	}
	matted := imaging.Clone(img)

	if got := matted.NRGBAAt(5, 5).A; got != 0 {
		t.Fatalf("expected near-white background transparent, got alpha %d", got)
	}
	fg := matted.NRGBAAt(15, 5)
	if fg.A != 255 {
		t.Fatalf("expected foreground opaque, got alpha %d", fg.A)
	}
	if fg.R != 120 || fg.G != 60 || fg.B != 30 {
		t.Fatalf("expected foreground color untouched, got %+v", fg)
	}

	if matted.Bounds().Dx() != 20 || matted.Bounds().Dy() != 20 {
		t.Fatalf("expected dimensions preserved, got %v", matted.Bounds())
	}
}

func TestOpaqueMatterPromotesAlpha(t *testing.T) {
	photo := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			photo.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: uint8(x * 30)})
		}
	}

	out, err := OpaqueMatter{}.Matte(context.Background(), encodePNG(t, photo))
	if err != nil {
		t.Fatalf("opaque matte: %v", err)
	}

	img, _, err := imagecodec.Decode(out)
	if err != nil {
		t.Fatalf("decode photo: %v", err)
	}
	matted := imaging.Clone(img)
	for i := 3; i < len(matted.Pix); i += 4 {
		if matted.Pix[i] != 0xff {
			t.Fatalf("expected fully opaque output, found alpha %d", matted.Pix[i])
		}
	}
}

func TestChainFallsBackToThreshold(t *testing.T) {
	photo := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 10, 10)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	chain := DefaultChain(log.New(io.Discard, "", 0), NewHTTPClient(Config{Endpoint: srv.URL}))
	_, tier, err := chain.Matte(context.Background(), photo)
	if err != nil {
		t.Fatalf("chain matte: %v", err)
	}
	if tier != TierThreshold {
		t.Fatalf("expected threshold tier, got %s", tier)
	}
}

func TestHTTPClientMatte(t *testing.T) {
	result := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 4, 4)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req matteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Image == "" {
			t.Error("expected base64 image in request")
		}
		_ = json.NewEncoder(w).Encode(matteResponse{
			ResultImage: base64.StdEncoding.EncodeToString(result),
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{Endpoint: srv.URL})
	out, err := client.Matte(context.Background(), []byte("photo"))
	if err != nil {
		t.Fatalf("matte: %v", err)
	}
	if len(out) != len(result) {
		t.Fatalf("expected %d result bytes, got %d", len(result), len(out))
	}
}

func TestHTTPClientUnconfigured(t *testing.T) {
	client := NewHTTPClient(Config{})
	if _, err := client.Matte(context.Background(), []byte("p")); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := imagecodec.EncodePNG(img)
	if err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return data
}
