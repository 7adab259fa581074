// Package matte separates the artifact from its background by turning
// background pixels transparent. A remote segmentation service does
// the real job; the local implementations keep the pipeline moving
// when it cannot.
package matte

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/disintegration/imaging"

	"github.com/dunamismax/holoflow/internal/imagecodec"
)

const (
	TierRemote    = "remote"
	TierThreshold = "threshold"
	TierOpaque    = "opaque"

	// TierNone is recorded when the hologram type skips matting.
	TierNone = "none"
)

var (
	ErrNotConfigured = errors.New("matting service is not configured")
	ErrNoResult      = errors.New("matting service returned no result")
)

// Matter consumes a photo (PNG bytes) and returns the same photo with
// background pixels made fully transparent, again as PNG bytes with an
// alpha channel. Output dimensions always equal input dimensions.
type Matter interface {
	Matte(ctx context.Context, photoPNG []byte) ([]byte, error)
}

type Tier struct {
	Name   string
	Matter Matter
}

type Chain struct {
	logger *log.Logger
	tiers  []Tier
}

func NewChain(logger *log.Logger, tiers ...Tier) *Chain {
	return &Chain{logger: logger, tiers: tiers}
}

// DefaultChain: remote segmentation, then near-white color keying,
// then promotion to an opaque alpha channel ("as if matting did
// nothing").
func DefaultChain(logger *log.Logger, remote Matter) *Chain {
	tiers := make([]Tier, 0, 3)
	if remote != nil {
		tiers = append(tiers, Tier{Name: TierRemote, Matter: remote})
	}
	tiers = append(tiers,
		Tier{Name: TierThreshold, Matter: ThresholdMatter{}},
		Tier{Name: TierOpaque, Matter: OpaqueMatter{}},
	)
	return NewChain(logger, tiers...)
}

func (c *Chain) Matte(ctx context.Context, photoPNG []byte) ([]byte, string, error) {
	var lastErr error
	for _, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		out, err := tier.Matter.Matte(ctx, photoPNG)
		if err == nil {
			return out, tier.Name, nil
		}

		lastErr = err
		if c.logger != nil {
			c.logger.Printf("matte tier failed tier=%s err=%v", tier.Name, err)
		}
	}
	return nil, "", fmt.Errorf("all matte tiers failed: %w", lastErr)
}

// ThresholdMatter keys out near-white backgrounds: any pixel with all
// three channels above the threshold becomes fully transparent. Crude,
// but artifact photos are usually shot against a white sweep.
type ThresholdMatter struct {
	// Threshold defaults to 240 when zero.
	Threshold uint8
}

func (m ThresholdMatter) Matte(_ context.Context, photoPNG []byte) ([]byte, error) {
	threshold := m.Threshold
	if threshold == 0 {
		threshold = 240
	}

	photo, _, err := imagecodec.Decode(photoPNG)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	out := imaging.Clone(photo)
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] > threshold && out.Pix[i+1] > threshold && out.Pix[i+2] > threshold {
			out.Pix[i+3] = 0
		}
	}

	return imagecodec.EncodePNG(out)
}

// OpaqueMatter promotes the photo to a fully opaque alpha channel. It
// terminates the fallback chain and only fails on undecodable input.
type OpaqueMatter struct{}

func (OpaqueMatter) Matte(_ context.Context, photoPNG []byte) ([]byte, error) {
	photo, _, err := imagecodec.Decode(photoPNG)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	out := imaging.Clone(photo)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}

	return imagecodec.EncodePNG(out)
}
