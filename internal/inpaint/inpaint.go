// Package inpaint reconstructs the flagged region of an artifact
// photo. The real work happens in a remote service; every local
// implementation here exists so the pipeline can degrade visibly
// instead of failing when that service is missing or down.
package inpaint

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Tier names recorded in job results so operators can see which
// repair path actually ran.
const (
	TierRemote     = "remote"
	TierMaskedBlur = "masked_blur"
	TierBlur       = "blur"
	TierOriginal   = "original"
)

var (
	// ErrNotConfigured marks a repairer that has no endpoint to call.
	ErrNotConfigured = errors.New("inpainting service is not configured")
	// ErrNoResult marks a service reply that carried no image.
	ErrNoResult = errors.New("inpainting service returned no result")
)

// Repairer consumes a photo and an aligned mask (both PNG bytes) and
// returns the repaired photo as PNG bytes.
type Repairer interface {
	Repair(ctx context.Context, photoPNG, maskPNG []byte) ([]byte, error)
}

type Tier struct {
	Name     string
	Repairer Repairer
}

// Chain tries each tier in order and returns the first success along
// with the tier's name. Tiers are expected to be ordered from most to
// least desirable, ending in one that cannot fail.
type Chain struct {
	logger *log.Logger
	tiers  []Tier
}

func NewChain(logger *log.Logger, tiers ...Tier) *Chain {
	return &Chain{logger: logger, tiers: tiers}
}

// DefaultChain is the standard fallback ladder: remote service, then a
// masked local blur standing in for real reconstruction, then a plain
// soft blur, then the untouched original.
func DefaultChain(logger *log.Logger, remote Repairer) *Chain {
	tiers := make([]Tier, 0, 4)
	if remote != nil {
		tiers = append(tiers, Tier{Name: TierRemote, Repairer: remote})
	}
	tiers = append(tiers,
		Tier{Name: TierMaskedBlur, Repairer: MaskedBlurRepairer{}},
		Tier{Name: TierBlur, Repairer: SoftenRepairer{}},
		Tier{Name: TierOriginal, Repairer: IdentityRepairer{}},
	)
	return NewChain(logger, tiers...)
}

func (c *Chain) Repair(ctx context.Context, photoPNG, maskPNG []byte) ([]byte, string, error) {
	var lastErr error
	for _, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		out, err := tier.Repairer.Repair(ctx, photoPNG, maskPNG)
		if err == nil {
			return out, tier.Name, nil
		}

		lastErr = err
		if c.logger != nil {
			c.logger.Printf("repair tier failed tier=%s err=%v", tier.Name, err)
		}
	}
	return nil, "", fmt.Errorf("all repair tiers failed: %w", lastErr)
}

// IdentityRepairer returns the photo untouched. It terminates the
// fallback chain and never fails on non-empty input.
type IdentityRepairer struct{}

func (IdentityRepairer) Repair(_ context.Context, photoPNG, _ []byte) ([]byte, error) {
	if len(photoPNG) == 0 {
		return nil, errors.New("photo is required")
	}
	return photoPNG, nil
}
