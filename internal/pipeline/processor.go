// Package pipeline runs one restoration end to end: fetch the photo
// and its authored mask, repair the flagged region, optionally matte
// out the background, composite the hologram and publish it to the
// shared display slot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dunamismax/holoflow/internal/domain"
	"github.com/dunamismax/holoflow/internal/hologram"
	"github.com/dunamismax/holoflow/internal/imagecodec"
	"github.com/dunamismax/holoflow/internal/inpaint"
	"github.com/dunamismax/holoflow/internal/mask"
	"github.com/dunamismax/holoflow/internal/matte"
	"github.com/dunamismax/holoflow/internal/slot"
)

const (
	StageRepair    = "repair"
	StageMatte     = "matte"
	StageComposite = "composite"

	// TierSkipped marks a stage the job's parameters ruled out, e.g.
	// repair without any flagged pixels.
	TierSkipped = "skipped"
	// TierFallbackCanvas marks a composite that degraded to the solid
	// black canvas because the processed photo was undecodable.
	TierFallbackCanvas = "fallback_canvas"
	// TierComposite marks the normal compositing path.
	TierComposite = "composited"
)

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

type Request struct {
	JobID          string
	UserID         string
	SourceType     string
	HologramType   string
	PhotoObjectKey string
	MaskObjectKey  string
}

type StageOutcome struct {
	Stage string
	Tier  string
	Bytes int
}

type Result struct {
	SourceBytes int
	Frame       slot.Frame
	Stages      []StageOutcome
}

// RepairTier / MatteTier pull the tier names back out of a result for
// accounting; empty when the stage did not run.
func (r Result) RepairTier() string { return r.tier(StageRepair) }
func (r Result) MatteTier() string  { return r.tier(StageMatte) }

func (r Result) tier(stage string) string {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Tier
		}
	}
	return ""
}

// Fetcher resolves the job's photo and mask bytes. FetchMask reports
// ok=false when the job simply has no authored mask.
type Fetcher interface {
	FetchPhoto(ctx context.Context, req Request) ([]byte, error)
	FetchMask(ctx context.Context, req Request) ([]byte, bool, error)
}

type repairChain interface {
	Repair(ctx context.Context, photoPNG, maskPNG []byte) ([]byte, string, error)
}

type matteChain interface {
	Matte(ctx context.Context, photoPNG []byte) ([]byte, string, error)
}

type Processor struct {
	logger       *log.Logger
	fetcher      Fetcher
	repairer     repairChain
	matter       matteChain
	publisher    slot.Slot
	featherSigma float64
}

func NewProcessor(logger *log.Logger, fetcher Fetcher, repairer repairChain, matter matteChain, publisher slot.Slot) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if repairer == nil {
		repairer = inpaint.DefaultChain(logger, nil)
	}
	if matter == nil {
		matter = matte.DefaultChain(logger, nil)
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}

	return &Processor{
		logger:       logger,
		fetcher:      fetcher,
		repairer:     repairer,
		matter:       matter,
		publisher:    publisher,
		featherSigma: mask.DefaultFeatherSigma,
	}, nil
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}

	raw, err := p.fetcher.FetchPhoto(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	current, err := imagecodec.Normalize(raw)
	if err != nil {
		return Result{}, fmt.Errorf("normalize source image: %w", err)
	}

	result := Result{SourceBytes: len(raw)}

	current, outcome, err := p.repairStage(ctx, req, current)
	if err != nil {
		return Result{}, fmt.Errorf("repair stage: %w", err)
	}
	result.Stages = append(result.Stages, outcome)

	preserveTransparency := domain.RemoveBackground(req.HologramType)
	current, outcome, err = p.matteStage(ctx, current, preserveTransparency)
	if err != nil {
		return Result{}, fmt.Errorf("matte stage: %w", err)
	}
	result.Stages = append(result.Stages, outcome)

	framePNG, outcome, err := p.compositeStage(current, preserveTransparency)
	if err != nil {
		return Result{}, fmt.Errorf("composite stage: %w", err)
	}
	result.Stages = append(result.Stages, outcome)

	frame, err := p.publisher.Put(ctx, framePNG)
	if err != nil {
		return Result{}, fmt.Errorf("publish stage: %w", err)
	}
	result.Frame = frame

	return result, nil
}

func (p *Processor) repairStage(ctx context.Context, req Request, photoPNG []byte) ([]byte, StageOutcome, error) {
	skipped := StageOutcome{Stage: StageRepair, Tier: TierSkipped, Bytes: len(photoPNG)}

	authoredBytes, ok, err := p.fetcher.FetchMask(ctx, req)
	if err != nil {
		return nil, StageOutcome{}, fmt.Errorf("fetch mask: %w", err)
	}
	if !ok {
		return photoPNG, skipped, nil
	}

	photo, _, err := imagecodec.Decode(photoPNG)
	if err != nil {
		return nil, StageOutcome{}, fmt.Errorf("decode photo: %w", err)
	}
	authored, _, err := imagecodec.Decode(authoredBytes)
	if err != nil {
		return nil, StageOutcome{}, fmt.Errorf("decode mask: %w", err)
	}

	normalized, err := mask.Normalize(authored, photo.Bounds())
	if err != nil {
		return nil, StageOutcome{}, fmt.Errorf("normalize mask: %w", err)
	}
	if mask.Empty(normalized) {
		return photoPNG, skipped, nil
	}

	maskPNG, err := imagecodec.EncodePNG(mask.Feather(normalized, p.featherSigma))
	if err != nil {
		return nil, StageOutcome{}, fmt.Errorf("encode mask: %w", err)
	}

	repaired, tier, err := p.repairer.Repair(ctx, photoPNG, maskPNG)
	if err != nil {
		return nil, StageOutcome{}, err
	}

	return repaired, StageOutcome{Stage: StageRepair, Tier: tier, Bytes: len(repaired)}, nil
}

func (p *Processor) matteStage(ctx context.Context, photoPNG []byte, wanted bool) ([]byte, StageOutcome, error) {
	if !wanted {
		return photoPNG, StageOutcome{Stage: StageMatte, Tier: matte.TierNone, Bytes: len(photoPNG)}, nil
	}

	matted, tier, err := p.matter.Matte(ctx, photoPNG)
	if err != nil {
		return nil, StageOutcome{}, err
	}

	return matted, StageOutcome{Stage: StageMatte, Tier: tier, Bytes: len(matted)}, nil
}

// compositeStage never fails on bad pixels: an undecodable photo
// degrades to the compositor's black fallback canvas, matching the
// rule that nothing past this point may take the session down.
func (p *Processor) compositeStage(photoPNG []byte, preserveTransparency bool) ([]byte, StageOutcome, error) {
	tier := TierComposite

	img, _, err := imagecodec.Decode(photoPNG)
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("composite input undecodable, using fallback canvas err=%v", err)
		}
		img = nil
		tier = TierFallbackCanvas
	}

	composite := hologram.Compose(img, preserveTransparency)

	framePNG, err := imagecodec.EncodePNG(composite)
	if err != nil {
		return nil, StageOutcome{}, fmt.Errorf("encode composite: %w", err)
	}

	return framePNG, StageOutcome{Stage: StageComposite, Tier: tier, Bytes: len(framePNG)}, nil
}
