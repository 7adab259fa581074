package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"

	// HologramTypeArtifact runs background matting and pastes faces
	// through their alpha channel. HologramTypePainting keeps the
	// background and pastes faces opaque.
	HologramTypeArtifact = "artifact"
	HologramTypePainting = "painting"
)

type CreateRestorationRequest struct {
	SourceType     string `json:"source_type"`
	HologramType   string `json:"hologram_type"`
	UserID         string `json:"user_id,omitempty"`
	WebhookURL     string `json:"webhook_url,omitempty"`
	PhotoObjectKey string `json:"photo_object_key,omitempty"`
	MaskObjectKey  string `json:"mask_object_key,omitempty"`
}

type RestorationJob struct {
	ID             string
	UserID         string
	Status         string
	SourceType     string
	HologramType   string
	WebhookURL     string
	PhotoObjectKey string
	MaskObjectKey  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r CreateRestorationRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.PhotoObjectKey) == "" {
		return errors.New("photo_object_key is required for source_type=local_file")
	}

	hologramType := strings.ToLower(strings.TrimSpace(r.HologramType))
	if hologramType == "" {
		return errors.New("hologram_type is required")
	}
	if hologramType != HologramTypeArtifact && hologramType != HologramTypePainting {
		return fmt.Errorf("unsupported hologram_type: %s", r.HologramType)
	}

	return nil
}

// RemoveBackground reports whether the hologram type calls for the
// background-matting stage before compositing.
func RemoveBackground(hologramType string) bool {
	return strings.EqualFold(strings.TrimSpace(hologramType), HologramTypeArtifact)
}
