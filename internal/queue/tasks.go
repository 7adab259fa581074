package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeRestoreArtifact = "artifact:restore"

type RestoreArtifactPayload struct {
	JobID          string    `json:"job_id"`
	UserID         string    `json:"user_id,omitempty"`
	SourceType     string    `json:"source_type"`
	HologramType   string    `json:"hologram_type"`
	WebhookURL     string    `json:"webhook_url,omitempty"`
	PhotoObjectKey string    `json:"photo_object_key"`
	MaskObjectKey  string    `json:"mask_object_key,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
}

func NewRestoreArtifactTask(payload RestoreArtifactPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal restore payload: %w", err)
	}
	return asynq.NewTask(TypeRestoreArtifact, body), nil
}

func ParseRestoreArtifactPayload(task *asynq.Task) (RestoreArtifactPayload, error) {
	var payload RestoreArtifactPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RestoreArtifactPayload{}, fmt.Errorf("unmarshal restore payload: %w", err)
	}
	return payload, nil
}
