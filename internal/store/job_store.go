package store

import (
	"context"

	"github.com/dunamismax/holoflow/internal/domain"
)

type JobStore interface {
	Create(ctx context.Context, job domain.RestorationJob) error
	Get(ctx context.Context, id string) (domain.RestorationJob, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.RestorationJob, error)
}

type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.UsageLog) error
}
