package domain

import "time"

type UsageLog struct {
	UserID          string
	JobID           string
	PixelsProcessed int64
	RepairTier      string
	MatteTier       string
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
