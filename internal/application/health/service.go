package health

import (
	"context"
	"time"

	"aliada/ms_informes_qbo/internal/core/credential"
	corehealth "aliada/ms_informes_qbo/internal/core/health"
)

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Service exposes health-check use cases to adapters.
type Service struct {
	meta      Metadata
	store     credential.Store
	startedAt time.Time
}

func NewService(meta Metadata, store credential.Store) *Service {
	return &Service{
		meta:      meta,
		store:     store,
		startedAt: time.Now().UTC(),
	}
}

// Status returns the current availability snapshot, including whether a
// QuickBooks company is connected.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	quickbooks := "connected"
	if s.store == nil {
		quickbooks = "unknown"
	} else if _, err := s.store.Load(ctx); err != nil {
		quickbooks = "disconnected"
	}

	uptime := time.Since(s.startedAt)
	return corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		Status:      "UP",
		QuickBooks:  quickbooks,
		StartedAt:   s.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}
}
