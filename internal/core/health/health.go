// Package health defines the service availability snapshot.
package health

import "time"

// Status is the payload of the health endpoint.
type Status struct {
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	Status      string    `json:"status"`
	QuickBooks  string    `json:"quickbooks"`
	StartedAt   time.Time `json:"started_at"`
	Uptime      string    `json:"uptime"`
	UptimeSecs  int64     `json:"uptime_seconds"`
}
