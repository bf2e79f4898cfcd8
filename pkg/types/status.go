package types

import "time"

// ProcessorStatus is the payload returned by the processor's /status endpoint.
type ProcessorStatus struct {
	ProcessorID   string    `json:"processor_id"`
	Started       time.Time `json:"started"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Processed     int64     `json:"processed"`
	LastCycle     time.Time `json:"last_cycle"`
}

// Health is the payload returned by the processor's /healthz endpoint.
type Health struct {
	Status string `json:"status"`
}
