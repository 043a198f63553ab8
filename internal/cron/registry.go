package cron

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs inside the recon worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule binds a job to its cadence.
type Schedule struct {
	Job   Job
	Every time.Duration
}

// Registry tracks scheduled jobs.
type Registry struct {
	entries []Schedule
}

// NewRegistry builds a registry preloaded with the provided schedules.
func NewRegistry(entries ...Schedule) *Registry {
	registry := &Registry{}
	for _, entry := range entries {
		registry.Add(entry)
	}
	return registry
}

// Add registers a schedule. Entries without a job or a positive cadence
// are ignored.
func (r *Registry) Add(entry Schedule) {
	if entry.Job == nil || entry.Every <= 0 {
		return
	}
	r.entries = append(r.entries, entry)
}

// Schedules returns the registered entries in registration order.
func (r *Registry) Schedules() []Schedule {
	entries := make([]Schedule, len(r.entries))
	copy(entries, r.entries)
	return entries
}
