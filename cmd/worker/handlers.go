package main

import (
	"github.com/hibiken/asynq"

	registryJob "identity-registry/internal/domains/registry/job"
	"identity-registry/internal/shared"
	"identity-registry/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	// Event recording
	eventRecorder *registryJob.EventRecorderHandler

	// Maintenance
	sweepExpired *registryJob.SweepExpiredHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		eventRecorder: registryJob.NewEventRecorderHandler(c.RegistryRepo),
		sweepExpired:  registryJob.NewSweepExpiredHandler(c.RegistryRepo),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Domain events - all recorded into the event log
	mux.HandleFunc(shared.TypeIdentityMinted, h.eventRecorder.ProcessTask)
	mux.HandleFunc(shared.TypeIdentityBurned, h.eventRecorder.ProcessTask)
	mux.HandleFunc(shared.TypeIdentityRenewed, h.eventRecorder.ProcessTask)
	mux.HandleFunc(shared.TypeControllerSignerSet, h.eventRecorder.ProcessTask)
	mux.HandleFunc(shared.TypeControllerFeeSet, h.eventRecorder.ProcessTask)

	// Maintenance tasks
	mux.HandleFunc(shared.TypeSweepExpiredBindings, h.sweepExpired.ProcessTask)
}
