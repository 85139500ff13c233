package app

import (
	"github.com/rs/zerolog"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/pipeline"
)

// Deps holds dependencies for the server application.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Journals is the persistent journal store backing the pipeline.
	Journals journal.Store

	// Engines are the media processors the job queues drive. Journals is
	// filled in by New, the rest is injected by the caller.
	Engines pipeline.Deps

	// Config manager for runtime configuration
	Config *config.Manager

	// Logger for structured logging (injected by caller)
	Logger zerolog.Logger
}
