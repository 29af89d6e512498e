package server

import (
	"context"

	"github.com/onnwee/lpbot/lp"
)

// Pinger is the database check behind the probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db    Pinger
	watch lp.Watch
}

// NewHandlers creates a Handlers for the store and the watch set resolved at
// startup.
func NewHandlers(db Pinger, watch lp.Watch) *Handlers {
	return &Handlers{db: db, watch: watch}
}
