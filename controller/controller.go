// Package controller holds the contracts shared by the farm subsystems.
package controller

import (
	"context"

	"github.com/gorilla/mux"

	"github.com/reef-pi/farmer/controller/storage"
	"github.com/reef-pi/farmer/pkg/log"
)

// Controller is what a subsystem gets from the daemon that owns it.
type Controller interface {
	Store() storage.Store
	LogError(id, msg string)
}

// Subsystem is one independently running part of the farm.
type Subsystem interface {
	Setup() error
	LoadAPI(r *mux.Router)
	// Start launches the subsystem's loops; they stop when ctx is done or
	// Stop is called.
	Start(ctx context.Context)
	Stop()
}

type base struct {
	store storage.Store
	log   log.Logger
}

// New returns a Controller backed by store that reports subsystem errors to
// the global logger.
func New(store storage.Store) Controller {
	return &base{store: store, log: log.WithName("controller")}
}

func (b *base) Store() storage.Store { return b.store }

func (b *base) LogError(id, msg string) {
	b.log.Error(nil, msg, "subsystem", id)
}
