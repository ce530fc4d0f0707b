// Package scaffolder composes the process: it builds the action registry
// from configuration and runs the long-lived modules.
package scaffolder

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/NissesSenap/azdo-scaffolder/pkg/api"
)

// Module represents a runnable component
type Module interface {
	Name() string
	Run(ctx context.Context) error
}

// Scaffolder orchestrates all modules
type Scaffolder struct {
	log     logr.Logger
	modules []Module
}

// New creates a Scaffolder running the given modules.
func New(log logr.Logger, modules ...Module) (*Scaffolder, error) {
	if len(modules) == 0 {
		return nil, errors.New("no modules configured")
	}
	seen := map[string]bool{}
	for _, m := range modules {
		if seen[m.Name()] {
			return nil, fmt.Errorf("module %q configured twice", m.Name())
		}
		seen[m.Name()] = true
	}
	return &Scaffolder{log: log, modules: modules}, nil
}

// Run starts all modules and blocks until ctx is cancelled or one of them
// fails, in which case the others are stopped.
func (s *Scaffolder) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, m := range s.modules {
		g.Go(func() error {
			log := s.log.WithValues("module", m.Name())
			log.Info("starting module")
			if err := m.Run(ctx); err != nil {
				return fmt.Errorf("module %s: %w", m.Name(), err)
			}
			log.Info("module stopped")
			return nil
		})
	}

	return g.Wait()
}

type apiModule struct {
	srv *api.Server
}

// APIModule runs the task API server.
func APIModule(srv *api.Server) Module {
	return apiModule{srv: srv}
}

func (apiModule) Name() string { return "api" }

func (m apiModule) Run(ctx context.Context) error {
	return m.srv.Run(ctx)
}
