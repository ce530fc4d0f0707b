/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/NissesSenap/azdo-scaffolder/pkg/actions"
)

const (
	defaultMaxConcurrentTasks = 4
	defaultTaskRetention      = time.Hour
	defaultCreateRateLimit    = 60
	pruneInterval             = time.Minute
	shutdownTimeout           = 10 * time.Second
)

// Options configures the API server.
type Options struct {
	ListenAddr     string
	CallbackSecret string
	// WorkDir is the parent of the per-task workspaces. Empty means os.TempDir.
	WorkDir            string
	KeepWorkspaces     bool
	MaxConcurrentTasks int
	// TaskRetention is how long finished tasks stay queryable.
	TaskRetention time.Duration
	// CreateRateLimit is the number of task creations allowed per client IP and minute.
	CreateRateLimit int
	// AllowPrivateCallbacks permits callback URLs that point at localhost.
	AllowPrivateCallbacks bool
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentTasks <= 0 {
		o.MaxConcurrentTasks = defaultMaxConcurrentTasks
	}
	if o.TaskRetention <= 0 {
		o.TaskRetention = defaultTaskRetention
	}
	if o.CreateRateLimit <= 0 {
		o.CreateRateLimit = defaultCreateRateLimit
	}
	if o.WorkDir == "" {
		o.WorkDir = os.TempDir()
	}
	return o
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithClock sets the clock used for timestamps and task pruning.
func WithClock(c clock.Clock) ServerOption {
	return func(s *Server) {
		s.clock = c
	}
}

// Server runs scaffolder tasks submitted over HTTP.
type Server struct {
	opts     Options
	log      logr.Logger
	clock    clock.Clock
	store    *taskStore
	hub      *EventHub
	runner   *taskRunner
	handler  *taskHandler
	router   http.Handler
	shutdown atomic.Bool
}

// NewServer wires the task API around an action registry.
func NewServer(opts Options, registry *actions.Registry, log logr.Logger, serverOpts ...ServerOption) *Server {
	opts = opts.withDefaults()
	s := &Server{
		opts:  opts,
		log:   log.WithName("api"),
		clock: clock.RealClock{},
		store: newTaskStore(),
	}
	for _, o := range serverOpts {
		o(s)
	}

	s.hub = NewEventHub()
	s.hub.clock = s.clock

	ctx, cancel := context.WithCancel(context.Background())
	s.runner = &taskRunner{
		ctx:           ctx,
		cancel:        cancel,
		registry:      registry,
		store:         s.store,
		hub:           s.hub,
		callback:      newCallbackSender(opts.CallbackSecret),
		sem:           semaphore.NewWeighted(int64(opts.MaxConcurrentTasks)),
		workDir:       opts.WorkDir,
		keepWorkspace: opts.KeepWorkspaces,
		clock:         s.clock,
		log:           s.log.WithName("runner"),
	}
	s.handler = &taskHandler{
		store:                 s.store,
		runner:                s.runner,
		registry:              registry,
		hub:                   s.hub,
		clock:                 s.clock,
		allowPrivateCallbacks: opts.AllowPrivateCallbacks,
		log:                   s.log,
	}
	s.router = s.routes()
	return s
}

// contentTypeMiddleware validates Content-Type header on mutating requests.
func contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":"Content-Type must be application/json"}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.shutdown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("shutting down"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(contentTypeMiddleware)
		r.Get("/actions", s.handler.listActions)
		r.With(httprate.LimitByIP(s.opts.CreateRateLimit, time.Minute)).Post("/tasks", s.handler.createTask)
		r.Get("/tasks", s.handler.listTasks)
		r.Get("/tasks/{taskID}", s.handler.getTask)
		r.Get("/tasks/{taskID}/events", s.handler.streamEvents)
	})
	return r
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// prune drops finished tasks older than the retention period together with
// their event streams.
func (s *Server) prune() {
	cutoff := s.clock.Now().Add(-s.opts.TaskRetention)
	for _, id := range s.store.prune(cutoff) {
		s.hub.Cleanup(id)
		s.log.V(1).Info("pruned task", "taskID", id)
	}
}

func (s *Server) pruneLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(pruneInterval):
			s.prune()
		}
	}
}

// Run serves the API until ctx is cancelled, then drains HTTP connections and
// cancels running tasks.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go s.pruneLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting API server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down API server")
		s.shutdown.Store(true)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)
		s.runner.stop()
		return err
	case err := <-errCh:
		s.runner.stop()
		return fmt.Errorf("server error: %w", err)
	}
}
