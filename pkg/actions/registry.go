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

package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

// Registry holds the actions available to a process.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]*Action
	clock   clock.PassiveClock
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]*Action),
		clock:   clock.RealClock{},
	}
}

// Register adds an action. IDs must be unique.
func (r *Registry) Register(a *Action) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("action must have an ID")
	}
	if a.Handler == nil {
		return fmt.Errorf("action %s has no handler", a.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[a.ID]; ok {
		return fmt.Errorf("action %s is already registered", a.ID)
	}
	r.actions[a.ID] = a
	return nil
}

// Get looks up an action by ID.
func (r *Registry) Get(id string) (*Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a, ok
}

// List returns all actions sorted by ID.
func (r *Registry) List() []*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Action, 0, len(r.actions))
	for _, a := range r.actions {
		list = append(list, a)
	}
	slices.SortFunc(list, func(a, b *Action) int { return strings.Compare(a.ID, b.ID) })
	return list
}

// Execute runs the action with the given input. Defaults from the input
// schema are applied before validation. Unknown actions and schema
// violations are reported as InputError.
func (r *Registry) Execute(ctx context.Context, id string, input map[string]any, workspace string, logger logr.Logger) (map[string]any, error) {
	a, ok := r.Get(id)
	if !ok {
		actionRuns.WithLabelValues("unknown", resultInvalid).Inc()
		return nil, inputErrorf("unknown action %q", id)
	}

	start := r.clock.Now()
	outputs, err := r.execute(ctx, a, input, workspace, logger.WithValues("action", id))
	actionDuration.WithLabelValues(id).Observe(r.clock.Since(start).Seconds())

	switch {
	case err == nil:
		actionRuns.WithLabelValues(id, resultSucceeded).Inc()
	case IsInputError(err):
		actionRuns.WithLabelValues(id, resultInvalid).Inc()
	default:
		actionRuns.WithLabelValues(id, resultFailed).Inc()
	}
	return outputs, err
}

func (r *Registry) execute(ctx context.Context, a *Action, input map[string]any, workspace string, logger logr.Logger) (map[string]any, error) {
	normalized, err := normalizeInput(input)
	if err != nil {
		return nil, inputErrorf("input is not valid JSON: %w", err)
	}
	if a.Input != nil {
		applyDefaults(a.Input, normalized)
		if err := a.Input.VisitJSON(normalized, openapi3.MultiErrors()); err != nil {
			return nil, inputErrorf("invalid input for %s: %w", a.ID, err)
		}
	}

	actx := &Context{
		Input:     normalized,
		Workspace: workspace,
		Logger:    logger,
	}
	if err := a.Handler(ctx, actx); err != nil {
		return actx.Outputs(), err
	}
	return actx.Outputs(), nil
}

// normalizeInput converts input to the shapes encoding/json produces, which
// is what schema validation expects.
func normalizeInput(input map[string]any) (map[string]any, error) {
	if input == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func applyDefaults(schema *openapi3.Schema, input map[string]any) {
	for name, ref := range schema.Properties {
		if ref == nil || ref.Value == nil || ref.Value.Default == nil {
			continue
		}
		if _, ok := input[name]; !ok {
			input[name] = ref.Value.Default
		}
	}
}
