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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/rand"
	"k8s.io/utils/clock"

	"github.com/NissesSenap/azdo-scaffolder/pkg/actions"
)

const maxRequestBodySize = 10 << 20 // 10 MiB

// Step IDs become template keys, so keep them to a safe character set.
var stepIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Well-known metadata IPs and localhost.
var blockedCallbackHosts = map[string]bool{
	"169.254.169.254": true,
	"localhost":       true,
	"127.0.0.1":       true,
	"::1":             true,
	"0.0.0.0":         true,
}

// taskHandler holds dependencies for task endpoints.
type taskHandler struct {
	store                 *taskStore
	runner                *taskRunner
	registry              *actions.Registry
	hub                   *EventHub
	clock                 clock.PassiveClock
	allowPrivateCallbacks bool
	log                   logr.Logger
}

// createTask handles POST /api/v1/tasks.
func (h *taskHandler) createTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if msg, details := h.validate(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg, details)
		return
	}

	t := &task{
		id:             fmt.Sprintf("task-%s", rand.String(8)),
		phase:          PhasePending,
		parameters:     req.Parameters,
		outputTemplate: req.Output,
		callbackURL:    req.CallbackURL,
		createdAt:      h.clock.Now(),
	}
	if t.parameters == nil {
		t.parameters = map[string]any{}
	}
	for _, s := range req.Steps {
		t.steps = append(t.steps, &stepState{StepRequest: s, phase: PhasePending})
	}

	if !h.store.add(t) {
		writeError(w, http.StatusConflict, "task already exists", t.id)
		return
	}
	tasksCreated.Inc()
	h.log.Info("task created", "taskID", t.id, "steps", len(t.steps))

	// Snapshot before starting so the response shows the accepted state.
	resp, _ := h.store.get(t.id)
	h.runner.start(t.id)

	writeJSON(w, http.StatusCreated, resp)
}

// validate returns an error message and details for an invalid request.
func (h *taskHandler) validate(req *CreateTaskRequest) (string, string) {
	if len(req.Steps) == 0 {
		return "steps is required", "a task needs at least one step"
	}

	seen := make(map[string]bool, len(req.Steps))
	for i, s := range req.Steps {
		if s.ID == "" {
			return "step id is required", fmt.Sprintf("steps[%d]", i)
		}
		if !stepIDPattern.MatchString(s.ID) {
			return "invalid step id", fmt.Sprintf("steps[%d]: %q must match %s", i, s.ID, stepIDPattern)
		}
		if seen[s.ID] {
			return "duplicate step id", s.ID
		}
		seen[s.ID] = true
		if s.Action == "" {
			return "step action is required", s.ID
		}
		if _, ok := h.registry.Get(s.Action); !ok {
			return "unknown action", fmt.Sprintf("step %s: %s", s.ID, s.Action)
		}
	}

	if req.CallbackURL == "" {
		return "", ""
	}
	parsedURL, err := url.Parse(req.CallbackURL)
	if err != nil {
		return "invalid callbackUrl", err.Error()
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "invalid callbackUrl scheme", "must be http or https"
	}
	hostname := parsedURL.Hostname()
	if hostname == "" {
		return "invalid callbackUrl host", "hostname is empty"
	}
	if !h.allowPrivateCallbacks && blockedCallbackHosts[hostname] {
		return "invalid callbackUrl host", "blocked host"
	}
	return "", ""
}

// listTasks handles GET /api/v1/tasks.
// Query parameters:
//   - phase: only return tasks in this phase
func (h *taskHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	phase := r.URL.Query().Get("phase")
	switch phase {
	case "", PhasePending, PhaseProcessing, PhaseCompleted, PhaseFailed:
	default:
		writeError(w, http.StatusBadRequest, "invalid phase", phase)
		return
	}
	writeJSON(w, http.StatusOK, h.store.list(phase))
}

// getTask handles GET /api/v1/tasks/{taskID}.
func (h *taskHandler) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	resp, ok := h.store.get(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found", "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// listActions handles GET /api/v1/actions.
func (h *taskHandler) listActions(w http.ResponseWriter, _ *http.Request) {
	list := h.registry.List()
	out := make([]ActionResponse, 0, len(list))
	for _, a := range list {
		out = append(out, ActionResponse{
			ID:          a.ID,
			Description: a.Description,
			Schema: ActionSchema{
				Input:  a.Input,
				Output: a.Output,
			},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal encoding error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
