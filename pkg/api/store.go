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
	"slices"
	"sync"
	"time"
)

type stepState struct {
	StepRequest
	phase       string
	output      map[string]any
	err         string
	startedAt   *time.Time
	completedAt *time.Time
}

type task struct {
	id             string
	phase          string
	parameters     map[string]any
	steps          []*stepState
	outputTemplate map[string]any
	output         map[string]any
	err            string
	callbackURL    string
	createdAt      time.Time
	completedAt    *time.Time
}

func (t *task) terminal() bool {
	return t.phase == PhaseCompleted || t.phase == PhaseFailed
}

// taskStore keeps tasks in memory. Tasks do not survive a restart.
type taskStore struct {
	mu    sync.RWMutex
	tasks map[string]*task
	order []string
}

func newTaskStore() *taskStore {
	return &taskStore{tasks: make(map[string]*task)}
}

func (s *taskStore) add(t *task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.id]; ok {
		return false
	}
	s.tasks[t.id] = t
	s.order = append(s.order, t.id)
	return true
}

// update runs fn with the task locked. Returns false for unknown tasks.
func (s *taskStore) update(id string, fn func(*task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

func (s *taskStore) get(id string) (TaskResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return TaskResponse{}, false
	}
	return taskToResponse(t), true
}

// list returns tasks in creation order, optionally filtered by phase.
func (s *taskStore) list(phase string) []TaskResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskResponse, 0, len(s.order))
	for _, id := range s.order {
		t := s.tasks[id]
		if phase != "" && t.phase != phase {
			continue
		}
		out = append(out, taskToResponse(t))
	}
	return out
}

// prune removes terminal tasks that completed before cutoff and returns their IDs.
func (s *taskStore) prune(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, t := range s.tasks {
		if t.terminal() && t.completedAt != nil && t.completedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		s.order = slices.DeleteFunc(s.order, func(id string) bool {
			_, ok := s.tasks[id]
			return !ok
		})
	}
	return removed
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func taskToResponse(t *task) TaskResponse {
	resp := TaskResponse{
		ID:             t.id,
		Phase:          t.phase,
		Parameters:     t.parameters,
		Steps:          make([]StepStatus, 0, len(t.steps)),
		Output:         t.output,
		Error:          t.err,
		CallbackURL:    t.callbackURL,
		CreatedAt:      t.createdAt.UTC().Format(time.RFC3339),
		CompletionTime: formatTime(t.completedAt),
	}
	for _, st := range t.steps {
		resp.Steps = append(resp.Steps, StepStatus{
			ID:          st.ID,
			Name:        st.Name,
			Action:      st.Action,
			Phase:       st.phase,
			Output:      st.output,
			Error:       st.err,
			StartedAt:   formatTime(st.startedAt),
			CompletedAt: formatTime(st.completedAt),
		})
	}
	return resp
}
