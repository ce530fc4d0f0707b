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
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/NissesSenap/azdo-scaffolder/pkg/actions"
)

const callbackTimeout = 30 * time.Second

// taskRunner executes the steps of a task one after another in a fresh
// workspace directory.
type taskRunner struct {
	// ctx is cancelled when the server shuts down.
	ctx           context.Context
	cancel        context.CancelFunc
	registry      *actions.Registry
	store         *taskStore
	hub           *EventHub
	callback      *callbackSender
	sem           *semaphore.Weighted
	workDir       string
	keepWorkspace bool
	clock         clock.PassiveClock
	log           logr.Logger
	wg            sync.WaitGroup
}

// start runs the task in the background.
func (r *taskRunner) start(taskID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(r.ctx, taskID)
	}()
}

// wait blocks until every started task has finished.
func (r *taskRunner) wait() {
	r.wg.Wait()
}

// stop cancels running tasks and waits for them to record their result.
func (r *taskRunner) stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *taskRunner) run(ctx context.Context, taskID string) {
	log := r.log.WithValues("taskID", taskID)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.finish(taskID, nil, fmt.Errorf("waiting for a free slot: %w", err))
		return
	}
	defer r.sem.Release(1)

	workspace, err := os.MkdirTemp(r.workDir, taskID+"-")
	if err != nil {
		r.finish(taskID, nil, fmt.Errorf("creating workspace: %w", err))
		return
	}
	if !r.keepWorkspace {
		defer func() {
			if err := os.RemoveAll(workspace); err != nil {
				log.Error(err, "failed to remove workspace", "workspace", workspace)
			}
		}()
	}

	var (
		params      map[string]any
		steps       []StepRequest
		outTemplate map[string]any
		callbackURL string
	)
	r.store.update(taskID, func(t *task) {
		t.phase = PhaseProcessing
		params = t.parameters
		outTemplate = t.outputTemplate
		callbackURL = t.callbackURL
		for _, st := range t.steps {
			steps = append(steps, st.StepRequest)
		}
	})
	tasksRunning.Inc()
	defer tasksRunning.Dec()

	log.Info("task started", "steps", len(steps), "workspace", workspace)
	r.notify(ctx, log, callbackURL, CallbackPayload{
		TaskID:  taskID,
		Event:   EventStarted,
		Message: "task started",
	})

	stepOutputs := map[string]any{}
	data := map[string]any{
		"parameters": params,
		"steps":      stepOutputs,
	}

	for i, step := range steps {
		out, err := r.runStep(ctx, taskID, i, step, workspace, data)
		if err != nil {
			r.finish(taskID, nil, fmt.Errorf("step %q failed: %w", step.ID, err))
			return
		}
		stepOutputs[step.ID] = map[string]any{"output": out}
	}

	output, err := renderMap(outTemplate, data)
	if err != nil {
		r.finish(taskID, nil, fmt.Errorf("rendering task output: %w", err))
		return
	}
	r.finish(taskID, output, nil)
}

func (r *taskRunner) runStep(ctx context.Context, taskID string, idx int, step StepRequest, workspace string, data map[string]any) (map[string]any, error) {
	now := r.clock.Now()
	r.store.update(taskID, func(t *task) {
		t.steps[idx].phase = PhaseProcessing
		t.steps[idx].startedAt = &now
	})
	r.hub.Publish(taskID, TaskEvent{
		Type:    EventTypeStepStarted,
		StepID:  step.ID,
		Message: fmt.Sprintf("Beginning step %s", stepName(step)),
	})

	stepLog := newStepLogger(r.log.WithValues("taskID", taskID, "stepID", step.ID), r.hub, taskID, step.ID)

	input, err := renderMap(step.Input, data)
	var out map[string]any
	if err != nil {
		err = fmt.Errorf("rendering input: %w", err)
	} else {
		out, err = r.registry.Execute(ctx, step.Action, input, workspace, stepLog)
	}

	done := r.clock.Now()
	if err != nil {
		r.log.Error(err, "step failed", "taskID", taskID, "stepID", step.ID)
		r.store.update(taskID, func(t *task) {
			t.steps[idx].phase = PhaseFailed
			t.steps[idx].err = err.Error()
			t.steps[idx].output = out
			t.steps[idx].completedAt = &done
		})
		r.hub.Publish(taskID, TaskEvent{
			Type:    EventTypeStepFailed,
			StepID:  step.ID,
			Level:   "error",
			Message: err.Error(),
		})
		return nil, err
	}

	r.store.update(taskID, func(t *task) {
		t.steps[idx].phase = PhaseCompleted
		t.steps[idx].output = out
		t.steps[idx].completedAt = &done
	})
	r.hub.Publish(taskID, TaskEvent{
		Type:    EventTypeStepCompleted,
		StepID:  step.ID,
		Message: fmt.Sprintf("Finished step %s", stepName(step)),
	})
	return out, nil
}

// finish records the terminal state, closes the event stream and sends the
// completion callback.
func (r *taskRunner) finish(taskID string, output map[string]any, taskErr error) {
	phase := PhaseCompleted
	msg := "task completed"
	if taskErr != nil {
		phase = PhaseFailed
		msg = taskErr.Error()
	}

	now := r.clock.Now()
	var callbackURL string
	r.store.update(taskID, func(t *task) {
		t.phase = phase
		t.output = output
		if taskErr != nil {
			t.err = taskErr.Error()
			for _, st := range t.steps {
				if st.phase == PhasePending {
					st.phase = PhaseSkipped
				}
			}
		}
		t.completedAt = &now
		callbackURL = t.callbackURL
	})
	r.hub.Complete(taskID)
	tasksFinished.WithLabelValues(phase).Inc()

	log := r.log.WithValues("taskID", taskID)
	if taskErr != nil {
		log.Error(taskErr, "task failed")
	} else {
		log.Info("task completed")
	}

	event := EventCompleted
	if taskErr != nil {
		event = EventFailed
	}
	// The run context may already be cancelled on shutdown; the callback still goes out.
	r.notify(context.Background(), log, callbackURL, CallbackPayload{
		TaskID:  taskID,
		Event:   event,
		Message: msg,
		Output:  output,
	})
}

func (r *taskRunner) notify(ctx context.Context, log logr.Logger, url string, payload CallbackPayload) {
	if url == "" || r.callback == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()
	if err := r.callback.send(ctx, url, payload); err != nil {
		log.Error(err, "failed to send callback", "event", payload.Event)
		callbacksFailed.Inc()
	}
}

func stepName(s StepRequest) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
