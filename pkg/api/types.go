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

import "github.com/getkin/kin-openapi/openapi3"

// Task and step phases.
const (
	PhasePending    = "pending"
	PhaseProcessing = "processing"
	PhaseCompleted  = "completed"
	PhaseFailed     = "failed"
	PhaseSkipped    = "skipped"
)

// Callback event types sent to callbackUrl.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// CreateTaskRequest is the JSON body for POST /api/v1/tasks.
type CreateTaskRequest struct {
	Parameters  map[string]any `json:"parameters,omitempty"`
	Steps       []StepRequest  `json:"steps"`
	// Output is rendered against the step outputs once every step succeeded.
	Output      map[string]any `json:"output,omitempty"`
	CallbackURL string         `json:"callbackUrl,omitempty"`
}

// StepRequest is one action invocation within a task.
type StepRequest struct {
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Action string         `json:"action"`
	Input  map[string]any `json:"input,omitempty"`
}

// TaskResponse is the JSON response for task endpoints.
type TaskResponse struct {
	ID             string         `json:"id"`
	Phase          string         `json:"phase"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Steps          []StepStatus   `json:"steps"`
	Output         map[string]any `json:"output,omitempty"`
	Error          string         `json:"error,omitempty"`
	CallbackURL    string         `json:"callbackUrl,omitempty"`
	CreatedAt      string         `json:"createdAt"`
	CompletionTime *string        `json:"completionTime,omitempty"`
}

// StepStatus is the state of one step.
type StepStatus struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Action      string         `json:"action"`
	Phase       string         `json:"phase"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *string        `json:"startedAt,omitempty"`
	CompletedAt *string        `json:"completedAt,omitempty"`
}

// TaskEventType classifies stream events.
type TaskEventType string

const (
	EventTypeStepStarted   TaskEventType = "step_started"
	EventTypeLog           TaskEventType = "log"
	EventTypeStepCompleted TaskEventType = "step_completed"
	EventTypeStepFailed    TaskEventType = "step_failed"
)

// TaskEvent is one entry of a task's event stream. Sequence is assigned by
// the EventHub and increases by one per task.
type TaskEvent struct {
	Sequence  int64             `json:"sequence"`
	Timestamp string            `json:"timestamp"`
	Type      TaskEventType     `json:"type"`
	StepID    string            `json:"stepId,omitempty"`
	Level     string            `json:"level,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// WSMessage is the envelope for websocket messages.
type WSMessage struct {
	Type string `json:"type"` // task_event or task_complete
	Data any    `json:"data"`
}

// TaskCompleteData is sent as the last websocket message of a stream.
type TaskCompleteData struct {
	TaskID string         `json:"taskId"`
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// CallbackPayload is the JSON body sent to callbackUrl.
type CallbackPayload struct {
	TaskID  string         `json:"taskId"`
	Event   string         `json:"event"` // started, completed, failed
	Message string         `json:"message"`
	Output  map[string]any `json:"output,omitempty"`
}

// ActionResponse describes one registered action.
type ActionResponse struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Schema      ActionSchema `json:"schema"`
}

// ActionSchema holds the JSON schemas of an action.
type ActionSchema struct {
	Input  *openapi3.Schema `json:"input,omitempty"`
	Output *openapi3.Schema `json:"output,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
