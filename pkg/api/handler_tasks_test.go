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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NissesSenap/azdo-scaffolder/pkg/actions"
	"github.com/NissesSenap/azdo-scaffolder/pkg/logging"
)

type testEnv struct {
	srv     *Server
	router  http.Handler
	release chan struct{}
}

func testRegistry(t *testing.T, release chan struct{}) *actions.Registry {
	t.Helper()
	reg := actions.NewRegistry()
	require.NoError(t, reg.Register(&actions.Action{
		ID:          "test:echo",
		Description: "Echoes its message",
		Input: openapi3.NewObjectSchema().
			WithProperty("message", openapi3.NewStringSchema().WithDefault("hi")),
		Output: openapi3.NewObjectSchema().
			WithProperty("message", openapi3.NewStringSchema()),
		Handler: func(_ context.Context, actx *actions.Context) error {
			actx.Output("message", actx.Input["message"])
			actx.Output("workspace", actx.Workspace)
			return nil
		},
	}))
	require.NoError(t, reg.Register(&actions.Action{
		ID: "test:fail",
		Handler: func(_ context.Context, actx *actions.Context) error {
			actx.Output("partial", true)
			return errors.New("boom")
		},
	}))
	require.NoError(t, reg.Register(&actions.Action{
		ID: "test:log",
		Handler: func(_ context.Context, actx *actions.Context) error {
			actx.Logger.Info("cloning repository", "branch", "main")
			logging.Warn(actx.Logger, "branch already exists")
			return nil
		},
	}))
	require.NoError(t, reg.Register(&actions.Action{
		ID: "test:block",
		Handler: func(ctx context.Context, _ *actions.Context) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}))
	return reg
}

func newTestEnv(t *testing.T, opts Options, serverOpts ...ServerOption) *testEnv {
	t.Helper()
	release := make(chan struct{})
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	srv := NewServer(opts, testRegistry(t, release), logr.Discard(), serverOpts...)
	t.Cleanup(srv.runner.stop)
	return &testEnv{srv: srv, router: srv.Handler(), release: release}
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doGet(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createTask(t *testing.T, req CreateTaskRequest) TaskResponse {
	t.Helper()
	w := postJSON(t, e.router, "/api/v1/tasks", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) waitForPhase(t *testing.T, taskID, phase string) TaskResponse {
	t.Helper()
	var resp TaskResponse
	require.Eventually(t, func() bool {
		resp, _ = e.srv.store.get(taskID)
		return resp.Phase == phase
	}, 5*time.Second, 10*time.Millisecond, "task %s never reached %s", taskID, phase)
	return resp
}

func TestCreateTask_RunsStepsInOrder(t *testing.T) {
	env := newTestEnv(t, Options{})

	created := env.createTask(t, CreateTaskRequest{
		Parameters: map[string]any{"name": "payments"},
		Steps: []StepRequest{
			{ID: "first", Name: "Say hello", Action: "test:echo", Input: map[string]any{
				"message": "hello ${{ .parameters.name }}",
			}},
			{ID: "second", Action: "test:echo", Input: map[string]any{
				"message": "${{ .steps.first.output.message | upper }}",
			}},
			{ID: "defaults", Action: "test:echo"},
		},
		Output: map[string]any{
			"result": "${{ .steps.second.output.message }}",
			"static": "value",
		},
	})

	assert.True(t, strings.HasPrefix(created.ID, "task-"), "task ID should start with 'task-'")
	assert.Equal(t, PhasePending, created.Phase)
	require.Len(t, created.Steps, 3)
	for _, s := range created.Steps {
		assert.Equal(t, PhasePending, s.Phase)
	}
	assert.NotEmpty(t, created.CreatedAt)

	done := env.waitForPhase(t, created.ID, PhaseCompleted)
	assert.Empty(t, done.Error)
	require.NotNil(t, done.CompletionTime)
	assert.Equal(t, "hello payments", done.Steps[0].Output["message"])
	assert.Equal(t, "HELLO PAYMENTS", done.Steps[1].Output["message"])
	assert.Equal(t, "hi", done.Steps[2].Output["message"])
	assert.Equal(t, map[string]any{"result": "HELLO PAYMENTS", "static": "value"}, done.Output)
	for _, s := range done.Steps {
		assert.Equal(t, PhaseCompleted, s.Phase)
		assert.NotNil(t, s.StartedAt)
		assert.NotNil(t, s.CompletedAt)
	}

	ws, ok := done.Steps[0].Output["workspace"].(string)
	require.True(t, ok)
	assert.Equal(t, ws, done.Steps[1].Output["workspace"], "steps share one workspace")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(ws)
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond, "workspace is removed after the task")
}

func TestCreateTask_FailedStepSkipsRest(t *testing.T) {
	env := newTestEnv(t, Options{})

	created := env.createTask(t, CreateTaskRequest{
		Steps: []StepRequest{
			{ID: "ok", Action: "test:echo"},
			{ID: "broken", Action: "test:fail"},
			{ID: "never", Action: "test:echo"},
		},
		Output: map[string]any{"x": "y"},
	})

	done := env.waitForPhase(t, created.ID, PhaseFailed)
	assert.Contains(t, done.Error, `step "broken" failed`)
	assert.Contains(t, done.Error, "boom")
	assert.Nil(t, done.Output)
	assert.Equal(t, PhaseCompleted, done.Steps[0].Phase)
	assert.Equal(t, PhaseFailed, done.Steps[1].Phase)
	assert.Equal(t, "boom", done.Steps[1].Error)
	assert.Equal(t, true, done.Steps[1].Output["partial"])
	assert.Equal(t, PhaseSkipped, done.Steps[2].Phase)
	assert.Nil(t, done.Steps[2].StartedAt)
}

func TestCreateTask_RenderErrorFailsStep(t *testing.T) {
	env := newTestEnv(t, Options{})

	created := env.createTask(t, CreateTaskRequest{
		Steps: []StepRequest{
			{ID: "first", Action: "test:echo", Input: map[string]any{
				"message": "${{ .parameters.missing }}",
			}},
		},
	})

	done := env.waitForPhase(t, created.ID, PhaseFailed)
	assert.Contains(t, done.Steps[0].Error, "rendering input")
}

func TestCreateTask_InvalidInputFailsStep(t *testing.T) {
	env := newTestEnv(t, Options{})

	created := env.createTask(t, CreateTaskRequest{
		Steps: []StepRequest{
			{ID: "first", Action: "test:echo", Input: map[string]any{"message": 42}},
		},
	})

	done := env.waitForPhase(t, created.ID, PhaseFailed)
	assert.Contains(t, done.Steps[0].Error, "invalid input for test:echo")
}

func TestCreateTask_Validation(t *testing.T) {
	env := newTestEnv(t, Options{})

	valid := func() CreateTaskRequest {
		return CreateTaskRequest{
			Steps:       []StepRequest{{ID: "first", Action: "test:echo"}},
			CallbackURL: "https://example.com/callback",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CreateTaskRequest)
		wantErr string
	}{
		{"no steps", func(r *CreateTaskRequest) { r.Steps = nil }, "steps is required"},
		{"empty step id", func(r *CreateTaskRequest) { r.Steps[0].ID = "" }, "step id is required"},
		{"step id with dot", func(r *CreateTaskRequest) { r.Steps[0].ID = "a.b" }, "invalid step id"},
		{"duplicate step id", func(r *CreateTaskRequest) {
			r.Steps = append(r.Steps, StepRequest{ID: "first", Action: "test:echo"})
		}, "duplicate step id"},
		{"missing action", func(r *CreateTaskRequest) { r.Steps[0].Action = "" }, "step action is required"},
		{"unknown action", func(r *CreateTaskRequest) { r.Steps[0].Action = "azure:nope" }, "unknown action"},
		{"ftp callback", func(r *CreateTaskRequest) { r.CallbackURL = "ftp://example.com/cb" }, "invalid callbackUrl scheme"},
		{"callback without host", func(r *CreateTaskRequest) { r.CallbackURL = "https:///cb" }, "invalid callbackUrl host"},
		{"localhost callback", func(r *CreateTaskRequest) { r.CallbackURL = "http://localhost:8080/cb" }, "invalid callbackUrl host"},
		{"metadata callback", func(r *CreateTaskRequest) { r.CallbackURL = "http://169.254.169.254/latest" }, "invalid callbackUrl host"},
		{"ipv6 loopback callback", func(r *CreateTaskRequest) { r.CallbackURL = "http://[::1]:9000/cb" }, "invalid callbackUrl host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			w := postJSON(t, env.router, "/api/v1/tasks", req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
			assert.Equal(t, tt.wantErr, errResp.Error)
		})
	}

	assert.Empty(t, env.srv.store.list(""), "rejected requests create no tasks")
}

func TestCreateTask_InvalidBody(t *testing.T) {
	env := newTestEnv(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestCreateTask_RequiresJSONContentType(t *testing.T) {
	env := newTestEnv(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestCreateTask_Callbacks(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []CallbackPayload
	)
	cb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get(SignatureHeader) != Sign("s3cret", body) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var p CallbackPayload
		_ = json.Unmarshal(body, &p)
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer cb.Close()

	env := newTestEnv(t, Options{CallbackSecret: "s3cret", AllowPrivateCallbacks: true})

	created := env.createTask(t, CreateTaskRequest{
		Steps:       []StepRequest{{ID: "first", Action: "test:echo", Input: map[string]any{"message": "done"}}},
		Output:      map[string]any{"msg": "${{ .steps.first.output.message }}"},
		CallbackURL: cb.URL + "/hook",
	})
	env.waitForPhase(t, created.ID, PhaseCompleted)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EventStarted, payloads[0].Event)
	assert.Equal(t, created.ID, payloads[0].TaskID)
	assert.Equal(t, EventCompleted, payloads[1].Event)
	assert.Equal(t, map[string]any{"msg": "done"}, payloads[1].Output)
}

func TestCreateTask_FailedCallback(t *testing.T) {
	received := make(chan CallbackPayload, 2)
	cb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p CallbackPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		received <- p
	}))
	defer cb.Close()

	env := newTestEnv(t, Options{AllowPrivateCallbacks: true})
	created := env.createTask(t, CreateTaskRequest{
		Steps:       []StepRequest{{ID: "broken", Action: "test:fail"}},
		CallbackURL: cb.URL,
	})
	env.waitForPhase(t, created.ID, PhaseFailed)

	var last CallbackPayload
	for range 2 {
		select {
		case last = <-received:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for callbacks")
		}
	}
	assert.Equal(t, EventFailed, last.Event)
	assert.Contains(t, last.Message, "boom")
}

func TestCreateTask_ConcurrencyLimit(t *testing.T) {
	env := newTestEnv(t, Options{MaxConcurrentTasks: 1})

	first := env.createTask(t, CreateTaskRequest{Steps: []StepRequest{{ID: "wait", Action: "test:block"}}})
	second := env.createTask(t, CreateTaskRequest{Steps: []StepRequest{{ID: "wait", Action: "test:block"}}})

	env.waitForPhase(t, first.ID, PhaseProcessing)
	assert.Never(t, func() bool {
		resp, _ := env.srv.store.get(second.ID)
		return resp.Phase != PhasePending
	}, 100*time.Millisecond, 10*time.Millisecond, "second task must wait for a free slot")

	close(env.release)
	env.waitForPhase(t, first.ID, PhaseCompleted)
	env.waitForPhase(t, second.ID, PhaseCompleted)
}

func TestCreateTask_ShutdownFailsRunningTasks(t *testing.T) {
	env := newTestEnv(t, Options{})

	created := env.createTask(t, CreateTaskRequest{Steps: []StepRequest{{ID: "wait", Action: "test:block"}}})
	env.waitForPhase(t, created.ID, PhaseProcessing)

	env.srv.runner.stop()

	resp, ok := env.srv.store.get(created.ID)
	require.True(t, ok)
	assert.Equal(t, PhaseFailed, resp.Phase)
	assert.Contains(t, resp.Error, "context canceled")
	assert.True(t, env.srv.hub.IsStreamDone(created.ID))
}

func TestCreateTask_StepLogsBecomeEvents(t *testing.T) {
	env := newTestEnv(t, Options{})

	created := env.createTask(t, CreateTaskRequest{Steps: []StepRequest{
		{ID: "logger", Name: "Log things", Action: "test:log"},
	}})
	env.waitForPhase(t, created.ID, PhaseCompleted)

	history, ch, _ := env.srv.hub.Subscribe(created.ID, 0)
	assert.Nil(t, ch, "stream is complete")
	require.Len(t, history, 4)

	assert.Equal(t, EventTypeStepStarted, history[0].Type)
	assert.Equal(t, "Beginning step Log things", history[0].Message)

	assert.Equal(t, EventTypeLog, history[1].Type)
	assert.Equal(t, "logger", history[1].StepID)
	assert.Equal(t, "info", history[1].Level)
	assert.Equal(t, "cloning repository", history[1].Message)
	assert.Equal(t, "main", history[1].Fields["branch"])
	assert.Equal(t, "test:log", history[1].Fields["action"])

	assert.Equal(t, EventTypeLog, history[2].Type)
	assert.Equal(t, logging.SeverityWarning, history[2].Level)
	assert.NotContains(t, history[2].Fields, logging.SeverityKey)

	assert.Equal(t, EventTypeStepCompleted, history[3].Type)
	for i, e := range history {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
}

func TestCreateTask_StepFailureEvent(t *testing.T) {
	env := newTestEnv(t, Options{})

	created := env.createTask(t, CreateTaskRequest{Steps: []StepRequest{{ID: "broken", Action: "test:fail"}}})
	env.waitForPhase(t, created.ID, PhaseFailed)

	history, _, _ := env.srv.hub.Subscribe(created.ID, 0)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, EventTypeStepFailed, last.Type)
	assert.Equal(t, "error", last.Level)
	assert.Equal(t, "boom", last.Message)
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t, Options{})

	ok := env.createTask(t, CreateTaskRequest{Steps: []StepRequest{{ID: "a", Action: "test:echo"}}})
	bad := env.createTask(t, CreateTaskRequest{Steps: []StepRequest{{ID: "a", Action: "test:fail"}}})
	env.waitForPhase(t, ok.ID, PhaseCompleted)
	env.waitForPhase(t, bad.ID, PhaseFailed)

	w := doGet(t, env.router, "/api/v1/tasks")
	require.Equal(t, http.StatusOK, w.Code)
	var all []TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, ok.ID, all[0].ID)
	assert.Equal(t, bad.ID, all[1].ID)

	w = doGet(t, env.router, "/api/v1/tasks?phase=failed")
	require.Equal(t, http.StatusOK, w.Code)
	var failed []TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failed))
	require.Len(t, failed, 1)
	assert.Equal(t, bad.ID, failed[0].ID)

	w = doGet(t, env.router, "/api/v1/tasks?phase=processing")
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = doGet(t, env.router, "/api/v1/tasks?phase=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTask(t *testing.T) {
	env := newTestEnv(t, Options{})

	created := env.createTask(t, CreateTaskRequest{Steps: []StepRequest{{ID: "a", Action: "test:echo"}}})
	env.waitForPhase(t, created.ID, PhaseCompleted)

	w := doGet(t, env.router, "/api/v1/tasks/"+created.ID)
	require.Equal(t, http.StatusOK, w.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, PhaseCompleted, resp.Phase)

	w = doGet(t, env.router, "/api/v1/tasks/task-missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListActions(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := doGet(t, env.router, "/api/v1/actions")
	require.Equal(t, http.StatusOK, w.Code)

	var list []ActionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 4)
	assert.Equal(t, "test:block", list[0].ID)
	assert.Equal(t, "test:echo", list[1].ID)
	assert.Equal(t, "Echoes its message", list[1].Description)
	require.NotNil(t, list[1].Schema.Input)
	assert.Contains(t, list[1].Schema.Input.Properties, "message")
	require.NotNil(t, list[1].Schema.Output)
	assert.Nil(t, list[2].Schema.Input)
}
