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
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

// streamEvents handles GET /api/v1/tasks/{taskID}/events (WebSocket upgrade).
func (h *taskHandler) streamEvents(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	log := h.log.WithValues("taskID", taskID)

	if _, ok := h.store.get(taskID); !ok {
		writeError(w, http.StatusNotFound, "task not found", "")
		return
	}

	var after int64
	if afterParam := r.URL.Query().Get("after"); afterParam != "" {
		var err error
		after, err = strconv.ParseInt(afterParam, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after parameter", err.Error())
			return
		}
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error(err, "failed to accept websocket")
		return
	}
	defer conn.CloseNow() //nolint:errcheck

	// Write-only: CloseRead handles the client's close frames.
	ctx := conn.CloseRead(r.Context())

	history, ch, unsubscribe := h.hub.Subscribe(taskID, after)
	defer unsubscribe()

	for _, e := range history {
		if err := writeWS(ctx, conn, WSMessage{Type: "task_event", Data: e}); err != nil {
			return
		}
	}

	if ch != nil {
		for e := range ch {
			if err := writeWS(ctx, conn, WSMessage{Type: "task_event", Data: e}); err != nil {
				return
			}
		}

		// A closed channel on a live stream means Publish evicted this
		// subscriber. Do not claim the task is complete.
		if !h.hub.IsStreamDone(taskID) {
			_ = conn.Close(websocket.StatusPolicyViolation, "slow consumer evicted")
			return
		}
	}

	resp, ok := h.store.get(taskID)
	if !ok {
		_ = conn.Close(websocket.StatusInternalError, "task no longer available")
		return
	}
	msg := WSMessage{Type: "task_complete", Data: TaskCompleteData{
		TaskID: taskID,
		Status: resp.Phase,
		Output: resp.Output,
		Error:  resp.Error,
	}}
	if err := writeWS(ctx, conn, msg); err != nil {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "task complete")
}

func writeWS(ctx context.Context, conn *websocket.Conn, msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
