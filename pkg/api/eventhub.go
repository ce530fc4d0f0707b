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
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const (
	// maxEventsPerTask bounds the replay history of one task.
	maxEventsPerTask = 1000
	subscriberBuffer = 64
)

// EventHub keeps a bounded, sequenced event history per task and fans new
// events out to websocket subscribers.
type EventHub struct {
	mu      sync.RWMutex
	streams map[string]*eventStream
	clock   clock.PassiveClock
}

type eventStream struct {
	mu      sync.RWMutex
	history []TaskEvent
	lastSeq int64
	subs    map[uint64]chan TaskEvent
	nextSub uint64
	done    bool
}

// NewEventHub creates an empty EventHub.
func NewEventHub() *EventHub {
	return &EventHub{
		streams: make(map[string]*eventStream),
		clock:   clock.RealClock{},
	}
}

func (h *EventHub) lookup(taskID string) (*eventStream, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.streams[taskID]
	return s, ok
}

func (h *EventHub) stream(taskID string) *eventStream {
	if s, ok := h.lookup(taskID); ok {
		return s
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.streams[taskID]; ok {
		return s
	}
	s := &eventStream{subs: make(map[uint64]chan TaskEvent)}
	h.streams[taskID] = s
	return s
}

// Publish assigns the next sequence numbers of the task to events, records
// them and delivers them to live subscribers. A subscriber whose buffer is
// full is evicted. Publishing to a completed stream does nothing.
func (h *EventHub) Publish(taskID string, events ...TaskEvent) {
	s := h.stream(taskID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || len(events) == 0 {
		return
	}

	now := h.clock.Now().UTC().Format(time.RFC3339Nano)
	for i := range events {
		s.lastSeq++
		events[i].Sequence = s.lastSeq
		if events[i].Timestamp == "" {
			events[i].Timestamp = now
		}
	}
	s.record(events)

	for id, ch := range s.subs {
		if !deliver(ch, events) {
			close(ch)
			delete(s.subs, id)
		}
	}
}

// record appends events and drops the oldest ones beyond maxEventsPerTask.
func (s *eventStream) record(events []TaskEvent) {
	s.history = append(s.history, events...)
	if over := len(s.history) - maxEventsPerTask; over > 0 {
		n := copy(s.history, s.history[over:])
		clear(s.history[n:])
		s.history = s.history[:n]
	}
}

func deliver(ch chan TaskEvent, events []TaskEvent) bool {
	for _, e := range events {
		select {
		case ch <- e:
		default:
			return false
		}
	}
	return true
}

// Subscribe returns the recorded events with a sequence greater than after
// and a channel of the events published from now on. The channel is nil when
// the stream is already complete; otherwise it is closed on completion or
// eviction. unsubscribe is safe to call more than once.
func (h *EventHub) Subscribe(taskID string, after int64) (history []TaskEvent, ch <-chan TaskEvent, unsubscribe func()) {
	s := h.stream(taskID)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.history {
		if e.Sequence > after {
			history = append(history, e)
		}
	}
	if s.done {
		return history, nil, func() {}
	}

	id := s.nextSub
	s.nextSub++
	live := make(chan TaskEvent, subscriberBuffer)
	s.subs[id] = live

	return history, live, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Complete ends the task stream. Subscriber channels are closed and later
// Publish calls are ignored. The history stays available until Cleanup.
func (h *EventHub) Complete(taskID string) {
	s := h.stream(taskID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete()
}

func (s *eventStream) complete() {
	if s.done {
		return
	}
	s.done = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// IsStreamDone reports whether Complete was called for the task. Unknown
// tasks are not done.
func (h *EventHub) IsStreamDone(taskID string) bool {
	s, ok := h.lookup(taskID)
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Cleanup completes the task stream and forgets its history.
func (h *EventHub) Cleanup(taskID string) {
	h.mu.Lock()
	s, ok := h.streams[taskID]
	delete(h.streams, taskID)
	h.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete()
}
