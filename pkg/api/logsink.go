package api

import (
	"fmt"
	"maps"

	"github.com/go-logr/logr"

	"github.com/NissesSenap/azdo-scaffolder/pkg/logging"
)

// eventSink is a logr.LogSink that forwards V(0) lines of a step to the
// task's event stream and passes everything on to the process logger.
type eventSink struct {
	delegate logr.LogSink
	hub      *EventHub
	taskID   string
	stepID   string
	name     string
	values   map[string]string
}

var _ logr.LogSink = (*eventSink)(nil)

// newStepLogger returns a logger whose lines also appear as log events of the
// given task step.
func newStepLogger(base logr.Logger, hub *EventHub, taskID, stepID string) logr.Logger {
	return logr.New(&eventSink{
		delegate: base.GetSink(),
		hub:      hub,
		taskID:   taskID,
		stepID:   stepID,
		values:   map[string]string{},
	})
}

func (s *eventSink) Init(info logr.RuntimeInfo) {
	if s.delegate != nil {
		s.delegate.Init(logr.RuntimeInfo{CallDepth: info.CallDepth + 1})
	}
}

func (s *eventSink) Enabled(level int) bool {
	return level <= 0 || (s.delegate != nil && s.delegate.Enabled(level))
}

func (s *eventSink) Info(level int, msg string, keysAndValues ...any) {
	if s.delegate != nil && s.delegate.Enabled(level) {
		s.delegate.Info(level, msg, keysAndValues...)
	}
	if level > 0 {
		return
	}
	fields := s.fields(keysAndValues)
	lvl := "info"
	if fields[logging.SeverityKey] == logging.SeverityWarning {
		lvl = logging.SeverityWarning
		delete(fields, logging.SeverityKey)
	}
	s.publish(lvl, msg, fields)
}

func (s *eventSink) Error(err error, msg string, keysAndValues ...any) {
	if s.delegate != nil {
		s.delegate.Error(err, msg, keysAndValues...)
	}
	fields := s.fields(keysAndValues)
	if err != nil {
		fields["error"] = err.Error()
	}
	s.publish("error", msg, fields)
}

func (s *eventSink) WithValues(keysAndValues ...any) logr.LogSink {
	c := s.clone()
	if c.delegate != nil {
		c.delegate = c.delegate.WithValues(keysAndValues...)
	}
	addPairs(c.values, keysAndValues)
	return c
}

func (s *eventSink) WithName(name string) logr.LogSink {
	c := s.clone()
	if c.delegate != nil {
		c.delegate = c.delegate.WithName(name)
	}
	if c.name == "" {
		c.name = name
	} else {
		c.name += "." + name
	}
	return c
}

func (s *eventSink) clone() *eventSink {
	c := *s
	c.values = maps.Clone(s.values)
	return &c
}

func (s *eventSink) fields(keysAndValues []any) map[string]string {
	fields := maps.Clone(s.values)
	addPairs(fields, keysAndValues)
	if s.name != "" {
		fields["logger"] = s.name
	}
	return fields
}

func (s *eventSink) publish(level, msg string, fields map[string]string) {
	e := TaskEvent{
		Type:    EventTypeLog,
		StepID:  s.stepID,
		Level:   level,
		Message: msg,
	}
	if len(fields) > 0 {
		e.Fields = fields
	}
	s.hub.Publish(s.taskID, e)
}

func addPairs(dst map[string]string, keysAndValues []any) {
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 >= len(keysAndValues) {
			dst[key] = "<missing>"
			break
		}
		dst[key] = fmt.Sprint(keysAndValues[i+1])
	}
}
