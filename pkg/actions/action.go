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

// Package actions defines the scaffolder action framework and the Azure
// DevOps actions built on it.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-logr/logr"
)

// HandlerFunc runs an action against a validated input.
type HandlerFunc func(ctx context.Context, actx *Context) error

// Action is a named, schema-described unit of work.
type Action struct {
	ID          string
	Description string
	Input       *openapi3.Schema
	Output      *openapi3.Schema
	Handler     HandlerFunc
}

// Context is what a handler sees of one invocation.
type Context struct {
	// Input holds the validated input with schema defaults applied. Values
	// are JSON-shaped: numbers are float64, objects are map[string]any.
	Input map[string]any
	// Workspace is the directory the action may read and write.
	Workspace string
	Logger    logr.Logger

	mu      sync.Mutex
	outputs map[string]any
}

// Output records a named output value.
func (c *Context) Output(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outputs == nil {
		c.outputs = make(map[string]any)
	}
	c.outputs[name] = value
}

// Outputs returns a copy of the recorded outputs.
func (c *Context) Outputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}

// InputError reports input that is missing, malformed or unusable. It is the
// caller's fault and retrying with the same input will not help.
type InputError struct {
	err error
}

func (e *InputError) Error() string { return e.err.Error() }

func (e *InputError) Unwrap() error { return e.err }

func inputErrorf(format string, args ...any) error {
	return &InputError{err: fmt.Errorf(format, args...)}
}

// IsInputError reports whether err is or wraps an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
