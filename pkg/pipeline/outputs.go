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

package pipeline

import (
	"maps"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
)

// Output names produced by the run action.
const (
	OutputRunURL          = "pipelineRunUrl"
	OutputRunID           = "pipelineRunId"
	OutputRunStatus       = "pipelineRunStatus"
	OutputTimeoutExceeded = "pipelineTimeoutExceeded"
	OutputVariables       = "pipelineOutput"
)

// Outputs is the projection of a finished poll onto named action outputs.
type Outputs struct {
	RunURL          string
	RunID           int
	RunStatus       azdo.RunResult
	TimeoutExceeded bool
	Variables       map[string]azdo.Variable
}

// Project maps a run onto outputs. Variables are passed through as returned,
// secret values included.
func Project(run *azdo.Run, timeoutExceeded bool) Outputs {
	out := Outputs{
		RunURL:          run.WebURL(),
		RunID:           run.ID,
		RunStatus:       run.Result,
		TimeoutExceeded: timeoutExceeded,
	}
	if run.Variables != nil {
		out.Variables = maps.Clone(run.Variables)
	}
	return out
}

// Map returns the outputs keyed by output name. pipelineRunStatus is left out
// while the run has no result yet.
func (o Outputs) Map() map[string]any {
	m := map[string]any{
		OutputRunURL:          o.RunURL,
		OutputRunID:           o.RunID,
		OutputTimeoutExceeded: o.TimeoutExceeded,
	}
	if o.RunStatus != "" {
		m[OutputRunStatus] = string(o.RunStatus)
	}
	vars := make(map[string]any, len(o.Variables))
	for name, v := range o.Variables {
		vars[name] = map[string]any{"isSecret": v.IsSecret, "value": v.Value}
	}
	m[OutputVariables] = vars
	return m
}
