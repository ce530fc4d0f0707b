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

// Package pipeline launches Azure DevOps pipeline runs, follows them to
// completion and manages pipeline resource authorizations.
package pipeline

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
)

const defaultBranch = "main"

// RunsClient is the subset of the Azure DevOps client used for runs.
type RunsClient interface {
	RunPipeline(ctx context.Context, organization, project string, pipelineID int, req azdo.RunPipelineRequest) (*azdo.Run, error)
	GetRun(ctx context.Context, organization, project string, pipelineID, runID int) (*azdo.Run, error)
}

// LaunchRequest describes a pipeline run to queue.
type LaunchRequest struct {
	Organization       string
	Project            string
	PipelineID         int
	Branch             string
	TemplateParameters map[string]string
	Variables          map[string]azdo.Variable
}

// BranchRef returns the fully qualified ref for a branch name, defaulting to
// main. Refs that are already qualified are returned unchanged.
func BranchRef(branch string) string {
	if branch == "" {
		branch = defaultBranch
	}
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}

// BuildRunRequest converts a LaunchRequest into the API body.
func BuildRunRequest(req LaunchRequest) azdo.RunPipelineRequest {
	body := azdo.RunPipelineRequest{
		Resources: azdo.RunResources{
			Repositories: map[string]azdo.RepositoryRef{
				"self": {RefName: BranchRef(req.Branch)},
			},
		},
	}
	if len(req.TemplateParameters) > 0 {
		body.TemplateParameters = maps.Clone(req.TemplateParameters)
	}
	if len(req.Variables) > 0 {
		body.Variables = maps.Clone(req.Variables)
	}
	return body
}

// Launch queues the run and returns the initial run handle. Client errors are
// returned without retrying.
func Launch(ctx context.Context, client RunsClient, req LaunchRequest) (*azdo.Run, error) {
	run, err := client.RunPipeline(ctx, req.Organization, req.Project, req.PipelineID, BuildRunRequest(req))
	if err != nil {
		return nil, fmt.Errorf("launching pipeline run: %w", err)
	}
	runsLaunched.Inc()
	return run, nil
}
