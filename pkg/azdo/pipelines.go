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

package azdo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CreatePipeline creates a YAML pipeline definition.
func (c *Client) CreatePipeline(ctx context.Context, organization, project string, req CreatePipelineRequest) (*Pipeline, error) {
	path := projectPath(organization, project) + "/_apis/pipelines"

	var p Pipeline
	if err := c.do(ctx, http.MethodPost, path, apiVersion(APIVersion), req, &p); err != nil {
		return nil, fmt.Errorf("creating pipeline %q: %w", req.Name, err)
	}
	return &p, nil
}

// RunPipeline queues a run of the given pipeline.
func (c *Client) RunPipeline(ctx context.Context, organization, project string, pipelineID int, req RunPipelineRequest) (*Run, error) {
	path := projectPath(organization, project) + "/_apis/pipelines/" + strconv.Itoa(pipelineID) + "/runs"

	var run Run
	if err := c.do(ctx, http.MethodPost, path, apiVersion(APIVersion), req, &run); err != nil {
		return nil, fmt.Errorf("running pipeline %d: %w", pipelineID, err)
	}
	return &run, nil
}

// GetRun fetches the current state of a pipeline run.
func (c *Client) GetRun(ctx context.Context, organization, project string, pipelineID, runID int) (*Run, error) {
	path := projectPath(organization, project) + "/_apis/pipelines/" + strconv.Itoa(pipelineID) + "/runs/" + strconv.Itoa(runID)

	var run Run
	if err := c.do(ctx, http.MethodGet, path, apiVersion(APIVersion), nil, &run); err != nil {
		return nil, fmt.Errorf("getting run %d of pipeline %d: %w", runID, pipelineID, err)
	}
	return &run, nil
}

// UpdatePipelinePermissions sends one PATCH to the pipeline permissions
// endpoint of a resource. The HTTP status is returned as-is so callers can
// decide how to treat rejections; only transport failures are errors.
func (c *Client) UpdatePipelinePermissions(ctx context.Context, organization, project, resourceType, resourceID string, req PipelinePermissionsRequest) (int, error) {
	path := projectPath(organization, project) + "/_apis/pipelines/pipelinePermissions/" +
		url.PathEscape(resourceType) + "/" + url.PathEscape(resourceID)

	status, _, err := c.send(ctx, http.MethodPatch, path, apiVersion(PermissionsAPIVersion), req)
	if err != nil {
		return 0, fmt.Errorf("updating pipeline permissions for %s %s: %w", resourceType, resourceID, err)
	}
	return status, nil
}
