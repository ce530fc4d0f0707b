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
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
	"github.com/NissesSenap/azdo-scaffolder/pkg/logging"
)

// PermissionsClient is the subset of the Azure DevOps client used to
// authorize pipelines.
type PermissionsClient interface {
	UpdatePipelinePermissions(ctx context.Context, organization, project, resourceType, resourceID string, req azdo.PipelinePermissionsRequest) (int, error)
}

// AuthorizationRequest grants or revokes a pipeline's access to a resource.
type AuthorizationRequest struct {
	Organization string
	Project      string
	PipelineID   string
	ResourceType string
	ResourceID   string
	Authorized   bool
}

// AuthorizationOutcome reports what Azure DevOps answered.
type AuthorizationOutcome struct {
	StatusCode int
	Applied    bool
}

// BuildPermissionsRequest parses the pipeline ID and builds the PATCH body.
func BuildPermissionsRequest(req AuthorizationRequest) (azdo.PipelinePermissionsRequest, error) {
	id, err := strconv.Atoi(req.PipelineID)
	if err != nil {
		return azdo.PipelinePermissionsRequest{}, fmt.Errorf("pipelineId %q is not a number: %w", req.PipelineID, err)
	}
	return azdo.PipelinePermissionsRequest{
		Pipelines: []azdo.PipelinePermission{{ID: id, Authorized: req.Authorized}},
	}, nil
}

// Authorize sends a single permissions update. A rejected update is logged as
// a warning and reported through the outcome, not as an error; transport
// failures are returned. The endpoint upserts, so repeating a call is safe.
func Authorize(ctx context.Context, client PermissionsClient, req AuthorizationRequest, logger logr.Logger) (*AuthorizationOutcome, error) {
	body, err := BuildPermissionsRequest(req)
	if err != nil {
		return nil, err
	}

	log := logger.WithValues("pipelineID", req.PipelineID, "resourceType", req.ResourceType, "resourceID", req.ResourceID)

	status, err := client.UpdatePipelinePermissions(ctx, req.Organization, req.Project, req.ResourceType, req.ResourceID, body)
	if err != nil {
		permissionUpdates.WithLabelValues("error").Inc()
		return nil, err
	}

	outcome := &AuthorizationOutcome{StatusCode: status}
	if status == http.StatusOK || status == http.StatusNoContent {
		outcome.Applied = true
		permissionUpdates.WithLabelValues("applied").Inc()
		log.Info("pipeline permission updated", "authorized", req.Authorized)
		return outcome, nil
	}

	permissionUpdates.WithLabelValues("rejected").Inc()
	logging.Warn(log, "pipeline permission update was not applied", "status", status, "authorized", req.Authorized)
	return outcome, nil
}
