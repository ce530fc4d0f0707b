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

package actions

import (
	"context"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/NissesSenap/azdo-scaffolder/pkg/pipeline"
)

// Resource types accepted by the pipeline permissions endpoint.
var permitResourceTypes = []any{"endpoint", "repository", "variablegroup", "queue", "environment", "securefile"}

func pipelinePermitInput() *openapi3.Schema {
	return object([]string{"organization", "project", "resourceId", "resourceType", "authorized", "pipelineId"}, map[string]*openapi3.Schema{
		"host":         hostProp(),
		"organization": stringProp("Organization", "The name of the Azure DevOps organization."),
		"project":      stringProp("Project", "The name of the Azure project."),
		"resourceId":   stringProp("Resource ID", "The resource ID."),
		"resourceType": stringProp("Resource Type", "The type of the resource (e.g. endpoint).").
			WithEnum(permitResourceTypes...),
		"authorized": boolProp("Authorized", "Boolean flag to allow or revoke access."),
		"pipelineId": idProp("Pipeline ID", "The pipeline ID."),
		"token":      tokenProp(),
	})
}

func newPipelinePermitAction(deps Dependencies) *Action {
	return &Action{
		ID:          PipelinePermitID,
		Description: "Grants or revokes a pipeline's access to a protected resource.",
		Input:       pipelinePermitInput(),
		Output:      openapi3.NewObjectSchema(),
		Handler: func(ctx context.Context, actx *Context) error {
			in := actx.Input
			host, org := str(in, "host"), str(in, "organization")

			req := pipeline.AuthorizationRequest{
				Organization: org,
				Project:      str(in, "project"),
				PipelineID:   str(in, "pipelineId"),
				ResourceType: str(in, "resourceType"),
				ResourceID:   str(in, "resourceId"),
				Authorized:   boolean(in, "authorized"),
			}
			if _, err := pipeline.BuildPermissionsRequest(req); err != nil {
				return &InputError{err: err}
			}

			auth, err := resolveAuthHandler(ctx, deps.Credentials, host, org, str(in, "token"))
			if err != nil {
				return err
			}

			_, err = pipeline.Authorize(ctx, deps.client(host, auth, actx.Logger), req, actx.Logger)
			return err
		},
	}
}
