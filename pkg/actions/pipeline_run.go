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
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
	"github.com/NissesSenap/azdo-scaffolder/pkg/pipeline"
)

func pipelineRunInput() *openapi3.Schema {
	variable := object([]string{"value"}, map[string]*openapi3.Schema{
		"value":    openapi3.NewStringSchema(),
		"isSecret": openapi3.NewBoolSchema(),
	})
	return object([]string{"organization", "pipelineId", "project"}, map[string]*openapi3.Schema{
		"host":         hostProp(),
		"organization": stringProp("Organization", "The name of the Azure DevOps organization."),
		"pipelineId":   idProp("Pipeline ID", "The pipeline ID."),
		"project":      stringProp("Project", "The name of the Azure project."),
		"branch":       stringProp("Branch", "The branch of the pipeline's repository."),
		"token":        tokenProp(),
		"pollingInterval": integerProp("Polling Interval",
			"Seconds between each poll for pipeline update. 0 = no polling."),
		"pipelineTimeout": integerProp("Pipeline Timeout",
			"Max. seconds to wait for pipeline completion. Only effective if `pollingInterval` is greater than 0."),
		"pipelineParameters": describe(
			openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewStringSchema()),
			"Pipeline Parameters", "The pipeline parameters."),
		"pipelineVariables": describe(
			openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewOneOfSchema(openapi3.NewStringSchema(), variable)),
			"Pipeline Variables", "The pipeline variables."),
	})
}

func pipelineRunOutput() *openapi3.Schema {
	return object(nil, map[string]*openapi3.Schema{
		pipeline.OutputRunURL:          stringProp("Pipeline Run URL", "Url of the pipeline"),
		pipeline.OutputRunID:           integerProp("Pipeline Run ID", "The ID of the pipeline run"),
		pipeline.OutputRunStatus:       stringProp("Pipeline Run Status", "Pipeline Run status"),
		pipeline.OutputTimeoutExceeded: boolProp("Pipeline Timeout Exceeded", "True if the pipeline did not complete within the defined timespan"),
		pipeline.OutputVariables:       describe(openapi3.NewObjectSchema(), "Pipeline Output", "Object containing output variables of the pipeline"),
	})
}

func newPipelineRunAction(deps Dependencies) *Action {
	return &Action{
		ID:          PipelineRunID,
		Description: "Runs an Azure pipeline with a given pipeline ID and optionally waits for it to complete.",
		Input:       pipelineRunInput(),
		Output:      pipelineRunOutput(),
		Handler: func(ctx context.Context, actx *Context) error {
			in := actx.Input
			host, org, project := str(in, "host"), str(in, "organization"), str(in, "project")

			pipelineID, err := intID(in, "pipelineId")
			if err != nil {
				return err
			}

			auth, err := resolveAuthHandler(ctx, deps.Credentials, host, org, str(in, "token"))
			if err != nil {
				return err
			}
			client := deps.client(host, auth, actx.Logger)

			actx.Logger.Info("running Azure pipeline", "pipelineID", pipelineID, "organization", org, "project", project)

			run, err := pipeline.Launch(ctx, client, pipeline.LaunchRequest{
				Organization:       org,
				Project:            project,
				PipelineID:         pipelineID,
				Branch:             str(in, "branch"),
				TemplateParameters: stringMap(in, "pipelineParameters"),
				Variables:          pipelineVariables(in),
			})
			if err != nil {
				return err
			}
			actx.Logger.Info("queued pipeline run", "runID", run.ID, "url", run.WebURL())

			poller := pipeline.NewPoller(client, pipeline.WithClock(deps.Clock), pipeline.WithLogger(actx.Logger))
			res, err := poller.Poll(ctx, org, project, pipelineID, run, pipeline.PollOptions{
				Interval: seconds(number(in, "pollingInterval")),
				Timeout:  seconds(number(in, "pipelineTimeout")),
			})
			if err != nil {
				return err
			}

			for name, value := range pipeline.Project(res.Run, res.TimeoutExceeded).Map() {
				actx.Output(name, value)
			}
			return nil
		},
	}
}

func seconds(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

// pipelineVariables accepts plain string values or {value, isSecret} objects.
func pipelineVariables(in map[string]any) map[string]azdo.Variable {
	raw, _ := in["pipelineVariables"].(map[string]any)
	if len(raw) == 0 {
		return nil
	}
	vars := make(map[string]azdo.Variable, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case map[string]any:
			vars[name] = azdo.Variable{Value: str(val, "value"), IsSecret: boolean(val, "isSecret")}
		default:
			vars[name] = azdo.Variable{Value: str(raw, name)}
		}
	}
	return vars
}
