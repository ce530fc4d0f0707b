package actions

import (
	"context"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
)

func pipelineCreateInput() *openapi3.Schema {
	return object([]string{"organization", "project", "name", "yamlPath", "repositoryId", "repositoryName"}, map[string]*openapi3.Schema{
		"host":           hostProp(),
		"organization":   stringProp("Organization", "The name of the Azure DevOps organization."),
		"project":        stringProp("Project", "The name of the Azure project."),
		"name":           stringProp("Name", "The name of the pipeline."),
		"folder":         stringProp("Folder", "The folder the pipeline is created in.").WithDefault(`\`),
		"yamlPath":       stringProp("YAML Path", "Path of the pipeline YAML file in the repository."),
		"repositoryId":   stringProp("Repository ID", "The ID of the Azure Repos repository holding the YAML."),
		"repositoryName": stringProp("Repository Name", "The name of the Azure Repos repository holding the YAML."),
		"token":          tokenProp(),
	})
}

func newPipelineCreateAction(deps Dependencies) *Action {
	return &Action{
		ID:          PipelineCreateID,
		Description: "Creates an Azure pipeline from a YAML file in an Azure Repos repository.",
		Input:       pipelineCreateInput(),
		Output: object(nil, map[string]*openapi3.Schema{
			"pipelineId":  integerProp("Pipeline ID", "The ID of the created pipeline"),
			"pipelineUrl": stringProp("Pipeline URL", "Url of the created pipeline"),
		}),
		Handler: func(ctx context.Context, actx *Context) error {
			in := actx.Input
			host, org, project := str(in, "host"), str(in, "organization"), str(in, "project")

			auth, err := resolveAuthHandler(ctx, deps.Credentials, host, org, str(in, "token"))
			if err != nil {
				return err
			}

			yamlPath := str(in, "yamlPath")
			if !strings.HasPrefix(yamlPath, "/") {
				yamlPath = "/" + yamlPath
			}

			p, err := deps.client(host, auth, actx.Logger).CreatePipeline(ctx, org, project, azdo.CreatePipelineRequest{
				Folder: str(in, "folder"),
				Name:   str(in, "name"),
				Configuration: azdo.PipelineConfiguration{
					Type: "yaml",
					Path: yamlPath,
					Repository: azdo.PipelineRepository{
						ID:   str(in, "repositoryId"),
						Name: str(in, "repositoryName"),
						Type: "azureReposGit",
					},
				},
			})
			if err != nil {
				return err
			}

			actx.Logger.Info("created pipeline", "pipelineID", p.ID, "name", p.Name)
			actx.Output("pipelineId", p.ID)
			actx.Output("pipelineUrl", p.Links.Web.Href)
			return nil
		},
	}
}
