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
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
	"github.com/NissesSenap/azdo-scaffolder/pkg/pipeline"
)

const pullRequestRetries = 3

func newRepoPullRequestAction(deps Dependencies) *Action {
	return &Action{
		ID:          RepoPullRequestID,
		Description: "Creates a pull request in an Azure repository.",
		Input: object([]string{"organization", "repoName", "title"}, map[string]*openapi3.Schema{
			"server":             stringProp("Server hostname", "The hostname of the Azure DevOps service. Defaults to dev.azure.com").WithDefault(azdo.DefaultHost),
			"organization":       stringProp("Organization Name", "The name of the organization in Azure DevOps."),
			"project":            stringProp("Project", "The Project in Azure DevOps. Defaults to the repository name."),
			"repoId":             stringProp("Repo ID", "Repo ID of the pull request. Looked up from repoName when empty."),
			"repoName":           stringProp("Repo Name", "Repo name of the pull request."),
			"sourceBranch":       stringProp("Source Branch", "The branch to merge into the target.").WithDefault("scaffolder"),
			"targetBranch":       stringProp("Target Branch", "The branch to merge into.").WithDefault("main"),
			"title":              stringProp("Title", "The title of the pull request."),
			"description":        stringProp("Description", "The description of the pull request."),
			"supportsIterations": boolProp("Supports Iterations", "Whether or not pull request supports iterations."),
			"autoComplete":       boolProp("Enable auto-completion", "Enable auto-completion of the pull request once policies are met."),
			"workItemId":         stringProp("Work Item ID", "The work item ID to link to the pull request."),
			"token":              tokenProp(),
		}),
		Output: object(nil, map[string]*openapi3.Schema{
			"pullRequestId": integerProp("Pull Request ID", "The ID of the created pull request"),
		}),
		Handler: func(ctx context.Context, actx *Context) error {
			in := actx.Input
			server, org := str(in, "server"), str(in, "organization")
			repoName := str(in, "repoName")
			project := str(in, "project")
			if project == "" {
				project = repoName
			}

			auth, err := resolveAuthHandler(ctx, deps.Credentials, server, org, str(in, "token"))
			if err != nil {
				return err
			}
			client := deps.client(server, auth, actx.Logger, azdo.WithMaxRetries(pullRequestRetries))

			repoID := str(in, "repoId")
			if repoID == "" {
				repo, err := client.GetRepository(ctx, org, project, repoName)
				if err != nil {
					return err
				}
				repoID = repo.ID
			}

			pr := azdo.GitPullRequest{
				SourceRefName: pipeline.BranchRef(str(in, "sourceBranch")),
				TargetRefName: pipeline.BranchRef(str(in, "targetBranch")),
				Title:         str(in, "title"),
				Description:   str(in, "description"),
			}
			if id := str(in, "workItemId"); id != "" {
				pr.WorkItemRefs = []azdo.ResourceRef{{ID: id}}
			}

			created, err := client.CreatePullRequest(ctx, org, project, repoID, pr, boolean(in, "supportsIterations"))
			if err != nil {
				return err
			}
			actx.Logger.Info("created pull request", "pullRequestID", created.PullRequestID, "repositoryID", repoID)

			if boolean(in, "autoComplete") {
				if created.CreatedBy == nil {
					return fmt.Errorf("cannot enable auto-complete: pull request %d has no creator", created.PullRequestID)
				}
				if _, err := client.UpdatePullRequest(ctx, org, project, repoID, created.PullRequestID, azdo.GitPullRequest{
					AutoCompleteSetBy: &azdo.IdentityRef{ID: created.CreatedBy.ID},
				}); err != nil {
					return err
				}
				actx.Logger.Info("enabled auto-complete", "pullRequestID", created.PullRequestID)
			}

			actx.Output("pullRequestId", created.PullRequestID)
			return nil
		},
	}
}
