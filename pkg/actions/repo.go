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
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
	"github.com/NissesSenap/azdo-scaffolder/pkg/git"
)

// remoteOrganization returns the first path segment of an Azure Repos URL.
func remoteOrganization(remote string) (*url.URL, string, error) {
	u, err := url.Parse(remote)
	if err != nil || u.Host == "" {
		return nil, "", inputErrorf("%q is not a valid repository URL", remote)
	}
	org := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)[0]
	return u, org, nil
}

func newRepoCloneAction(deps Dependencies) *Action {
	return &Action{
		ID:          RepoCloneID,
		Description: "Clones an Azure repository into the workspace directory.",
		Input: object([]string{"remoteUrl"}, map[string]*openapi3.Schema{
			"remoteUrl":  stringProp("Remote URL", "The Git URL to the repository."),
			"branch":     stringProp("Repository Branch", "The branch to checkout to.").WithDefault("main"),
			"targetPath": stringProp("Working Subdirectory", "The subdirectory of the working directory to clone the repository into.").WithDefault("./"),
			"server":     stringProp("Server hostname", "The hostname of the Azure DevOps service. Defaults to dev.azure.com").WithDefault(azdo.DefaultHost),
			"token":      tokenProp(),
		}),
		Output: openapi3.NewObjectSchema(),
		Handler: func(ctx context.Context, actx *Context) error {
			in := actx.Input
			remote := str(in, "remoteUrl")

			_, org, err := remoteOrganization(remote)
			if err != nil {
				return err
			}
			dir, err := resolveSafeChildPath(actx.Workspace, str(in, "targetPath"))
			if err != nil {
				return err
			}

			auth, err := resolveAuthHandler(ctx, deps.Credentials, str(in, "server"), org, str(in, "token"))
			if err != nil {
				return err
			}
			return deps.Git.Clone(ctx, remote, str(in, "branch"), dir, auth.AuthorizationHeader())
		},
	}
}

func newRepoPushAction(deps Dependencies) *Action {
	return &Action{
		ID:          RepoPushID,
		Description: "Pushes the workspace contents to a branch of the cloned Azure repository.",
		Input: object(nil, map[string]*openapi3.Schema{
			"branch":           stringProp("Repository Branch", "The branch to checkout to.").WithDefault("scaffolder"),
			"sourcePath":       stringProp("Working Subdirectory", "The subdirectory of the working directory containing the repository."),
			"gitCommitMessage": stringProp("Git Commit Message", "Sets the commit message on the repository.").WithDefault("Initial commit"),
			"gitAuthorName":    stringProp("Default Author Name", "Sets the default author name for the commit.").WithDefault("Scaffolder"),
			"gitAuthorEmail":   stringProp("Default Author Email", "Sets the default author email for the commit.").WithDefault("scaffolder@backstage.io"),
			"token":            tokenProp(),
		}),
		Output: openapi3.NewObjectSchema(),
		Handler: func(ctx context.Context, actx *Context) error {
			in := actx.Input

			dir, err := resolveSafeChildPath(actx.Workspace, str(in, "sourcePath"))
			if err != nil {
				return err
			}

			remote, err := deps.Git.RemoteURL(ctx, dir)
			if err != nil {
				return err
			}
			u, org, err := remoteOrganization(remote)
			if err != nil {
				return err
			}

			lookup := u.Scheme + "://" + u.Host + "/" + org
			auth, err := resolveAuthHandlerForURL(ctx, deps.Credentials, lookup, str(in, "token"))
			if err != nil {
				return err
			}

			return deps.Git.CommitAndPush(ctx, dir, git.PushOptions{
				Branch:        str(in, "branch"),
				CommitMessage: str(in, "gitCommitMessage"),
				AuthorName:    str(in, "gitAuthorName"),
				AuthorEmail:   str(in, "gitAuthorEmail"),
				AuthHeader:    auth.AuthorizationHeader(),
			})
		},
	}
}
