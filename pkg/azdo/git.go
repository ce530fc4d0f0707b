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

// GetRepository looks up a repository by name or ID.
func (c *Client) GetRepository(ctx context.Context, organization, project, nameOrID string) (*Repository, error) {
	path := projectPath(organization, project) + "/_apis/git/repositories/" + url.PathEscape(nameOrID)

	var repo Repository
	if err := c.do(ctx, http.MethodGet, path, apiVersion(APIVersion), nil, &repo); err != nil {
		return nil, fmt.Errorf("getting repository %q: %w", nameOrID, err)
	}
	return &repo, nil
}

// CreatePullRequest opens a pull request in the repository.
func (c *Client) CreatePullRequest(ctx context.Context, organization, project, repositoryID string, pr GitPullRequest, supportsIterations bool) (*GitPullRequest, error) {
	path := projectPath(organization, project) + "/_apis/git/repositories/" + url.PathEscape(repositoryID) + "/pullrequests"
	q := apiVersion(APIVersion)
	q.Set("supportsIterations", strconv.FormatBool(supportsIterations))

	var created GitPullRequest
	if err := c.do(ctx, http.MethodPost, path, q, pr, &created); err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	return &created, nil
}

// UpdatePullRequest patches an existing pull request.
func (c *Client) UpdatePullRequest(ctx context.Context, organization, project, repositoryID string, pullRequestID int, update GitPullRequest) (*GitPullRequest, error) {
	path := projectPath(organization, project) + "/_apis/git/repositories/" + url.PathEscape(repositoryID) +
		"/pullrequests/" + strconv.Itoa(pullRequestID)

	var updated GitPullRequest
	if err := c.do(ctx, http.MethodPatch, path, apiVersion(APIVersion), update, &updated); err != nil {
		return nil, fmt.Errorf("updating pull request %d: %w", pullRequestID, err)
	}
	return &updated, nil
}
