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

// RunState is the lifecycle state of a pipeline run.
type RunState string

const (
	RunStateUnknown    RunState = "unknown"
	RunStateInProgress RunState = "inProgress"
	RunStateCanceling  RunState = "canceling"
	RunStateCompleted  RunState = "completed"
)

// RunResult is the outcome of a completed pipeline run.
type RunResult string

const (
	RunResultUnknown   RunResult = "unknown"
	RunResultSucceeded RunResult = "succeeded"
	RunResultFailed    RunResult = "failed"
	RunResultCanceled  RunResult = "canceled"
)

// Variable is a pipeline variable as returned on a run or sent with a run request.
type Variable struct {
	Value    string `json:"value"`
	IsSecret bool   `json:"isSecret"`
}

// Link is a single entry of the _links collection.
type Link struct {
	Href string `json:"href"`
}

// Links holds the reference links Azure DevOps attaches to resources.
type Links struct {
	Self Link `json:"self"`
	Web  Link `json:"web"`
}

// Run is one execution of a pipeline definition.
type Run struct {
	ID        int                 `json:"id"`
	Name      string              `json:"name,omitempty"`
	State     RunState            `json:"state"`
	Result    RunResult           `json:"result,omitempty"`
	URL       string              `json:"url,omitempty"`
	Links     Links               `json:"_links"`
	Variables map[string]Variable `json:"variables,omitempty"`
}

// WebURL is the browser URL of the run.
func (r *Run) WebURL() string {
	return r.Links.Web.Href
}

// Terminal reports whether the run can no longer change state.
func (r *Run) Terminal() bool {
	return r.State == RunStateCompleted || r.Result == RunResultCanceled
}

// RepositoryRef selects the source branch of the self repository.
type RepositoryRef struct {
	RefName string `json:"refName"`
}

// RunResources is the resources section of a run request.
type RunResources struct {
	Repositories map[string]RepositoryRef `json:"repositories"`
}

// RunPipelineRequest is the body of POST _apis/pipelines/{id}/runs.
type RunPipelineRequest struct {
	Resources          RunResources        `json:"resources"`
	TemplateParameters map[string]string   `json:"templateParameters,omitempty"`
	Variables          map[string]Variable `json:"variables,omitempty"`
}

// PipelineRepository points a pipeline configuration at an Azure Repos repository.
type PipelineRepository struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// PipelineConfiguration describes where the pipeline YAML lives.
type PipelineConfiguration struct {
	Type       string             `json:"type"`
	Path       string             `json:"path"`
	Repository PipelineRepository `json:"repository"`
}

// CreatePipelineRequest is the body of POST _apis/pipelines.
type CreatePipelineRequest struct {
	Folder        string                `json:"folder,omitempty"`
	Name          string                `json:"name"`
	Configuration PipelineConfiguration `json:"configuration"`
}

// Pipeline is a pipeline definition.
type Pipeline struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Folder   string `json:"folder,omitempty"`
	Revision int    `json:"revision,omitempty"`
	URL      string `json:"url,omitempty"`
	Links    Links  `json:"_links"`
}

// PipelinePermission grants or revokes one pipeline's access to a resource.
type PipelinePermission struct {
	ID         int  `json:"id"`
	Authorized bool `json:"authorized"`
}

// PipelinePermissionsRequest is the body of PATCH _apis/pipelines/pipelinePermissions.
type PipelinePermissionsRequest struct {
	Pipelines []PipelinePermission `json:"pipelines"`
}

// Repository is an Azure Repos git repository.
type Repository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url,omitempty"`
	RemoteURL     string `json:"remoteUrl,omitempty"`
	WebURL        string `json:"webUrl,omitempty"`
	DefaultBranch string `json:"defaultBranch,omitempty"`
}

// IdentityRef identifies a user or service identity.
type IdentityRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// ResourceRef links a work item to a pull request.
type ResourceRef struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// GitPullRequest is both the create body and the response of the pull request API.
type GitPullRequest struct {
	PullRequestID     int           `json:"pullRequestId,omitempty"`
	Status            string        `json:"status,omitempty"`
	SourceRefName     string        `json:"sourceRefName,omitempty"`
	TargetRefName     string        `json:"targetRefName,omitempty"`
	Title             string        `json:"title,omitempty"`
	Description       string        `json:"description,omitempty"`
	URL               string        `json:"url,omitempty"`
	CreatedBy         *IdentityRef  `json:"createdBy,omitempty"`
	AutoCompleteSetBy *IdentityRef  `json:"autoCompleteSetBy,omitempty"`
	WorkItemRefs      []ResourceRef `json:"workItemRefs,omitempty"`
}
