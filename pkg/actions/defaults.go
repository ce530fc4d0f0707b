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
	"net/http"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
	"github.com/NissesSenap/azdo-scaffolder/pkg/git"
	"github.com/NissesSenap/azdo-scaffolder/pkg/integration"
)

// Action IDs.
const (
	PipelineCreateID  = "azure:pipeline:create"
	PipelineRunID     = "azure:pipeline:run"
	PipelinePermitID  = "azure:pipeline:permit"
	RepoCloneID       = "azure:repo:clone"
	RepoPushID        = "azure:repo:push"
	RepoPullRequestID = "azure:repo:pr"
)

// Dependencies are the collaborators the built-in actions share.
type Dependencies struct {
	// Credentials resolves integration credentials. May be nil, in which
	// case every action needs an explicit token input.
	Credentials integration.Provider
	HTTPClient  *http.Client
	Git         *git.Runner
	Clock       clock.Clock
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	if d.Git == nil {
		d.Git = git.NewRunner(nil, logr.Discard())
	}
	return d
}

func (d Dependencies) client(host string, auth azdo.AuthHandler, log logr.Logger, opts ...azdo.ClientOption) *azdo.Client {
	base := []azdo.ClientOption{
		azdo.WithHTTPClient(d.HTTPClient),
		azdo.WithLogger(log),
		azdo.WithClock(d.Clock),
	}
	return azdo.NewClient(host, auth, append(base, opts...)...)
}

// NewDefaultRegistry returns a registry with every Azure DevOps action.
func NewDefaultRegistry(deps Dependencies) (*Registry, error) {
	deps = deps.withDefaults()
	r := NewRegistry()
	for _, a := range []*Action{
		newPipelineCreateAction(deps),
		newPipelineRunAction(deps),
		newPipelinePermitAction(deps),
		newRepoCloneAction(deps),
		newRepoPushAction(deps),
		newRepoPullRequestAction(deps),
	} {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}
