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

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
	"github.com/NissesSenap/azdo-scaffolder/pkg/integration"
)

// resolveAuthHandler picks the credential for an organization. An explicit
// token always wins and is used as a personal access token.
func resolveAuthHandler(ctx context.Context, provider integration.Provider, host, organization, token string) (azdo.AuthHandler, error) {
	return resolveAuthHandlerForURL(ctx, provider, azdo.OrganizationURL(host, organization), token)
}

// resolveAuthHandlerForURL is resolveAuthHandler keyed by an arbitrary Azure
// DevOps URL, such as a git remote.
func resolveAuthHandlerForURL(ctx context.Context, provider integration.Provider, url, token string) (azdo.AuthHandler, error) {
	if token != "" {
		return azdo.NewPATHandler(token), nil
	}

	if provider != nil {
		creds, err := provider.GetCredentials(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("resolving credentials for %s: %w", url, err)
		}
		if creds != nil {
			return azdo.HandlerFor(*creds)
		}
	}

	return nil, inputErrorf("No credentials provided for %s, please check your integrations config", url)
}
