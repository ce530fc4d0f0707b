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

package integration

import "context"

// Kind discriminates the credential variants.
type Kind string

const (
	KindPAT    Kind = "pat"
	KindBearer Kind = "bearer"
)

// Credentials is a resolved Azure DevOps credential. It lives for one action
// invocation and is never persisted.
type Credentials struct {
	Kind  Kind
	Token string
}

// Provider resolves credentials for an Azure DevOps URL. It returns nil, nil
// when no integration matches the URL.
type Provider interface {
	GetCredentials(ctx context.Context, url string) (*Credentials, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, url string) (*Credentials, error)

// GetCredentials implements Provider.
func (f ProviderFunc) GetCredentials(ctx context.Context, url string) (*Credentials, error) {
	return f(ctx, url)
}
