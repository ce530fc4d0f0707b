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

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/NissesSenap/azdo-scaffolder/pkg/logging"
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for skipped credentials.
func WithLogger(l logr.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithHTTPClient sets the client used for OAuth token exchanges.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) { r.httpClient = c }
}

// WithClock sets the clock used to check static token expiry.
func WithClock(c clock.PassiveClock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// WithTokenURL overrides the Microsoft identity platform token endpoint
// template. %s is replaced by the tenant ID.
func WithTokenURL(tmpl string) RegistryOption {
	return func(r *Registry) { r.tokenURL = tmpl }
}

// Registry resolves credentials from the configured Azure integrations.
type Registry struct {
	integrations []AzureIntegration
	logger       logr.Logger
	httpClient   *http.Client
	clock        clock.PassiveClock
	tokenURL     string

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewRegistry creates a Registry from configuration.
func NewRegistry(cfg *Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:   logr.Discard(),
		clock:    clock.RealClock{},
		tokenURL: defaultTokenURL,
		sources:  make(map[string]oauth2.TokenSource),
	}
	if cfg != nil {
		r.integrations = cfg.Integrations.Azure
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetCredentials implements Provider. The URL host selects the integration;
// its first path segment is matched against each credential's organizations.
// A credential without organizations acts as the host-wide fallback.
func (r *Registry) GetCredentials(ctx context.Context, rawURL string) (*Credentials, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	org := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)[0]

	for _, az := range r.integrations {
		if !hostMatches(az.Host, u) {
			continue
		}

		var fallback *AzureCredential
		for i := range az.Credentials {
			cred := &az.Credentials[i]
			if len(cred.Organizations) == 0 {
				if fallback == nil {
					fallback = cred
				}
				continue
			}
			if org != "" && slices.Contains(cred.Organizations, org) {
				return r.materialize(ctx, az.Host, cred)
			}
		}
		if fallback != nil {
			return r.materialize(ctx, az.Host, fallback)
		}
	}
	return nil, nil
}

func hostMatches(configured string, u *url.URL) bool {
	if strings.Contains(configured, "://") {
		cu, err := url.Parse(configured)
		return err == nil && strings.EqualFold(cu.Host, u.Host)
	}
	return strings.EqualFold(configured, u.Host)
}

func (r *Registry) materialize(ctx context.Context, host string, cred *AzureCredential) (*Credentials, error) {
	switch {
	case cred.PersonalAccessToken != "":
		return &Credentials{Kind: KindPAT, Token: cred.PersonalAccessToken}, nil
	case cred.Token != "":
		if expired, exp := tokenExpired(cred.Token, r.clock.Now()); expired {
			logging.Warn(r.logger, "skipping expired bearer token", "host", host, "expiredAt", exp)
			return nil, nil
		}
		return &Credentials{Kind: KindBearer, Token: cred.Token}, nil
	case cred.ClientID != "":
		tok, err := r.tokenSource(ctx, cred).Token()
		if err != nil {
			return nil, fmt.Errorf("fetching token for client %s: %w", cred.ClientID, err)
		}
		return &Credentials{Kind: KindBearer, Token: tok.AccessToken}, nil
	}
	return nil, nil
}
