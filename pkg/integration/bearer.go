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
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultTokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

	// azureDevOpsScope is the well-known resource ID of Azure DevOps.
	azureDevOpsScope = "499b84ac-1321-427f-aa17-267ca6975798/.default"
)

// tokenSource returns a cached client-credentials token source for the entry.
// Tokens are refreshed by the source when they expire.
func (r *Registry) tokenSource(ctx context.Context, cred *AzureCredential) oauth2.TokenSource {
	key := cred.TenantID + "/" + cred.ClientID

	r.mu.Lock()
	defer r.mu.Unlock()
	if ts, ok := r.sources[key]; ok {
		return ts
	}

	cc := clientcredentials.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURL:     fmt.Sprintf(r.tokenURL, cred.TenantID),
		Scopes:       []string{azureDevOpsScope},
	}
	// The source outlives the request that created it.
	tokenCtx := context.WithoutCancel(ctx)
	if r.httpClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, r.httpClient)
	}
	ts := oauth2.ReuseTokenSource(nil, cc.TokenSource(tokenCtx))
	r.sources[key] = ts
	return ts
}

// tokenExpired reports whether token is a JWT whose exp claim lies before
// now. Opaque tokens are never considered expired.
func tokenExpired(token string, now time.Time) (bool, time.Time) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false, time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, time.Time{}
	}
	return exp.Before(now), exp.Time
}
