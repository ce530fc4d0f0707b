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
	"encoding/base64"
	"fmt"

	"github.com/NissesSenap/azdo-scaffolder/pkg/integration"
)

// AuthHandler provides the Authorization header for Azure DevOps requests.
type AuthHandler interface {
	AuthorizationHeader() string
}

// PATHandler authenticates with a personal access token using basic auth
// with an empty user name.
type PATHandler struct {
	header string
}

// NewPATHandler creates a handler for a personal access token.
func NewPATHandler(token string) *PATHandler {
	encoded := base64.StdEncoding.EncodeToString([]byte(":" + token))
	return &PATHandler{header: "Basic " + encoded}
}

// AuthorizationHeader implements AuthHandler.
func (h *PATHandler) AuthorizationHeader() string {
	return h.header
}

// BearerHandler authenticates with an OAuth bearer token.
type BearerHandler struct {
	header string
}

// NewBearerHandler creates a handler for a bearer token.
func NewBearerHandler(token string) *BearerHandler {
	return &BearerHandler{header: "Bearer " + token}
}

// AuthorizationHeader implements AuthHandler.
func (h *BearerHandler) AuthorizationHeader() string {
	return h.header
}

// HandlerFor maps resolved integration credentials onto an AuthHandler.
func HandlerFor(creds integration.Credentials) (AuthHandler, error) {
	switch creds.Kind {
	case integration.KindPAT:
		return NewPATHandler(creds.Token), nil
	case integration.KindBearer:
		return NewBearerHandler(creds.Token), nil
	default:
		return nil, fmt.Errorf("unsupported credential kind %q", creds.Kind)
	}
}
