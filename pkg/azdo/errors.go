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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const unknownErrorMessage = "unknown error"

// APIError is a non-2xx response from the Azure DevOps REST API.
type APIError struct {
	StatusCode int
	Message    string
	TypeKey    string
}

func (e *APIError) Error() string {
	if e.TypeKey != "" {
		return fmt.Sprintf("azure devops: HTTP %d: %s (%s)", e.StatusCode, e.Message, e.TypeKey)
	}
	return fmt.Sprintf("azure devops: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an Azure DevOps 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsServerError reports whether err is a 5xx response.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 500
}

// parseAPIError builds an APIError from the body Azure DevOps returns on
// failures: {"message": "...", "typeKey": "..."}. Falls back to the raw body.
func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
		TypeKey string `json:"typeKey"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return &APIError{StatusCode: status, Message: payload.Message, TypeKey: payload.TypeKey}
	}

	msg := string(bytes.TrimSpace(body))
	if len(msg) > 1024 {
		msg = msg[:1024]
	}
	if msg == "" {
		msg = unknownErrorMessage
	}
	return &APIError{StatusCode: status, Message: msg}
}
