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

package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// SignatureHeader carries "sha256=<hex>" of the HMAC-SHA256 of the body.
	SignatureHeader = "X-Scaffolder-Signature"
	// EventHeader repeats the payload event so receivers can route without
	// decoding the body.
	EventHeader = "X-Scaffolder-Event"

	callbackUserAgent = "azdo-scaffolder"
	// maxCallbackErrorBody caps how much of a rejecting response ends up in the error.
	maxCallbackErrorBody = 512
)

// Sign returns the SignatureHeader value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the SignatureHeader value of body
// under secret. Receivers use it to authenticate task callbacks.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// callbackSender POSTs task lifecycle notifications to the callbackUrl of a
// task. Bodies are signed when a secret is configured.
type callbackSender struct {
	secret     string
	httpClient *http.Client
}

func newCallbackSender(secret string) *callbackSender {
	return &callbackSender{
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *callbackSender) send(ctx context.Context, url string, payload CallbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s callback for %s: %w", payload.Event, payload.TaskID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", callbackUserAgent)
	req.Header.Set(EventHeader, payload.Event)
	if s.secret != "" {
		req.Header.Set(SignatureHeader, Sign(s.secret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending callback to %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drained so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxCallbackErrorBody))
	msg := fmt.Sprintf("callback to %s returned status %d", url, resp.StatusCode)
	if text := strings.TrimSpace(string(snippet)); text != "" {
		msg += ": " + text
	}
	return errors.New(msg)
}
