//go:build e2e
// +build e2e

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

package e2e

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/NissesSenap/azdo-scaffolder/pkg/actions"
	"github.com/NissesSenap/azdo-scaffolder/pkg/api"
	"github.com/NissesSenap/azdo-scaffolder/pkg/client"
	"github.com/NissesSenap/azdo-scaffolder/pkg/scaffolder"
)

var _ = Describe("Scaffolder", Ordered, func() {
	var (
		fake    *fakeAzDO
		azdoURL string
		apiURL  string
		cl      *client.Client
		cancel  context.CancelFunc
		done    chan error
	)

	BeforeAll(func() {
		By("starting the fake Azure DevOps API")
		fake = newFakeAzDO()
		azdoSrv := httptest.NewServer(fake.router())
		DeferCleanup(azdoSrv.Close)
		azdoURL = azdoSrv.URL

		By("writing an integrations file for the fake host")
		dir := GinkgoT().TempDir()
		integrations := filepath.Join(dir, "integrations.yaml")
		Expect(os.WriteFile(integrations, []byte(fmt.Sprintf(`integrations:
  azure:
    - host: %s
      credentials:
        - organizations: [contoso]
          personalAccessToken: e2e-pat
`, azdoSrv.Listener.Addr().String())), 0o600)).To(Succeed())

		By("starting the task API")
		log := GinkgoLogr
		reg, err := scaffolder.BuildRegistry(scaffolder.Config{
			IntegrationsFile: integrations,
			HTTPTimeout:      10 * time.Second,
		}, log)
		Expect(err).NotTo(HaveOccurred())

		srv := api.NewServer(api.Options{
			WorkDir:               dir,
			AllowPrivateCallbacks: true,
		}, reg, log)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		apiURL = "http://" + ln.Addr().String()

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln) }()

		cl = client.NewClient(apiURL)
		Eventually(func() (int, error) {
			resp, err := http.Get(apiURL + "/readyz")
			if err != nil {
				return 0, err
			}
			_ = resp.Body.Close()
			return resp.StatusCode, nil
		}).WithTimeout(5 * time.Second).Should(Equal(http.StatusOK))
	})

	AfterAll(func() {
		cancel()
		Eventually(done).WithTimeout(15 * time.Second).Should(Receive(BeNil()))
	})

	It("should list the Azure DevOps actions", func() {
		list, err := cl.ListActions(context.Background())
		Expect(err).NotTo(HaveOccurred())

		var ids []string
		for _, a := range list {
			ids = append(ids, a.ID)
			Expect(a.Schema.Input).NotTo(BeNil(), "action %s has no input schema", a.ID)
		}
		Expect(ids).To(ConsistOf(
			actions.PipelineCreateID,
			actions.PipelineRunID,
			actions.PipelinePermitID,
			actions.RepoCloneID,
			actions.RepoPushID,
			actions.RepoPullRequestID,
		))
	})

	It("should create, permit and run a pipeline in one task", func() {
		callbacks := make(chan api.CallbackPayload, 4)
		cbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p api.CallbackPayload
			if err := decodeJSON(r, &p); err == nil {
				callbacks <- p
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer cbSrv.Close()

		task, err := cl.CreateTask(context.Background(), api.CreateTaskRequest{
			Parameters: map[string]any{
				"host":         azdoURL,
				"organization": "contoso",
				"project":      "web",
			},
			Steps: []api.StepRequest{
				{
					ID:     "create",
					Name:   "Create pipeline",
					Action: actions.PipelineCreateID,
					Input: map[string]any{
						"host":           "${{ .parameters.host }}",
						"organization":   "${{ .parameters.organization }}",
						"project":        "${{ .parameters.project }}",
						"name":           "build",
						"yamlPath":       "azure-pipelines.yml",
						"repositoryId":   "repo-guid",
						"repositoryName": "my-repo",
					},
				},
				{
					ID:     "permit",
					Action: actions.PipelinePermitID,
					Input: map[string]any{
						"host":         "${{ .parameters.host }}",
						"organization": "${{ .parameters.organization }}",
						"project":      "${{ .parameters.project }}",
						"pipelineId":   "${{ .steps.create.output.pipelineId }}",
						"resourceType": "endpoint",
						"resourceId":   "svc-1",
						"authorized":   true,
					},
				},
				{
					ID:     "run",
					Name:   "Run pipeline",
					Action: actions.PipelineRunID,
					Input: map[string]any{
						"host":            "${{ .parameters.host }}",
						"organization":    "${{ .parameters.organization }}",
						"project":         "${{ .parameters.project }}",
						"pipelineId":      "${{ .steps.create.output.pipelineId }}",
						"pollingInterval": 1,
					},
				},
			},
			Output: map[string]any{
				"pipelineUrl": "${{ .steps.create.output.pipelineUrl }}",
				"status":      "${{ .steps.run.output.pipelineRunStatus }}",
				"version":     "${{ .steps.run.output.pipelineOutput.version.value }}",
			},
			CallbackURL: cbSrv.URL,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(task.Steps).To(HaveLen(3))

		By("following the event stream")
		var events []api.TaskEvent
		ctx, cancelStream := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelStream()
		complete, err := cl.StreamEvents(ctx, task.ID, 0, func(e api.TaskEvent) {
			events = append(events, e)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(complete.Status).To(Equal(api.PhaseCompleted), complete.Error)
		Expect(complete.Output).To(HaveKeyWithValue("pipelineUrl", "https://dev.azure.com/pipeline/11"))
		Expect(complete.Output).To(HaveKeyWithValue("status", "succeeded"))
		Expect(complete.Output).To(HaveKeyWithValue("version", "1.2.3"))

		var started []string
		for i, e := range events {
			Expect(e.Sequence).To(BeEquivalentTo(i + 1))
			if e.Type == api.EventTypeStepStarted {
				started = append(started, e.StepID)
			}
		}
		Expect(started).To(Equal([]string{"create", "permit", "run"}))

		By("checking the stored task")
		got, err := cl.GetTask(context.Background(), task.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Phase).To(Equal(api.PhaseCompleted))
		for _, s := range got.Steps {
			Expect(s.Phase).To(Equal(api.PhaseCompleted), "step %s", s.ID)
		}

		By("checking the Azure DevOps requests")
		Expect(fake.permittedResources()).To(ConsistOf("endpoint/svc-1"))
		basic := "Basic " + base64.StdEncoding.EncodeToString([]byte(":e2e-pat"))
		for _, h := range fake.authHeaders() {
			Expect(h).To(Equal(basic))
		}

		By("receiving the callbacks")
		var got1, got2 api.CallbackPayload
		Eventually(callbacks).WithTimeout(5 * time.Second).Should(Receive(&got1))
		Eventually(callbacks).WithTimeout(5 * time.Second).Should(Receive(&got2))
		Expect(got1.Event).To(Equal(api.EventStarted))
		Expect(got2.Event).To(Equal(api.EventCompleted))
		Expect(got2.Output).To(HaveKeyWithValue("status", "succeeded"))
	})

	It("should fail the task and skip later steps when Azure DevOps rejects a run", func() {
		task, err := cl.CreateTask(context.Background(), api.CreateTaskRequest{
			Steps: []api.StepRequest{
				{
					ID:     "run",
					Action: actions.PipelineRunID,
					Input: map[string]any{
						"host":         azdoURL,
						"organization": "contoso",
						"project":      "web",
						"pipelineId":   "999",
					},
				},
				{
					ID:     "never",
					Action: actions.PipelinePermitID,
					Input: map[string]any{
						"host":         azdoURL,
						"organization": "contoso",
						"project":      "web",
						"pipelineId":   "999",
						"resourceType": "endpoint",
						"resourceId":   "svc-2",
						"authorized":   true,
					},
				},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		ctx, cancelWait := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelWait()
		got, err := cl.WaitForTask(ctx, task.ID, 100*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Phase).To(Equal(api.PhaseFailed))
		Expect(got.Error).To(ContainSubstring(`step "run" failed`))
		Expect(got.Steps[0].Phase).To(Equal(api.PhaseFailed))
		Expect(got.Steps[1].Phase).To(Equal(api.PhaseSkipped))
		Expect(fake.permittedResources()).NotTo(ContainElement("endpoint/svc-2"))
	})

	It("should reject unknown actions and report missing tasks", func() {
		_, err := cl.CreateTask(context.Background(), api.CreateTaskRequest{
			Steps: []api.StepRequest{{ID: "x", Action: "azure:unknown"}},
		})
		var statusErr *client.StatusError
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(statusErr.Message).To(Equal("unknown action"))

		_, err = cl.GetTask(context.Background(), "task-missing")
		Expect(errors.Is(err, client.ErrNotFound)).To(BeTrue())
	})
})

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
