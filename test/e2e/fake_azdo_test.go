//go:build e2e
// +build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// fakeAzDO serves the slice of the Azure DevOps REST API the pipeline
// actions use. Runs complete on the second status poll.
type fakeAzDO struct {
	mu        sync.Mutex
	pipelines map[string]string // id -> name
	runs      map[string]int    // run id -> polls
	auth      []string
	permitted []string
}

func newFakeAzDO() *fakeAzDO {
	return &fakeAzDO{pipelines: map[string]string{}, runs: map[string]int{}}
}

func (f *fakeAzDO) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.auth = append(f.auth, req.Header.Get("Authorization"))
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/{org}/{project}/_apis/pipelines", f.createPipeline)
	r.Post("/{org}/{project}/_apis/pipelines/{id}/runs", f.runPipeline)
	r.Get("/{org}/{project}/_apis/pipelines/{id}/runs/{runID}", f.getRun)
	r.Patch("/{org}/{project}/_apis/pipelines/pipelinePermissions/{kind}/{resource}", f.permit)
	return r
}

func (f *fakeAzDO) createPipeline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.pipelines["11"] = body.Name
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     11,
		"name":   body.Name,
		"_links": map[string]any{"web": map[string]any{"href": "https://dev.azure.com/pipeline/11"}},
	})
}

func (f *fakeAzDO) runPipeline(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	_, ok := f.pipelines[chi.URLParam(r, "id")]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"pipeline not found"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     42,
		"state":  "inProgress",
		"_links": map[string]any{"web": map[string]any{"href": "https://dev.azure.com/run/42"}},
	})
}

func (f *fakeAzDO) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	f.mu.Lock()
	f.runs[runID]++
	polls := f.runs[runID]
	f.mu.Unlock()

	run := map[string]any{
		"id":     42,
		"state":  "inProgress",
		"_links": map[string]any{"web": map[string]any{"href": "https://dev.azure.com/run/42"}},
	}
	if polls > 1 {
		run["state"] = "completed"
		run["result"] = "succeeded"
		run["variables"] = map[string]any{"version": map[string]any{"value": "1.2.3"}}
	}
	_ = json.NewEncoder(w).Encode(run)
}

func (f *fakeAzDO) permit(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.permitted = append(f.permitted, chi.URLParam(r, "kind")+"/"+chi.URLParam(r, "resource"))
	f.mu.Unlock()
	_, _ = w.Write([]byte(`{}`))
}

func (f *fakeAzDO) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

func (f *fakeAzDO) permittedResources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.permitted...)
}
