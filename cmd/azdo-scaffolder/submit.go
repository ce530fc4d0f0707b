package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/NissesSenap/azdo-scaffolder/pkg/api"
	"github.com/NissesSenap/azdo-scaffolder/pkg/client"
)

type SubmitCmd struct {
	File    string        `arg:"" help:"YAML or JSON task definition" type:"existingfile"`
	Server  string        `help:"Task API base URL" default:"http://localhost:8080" env:"AZDO_SCAFFOLDER_SERVER"`
	Wait    bool          `help:"Wait for the task to finish"`
	Follow  bool          `help:"Stream task events until the task finishes" short:"f"`
	Timeout time.Duration `help:"Give up waiting after this long" default:"30m"`

	PollInterval time.Duration `help:"Status poll interval with --wait" default:"2s"`
}

func (c *SubmitCmd) Run(ctx context.Context, log logr.Logger, kctx *kong.Context) error {
	req, err := loadTask(c.File)
	if err != nil {
		return err
	}

	if c.Wait || c.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cl := client.NewClient(c.Server, client.WithLogger(log))
	task, err := cl.CreateTask(ctx, *req)
	if err != nil {
		return fmt.Errorf("submitting task: %w", err)
	}
	fmt.Fprintf(kctx.Stdout, "task %s submitted\n", task.ID)

	switch {
	case c.Follow:
		done, err := cl.StreamEvents(ctx, task.ID, 0, func(e api.TaskEvent) {
			printEvent(kctx, e)
		})
		if err != nil {
			return err
		}
		return finalResult(kctx, done.Status, done.Output, done.Error)
	case c.Wait:
		t, err := cl.WaitForTask(ctx, task.ID, c.PollInterval)
		if err != nil {
			return err
		}
		return finalResult(kctx, t.Phase, t.Output, t.Error)
	}
	return nil
}

func printEvent(kctx *kong.Context, e api.TaskEvent) {
	switch e.Type {
	case api.EventTypeLog:
		fmt.Fprintf(kctx.Stdout, "[%s] %-7s %s\n", e.StepID, e.Level, e.Message)
	default:
		fmt.Fprintf(kctx.Stdout, "[%s] %s\n", e.StepID, e.Message)
	}
}

func finalResult(kctx *kong.Context, phase string, output map[string]any, taskErr string) error {
	if phase == api.PhaseFailed {
		return fmt.Errorf("task failed: %s", taskErr)
	}
	fmt.Fprintf(kctx.Stdout, "task %s\n", phase)
	if len(output) > 0 {
		return writeYAML(kctx, output)
	}
	return nil
}

// loadTask reads a task definition. YAML is converted through JSON so the
// API's json field names apply.
func loadTask(path string) (*api.CreateTaskRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("converting task file: %w", err)
	}
	var req api.CreateTaskRequest
	if err := json.Unmarshal(js, &req); err != nil {
		return nil, fmt.Errorf("decoding task file: %w", err)
	}
	return &req, nil
}
