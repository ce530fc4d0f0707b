package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/NissesSenap/azdo-scaffolder/pkg/actions"
	"github.com/NissesSenap/azdo-scaffolder/pkg/scaffolder"
)

type RunCmd struct {
	Action    string            `arg:"" help:"Action ID, e.g. azure:pipeline:run"`
	Input     string            `help:"YAML or JSON file with the action input" short:"i" type:"existingfile"`
	Set       map[string]string `help:"Input values that override the input file (key=value)" mapsep:","`
	Workspace string            `help:"Workspace directory" default:"." type:"existingdir"`

	Integrations IntegrationFlags `embed:""`
}

func (c *RunCmd) Run(ctx context.Context, log logr.Logger, kctx *kong.Context) error {
	reg, err := scaffolder.BuildRegistry(c.Integrations.config(), log)
	if err != nil {
		return err
	}
	return c.execute(ctx, reg, log, kctx)
}

func (c *RunCmd) execute(ctx context.Context, reg *actions.Registry, log logr.Logger, kctx *kong.Context) error {
	input, err := loadInput(c.Input, c.Set)
	if err != nil {
		return err
	}
	workspace, err := filepath.Abs(c.Workspace)
	if err != nil {
		return fmt.Errorf("resolving workspace: %w", err)
	}

	out, err := reg.Execute(ctx, c.Action, input, workspace, log)
	if len(out) > 0 {
		if encErr := writeYAML(kctx, out); encErr != nil {
			return encErr
		}
	}
	return err
}

// loadInput reads the input file and applies overrides. Override values are
// parsed as YAML scalars so numbers and booleans keep their type.
func loadInput(path string, overrides map[string]string) (map[string]any, error) {
	input := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading input file: %w", err)
		}
		if err := yaml.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("parsing input file: %w", err)
		}
		if input == nil {
			input = map[string]any{}
		}
	}
	for k, raw := range overrides {
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		input[k] = v
	}
	return input, nil
}

func writeYAML(kctx *kong.Context, v any) error {
	enc := yaml.NewEncoder(kctx.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return enc.Close()
}
