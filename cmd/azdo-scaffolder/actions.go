package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"

	"github.com/NissesSenap/azdo-scaffolder/pkg/api"
	"github.com/NissesSenap/azdo-scaffolder/pkg/client"
	"github.com/NissesSenap/azdo-scaffolder/pkg/scaffolder"
)

type ActionsCmd struct {
	Server string `help:"List the actions of a running server instead of the built-in ones" env:"AZDO_SCAFFOLDER_SERVER"`
	Schema bool   `help:"Print the full input and output schemas as JSON"`
}

func (c *ActionsCmd) Run(ctx context.Context, log logr.Logger, kctx *kong.Context) error {
	var list []api.ActionResponse
	if c.Server != "" {
		var err error
		list, err = client.NewClient(c.Server, client.WithLogger(log)).ListActions(ctx)
		if err != nil {
			return fmt.Errorf("listing actions: %w", err)
		}
	} else {
		reg, err := scaffolder.BuildRegistry(scaffolder.Config{}, log)
		if err != nil {
			return err
		}
		for _, a := range reg.List() {
			list = append(list, api.ActionResponse{
				ID:          a.ID,
				Description: a.Description,
				Schema:      api.ActionSchema{Input: a.Input, Output: a.Output},
			})
		}
	}
	return printActions(kctx, list, c.Schema)
}

func printActions(kctx *kong.Context, list []api.ActionResponse, schema bool) error {
	if schema {
		enc := json.NewEncoder(kctx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	tw := tabwriter.NewWriter(kctx.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESCRIPTION")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\n", a.ID, a.Description)
	}
	return tw.Flush()
}
