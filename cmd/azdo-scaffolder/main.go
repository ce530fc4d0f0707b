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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/NissesSenap/azdo-scaffolder/pkg/logging"
)

// CLI is the root command.
type CLI struct {
	LogLevel  string `help:"Log level (debug, info, warn, error)" default:"info" env:"AZDO_SCAFFOLDER_LOG_LEVEL"`
	LogFormat string `help:"Log format" enum:"json,console" default:"json" env:"AZDO_SCAFFOLDER_LOG_FORMAT"`

	Serve   ServeCmd   `cmd:"" help:"Run the task API server"`
	Run     RunCmd     `cmd:"" help:"Run a single action locally"`
	Actions ActionsCmd `cmd:"" help:"List available actions"`
	Submit  SubmitCmd  `cmd:"" help:"Submit a task to a running server"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("azdo-scaffolder"),
		kong.Description("Scaffolder actions for Azure DevOps pipelines and repositories."),
		kong.UsageOnError(),
	)

	log, err := logging.New(logging.Options{Level: cli.LogLevel, Format: cli.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(log); err != nil {
		log.Error(err, "command failed", "command", kctx.Command())
		os.Exit(1)
	}
}
