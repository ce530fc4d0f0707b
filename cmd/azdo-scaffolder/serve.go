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
	"time"

	"github.com/go-logr/logr"

	"github.com/NissesSenap/azdo-scaffolder/pkg/api"
	"github.com/NissesSenap/azdo-scaffolder/pkg/scaffolder"
)

type ServeCmd struct {
	ListenAddr            string        `help:"API listen address" default:":8080" env:"AZDO_SCAFFOLDER_API_ADDR"`
	CallbackSecret        string        `help:"HMAC secret for task callbacks" env:"AZDO_SCAFFOLDER_CALLBACK_SECRET"`
	WorkDir               string        `help:"Parent directory of task workspaces" type:"existingdir" env:"AZDO_SCAFFOLDER_WORK_DIR"`
	KeepWorkspaces        bool          `help:"Keep task workspaces after completion" env:"AZDO_SCAFFOLDER_KEEP_WORKSPACES"`
	MaxConcurrentTasks    int           `help:"Tasks executed at the same time" default:"4" env:"AZDO_SCAFFOLDER_MAX_CONCURRENT_TASKS"`
	TaskRetention         time.Duration `help:"How long finished tasks stay queryable" default:"1h" env:"AZDO_SCAFFOLDER_TASK_RETENTION"`
	CreateRateLimit       int           `help:"Task submissions per client IP and minute" default:"60" env:"AZDO_SCAFFOLDER_CREATE_RATE_LIMIT"`
	AllowPrivateCallbacks bool          `help:"Allow callback URLs on localhost" env:"AZDO_SCAFFOLDER_ALLOW_PRIVATE_CALLBACKS"`

	Integrations IntegrationFlags `embed:""`
}

func (c *ServeCmd) Run(ctx context.Context, log logr.Logger) error {
	reg, err := scaffolder.BuildRegistry(c.Integrations.config(), log)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Options{
		ListenAddr:            c.ListenAddr,
		CallbackSecret:        c.CallbackSecret,
		WorkDir:               c.WorkDir,
		KeepWorkspaces:        c.KeepWorkspaces,
		MaxConcurrentTasks:    c.MaxConcurrentTasks,
		TaskRetention:         c.TaskRetention,
		CreateRateLimit:       c.CreateRateLimit,
		AllowPrivateCallbacks: c.AllowPrivateCallbacks,
	}, reg, log)

	s, err := scaffolder.New(log, scaffolder.APIModule(srv))
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// IntegrationFlags configure the credentials actions use.
type IntegrationFlags struct {
	IntegrationsFile string        `help:"YAML file with Azure DevOps integrations" type:"path" env:"AZDO_SCAFFOLDER_INTEGRATIONS_FILE"`
	HTTPTimeout      time.Duration `help:"Timeout of each Azure DevOps request" default:"30s" env:"AZDO_SCAFFOLDER_HTTP_TIMEOUT"`
}

func (f IntegrationFlags) config() scaffolder.Config {
	return scaffolder.Config{
		IntegrationsFile: f.IntegrationsFile,
		HTTPTimeout:      f.HTTPTimeout,
	}
}
