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

package integration

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Config is the integrations file:
//
//	integrations:
//	  azure:
//	    - host: dev.azure.com
//	      credentials:
//	        - organizations: [my-org]
//	          personalAccessToken: ${AZURE_TOKEN}
type Config struct {
	Integrations struct {
		Azure []AzureIntegration `yaml:"azure" validate:"dive"`
	} `yaml:"integrations"`
}

// AzureIntegration holds the credentials configured for one host.
type AzureIntegration struct {
	Host        string            `yaml:"host" validate:"required,hostname_port|hostname|url"`
	Credentials []AzureCredential `yaml:"credentials" validate:"dive"`
}

// AzureCredential is one credential entry. Exactly one of PersonalAccessToken,
// Token or the client credential triple must be set.
type AzureCredential struct {
	Organizations       []string `yaml:"organizations,omitempty"`
	PersonalAccessToken string   `yaml:"personalAccessToken,omitempty" validate:"excluded_with=Token ClientID"`
	Token               string   `yaml:"token,omitempty" validate:"excluded_with=PersonalAccessToken ClientID"`
	ClientID            string   `yaml:"clientId,omitempty" validate:"required_with=ClientSecret TenantID"`
	ClientSecret        string   `yaml:"clientSecret,omitempty" validate:"required_with=ClientID"`
	TenantID            string   `yaml:"tenantId,omitempty" validate:"required_with=ClientID"`
}

func (c AzureCredential) empty() bool {
	return c.PersonalAccessToken == "" && c.Token == "" && c.ClientID == ""
}

// LoadConfig reads an integrations file, expanding ${VAR} references from the
// environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading integrations file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates integrations YAML.
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing integrations file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid integrations config: %w", err)
	}
	for _, az := range c.Integrations.Azure {
		for i, cred := range az.Credentials {
			if cred.empty() {
				return fmt.Errorf("invalid integrations config: %s credential %d has no token, personalAccessToken or clientId", az.Host, i)
			}
		}
	}
	return nil
}
