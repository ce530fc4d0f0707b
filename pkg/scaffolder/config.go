package scaffolder

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"

	"github.com/NissesSenap/azdo-scaffolder/pkg/actions"
	"github.com/NissesSenap/azdo-scaffolder/pkg/git"
	"github.com/NissesSenap/azdo-scaffolder/pkg/integration"
)

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Config holds what the action registry needs from the command line.
type Config struct {
	// IntegrationsFile is the YAML file with Azure DevOps credentials. Empty
	// means every action needs an explicit token input.
	IntegrationsFile string `validate:"omitempty,file"`
	// HTTPTimeout bounds each Azure DevOps request.
	HTTPTimeout time.Duration `validate:"gte=0"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// BuildRegistry loads the integrations and registers the built-in actions.
func BuildRegistry(cfg Config, log logr.Logger) (*actions.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	deps := actions.Dependencies{
		HTTPClient: httpClient,
		Git:        git.NewRunner(nil, log.WithName("git")),
	}

	if cfg.IntegrationsFile != "" {
		icfg, err := integration.LoadConfig(cfg.IntegrationsFile)
		if err != nil {
			return nil, err
		}
		deps.Credentials = integration.NewRegistry(icfg,
			integration.WithLogger(log.WithName("integrations")),
			integration.WithHTTPClient(httpClient),
		)
		log.Info("loaded integrations", "file", cfg.IntegrationsFile, "hosts", len(icfg.Integrations.Azure))
	}

	reg, err := actions.NewDefaultRegistry(deps)
	if err != nil {
		return nil, fmt.Errorf("registering actions: %w", err)
	}
	return reg, nil
}
