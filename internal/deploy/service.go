package deploy

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/bringochef/chefctl/internal/errors"
)

const stageDeploy = "deploy"

// Mode selects how the deployer converges the service.
type Mode string

const (
	// ModeRelease creates the service, or replaces its full template when
	// it already exists.
	ModeRelease Mode = "release"
	// ModeRepair patches only the revision template of the existing
	// service, rolling a new revision that picks up repaired permissions.
	ModeRepair Mode = "repair"
)

// deployService pushes the desired service state and returns the service URL.
// Deployment failures are fatal and never retried: a failed rollout needs an
// operator to look at the revision, not another identical attempt.
func (p *Pipeline) deployService(ctx context.Context, mode Mode) (string, error) {
	spec := p.serviceSpec()

	var url string
	var err error
	switch mode {
	case ModeRepair:
		url, err = p.clients.CloudRun.UpdateService(ctx, p.cfg.ProjectID, spec)
	default:
		url, err = p.clients.CloudRun.DeployService(ctx, p.cfg.ProjectID, spec)
	}
	if err != nil {
		return "", apperrors.New(
			stageDeploy,
			apperrors.KindDeployFailed,
			fmt.Sprintf("deploy service %s (%s)", spec.Name, mode),
			err,
		)
	}

	slog.Info("service deployed", "service", spec.Name, "url", url, "mode", mode)
	return url, nil
}

// serviceSpec renders the fixed service topology from the configuration.
func (p *Pipeline) serviceSpec() ServiceSpec {
	return ServiceSpec{
		Name:  p.cfg.ServiceName,
		Image: p.cfg.Image,
		EnvVars: map[string]string{
			"GOOGLE_CLOUD_PROJECT":      p.cfg.ProjectID,
			"GOOGLE_CLOUD_LOCATION":     p.cfg.Region,
			"GOOGLE_GENAI_USE_VERTEXAI": "TRUE",
			"AGENT_DIR":                 "./" + AgentDirRelPath,
		},
		CPU:            p.cfg.CPU,
		Memory:         p.cfg.Memory,
		TimeoutSeconds: p.cfg.TimeoutSeconds,
		MaxInstances:   p.cfg.MaxInstances,
	}
}
