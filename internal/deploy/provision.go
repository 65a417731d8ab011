package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/bringochef/chefctl/internal/errors"
)

const stageProvision = "provision"

// enableWorkers bounds the concurrent API enablement calls; Service Usage
// rate-limits aggressive parallelism.
const enableWorkers = 3

// ProvisionResult reports what the access provisioner applied.
type ProvisionResult struct {
	APIsEnabled     int
	RolesGranted    int
	ServiceIdentity string
	// BindingWarnings holds per-binding failures; bindings are best-effort
	// and never block deployment.
	BindingWarnings []string
}

// provisionAccess enables the required APIs, then grants the role bindings
// the agent's runtime identity needs. API enablement failures are fatal;
// binding failures are recorded as warnings.
func (p *Pipeline) provisionAccess(ctx context.Context) (*ProvisionResult, error) {
	result := &ProvisionResult{}

	if err := p.enableAPIs(ctx); err != nil {
		return nil, err
	}
	result.APIsEnabled = len(p.cfg.RequiredAPIs)

	member, err := p.serviceIdentity(ctx)
	if err != nil {
		// Without the identity no binding can be expressed, but the
		// service may already hold every role from a previous run.
		slog.Warn("could not resolve service identity, skipping role grants", "error", err)
		result.BindingWarnings = append(result.BindingWarnings, err.Error())
		return result, nil
	}
	result.ServiceIdentity = member

	granted, warnings := p.grantPredefinedRoles(ctx, member)
	result.RolesGranted += granted
	result.BindingWarnings = append(result.BindingWarnings, warnings...)

	if err := p.upsertCustomRole(ctx); err != nil {
		return nil, err
	}

	customRole := fmt.Sprintf("projects/%s/roles/%s", p.cfg.ProjectID, p.cfg.CustomRole.ID)
	if err := p.clients.IAM.AddBinding(ctx, p.cfg.ProjectID, member, customRole); err != nil {
		bindErr := apperrors.New(
			stageProvision,
			apperrors.KindRoleBindingFailed,
			fmt.Sprintf("grant %s to %s", customRole, member),
			err,
		)
		slog.Warn("custom role binding failed", "role", customRole, "error", err)
		result.BindingWarnings = append(result.BindingWarnings, bindErr.Error())
	} else {
		result.RolesGranted++
	}

	return result, nil
}

// enableAPIs enables every required API through a bounded worker pool.
// The first failure cancels the remaining enables.
func (p *Pipeline) enableAPIs(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(enableWorkers)

	for _, api := range p.cfg.RequiredAPIs {
		g.Go(func() error {
			slog.Debug("enabling api", "api", api, "project", p.cfg.ProjectID)
			if err := p.clients.ServiceUsage.EnableService(ctx, p.cfg.ProjectID, api); err != nil {
				return apperrors.New(
					stageProvision,
					apperrors.KindAPIEnableFailed,
					fmt.Sprintf("enable %s", api),
					err,
				)
			}
			return nil
		})
	}

	return g.Wait()
}

// serviceIdentity resolves the default compute identity the service runs as.
func (p *Pipeline) serviceIdentity(ctx context.Context) (string, error) {
	number, err := p.clients.Projects.ProjectNumber(ctx, p.cfg.ProjectID)
	if err != nil {
		return "", apperrors.New(
			stageProvision,
			apperrors.KindRoleBindingFailed,
			fmt.Sprintf("resolve project number for %s", p.cfg.ProjectID),
			err,
		)
	}
	return fmt.Sprintf("serviceAccount:%s-compute@developer.gserviceaccount.com", number), nil
}

// grantPredefinedRoles applies each predefined binding independently; one
// failed grant never blocks the rest.
func (p *Pipeline) grantPredefinedRoles(ctx context.Context, member string) (int, []string) {
	var granted int
	var warnings []string

	for _, role := range p.cfg.PredefinedRoles {
		if err := p.clients.IAM.AddBinding(ctx, p.cfg.ProjectID, member, role); err != nil {
			bindErr := apperrors.New(
				stageProvision,
				apperrors.KindRoleBindingFailed,
				fmt.Sprintf("grant %s to %s", role, member),
				err,
			)
			slog.Warn("role binding failed", "role", role, "error", err)
			warnings = append(warnings, bindErr.Error())
			continue
		}
		granted++
	}

	return granted, warnings
}

func (p *Pipeline) upsertCustomRole(ctx context.Context) error {
	role := p.cfg.CustomRole
	err := p.clients.Roles.UpsertRole(ctx, p.cfg.ProjectID, role.ID, role.Title, role.Permissions)
	if err != nil {
		return apperrors.New(
			stageProvision,
			apperrors.KindCustomRoleFailed,
			fmt.Sprintf("upsert custom role %s", role.ID),
			err,
		)
	}
	return nil
}
