// Package gcp provides concrete Google Cloud implementations of the
// control-plane clients used by the deployment pipeline.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	resourcemanager "cloud.google.com/go/resourcemanager/apiv3"
	"cloud.google.com/go/resourcemanager/apiv3/resourcemanagerpb"
	"google.golang.org/api/cloudresourcemanager/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iam/v1"
	"google.golang.org/api/run/v2"
	"google.golang.org/api/serviceusage/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bringochef/chefctl/internal/deploy"
)

// NewClients builds concrete service clients backed by Google Cloud APIs,
// using Application Default Credentials.
func NewClients(ctx context.Context, region string) (*deploy.Clients, error) {
	serviceUsageSvc, err := serviceusage.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("create service usage service: %w", err)
	}

	rmSvc, err := cloudresourcemanager.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("create resource manager service: %w", err)
	}

	iamSvc, err := iam.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("create iam service: %w", err)
	}

	runSvc, err := run.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("create run service: %w", err)
	}

	projectsClient, err := resourcemanager.NewProjectsClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create projects client: %w", err)
	}

	return &deploy.Clients{
		ServiceUsage: &defaultServiceUsageClient{service: serviceUsageSvc},
		IAM:          &defaultIAMClient{resourceManager: rmSvc},
		Roles:        &defaultRolesClient{service: iamSvc},
		CloudRun: &defaultCloudRunClient{
			service: runSvc,
			region:  region,
		},
		Projects: &defaultProjectsClient{client: projectsClient},
	}, nil
}

type defaultServiceUsageClient struct {
	service *serviceusage.Service
}

func (c *defaultServiceUsageClient) EnableService(ctx context.Context, projectID, service string) error {
	ctx, cancel := context.WithTimeout(ctx, ServiceUsageOperationTimeout)
	defer cancel()

	name := fmt.Sprintf("projects/%s/services/%s", projectID, service)
	op, err := c.service.Services.Enable(name, &serviceusage.EnableServiceRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return wrapError("enable service", err)
	}

	if op.Done {
		if op.Error != nil {
			return fmt.Errorf("enable service: %s", op.Error.Message)
		}
		return nil
	}

	return wrapError("wait for service enablement", c.waitForOperation(ctx, op.Name))
}

func (c *defaultServiceUsageClient) waitForOperation(ctx context.Context, name string) error {
	for {
		op, err := c.service.Operations.Get(name).Context(ctx).Do()
		if err != nil {
			return wrapError("poll service usage operation", err)
		}
		if op.Done {
			if op.Error != nil {
				return fmt.Errorf("operation error: %s", op.Error.Message)
			}
			return nil
		}
		time.Sleep(ResourcePollInterval)
	}
}

type defaultIAMClient struct {
	resourceManager *cloudresourcemanager.Service
}

func (c *defaultIAMClient) AddBinding(ctx context.Context, projectID, member, role string) error {
	ctx, cancel := context.WithTimeout(ctx, IAMBindingTimeout)
	defer cancel()

	resource := "projects/" + projectID
	policy, err := c.resourceManager.Projects.GetIamPolicy(resource, &cloudresourcemanager.GetIamPolicyRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return wrapError("get project iam policy", err)
	}

	if bindingExists(policy.Bindings, role, member) {
		return nil
	}
	policy.Bindings = append(policy.Bindings, &cloudresourcemanager.Binding{
		Role:    role,
		Members: []string{member},
	})

	_, err = c.resourceManager.Projects.SetIamPolicy(
		resource,
		&cloudresourcemanager.SetIamPolicyRequest{Policy: policy},
	).Context(ctx).Do()
	return wrapError("set project iam policy", err)
}

type defaultRolesClient struct {
	service *iam.Service
}

func (c *defaultRolesClient) UpsertRole(
	ctx context.Context,
	projectID, roleID, title string,
	permissions []string,
) error {
	ctx, cancel := context.WithTimeout(ctx, RoleOperationTimeout)
	defer cancel()

	parent := "projects/" + projectID
	req := &iam.CreateRoleRequest{
		RoleId: roleID,
		Role: &iam.Role{
			Title:               title,
			IncludedPermissions: permissions,
			Stage:               "GA",
		},
	}

	_, err := c.service.Projects.Roles.Create(parent, req).Context(ctx).Do()
	if err == nil {
		return nil
	}
	if !isAlreadyExists(err) {
		return wrapError("create custom role", err)
	}

	// The role exists from a previous run; reconcile its definition instead.
	name := fmt.Sprintf("projects/%s/roles/%s", projectID, roleID)
	_, err = c.service.Projects.Roles.Patch(name, &iam.Role{
		Title:               title,
		IncludedPermissions: permissions,
	}).UpdateMask("title,includedPermissions").Context(ctx).Do()
	return wrapError("update custom role", err)
}

type defaultCloudRunClient struct {
	service *run.Service
	region  string
}

func (c *defaultCloudRunClient) serviceName(projectID, service string) string {
	return fmt.Sprintf("projects/%s/locations/%s/services/%s", projectID, c.region, service)
}

func (c *defaultCloudRunClient) parent(projectID string) string {
	return fmt.Sprintf("projects/%s/locations/%s", projectID, c.region)
}

func (c *defaultCloudRunClient) DeployService(
	ctx context.Context,
	projectID string,
	spec deploy.ServiceSpec,
) (string, error) {
	runService := &run.GoogleCloudRunV2Service{
		Name:     c.serviceName(projectID, spec.Name),
		Template: c.toRunTemplate(spec),
	}

	op, err := c.service.Projects.Locations.Services.Create(c.parent(projectID), runService).
		ServiceId(spec.Name).
		Context(ctx).
		Do()
	if isAlreadyExists(err) {
		return c.UpdateService(ctx, projectID, spec)
	}
	if err != nil {
		return "", wrapError("create cloud run service", err)
	}

	if waitErr := c.waitForRunOperation(ctx, op.Name); waitErr != nil {
		return "", wrapError("wait for cloud run creation", waitErr)
	}

	created, err := c.service.Projects.Locations.Services.Get(c.serviceName(projectID, spec.Name)).
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapError("get cloud run service uri", err)
	}
	return created.Uri, nil
}

func (c *defaultCloudRunClient) UpdateService(
	ctx context.Context,
	projectID string,
	spec deploy.ServiceSpec,
) (string, error) {
	servicePath := c.serviceName(projectID, spec.Name)

	svc, err := c.service.Projects.Locations.Services.Get(servicePath).Context(ctx).Do()
	if err != nil {
		return "", wrapError("get cloud run service", err)
	}

	svc.Template = c.toRunTemplate(spec)

	op, err := c.service.Projects.Locations.Services.Patch(servicePath, svc).
		UpdateMask("template").
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapError("update cloud run service", err)
	}

	if waitErr := c.waitForRunOperation(ctx, op.Name); waitErr != nil {
		return "", wrapError("wait for cloud run update", waitErr)
	}

	updated, err := c.service.Projects.Locations.Services.Get(servicePath).Context(ctx).Do()
	if err != nil {
		return "", wrapError("get cloud run service uri", err)
	}
	return updated.Uri, nil
}

func (c *defaultCloudRunClient) GetService(
	ctx context.Context,
	projectID, serviceName string,
) (bool, string, error) {
	svc, err := c.service.Projects.Locations.Services.Get(c.serviceName(projectID, serviceName)).
		Context(ctx).
		Do()
	if isNotFound(err) {
		return false, "", nil
	}
	if err != nil {
		return false, "", wrapError("get cloud run service", err)
	}
	return true, svc.Uri, nil
}

func (c *defaultCloudRunClient) toRunTemplate(spec deploy.ServiceSpec) *run.GoogleCloudRunV2RevisionTemplate {
	return &run.GoogleCloudRunV2RevisionTemplate{
		Containers: []*run.GoogleCloudRunV2Container{
			{
				Image: spec.Image,
				Env:   toRunEnvVars(spec.EnvVars),
				Resources: &run.GoogleCloudRunV2ResourceRequirements{
					Limits: map[string]string{
						"cpu":    spec.CPU,
						"memory": spec.Memory,
					},
				},
			},
		},
		Scaling: &run.GoogleCloudRunV2RevisionScaling{
			MaxInstanceCount: int64(spec.MaxInstances),
		},
		Timeout: fmt.Sprintf("%ds", spec.TimeoutSeconds),
	}
}

func (c *defaultCloudRunClient) waitForRunOperation(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, CloudRunOperationTimeout)
	defer cancel()

	for {
		op, err := c.service.Projects.Locations.Operations.Get(name).Context(ctx).Do()
		if err != nil {
			return wrapError("poll cloud run operation", err)
		}
		if op.Done {
			if op.Error != nil {
				return fmt.Errorf("operation error: %s", op.Error.Message)
			}
			return nil
		}
		time.Sleep(ResourcePollInterval)
	}
}

type defaultProjectsClient struct {
	client *resourcemanager.ProjectsClient
}

func (c *defaultProjectsClient) ProjectNumber(ctx context.Context, projectID string) (string, error) {
	project, err := c.client.GetProject(ctx, &resourcemanagerpb.GetProjectRequest{
		Name: "projects/" + projectID,
	})
	if err != nil {
		return "", wrapError("get project", err)
	}
	// The resource name of a project is "projects/<number>".
	return strings.TrimPrefix(project.Name, "projects/"), nil
}

func toRunEnvVars(envVars map[string]string) []*run.GoogleCloudRunV2EnvVar {
	result := make([]*run.GoogleCloudRunV2EnvVar, 0, len(envVars))
	for k, v := range envVars {
		result = append(result, &run.GoogleCloudRunV2EnvVar{
			Name:  k,
			Value: v,
		})
	}
	return result
}

func wrapError(action string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", action, err)
}

func bindingExists(bindings []*cloudresourcemanager.Binding, role, member string) bool {
	for _, b := range bindings {
		if b.Role == role && slices.Contains(b.Members, member) {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.NotFound
	}
	return false
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusConflict
	}
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.AlreadyExists
	}
	return false
}
