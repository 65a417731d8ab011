package deploy

import "context"

// ServiceUsageClient enables project APIs.
type ServiceUsageClient interface {
	// EnableService enables a single API on the project and blocks until
	// the enablement operation completes.
	EnableService(ctx context.Context, projectID, service string) error
}

// IAMPolicyClient grants project-level role bindings.
type IAMPolicyClient interface {
	// AddBinding grants role to member on the project. Granting a role the
	// member already holds is a no-op.
	AddBinding(ctx context.Context, projectID, member, role string) error
}

// RolesClient manages project-level custom roles.
type RolesClient interface {
	// UpsertRole creates the custom role, or updates its title and
	// permissions if it already exists.
	UpsertRole(ctx context.Context, projectID, roleID, title string, permissions []string) error
}

// ServiceSpec describes the Cloud Run service to deploy.
type ServiceSpec struct {
	Name           string
	Image          string
	EnvVars        map[string]string
	CPU            string
	Memory         string
	TimeoutSeconds int
	MaxInstances   int
}

// CloudRunClient deploys and inspects Cloud Run services.
type CloudRunClient interface {
	// DeployService creates the service, or replaces its template when the
	// service already exists. Returns the service URL.
	DeployService(ctx context.Context, projectID string, spec ServiceSpec) (string, error)
	// UpdateService replaces only the revision template of an existing
	// service, forcing a new revision without touching routing or IAM.
	UpdateService(ctx context.Context, projectID string, spec ServiceSpec) (string, error)
	// GetService reports whether the service exists and its URL.
	GetService(ctx context.Context, projectID, serviceName string) (exists bool, url string, err error)
}

// ProjectsClient resolves project metadata.
type ProjectsClient interface {
	// ProjectNumber returns the numeric identifier of the project.
	ProjectNumber(ctx context.Context, projectID string) (string, error)
}

// Clients bundles the cloud control-plane dependencies of the pipeline.
type Clients struct {
	ServiceUsage ServiceUsageClient
	IAM          IAMPolicyClient
	Roles        RolesClient
	CloudRun     CloudRunClient
	Projects     ProjectsClient
}
