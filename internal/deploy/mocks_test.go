package deploy

import (
	"context"
	"sync"
)

type mockServiceUsage struct {
	mu          sync.Mutex
	enableFunc  func(ctx context.Context, projectID, service string) error
	enableCalls []string
}

func (m *mockServiceUsage) EnableService(ctx context.Context, projectID, service string) error {
	m.mu.Lock()
	m.enableCalls = append(m.enableCalls, service)
	m.mu.Unlock()
	if m.enableFunc != nil {
		return m.enableFunc(ctx, projectID, service)
	}
	return nil
}

func (m *mockServiceUsage) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enableCalls)
}

type mockIAM struct {
	addBindingFunc  func(ctx context.Context, projectID, member, role string) error
	addBindingCalls []string
}

func (m *mockIAM) AddBinding(ctx context.Context, projectID, member, role string) error {
	m.addBindingCalls = append(m.addBindingCalls, role)
	if m.addBindingFunc != nil {
		return m.addBindingFunc(ctx, projectID, member, role)
	}
	return nil
}

type mockRoles struct {
	upsertFunc  func(ctx context.Context, projectID, roleID, title string, permissions []string) error
	upsertCalls int
}

func (m *mockRoles) UpsertRole(
	ctx context.Context,
	projectID, roleID, title string,
	permissions []string,
) error {
	m.upsertCalls++
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, projectID, roleID, title, permissions)
	}
	return nil
}

type mockCloudRun struct {
	deployFunc  func(ctx context.Context, projectID string, spec ServiceSpec) (string, error)
	updateFunc  func(ctx context.Context, projectID string, spec ServiceSpec) (string, error)
	getFunc     func(ctx context.Context, projectID, serviceName string) (bool, string, error)
	deployCalls int
	updateCalls int
	lastSpec    ServiceSpec
	url         string
}

func (m *mockCloudRun) DeployService(
	ctx context.Context,
	projectID string,
	spec ServiceSpec,
) (string, error) {
	m.deployCalls++
	m.lastSpec = spec
	if m.deployFunc != nil {
		return m.deployFunc(ctx, projectID, spec)
	}
	return m.url, nil
}

func (m *mockCloudRun) UpdateService(
	ctx context.Context,
	projectID string,
	spec ServiceSpec,
) (string, error) {
	m.updateCalls++
	m.lastSpec = spec
	if m.updateFunc != nil {
		return m.updateFunc(ctx, projectID, spec)
	}
	return m.url, nil
}

func (m *mockCloudRun) GetService(
	ctx context.Context,
	projectID, serviceName string,
) (bool, string, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, projectID, serviceName)
	}
	return true, m.url, nil
}

type mockProjects struct {
	projectNumberFunc  func(ctx context.Context, projectID string) (string, error)
	projectNumberCalls int
}

func (m *mockProjects) ProjectNumber(ctx context.Context, projectID string) (string, error) {
	m.projectNumberCalls++
	if m.projectNumberFunc != nil {
		return m.projectNumberFunc(ctx, projectID)
	}
	return "123456789", nil
}

type mockClientSet struct {
	serviceUsage *mockServiceUsage
	iam          *mockIAM
	roles        *mockRoles
	cloudRun     *mockCloudRun
	projects     *mockProjects
	clients      *Clients
}

func newMockClients(serviceURL string) *mockClientSet {
	set := &mockClientSet{
		serviceUsage: &mockServiceUsage{},
		iam:          &mockIAM{},
		roles:        &mockRoles{},
		cloudRun:     &mockCloudRun{url: serviceURL},
		projects:     &mockProjects{},
	}
	set.clients = &Clients{
		ServiceUsage: set.serviceUsage,
		IAM:          set.iam,
		Roles:        set.roles,
		CloudRun:     set.cloudRun,
		Projects:     set.projects,
	}
	return set
}

func (s *mockClientSet) cloudCalls() int {
	return s.serviceUsage.calls() +
		len(s.iam.addBindingCalls) +
		s.roles.upsertCalls +
		s.cloudRun.deployCalls +
		s.cloudRun.updateCalls +
		s.projects.projectNumberCalls
}
