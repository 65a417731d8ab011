package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bringochef/chefctl/internal/errors"
)

func TestProvisionAccessSuccess(t *testing.T) {
	silenceOutput(t)
	set := newMockClients("https://svc.example.run.app")
	p := New(testConfig(), set.clients, WithSleep(noSleep))

	result, err := p.provisionAccess(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.APIsEnabled)
	// Two predefined roles plus the custom role binding.
	assert.Equal(t, 3, result.RolesGranted)
	assert.Equal(t,
		"serviceAccount:123456789-compute@developer.gserviceaccount.com",
		result.ServiceIdentity)
	assert.Empty(t, result.BindingWarnings)
	assert.Equal(t, 1, set.roles.upsertCalls)
	assert.Contains(t, set.iam.addBindingCalls, "projects/test-project/roles/vertexAgentInvoker")
}

func TestProvisionAccessAPIEnableFailureIsFatal(t *testing.T) {
	silenceOutput(t)
	set := newMockClients("")
	set.serviceUsage.enableFunc = func(_ context.Context, _, service string) error {
		if service == "run.googleapis.com" {
			return errors.New("quota exceeded")
		}
		return nil
	}
	p := New(testConfig(), set.clients, WithSleep(noSleep))

	_, err := p.provisionAccess(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAPIEnableFailed, apperrors.GetKind(err))
	assert.True(t, apperrors.IsFatal(err))
	// No IAM mutation may happen once enablement has failed.
	assert.Empty(t, set.iam.addBindingCalls)
	assert.Zero(t, set.roles.upsertCalls)
}

func TestProvisionAccessBindingFailureIsAdvisory(t *testing.T) {
	silenceOutput(t)
	set := newMockClients("")
	set.iam.addBindingFunc = func(_ context.Context, _, _, role string) error {
		if role == "roles/aiplatform.user" {
			return errors.New("policy modification denied")
		}
		return nil
	}
	p := New(testConfig(), set.clients, WithSleep(noSleep))

	result, err := p.provisionAccess(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.RolesGranted)
	require.Len(t, result.BindingWarnings, 1)
	assert.Contains(t, result.BindingWarnings[0], "roles/aiplatform.user")
	// Every remaining binding is still attempted.
	assert.Len(t, set.iam.addBindingCalls, 3)
}

func TestProvisionAccessIdentityFailureSkipsGrants(t *testing.T) {
	silenceOutput(t)
	set := newMockClients("")
	set.projects.projectNumberFunc = func(_ context.Context, _ string) (string, error) {
		return "", errors.New("resourcemanager unavailable")
	}
	p := New(testConfig(), set.clients, WithSleep(noSleep))

	result, err := p.provisionAccess(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.APIsEnabled)
	assert.Zero(t, result.RolesGranted)
	assert.Empty(t, set.iam.addBindingCalls)
	require.Len(t, result.BindingWarnings, 1)
	assert.Contains(t, result.BindingWarnings[0], "resolve project number")
}

func TestProvisionAccessCustomRoleFailureIsFatal(t *testing.T) {
	silenceOutput(t)
	set := newMockClients("")
	set.roles.upsertFunc = func(_ context.Context, _, _, _ string, _ []string) error {
		return errors.New("iam internal error")
	}
	p := New(testConfig(), set.clients, WithSleep(noSleep))

	_, err := p.provisionAccess(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCustomRoleFailed, apperrors.GetKind(err))
	assert.True(t, apperrors.IsFatal(err))
}

func TestProvisionAccessUpsertIdempotent(t *testing.T) {
	silenceOutput(t)
	set := newMockClients("")
	p := New(testConfig(), set.clients, WithSleep(noSleep))

	ctx := context.Background()
	_, err := p.provisionAccess(ctx)
	require.NoError(t, err)
	result, err := p.provisionAccess(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, set.roles.upsertCalls)
	assert.Empty(t, result.BindingWarnings)
}
