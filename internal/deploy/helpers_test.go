package deploy

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/bringochef/chefctl/internal/config"
	"github.com/bringochef/chefctl/internal/output"
)

func testConfig() *config.Config {
	return &config.Config{
		ProjectID:      "test-project",
		Region:         "us-central1",
		ServiceName:    "bringo-chef-ai",
		Image:          "gcr.io/test-project/bringo-chef-ai:latest",
		AppName:        "bringo_chef_ai_assistant",
		CPU:            "2",
		Memory:         "2Gi",
		TimeoutSeconds: 300,
		MaxInstances:   10,
		RequiredAPIs: []string{
			"aiplatform.googleapis.com",
			"run.googleapis.com",
			"iam.googleapis.com",
		},
		PredefinedRoles: []string{
			"roles/aiplatform.user",
			"roles/logging.logWriter",
		},
		CustomRole: config.CustomRole{
			ID:          "vertexAgentInvoker",
			Title:       "Vertex Agent Invoker",
			Permissions: []string{"aiplatform.endpoints.predict"},
		},
		Retry: config.RetryPolicy{
			MaxAttempts:   3,
			BaseDelay:     10 * time.Millisecond,
			BackoffFactor: 2.0,
		},
		ProbeTimeout: time.Second,
		SourceDir:    ".",
	}
}

// silenceOutput redirects narration into buffers for the duration of a test.
func silenceOutput(t *testing.T) (stdout, stderr *bytes.Buffer) {
	t.Helper()

	stdout = &bytes.Buffer{}
	stderr = &bytes.Buffer{}

	origStdout, origStderr := output.Stdout, output.Stderr
	origNoColor := color.NoColor
	output.Stdout, output.Stderr = stdout, stderr
	color.NoColor = true

	t.Cleanup(func() {
		output.Stdout, output.Stderr = origStdout, origStderr
		color.NoColor = origNoColor
	})
	return stdout, stderr
}

// noSleep is an instant SleepFunc for tests.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
