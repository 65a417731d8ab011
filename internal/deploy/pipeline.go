// Package deploy orchestrates the deployment and permission-repair pipeline
// for the Bringo Chef agent: validate preconditions, provision API and IAM
// access, push the Cloud Run service, wait for permission propagation, and
// verify the deployed service end to end.
//
// Control flow is strictly forward. Fatal stage failures abort the run with
// no rollback; advisory failures are collected into the run summary.
package deploy

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bringochef/chefctl/internal/config"
	apperrors "github.com/bringochef/chefctl/internal/errors"
	"github.com/bringochef/chefctl/internal/output"
)

// Pipeline runs the deployment stages against a set of cloud clients.
type Pipeline struct {
	cfg     *config.Config
	clients *Clients
	prober  *Prober
	sleep   SleepFunc
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithSleep replaces the propagation-wait sleep, for tests.
func WithSleep(fn SleepFunc) Option {
	return func(p *Pipeline) { p.sleep = fn }
}

// WithProber replaces the verification prober.
func WithProber(pr *Prober) Option {
	return func(p *Pipeline) { p.prober = pr }
}

// New builds a Pipeline over the given configuration and clients.
func New(cfg *config.Config, clients *Clients, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		clients: clients,
		prober:  NewProber(http.DefaultClient, cfg.ProbeTimeout, cfg.AppName),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunSummary is the outcome of a pipeline run.
type RunSummary struct {
	Mode            string   `yaml:"mode"`
	ServiceURL      string   `yaml:"service_url"`
	APIsEnabled     int      `yaml:"apis_enabled"`
	RolesGranted    int      `yaml:"roles_granted"`
	ServiceIdentity string   `yaml:"service_identity,omitempty"`
	Health          string   `yaml:"health"`
	Functional      string   `yaml:"functional"`
	Warnings        []string `yaml:"warnings,omitempty"`
	Duration        string   `yaml:"duration"`
}

// Run executes the pipeline in the given mode and returns the run summary.
// A non-nil error is always fatal; advisory findings land in the summary's
// warnings instead.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{Mode: string(mode)}

	totalSteps := 4
	step := 0
	if mode == ModeRelease {
		totalSteps = 5
		step++
		output.Step(step, totalSteps, "Validating preconditions")
		if _, err := ValidatePreconditions(p.cfg.SourceDir); err != nil {
			output.StepError(step, totalSteps, err.Error())
			return nil, err
		}
		output.StepSuccess(step, totalSteps, "Agent sources staged")
	}

	step++
	output.Step(step, totalSteps, "Provisioning API and IAM access")
	provision, err := p.provisionAccess(ctx)
	if err != nil {
		output.StepError(step, totalSteps, err.Error())
		return nil, err
	}
	summary.APIsEnabled = provision.APIsEnabled
	summary.RolesGranted = provision.RolesGranted
	summary.ServiceIdentity = provision.ServiceIdentity
	summary.Warnings = append(summary.Warnings, provision.BindingWarnings...)
	output.StepSuccess(step, totalSteps, fmt.Sprintf(
		"%d APIs enabled, %d roles granted", provision.APIsEnabled, provision.RolesGranted))

	step++
	output.Step(step, totalSteps, fmt.Sprintf("Deploying service %s", p.cfg.ServiceName))
	url, err := p.deployService(ctx, mode)
	if err != nil {
		output.StepError(step, totalSteps, err.Error())
		return nil, err
	}
	summary.ServiceURL = url
	output.StepSuccess(step, totalSteps, fmt.Sprintf("Service available at %s", url))

	step++
	output.Step(step, totalSteps, "Waiting for permission propagation")
	if err := p.waitForPropagation(ctx, url); err != nil {
		output.StepError(step, totalSteps, err.Error())
		return nil, err
	}
	output.StepSuccess(step, totalSteps, "Propagation wait complete")

	step++
	output.Step(step, totalSteps, "Verifying deployed service")
	verify := p.verifyService(ctx, url)
	summary.Health = string(verify.Health)
	summary.Functional = string(verify.Functional)
	if verify.Ambiguous() {
		ambErr := apperrors.New(
			stageVerify,
			apperrors.KindVerificationAmbiguous,
			fmt.Sprintf("health=%s functional=%s", verify.Health, verify.Functional),
			nil,
		)
		summary.Warnings = append(summary.Warnings, ambErr.Error())
		output.Warningf("Verification inconclusive: health=%s functional=%s",
			verify.Health, verify.Functional)
	} else {
		output.StepSuccess(step, totalSteps, fmt.Sprintf(
			"health=%s functional=%s", verify.Health, verify.Functional))
	}

	summary.Duration = time.Since(start).Round(time.Second).String()
	p.narrate(summary)
	return summary, nil
}

// Verify runs the verification probes against the already-deployed service
// without changing any cloud state.
func (p *Pipeline) Verify(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{Mode: "verify"}

	exists, url, err := p.clients.CloudRun.GetService(ctx, p.cfg.ProjectID, p.cfg.ServiceName)
	if err != nil {
		return nil, apperrors.New(
			stageVerify,
			apperrors.KindDeployFailed,
			fmt.Sprintf("describe service %s", p.cfg.ServiceName),
			err,
		)
	}
	if !exists {
		return nil, apperrors.New(
			stageVerify,
			apperrors.KindPreconditionMissing,
			fmt.Sprintf("service %s not found in project %s", p.cfg.ServiceName, p.cfg.ProjectID),
			nil,
		)
	}
	summary.ServiceURL = url

	verify := p.verifyService(ctx, url)
	summary.Health = string(verify.Health)
	summary.Functional = string(verify.Functional)
	if verify.Ambiguous() {
		ambErr := apperrors.New(
			stageVerify,
			apperrors.KindVerificationAmbiguous,
			fmt.Sprintf("health=%s functional=%s", verify.Health, verify.Functional),
			nil,
		)
		summary.Warnings = append(summary.Warnings, ambErr.Error())
	}

	summary.Duration = time.Since(start).Round(time.Second).String()
	p.narrate(summary)
	return summary, nil
}

// narrate prints the human summary to stderr and the machine summary to
// stdout.
func (p *Pipeline) narrate(s *RunSummary) {
	output.Blank()
	output.Header("Run summary")
	output.KeyValue("Mode", s.Mode)
	output.KeyValue("Service URL", s.ServiceURL)
	if s.ServiceIdentity != "" {
		output.KeyValue("Service identity", s.ServiceIdentity)
	}
	output.KeyValue("APIs enabled", strconv.Itoa(s.APIsEnabled))
	output.KeyValue("Roles granted", strconv.Itoa(s.RolesGranted))
	output.KeyValue("Health probe", s.Health)
	output.KeyValue("Functional probe", s.Functional)
	for _, w := range s.Warnings {
		output.Warningf("%s", w)
	}
	output.Blank()

	output.Summary("mode", s.Mode)
	output.Summary("service_url", s.ServiceURL)
	output.Summary("apis_enabled", strconv.Itoa(s.APIsEnabled))
	output.Summary("roles_granted", strconv.Itoa(s.RolesGranted))
	output.Summary("health", s.Health)
	output.Summary("functional", s.Functional)
	output.Summary("warnings", strconv.Itoa(len(s.Warnings)))
}

// WriteSummaryFile writes the run summary as YAML.
func WriteSummaryFile(path string, s *RunSummary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}
	return nil
}
