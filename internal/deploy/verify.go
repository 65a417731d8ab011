package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const stageVerify = "verify"

// ProbeResult classifies a single verification probe.
type ProbeResult string

const (
	ResultHealthy          ProbeResult = "healthy"
	ResultPermissionDenied ProbeResult = "permission_denied"
	ResultUnknown          ProbeResult = "unknown"
)

// Classify maps a probe's response text to a ProbeResult. The healthy marker
// wins over everything else; explicit permission markers come next; anything
// the probe cannot read (timeouts, malformed bodies, empty responses) is
// unknown rather than failed.
func Classify(response string) ProbeResult {
	switch {
	case strings.Contains(response, "healthy"):
		return ResultHealthy
	case strings.Contains(response, "403"),
		strings.Contains(response, "PERMISSION_DENIED"):
		return ResultPermissionDenied
	default:
		return ResultUnknown
	}
}

// Prober issues the two verification probes against a deployed service.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	appName string
}

// NewProber builds a prober with independent per-probe timeouts.
func NewProber(client *http.Client, timeout time.Duration, appName string) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{client: client, timeout: timeout, appName: appName}
}

// Health probes GET {url}/health.
func (pr *Prober) Health(ctx context.Context, baseURL string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, pr.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return ResultUnknown
	}
	return pr.do(req)
}

type messagePart struct {
	Text string `json:"text"`
}

type agentMessage struct {
	Role  string        `json:"role"`
	Parts []messagePart `json:"parts"`
}

type runRequest struct {
	AppName    string       `json:"app_name"`
	UserID     string       `json:"user_id"`
	SessionID  string       `json:"session_id"`
	NewMessage agentMessage `json:"new_message"`
	Streaming  bool         `json:"streaming"`
}

// Functional probes POST {url}/run_sse with a minimal conversation turn,
// exercising the model call path end to end.
func (pr *Prober) Functional(ctx context.Context, baseURL string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, pr.timeout)
	defer cancel()

	payload := runRequest{
		AppName:   pr.appName,
		UserID:    "verify",
		SessionID: fmt.Sprintf("verify-%d", time.Now().Unix()),
		NewMessage: agentMessage{
			Role:  "user",
			Parts: []messagePart{{Text: "Hello!"}},
		},
		Streaming: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ResultUnknown
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, baseURL+"/run_sse", bytes.NewReader(body))
	if err != nil {
		return ResultUnknown
	}
	req.Header.Set("Content-Type", "application/json")
	return pr.do(req)
}

// do executes the probe and classifies the response. The status code is
// folded into the classified text so HTTP 403 without a readable body still
// reads as a permission failure.
func (pr *Prober) do(req *http.Request) ProbeResult {
	resp, err := pr.client.Do(req)
	if err != nil {
		slog.Debug("probe request failed", "url", req.URL.String(), "error", err)
		return ResultUnknown
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ResultUnknown
	}

	return Classify(strconv.Itoa(resp.StatusCode) + " " + string(body))
}

// VerifyResult carries both probe classifications.
type VerifyResult struct {
	Health     ProbeResult
	Functional ProbeResult
}

// Ambiguous reports whether either probe could not reach a definite verdict.
func (r VerifyResult) Ambiguous() bool {
	return r.Health == ResultUnknown || r.Functional == ResultUnknown
}

// verifyService runs both probes against the service. The probes are
// observational: an ambiguous outcome is a warning, never a run failure.
func (p *Pipeline) verifyService(ctx context.Context, serviceURL string) VerifyResult {
	result := VerifyResult{
		Health:     p.prober.Health(ctx, serviceURL),
		Functional: p.prober.Functional(ctx, serviceURL),
	}
	slog.Info("verification complete",
		"health", result.Health, "functional", result.Functional)
	return result
}
