package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	prevColor := color.NoColor
	color.NoColor = true

	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	prevStdout, prevStderr := Stdout, Stderr
	Stdout, Stderr = outBuf, errBuf

	t.Cleanup(func() {
		Stdout, Stderr = prevStdout, prevStderr
		color.NoColor = prevColor
	})

	return outBuf, errBuf
}

func TestNarrationGoesToStderr(t *testing.T) {
	outBuf, errBuf := captureOutput(t)

	Infof("enabling %d APIs", 6)
	Successf("done")
	Warningf("binding skipped")
	Errorf("deploy failed")

	assert.Empty(t, outBuf.String())
	assert.Contains(t, errBuf.String(), "→ enabling 6 APIs")
	assert.Contains(t, errBuf.String(), "✓ done")
	assert.Contains(t, errBuf.String(), "⚠ binding skipped")
	assert.Contains(t, errBuf.String(), "✗ deploy failed")
}

func TestStepFormatting(t *testing.T) {
	_, errBuf := captureOutput(t)

	Step(2, 5, "Provisioning access")
	StepSuccess(2, 5, "Access provisioned")
	StepError(3, 5, "Deploy failed")

	assert.Contains(t, errBuf.String(), "[2/5] Provisioning access")
	assert.Contains(t, errBuf.String(), "[2/5] ✓ Access provisioned")
	assert.Contains(t, errBuf.String(), "[3/5] ✗ Deploy failed")
}

func TestSummaryGoesToStdout(t *testing.T) {
	outBuf, errBuf := captureOutput(t)

	Summary("health_probe", "healthy")
	Summary("apis_enabled", "6")

	assert.Equal(t, "health_probe=healthy\napis_enabled=6\n", outBuf.String())
	assert.Empty(t, errBuf.String())
}

func TestKeyValue(t *testing.T) {
	_, errBuf := captureOutput(t)

	KeyValue("Service", "bringo-chef-ai")

	assert.Contains(t, errBuf.String(), "  Service: bringo-chef-ai")
}
