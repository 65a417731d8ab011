package deploy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/bringochef/chefctl/internal/errors"
)

// Layout of the agent source tree relative to the working directory.
const (
	AgentDirRelPath   = "agents/bringo_chef_ai_assistant"
	ManifestRelPath   = "agents/requirements.txt"
	DockerfileRelPath = "Dockerfile"
)

const stagePreflight = "preflight"

// PreflightResult reports what the precondition validator staged.
type PreflightResult struct {
	// StagedFiles are the files copied into the agent directory for the
	// container build, in copy order.
	StagedFiles []string
}

// ValidatePreconditions checks that the agent source tree is complete and
// stages the dependency manifest next to the agent code. It runs before any
// cloud call; a missing required path aborts the run and names the path.
func ValidatePreconditions(sourceDir string) (*PreflightResult, error) {
	required := []string{AgentDirRelPath, ManifestRelPath}
	for _, rel := range required {
		path := filepath.Join(sourceDir, rel)
		if _, err := os.Stat(path); err != nil {
			return nil, apperrors.New(
				stagePreflight,
				apperrors.KindPreconditionMissing,
				fmt.Sprintf("required path %s not found", path),
				err,
			)
		}
	}

	result := &PreflightResult{}

	agentDir := filepath.Join(sourceDir, AgentDirRelPath)
	manifest := filepath.Join(sourceDir, ManifestRelPath)
	staged := filepath.Join(agentDir, filepath.Base(manifest))
	if err := copyFile(manifest, staged); err != nil {
		return nil, apperrors.New(
			stagePreflight,
			apperrors.KindPreconditionMissing,
			fmt.Sprintf("stage dependency manifest into %s", agentDir),
			err,
		)
	}
	result.StagedFiles = append(result.StagedFiles, staged)

	// The container build file is optional; the platform can build from
	// source without one.
	dockerfile := filepath.Join(sourceDir, DockerfileRelPath)
	if _, err := os.Stat(dockerfile); err == nil {
		staged := filepath.Join(agentDir, DockerfileRelPath)
		if err := copyFile(dockerfile, staged); err != nil {
			return nil, apperrors.New(
				stagePreflight,
				apperrors.KindPreconditionMissing,
				fmt.Sprintf("stage container build file into %s", agentDir),
				err,
			)
		}
		result.StagedFiles = append(result.StagedFiles, staged)
	}

	return result, nil
}

// copyFile overwrites dst with the contents of src. Re-running a deploy
// restages the same files, so overwriting keeps the operation idempotent.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
