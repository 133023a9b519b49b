package registry

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/steveyegge/lintrun/internal/types"
)

// versionPattern finds the first dotted version number in a --version banner.
var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?`)

// ToolStatus is the availability of one tool on this machine.
type ToolStatus struct {
	ToolID     string
	Path       string
	Version    string
	MinVersion string

	// Available is true when the binary was found and its version satisfies MinVersion
	Available bool
	Err       error
}

// ProbeVersion checks that a tool's binary is on PATH and, when the
// descriptor declares a minimum version, that the installed one satisfies it.
func ProbeVersion(ctx context.Context, desc *types.ToolDescriptor) ToolStatus {
	status := ToolStatus{ToolID: desc.ID, MinVersion: desc.MinVersion}

	path, err := exec.LookPath(desc.Invocation.Command)
	if err != nil {
		status.Err = &types.InvocationError{ToolID: desc.ID, Command: desc.Invocation.Command, Err: err}
		return status
	}
	status.Path = path

	if len(desc.VersionArgs) == 0 {
		status.Available = true
		return status
	}

	cmd := exec.CommandContext(ctx, path, desc.VersionArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		status.Err = fmt.Errorf("%s %s failed: %w", desc.Invocation.Command, strings.Join(desc.VersionArgs, " "), err)
		return status
	}
	status.Version = ExtractVersion(string(output))

	if desc.MinVersion == "" {
		status.Available = true
		return status
	}
	ok, err := SatisfiesMinimum(status.Version, desc.MinVersion)
	if err != nil {
		status.Err = err
		return status
	}
	if !ok {
		status.Err = fmt.Errorf("%s version %s is older than required %s", desc.ID, status.Version, desc.MinVersion)
		return status
	}
	status.Available = true
	return status
}

// ExtractVersion returns the first version number in output, or "".
func ExtractVersion(output string) string {
	return versionPattern.FindString(output)
}

// SatisfiesMinimum reports whether version >= minimum under semver rules.
// Versions may omit the leading "v" and the patch component.
func SatisfiesMinimum(version, minimum string) (bool, error) {
	v, m := canonical(version), canonical(minimum)
	if !semver.IsValid(v) {
		return false, fmt.Errorf("unrecognized version %q", version)
	}
	if !semver.IsValid(m) {
		return false, fmt.Errorf("unrecognized minimum version %q", minimum)
	}
	return semver.Compare(v, m) >= 0, nil
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
