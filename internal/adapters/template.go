package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/lintrun/internal/types"
)

// expandTemplate builds an invocation from the descriptor's template.
//
//   - an argument that is exactly {targets} becomes one argument per target
//   - an argument that is exactly {config} becomes the config flag and path,
//     or nothing when the tool runs on defaults
//   - {config} embedded in an argument is replaced by the config path; the
//     whole argument is dropped when there is no config
//   - {output} is left for the executor to bind
func expandTemplate(desc *types.ToolDescriptor, cfg types.EffectiveConfig, targets []string) (types.Invocation, error) {
	tmpl := desc.Invocation
	if tmpl.Command == "" {
		return types.Invocation{}, fmt.Errorf("tool %s: empty invocation command", desc.ID)
	}
	if len(targets) == 0 {
		return types.Invocation{}, fmt.Errorf("tool %s: no targets to analyze", desc.ID)
	}

	args := make([]string, 0, len(tmpl.Args)+len(targets))
	sawTargets := false
	for _, arg := range tmpl.Args {
		switch {
		case arg == types.PlaceholderTargets:
			args = append(args, targets...)
			sawTargets = true
		case strings.Contains(arg, types.PlaceholderTargets):
			return types.Invocation{}, fmt.Errorf("tool %s: %s must be a whole argument (got %q)",
				desc.ID, types.PlaceholderTargets, arg)
		case arg == types.PlaceholderConfig:
			args = append(args, configArgs(desc.ConfigFlag, cfg.Path)...)
		case strings.Contains(arg, types.PlaceholderConfig):
			if cfg.Path != "" {
				args = append(args, strings.ReplaceAll(arg, types.PlaceholderConfig, cfg.Path))
			}
		default:
			args = append(args, arg)
		}
	}
	if !sawTargets {
		// Tools that take targets last need no placeholder
		args = append(args, targets...)
	}

	inv := types.Invocation{
		Command: tmpl.Command,
		Args:    args,
		Env:     envList(tmpl.Env),
	}
	if tmpl.UsesOutputFile() {
		inv.OutputFile = types.PlaceholderOutput
	}
	return inv, nil
}

// configArgs renders the config flag. A flag ending in '=' is joined with
// the path into one argument.
func configArgs(flag, path string) []string {
	if path == "" || flag == "" {
		return nil
	}
	if strings.HasSuffix(flag, "=") {
		return []string{flag + path}
	}
	return []string{flag, path}
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
