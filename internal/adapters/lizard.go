package adapters

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/steveyegge/lintrun/internal/types"
)

// lizardWarning matches the lines printed by `lizard -w`, e.g.
//
//	src/app.py:12: warning: handle has 40 NLOC, 16 CCN, 210 token, 3 PARAM, 52 length
var lizardWarning = regexp.MustCompile(
	`^(.+?):(\d+): warning: (.+?) has (\d+) NLOC, (\d+) CCN, (\d+) token, (\d+) PARAM, (\d+) length`)

// lizardThresholds maps config keys to lizard's threshold flags. Lizard
// has no config file option, so thresholds travel on the command line.
var lizardThresholds = []struct {
	key  string
	flag string
}{
	{"ccn", "-C"},
	{"length", "-L"},
	{"arguments", "-a"},
	{"nloc", "-Tnloc="},
}

type lizardMetrics struct {
	Function string `json:"function"`
	NLOC     int    `json:"nloc"`
	CCN      int    `json:"ccn"`
	Tokens   int    `json:"tokens"`
	Params   int    `json:"params"`
	Length   int    `json:"length"`
}

// Lizard parses complexity warnings from lizard.
type Lizard struct {
	base
}

// NewLizard creates the lizard variant.
func NewLizard(desc *types.ToolDescriptor) Adapter {
	return &Lizard{base{desc: desc}}
}

// BuildInvocation implements Adapter. Thresholds from the resolved config
// are passed as flags ahead of the template arguments.
func (a *Lizard) BuildInvocation(cfg types.EffectiveConfig, targets []string) (types.Invocation, error) {
	inv, err := expandTemplate(a.desc, cfg, targets)
	if err != nil {
		return inv, err
	}
	var flags []string
	for _, t := range lizardThresholds {
		v, ok := cfg.Values[t.key]
		if !ok {
			continue
		}
		switch v.(type) {
		case int, int64, uint64, float64, string:
		default:
			return types.Invocation{}, fmt.Errorf("tool %s: threshold %s must be a number (got %T)", a.desc.ID, t.key, v)
		}
		if t.flag[len(t.flag)-1] == '=' {
			flags = append(flags, t.flag+fmt.Sprint(v))
		} else {
			flags = append(flags, t.flag, fmt.Sprint(v))
		}
	}
	inv.Args = append(flags, inv.Args...)
	return inv, nil
}

// ParseOutput implements Adapter.
func (a *Lizard) ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error) {
	// lizard exits 1 when it printed warnings
	if empty, err := a.emptyOutput(raw, 0); empty {
		return nil, err
	}
	rec := newRecovery(a.desc.ID)
	findings := scanLines(raw, rec, nil, a.parseLine)
	return findings, rec.err()
}

func (a *Lizard) parseLine(line string) (types.Finding, bool) {
	m := lizardWarning.FindStringSubmatch(line)
	if m == nil {
		return types.Finding{}, false
	}
	metrics := lizardMetrics{
		Function: m[3],
		NLOC:     atoi(m[4]),
		CCN:      atoi(m[5]),
		Tokens:   atoi(m[6]),
		Params:   atoi(m[7]),
		Length:   atoi(m[8]),
	}
	f := a.finding()
	f.Path = m[1]
	f.StartLine = atoi(m[2])
	f.RuleID = "complexity"
	f.NativeSeverity = "warning"
	f.Message = fmt.Sprintf("%s has %d NLOC, %d CCN, %d PARAM, %d length",
		metrics.Function, metrics.NLOC, metrics.CCN, metrics.Params, metrics.Length)
	if metrics.Length > 0 {
		f.EndLine = f.StartLine + metrics.Length - 1
	}
	payload, _ := json.Marshal(metrics)
	return f.WithPayload(payload), true
}
