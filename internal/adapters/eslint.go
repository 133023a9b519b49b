package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/lintrun/internal/types"
)

// eslintFile is one entry of `eslint --format json` output.
type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
}

type eslintMessage struct {
	RuleID    *string `json:"ruleId"`
	Severity  int     `json:"severity"`
	Message   string  `json:"message"`
	Line      int     `json:"line"`
	Column    int     `json:"column"`
	EndLine   int     `json:"endLine"`
	EndColumn int     `json:"endColumn"`
	Fatal     bool    `json:"fatal"`
}

// eslintSeverities names ESLint's numeric levels the way its config does.
var eslintSeverities = map[int]string{0: "off", 1: "warn", 2: "error"}

// ESLint parses ESLint's JSON formatter output.
type ESLint struct {
	base
}

// NewESLint creates the eslint variant.
func NewESLint(desc *types.ToolDescriptor) Adapter {
	return &ESLint{base{desc: desc}}
}

// ParseOutput implements Adapter.
func (a *ESLint) ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error) {
	if empty, err := a.emptyOutput(raw, exitStatus); empty {
		return nil, err
	}
	rec := newRecovery(a.desc.ID)
	findings := streamArrayPartial(raw, "", rec, func(element json.RawMessage) ([]types.Finding, error) {
		var file eslintFile
		if err := json.Unmarshal(element, &file); err != nil {
			return nil, fmt.Errorf("malformed file entry: %w", err)
		}
		if file.FilePath == "" {
			return nil, fmt.Errorf("file entry without filePath")
		}
		out := make([]types.Finding, 0, len(file.Messages))
		for _, m := range file.Messages {
			out = append(out, a.messageFinding(file.FilePath, m))
		}
		return out, nil
	}, a.partialFile)
	return findings, rec.err()
}

func (a *ESLint) messageFinding(path string, m eslintMessage) types.Finding {
	f := a.finding()
	f.Path = path
	f.RuleID = "parse-error"
	if m.RuleID != nil {
		f.RuleID = *m.RuleID
	} else if !m.Fatal {
		f.RuleID = "eslint"
	}
	f.NativeSeverity = eslintSeverities[m.Severity]
	if f.NativeSeverity == "" {
		f.NativeSeverity = fmt.Sprint(m.Severity)
	}
	f.StartLine, f.StartCol = m.Line, m.Column
	f.EndLine, f.EndCol = m.EndLine, m.EndColumn
	f.Message = m.Message
	payload, _ := json.Marshal(m)
	return f.WithPayload(payload)
}

// partialFile recovers the complete messages of a file entry that was cut
// off. filePath must precede messages, as ESLint writes it.
func (a *ESLint) partialFile(prefix []byte, base int64, rec *recovery) []types.Finding {
	dec := json.NewDecoder(bytes.NewReader(prefix))
	fail := func(err error) {
		rec.stop(base+dec.InputOffset(), describe(err))
	}
	if err := openObject(dec); err != nil {
		fail(err)
		return nil
	}

	var path string
	var out []types.Finding
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			fail(err)
			return out
		}
		switch tok {
		case "filePath":
			if err := dec.Decode(&path); err != nil {
				fail(err)
				return out
			}
		case "messages":
			if path == "" {
				rec.stop(base+dec.InputOffset(), "file entry without filePath")
				return out
			}
			if err := openArray(dec); err != nil {
				fail(err)
				return out
			}
			for dec.More() {
				var m eslintMessage
				if err := dec.Decode(&m); err != nil {
					fail(err)
					return out
				}
				out = append(out, a.messageFinding(path, m))
			}
			if _, err := dec.Token(); err != nil {
				fail(err)
				return out
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				fail(err)
				return out
			}
		}
	}
	return out
}
