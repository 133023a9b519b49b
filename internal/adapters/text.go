package adapters

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/steveyegge/lintrun/internal/types"
)

// scanLines parses line-oriented reports. Blank lines and lines accepted by
// ignore are dropped silently. A final line with no trailing newline that
// does not parse is treated as truncation; any other unparseable line is
// counted as skipped.
func scanLines(raw []byte, rec *recovery, ignore func(string) bool, parse func(string) (types.Finding, bool)) []types.Finding {
	var findings []types.Finding
	var offset int64
	lineNo := 0

	for len(raw) > 0 {
		lineNo++
		end := bytes.IndexByte(raw, '\n')
		terminated := end >= 0
		var line []byte
		if terminated {
			line, raw = raw[:end], raw[end+1:]
		} else {
			line, raw = raw, nil
		}
		start := offset
		offset += int64(len(line))
		if terminated {
			offset++
		}

		text := strings.TrimRight(string(line), "\r")
		if strings.TrimSpace(text) == "" || (ignore != nil && ignore(text)) {
			continue
		}
		if f, ok := parse(text); ok {
			findings = append(findings, f)
			rec.recovered++
			continue
		}
		if !terminated {
			rec.stop(start, "output truncated")
			break
		}
		rec.skip(fmt.Sprintf("unrecognized line %d: %q", lineNo, truncate(text, 80)))
	}
	return findings
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
