package adapters

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/steveyegge/lintrun/internal/types"
)

// recovery tracks how much of one report was parsed. It turns into the
// single ParseError an adapter may return.
type recovery struct {
	toolID    string
	recovered int
	skipped   int
	offset    int64
	reason    string
}

func newRecovery(toolID string) *recovery {
	return &recovery{toolID: toolID, offset: -1}
}

// skip counts an unparseable record, keeping the first reason.
func (r *recovery) skip(reason string) {
	r.skipped++
	if r.reason == "" {
		r.reason = reason
	}
}

// stop records where parsing gave up. The stop reason replaces any
// per-record reason since it explains the larger loss.
func (r *recovery) stop(offset int64, reason string) {
	r.offset = offset
	r.reason = reason
}

// err returns the ParseError for this report, or nil if everything parsed.
func (r *recovery) err() error {
	if r.skipped == 0 && r.offset < 0 && r.reason == "" {
		return nil
	}
	return &types.ParseError{
		ToolID:    r.toolID,
		Recovered: r.recovered,
		Skipped:   r.skipped,
		Offset:    r.offset,
		Reason:    r.reason,
	}
}

// streamArray decodes a JSON array element by element and hands each
// element to fn. When key is non-empty the array is looked up under that
// key of a top-level object. Decoding stops at the first syntax error or
// truncation; everything decoded before that point is kept. fn returns the
// findings of one element, or an error to have the element counted as
// skipped.
func streamArray(raw []byte, key string, rec *recovery, fn func(json.RawMessage) ([]types.Finding, error)) []types.Finding {
	return streamArrayPartial(raw, key, rec, fn, nil)
}

// partialFunc recovers findings from the damaged element where decoding
// stopped. prefix holds the element and everything after it; base is its
// offset in the whole report.
type partialFunc func(prefix []byte, base int64, rec *recovery) []types.Finding

// streamArrayPartial is streamArray with a hook that descends into the
// element that failed to decode.
func streamArrayPartial(raw []byte, key string, rec *recovery, fn func(json.RawMessage) ([]types.Finding, error), partial partialFunc) []types.Finding {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var findings []types.Finding

	if key != "" {
		if !seekKey(dec, key, rec) {
			return nil
		}
	}

	tok, err := dec.Token()
	if err != nil {
		rec.stop(dec.InputOffset(), describe(err))
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		rec.stop(dec.InputOffset(), fmt.Sprintf("expected JSON array, found %v", tok))
		return nil
	}

	for dec.More() {
		start := elementStart(raw, dec.InputOffset())
		var element json.RawMessage
		if err := dec.Decode(&element); err != nil {
			rec.stop(dec.InputOffset(), describe(err))
			if partial != nil {
				got := partial(raw[start:], start, rec)
				rec.recovered += len(got)
				findings = append(findings, got...)
			}
			return findings
		}
		got, err := fn(element)
		if err != nil {
			rec.skip(err.Error())
			continue
		}
		rec.recovered += len(got)
		findings = append(findings, got...)
	}

	if _, err := dec.Token(); err != nil {
		rec.stop(dec.InputOffset(), describe(err))
	}
	return findings
}

// elementStart skips the whitespace and separator between the decoder
// position and the next array element.
func elementStart(raw []byte, offset int64) int64 {
	for offset < int64(len(raw)) {
		switch raw[offset] {
		case ' ', '\t', '\r', '\n', ',':
			offset++
		default:
			return offset
		}
	}
	return offset
}

// openObject consumes the opening brace of an object.
func openObject(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, found %v", tok)
	}
	return nil
}

// openArray consumes the opening bracket of an array.
func openArray(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected JSON array, found %v", tok)
	}
	return nil
}

// seekKey advances dec into a top-level object until the value of key is
// next. Other members are skipped whole.
func seekKey(dec *json.Decoder, key string, rec *recovery) bool {
	tok, err := dec.Token()
	if err != nil {
		rec.stop(dec.InputOffset(), describe(err))
		return false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		rec.stop(dec.InputOffset(), fmt.Sprintf("expected JSON object, found %v", tok))
		return false
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			rec.stop(dec.InputOffset(), describe(err))
			return false
		}
		if name, ok := tok.(string); ok && name == key {
			return true
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			rec.stop(dec.InputOffset(), describe(err))
			return false
		}
	}
	rec.stop(dec.InputOffset(), fmt.Sprintf("report has no %q member", key))
	return false
}

func describe(err error) string {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "output truncated"
	}
	return err.Error()
}
