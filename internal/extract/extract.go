// Package extract pulls validated fields out of untrusted oracle replies.
//
// A reply is expected to be a JSON document, possibly wrapped in a markdown
// code fence and surrounded by prose. Failures are reported as distinct
// error variants so callers can pick a per-field fallback.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrEmptyInput        = errors.New("empty oracle reply")
	ErrMalformedDocument = errors.New("malformed oracle document")
	ErrFieldNotFound     = errors.New("field not found")
	ErrEmptyPath         = errors.New("field path is empty")
)

// MalformedError keeps the raw reply for diagnostics.
type MalformedError struct {
	Raw string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed oracle document (%d bytes)", len(e.Raw))
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedDocument
}

// FieldNotFoundError names the path segment that could not be resolved.
type FieldNotFoundError struct {
	Path    []string
	Segment string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found (path %s)", e.Segment, strings.Join(e.Path, "."))
}

func (e *FieldNotFoundError) Unwrap() error {
	return ErrFieldNotFound
}

var (
	fencedBlock = regexp.MustCompile("(?is)```[ \t]*(?:json|python)?[ \t]*\r?\n?(.*?)```")
	strayFence  = regexp.MustCompile("(?i)```[ \t]*(?:json|python)?")
)

// StripFences removes the code-fence wrapper an oracle tends to put around
// its document. When a complete fenced block exists its body wins, so prose
// around the block is dropped too.
func StripFences(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strayFence.ReplaceAllString(raw, ""))
}

// Document is a parsed oracle reply.
type Document struct {
	raw  string
	root gjson.Result
}

func Parse(raw string) (*Document, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyInput
	}
	cleaned := StripFences(raw)
	if cleaned == "" {
		return nil, ErrEmptyInput
	}
	if !gjson.Valid(cleaned) {
		return nil, &MalformedError{Raw: raw}
	}
	return &Document{raw: raw, root: gjson.Parse(cleaned)}, nil
}

func (d *Document) Raw() string {
	return d.raw
}

// Lookup descends through nested objects by exact key. Keys are matched
// literally, so names containing dots or wildcards need no escaping.
func (d *Document) Lookup(path ...string) (Value, error) {
	if len(path) == 0 {
		return Value{}, ErrEmptyPath
	}
	current := d.root
	for _, segment := range path {
		next, ok := child(current, segment)
		if !ok {
			return Value{}, &FieldNotFoundError{Path: append([]string(nil), path...), Segment: segment}
		}
		current = next
	}
	return valueFromResult(current), nil
}

func child(node gjson.Result, key string) (gjson.Result, bool) {
	if !node.IsObject() {
		return gjson.Result{}, false
	}
	var found gjson.Result
	var ok bool
	node.ForEach(func(k, v gjson.Result) bool {
		// Duplicate keys resolve to the last occurrence.
		if k.Str == key {
			found = v
			ok = true
		}
		return true
	})
	return found, ok
}

// Field parses raw and returns the value at path in one step.
func Field(raw string, path ...string) (Value, error) {
	if len(path) == 0 {
		return Value{}, ErrEmptyPath
	}
	doc, err := Parse(raw)
	if err != nil {
		return Value{}, err
	}
	return doc.Lookup(path...)
}
