package changeset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/bundlesmith/internal/schema"
)

// Result carries either a parsed change-set or the reason parsing failed.
type Result struct {
	Code *GeneratedCode
	Err  string
}

var (
	jsonFenceRe = regexp.MustCompile("(?s)```[ \t]*(?i:json)[ \t]*\r?\n(.*?)(?:```|$)")
	bareFenceRe = regexp.MustCompile("(?s)```[ \t]*\r?\n(.*?)(?:```|$)")
)

// Parse returns the change-set found in raw model text, or nil.
func Parse(raw string) *GeneratedCode {
	return ParseDetailed(raw).Code
}

// ParseDetailed extracts a change-set from raw model text. Candidates are
// tried in order: the interior of a fenced json block, the first complete
// top-level object in the text, then the whole text. Structural failures
// yield a message starting with "Invalid JSON".
func ParseDetailed(raw string) Result {
	var (
		doc     any
		body    []byte
		lastErr error
	)
	for _, c := range candidates(raw) {
		d, err := schema.Decode([]byte(c))
		if err != nil {
			if lastErr == nil {
				lastErr = err
			}
			continue
		}
		doc, body = d, []byte(c)
		break
	}
	if doc == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("no JSON content")
		}
		return Result{Err: "Invalid JSON: " + lastErr.Error()}
	}

	if errs := schema.Validate(doc); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return Result{Err: "Invalid JSON structure: " + strings.Join(msgs, "; ")}
	}

	var code GeneratedCode
	if err := json.Unmarshal(body, &code); err != nil {
		return Result{Err: "Invalid JSON: " + err.Error()}
	}
	if len(code.Files) == 0 {
		return Result{Err: "No files in AI response"}
	}
	return Result{Code: &code}
}

// candidates lists the extraction stages, skipping empty and repeated ones.
func candidates(raw string) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for _, existing := range out {
			if existing == s {
				return
			}
		}
		out = append(out, s)
	}

	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		add(m[1])
	} else if m := bareFenceRe.FindStringSubmatch(raw); m != nil {
		add(m[1])
	}
	if obj, ok := firstObject(raw); ok {
		add(obj)
	}
	add(raw)
	return out
}

// firstObject returns the first '{' that starts a complete JSON object.
// The decoder handles nested braces and quoted braces inside strings.
func firstObject(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var msg json.RawMessage
		if err := dec.Decode(&msg); err != nil {
			continue
		}
		if bytes.HasPrefix(msg, []byte("{")) {
			return string(msg), true
		}
	}
	return "", false
}
