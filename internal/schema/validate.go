// Package schema validates decoded AI output against the change-set JSON schema.
package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed changeset.schema.json
var schemaBytes []byte

const schemaURL = "changeset.schema.json"

var (
	compiled    *jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
	printer     = message.NewPrinter(language.English)
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (v ValidationError) Error() string {
	if v.Path == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Decode parses JSON text into the generic form the validator expects.
func Decode(data []byte) (any, error) {
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// Validate checks a decoded document against the change-set schema.
func Validate(doc any) []ValidationError {
	s, err := getSchema()
	if err != nil {
		return []ValidationError{{Message: err.Error()}}
	}
	err = s.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []ValidationError{{Message: err.Error()}}
	}

	var errs []ValidationError
	collect(ve, &errs)
	if len(errs) == 0 {
		return []ValidationError{{Message: ve.Error()}}
	}
	return dedupe(errs)
}

func collect(ve *jsonschema.ValidationError, errs *[]ValidationError) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collect(c, errs)
		}
		return
	}
	if ve.ErrorKind == nil {
		return
	}
	*errs = append(*errs, ValidationError{
		Path:    instancePath(ve.InstanceLocation),
		Message: ve.ErrorKind.LocalizedString(printer),
	})
}

// instancePath renders ["files","0","path"] as files[0].path.
func instancePath(loc []string) string {
	var b strings.Builder
	for _, seg := range loc {
		if _, err := strconv.Atoi(seg); err == nil {
			fmt.Fprintf(&b, "[%s]", seg)
			continue
		}
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(seg)
	}
	return b.String()
}

func dedupe(errs []ValidationError) []ValidationError {
	seen := make(map[string]bool)
	var out []ValidationError
	for _, e := range errs {
		key := e.Path + "|" + e.Message
		if !seen[key] {
			seen[key] = true
			out = append(out, e)
		}
	}
	return out
}
