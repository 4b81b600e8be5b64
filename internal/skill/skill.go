// Package skill loads externally authored generation guidance for a
// component type.
package skill

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the skill document inside a per-type directory.
const FileName = "SKILL.md"

// Skill is markdown guidance with optional YAML front matter:
//
//	---
//	name: callout
//	description: House rules for callouts
//	---
//	Body text injected into the prompt.
type Skill struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Body        string `yaml:"-"`
	Path        string `yaml:"-"`
}

// Resolve looks for <dir>/<type>/SKILL.md, then <dir>/<type>.md. It returns
// nil and no error when dir is empty or neither file exists.
func Resolve(dir, componentType string) (*Skill, error) {
	if dir == "" || componentType == "" {
		return nil, nil
	}
	for _, p := range []string{
		filepath.Join(dir, componentType, FileName),
		filepath.Join(dir, componentType+".md"),
	} {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("skill.Resolve: %w", err)
		}
		s, err := Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("skill.Resolve: %s: %w", p, err)
		}
		s.Path = p
		if s.Name == "" {
			s.Name = componentType
		}
		return s, nil
	}
	return nil, nil
}

// Parse splits optional front matter from the body. The body is kept as
// written apart from surrounding blank lines.
func Parse(content string) (*Skill, error) {
	s := &Skill{}
	content = strings.TrimPrefix(content, "\ufeff")
	if strings.HasPrefix(content, "---") {
		parts := strings.SplitN(content, "---", 3)
		if len(parts) == 3 {
			if err := yaml.Unmarshal([]byte(parts[1]), s); err != nil {
				return nil, fmt.Errorf("front matter: %w", err)
			}
			content = parts[2]
		}
	}
	s.Body = strings.Trim(content, "\r\n")
	return s, nil
}

// Text returns the body, or "" for a nil skill.
func (s *Skill) Text() string {
	if s == nil {
		return ""
	}
	return s.Body
}
