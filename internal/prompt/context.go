package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type GenerationMode string

const (
	ModeGenerate GenerationMode = "generate"
	ModeRefine   GenerationMode = "refine"
	ModeReview   GenerationMode = "review"
)

func (m GenerationMode) Normalize() GenerationMode {
	switch GenerationMode(strings.ToLower(strings.TrimSpace(string(m)))) {
	case ModeGenerate:
		return ModeGenerate
	case ModeRefine:
		return ModeRefine
	case ModeReview:
		return ModeReview
	default:
		return ""
	}
}

type Requirement struct {
	ID       string `yaml:"id"`
	Category string `yaml:"category"`
	Text     string `yaml:"text"`
	Priority string `yaml:"priority,omitempty"`
}

type Decision struct {
	Title     string `yaml:"title"`
	Choice    string `yaml:"choice"`
	Rationale string `yaml:"rationale,omitempty"`
}

type SpecSummary struct {
	Path    string `yaml:"path"`
	Title   string `yaml:"title,omitempty"`
	Summary string `yaml:"summary"`
}

// ProjectContext is a read-only snapshot of project state. Slices are ordered
// oldest first.
type ProjectContext struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description,omitempty"`
	TargetLanguage string         `yaml:"target_language,omitempty"`
	Mode           GenerationMode `yaml:"mode,omitempty"`
	Requirements   []Requirement  `yaml:"requirements,omitempty"`
	Decisions      []Decision     `yaml:"decisions,omitempty"`
	ExistingSpecs  []SpecSummary  `yaml:"existing_specs,omitempty"`
}

func LoadProjectContext(path string) (*ProjectContext, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project context: %w", err)
	}
	var pc ProjectContext
	if err := yaml.Unmarshal(raw, &pc); err != nil {
		return nil, fmt.Errorf("decode project context %s: %w", path, err)
	}
	return &pc, nil
}
