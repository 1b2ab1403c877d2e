// Package prompt holds the fixed prompting strategies and renders them
// against a dataset reference.
package prompt

import (
	"prompt-dispatcher/internal/common/errors"
)

// TemplateID names one of the fixed prompting strategies.
type TemplateID string

const (
	ZeroShot       TemplateID = "zero_shot"
	FewShot        TemplateID = "few_shot"
	ChainOfThought TemplateID = "chain_of_thought"
)

// Placeholder is the single substitution point in a template's closing instruction.
const Placeholder = "{{dataset_reference}}"

// ParseTemplateID accepts exactly the three defined identifiers.
func ParseTemplateID(s string) (TemplateID, error) {
	switch id := TemplateID(s); id {
	case ZeroShot, FewShot, ChainOfThought:
		return id, nil
	}
	return "", errors.NewUnknownTemplateError(s)
}

func (id TemplateID) String() string { return string(id) }

// Example is a worked input/analysis pair shown to the model before the task.
type Example struct {
	Input    string
	Analysis string
}

// Template is a fixed prompting strategy.
type Template struct {
	ID          TemplateID
	Instruction string
	Examples    []Example
	Closing     string
}

// Rendered is a template composed with one dataset reference.
type Rendered struct {
	TemplateID       TemplateID
	DatasetReference string
	Text             string
}
