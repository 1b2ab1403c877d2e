package prompt

import (
	"fmt"
	"strings"
)

// Render composes the template for id with a dataset reference: instruction,
// worked examples in order, then the closing with the reference substituted.
// The reference is inserted literally and never interpreted.
func Render(id TemplateID, datasetRef string) (*Rendered, error) {
	t, err := Lookup(id)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(t.Instruction)
	b.WriteString("\n\n")

	for i, ex := range t.Examples {
		fmt.Fprintf(&b, "Example %d\n\nInput:\n%s\n\nAnalysis:\n%s\n\n", i+1, ex.Input, ex.Analysis)
	}

	b.WriteString(strings.ReplaceAll(t.Closing, Placeholder, datasetRef))

	return &Rendered{
		TemplateID:       id,
		DatasetReference: datasetRef,
		Text:             b.String(),
	}, nil
}
