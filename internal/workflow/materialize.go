package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Placeholder tokens recognised in job templates.
const (
	PlaceholderModelName  = "${model_name}"
	PlaceholderClipName1  = "${sd3_clip_name1}"
	PlaceholderClipName2  = "${sd3_clip_name2}"
	PlaceholderClipName3  = "${sd3_clip_name3}"
	PlaceholderClientID   = "${client_id}"
	PlaceholderWorkflowID = "${workflow_id}"
)

var (
	// DefaultPromptTextPath is the text input of the positive prompt node.
	DefaultPromptTextPath = Path{"prompt", "6", "inputs", "text"}
	// DefaultStepsPath is the steps input of the sampler node.
	DefaultStepsPath = Path{"prompt", "294", "inputs", "steps"}
)

// Params carries the values written into a template for one submission.
type Params struct {
	PromptText string
	Steps      int

	ModelFile string
	ClipNames [3]string

	ClientID   string
	WorkflowID string

	PromptTextPath Path
	StepsPath      Path
}

// Materialize builds the job document for one submission. The template is
// left untouched. Missing prompt or steps nodes are reported as errors so a
// malformed template never goes out with its stale defaults.
func Materialize(template any, p Params) (any, error) {
	doc := Clone(template)

	textPath := p.PromptTextPath
	if len(textPath) == 0 {
		textPath = DefaultPromptTextPath
	}
	stepsPath := p.StepsPath
	if len(stepsPath) == 0 {
		stepsPath = DefaultStepsPath
	}
	if err := SetPath(doc, p.PromptText, textPath); err != nil {
		return nil, fmt.Errorf("write prompt text: %w", err)
	}
	if err := SetPath(doc, Number(p.Steps), stepsPath); err != nil {
		return nil, fmt.Errorf("write steps: %w", err)
	}

	// Order is fixed; tokens do not overlap.
	for _, sub := range [][2]string{
		{PlaceholderModelName, p.ModelFile},
		{PlaceholderClipName1, p.ClipNames[0]},
		{PlaceholderClipName2, p.ClipNames[1]},
		{PlaceholderClipName3, p.ClipNames[2]},
		{PlaceholderClientID, p.ClientID},
		{PlaceholderWorkflowID, p.WorkflowID},
	} {
		doc = Substitute(doc, sub[0], sub[1])
	}
	return doc, nil
}

// Decode parses a template document, keeping numbers as json.Number.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadFile reads and decodes the template stored at path.
func LoadFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read template: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("workflow: decode template: %w", err)
	}
	return doc, nil
}
