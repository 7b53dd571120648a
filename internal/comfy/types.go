package comfy

import (
	"encoding/json"
	"fmt"

	"imagine/internal/domain"
)

// ImageRef identifies one output image on the remote service.
type ImageRef struct {
	Filename  string
	Subfolder string
	Type      string
}

// NodeOutput holds the images produced by one output node.
type NodeOutput struct {
	NodeID string
	Images []ImageRef
}

// History is the execution record of one finished prompt.
type History struct {
	PromptID string
	Outputs  map[string]NodeOutput
}

type queueResponse struct {
	PromptID *string `json:"prompt_id"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images json.RawMessage `json:"images"`
	} `json:"outputs"`
}

type imageRef struct {
	Filename  *string `json:"filename"`
	Subfolder *string `json:"subfolder"`
	Type      *string `json:"type"`
}

// parseHistory extracts promptID's entry from a /history response. ok is
// false when the remote has no entry for promptID yet.
func parseHistory(body []byte, promptID string) (*History, bool, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, false, fmt.Errorf("%w: decode history: %v", domain.ErrUpstreamProtocol, err)
	}
	raw, ok := all[promptID]
	if !ok {
		return nil, false, nil
	}
	var entry historyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("%w: decode history entry: %v", domain.ErrUpstreamProtocol, err)
	}
	if entry.Outputs == nil {
		return nil, false, fmt.Errorf("%w: history outputs not found", domain.ErrUpstreamProtocol)
	}

	h := &History{PromptID: promptID, Outputs: make(map[string]NodeOutput, len(entry.Outputs))}
	for nodeID, out := range entry.Outputs {
		if len(out.Images) == 0 || string(out.Images) == "null" {
			continue
		}
		var refs []imageRef
		if err := json.Unmarshal(out.Images, &refs); err != nil {
			return nil, false, fmt.Errorf("%w: node %s images not an array", domain.ErrUpstreamProtocol, nodeID)
		}
		node := NodeOutput{NodeID: nodeID, Images: make([]ImageRef, 0, len(refs))}
		for _, ref := range refs {
			switch {
			case ref.Filename == nil:
				return nil, false, fmt.Errorf("%w: node %s image filename missing", domain.ErrUpstreamProtocol, nodeID)
			case ref.Subfolder == nil:
				return nil, false, fmt.Errorf("%w: node %s image subfolder missing", domain.ErrUpstreamProtocol, nodeID)
			case ref.Type == nil:
				return nil, false, fmt.Errorf("%w: node %s image type missing", domain.ErrUpstreamProtocol, nodeID)
			}
			node.Images = append(node.Images, ImageRef{Filename: *ref.Filename, Subfolder: *ref.Subfolder, Type: *ref.Type})
		}
		h.Outputs[nodeID] = node
	}
	return h, true, nil
}
