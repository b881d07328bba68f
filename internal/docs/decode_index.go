package docs

import (
	"encoding/json"
	"fmt"
)

type rawIndexNode struct {
	Title      string         `json:"title"`
	Path       string         `json:"path"`
	Type       string         `json:"type"`
	External   bool           `json:"external"`
	Deprecated bool           `json:"deprecated"`
	Children   []rawIndexNode `json:"children"`
}

// DecodeTechnologyDetailIndex decodes a symbol index payload and returns the
// Swift tree. The language map may sit at the root or under
// "interfaceLanguages"; other languages are ignored, and a payload without a
// Swift entry yields an empty slice.
func DecodeTechnologyDetailIndex(data []byte) ([]TechnologyDetailIndex, error) {
	const op = "technology detail index"

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	languages := root
	if wrapped, ok := root["interfaceLanguages"]; ok {
		languages = nil
		if err := json.Unmarshal(wrapped, &languages); err != nil {
			return nil, &DecodeError{Op: op, Field: "interfaceLanguages", Err: err}
		}
	}

	swift, ok := languages["swift"]
	if !ok {
		return []TechnologyDetailIndex{}, nil
	}
	var nodes []rawIndexNode
	if err := json.Unmarshal(swift, &nodes); err != nil {
		return nil, &DecodeError{Op: op, Field: "swift", Err: err}
	}
	return toIndexNodes(nodes), nil
}

func toIndexNodes(raw []rawIndexNode) []TechnologyDetailIndex {
	out := make([]TechnologyDetailIndex, 0, len(raw))
	for _, n := range raw {
		out = append(out, TechnologyDetailIndex{
			Title:      n.Title,
			Path:       DocumentPath(n.Path),
			External:   n.External,
			Deprecated: n.Deprecated,
			Kind:       ParseIndexKind(n.Type),
			Children:   toIndexNodes(n.Children),
		})
	}
	return out
}

// DecodeTechnologyChanges decodes a diff payload into change annotations.
// Entries whose change is absent or not a known value are dropped; a change
// of the wrong JSON type fails the payload.
func DecodeTechnologyChanges(data []byte) (Changes, error) {
	const op = "technology changes"

	var raw map[Identifier]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}

	changes := make(Changes, len(raw))
	for id, body := range raw {
		var entry struct {
			Change *string `json:"change"`
		}
		if err := json.Unmarshal(body, &entry); err != nil {
			return nil, &DecodeError{Op: op, Field: fmt.Sprintf("%s.change", id), Err: err}
		}
		if entry.Change == nil {
			continue
		}
		switch c := Change(*entry.Change); c {
		case ChangeModified, ChangeAdded:
			changes[id] = c
		}
	}
	return changes, nil
}

// DecodeDiffAvailability decodes a bare {key: payload} availability map.
func DecodeDiffAvailability(data []byte) (DiffAvailability, error) {
	var diff DiffAvailability
	if err := json.Unmarshal(data, &diff); err != nil {
		return nil, &DecodeError{Op: "diff availability", Err: err}
	}
	if diff == nil {
		diff = DiffAvailability{}
	}
	return diff, nil
}
