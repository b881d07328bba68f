package docs

import (
	"encoding/json"
	"fmt"
)

// typedNode is a JSON object whose variant is named by its "type" field.
// Raw keeps the whole object so the variant body can be decoded once the
// tag is known.
type typedNode struct {
	Type string
	Raw  json.RawMessage
}

func (n *typedNode) UnmarshalJSON(data []byte) error {
	tag, _, err := peekTag(data, "type")
	if err != nil {
		return err
	}
	n.Type = tag
	n.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// kindNode is like typedNode but discriminated by "kind". HasKind tells an
// absent kind apart from an empty one.
type kindNode struct {
	Kind    string
	HasKind bool
	Raw     json.RawMessage
}

func (n *kindNode) UnmarshalJSON(data []byte) error {
	tag, ok, err := peekTag(data, "kind")
	if err != nil {
		return err
	}
	n.Kind, n.HasKind = tag, ok
	n.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// peekTag reads a string discriminator out of a JSON object without
// decoding the rest of it. A missing or null field reports ok=false.
func peekTag(data []byte, field string) (tag string, ok bool, err error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", false, err
	}
	raw, ok := obj[field]
	if !ok || string(raw) == "null" {
		return "", false, nil
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", true, fmt.Errorf("%s: %w", field, err)
	}
	return tag, true, nil
}

type rawInlineContainer struct {
	InlineContent []typedNode `json:"inlineContent"`
}

type rawBlockContainer struct {
	Content []typedNode `json:"content"`
}

type rawHeading struct {
	Level  int    `json:"level"`
	Anchor string `json:"anchor"`
	Text   string `json:"text"`
}

type rawAside struct {
	Style   string      `json:"style"`
	Name    string      `json:"name"`
	Content []typedNode `json:"content"`
}

type rawUnorderedList struct {
	Items []rawBlockContainer `json:"items"`
}

type rawText struct {
	Text string `json:"text"`
}

type rawCodeVoice struct {
	Code string `json:"code"`
}

type rawInlineReference struct {
	Identifier Identifier `json:"identifier"`
	IsActive   bool       `json:"isActive"`
}

type rawImage struct {
	Identifier Identifier `json:"identifier"`
}

func decodeBlocks(nodes []typedNode) ([]BlockContent, error) {
	blocks := make([]BlockContent, 0, len(nodes))
	for i, n := range nodes {
		b, err := decodeBlock(n)
		if err != nil {
			return nil, fmt.Errorf("[%d] %s: %w", i, n.Type, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// decodeBlock maps a block node to its variant. Every tag outside the known
// set becomes UnknownBlock.
func decodeBlock(n typedNode) (BlockContent, error) {
	switch n.Type {
	case "paragraph":
		var raw rawInlineContainer
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		inline, err := decodeInlines(raw.InlineContent)
		if err != nil {
			return nil, err
		}
		return Paragraph{Inline: inline}, nil

	case "heading":
		var raw rawHeading
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		return Heading(raw), nil

	case "aside":
		var raw rawAside
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		content, err := decodeBlocks(raw.Content)
		if err != nil {
			return nil, err
		}
		return Aside{Style: raw.Style, Name: raw.Name, Content: content}, nil

	case "unorderedList":
		var raw rawUnorderedList
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		items := make([][]BlockContent, 0, len(raw.Items))
		for i, item := range raw.Items {
			content, err := decodeBlocks(item.Content)
			if err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
			items = append(items, content)
		}
		return UnorderedList{Items: items}, nil

	default:
		return UnknownBlock{Type: n.Type}, nil
	}
}

func decodeInlines(nodes []typedNode) ([]InlineContent, error) {
	inline := make([]InlineContent, 0, len(nodes))
	for i, n := range nodes {
		c, err := decodeInline(n)
		if err != nil {
			return nil, fmt.Errorf("[%d] %s: %w", i, n.Type, err)
		}
		inline = append(inline, c)
	}
	return inline, nil
}

// decodeInline maps an inline node to its variant. Every tag outside the
// known set becomes UnknownInline.
func decodeInline(n typedNode) (InlineContent, error) {
	switch n.Type {
	case "text":
		var raw rawText
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		return Text{Text: raw.Text}, nil

	case "codeVoice":
		var raw rawCodeVoice
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		return CodeVoice{Code: raw.Code}, nil

	case "strong", "emphasis", "inlineHead":
		var raw rawInlineContainer
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		nested, err := decodeInlines(raw.InlineContent)
		if err != nil {
			return nil, err
		}
		switch n.Type {
		case "strong":
			return Strong{Inline: nested}, nil
		case "emphasis":
			return Emphasis{Inline: nested}, nil
		default:
			return InlineHead{Inline: nested}, nil
		}

	case "reference":
		var raw rawInlineReference
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		return InlineReference(raw), nil

	case "image":
		var raw rawImage
		if err := json.Unmarshal(n.Raw, &raw); err != nil {
			return nil, err
		}
		return Image{Identifier: raw.Identifier}, nil

	default:
		return UnknownInline{Type: n.Type}, nil
	}
}
