package docs

import "strings"

// BlockContent is a block-level content node: Paragraph, Heading, Aside,
// UnorderedList or UnknownBlock.
type BlockContent interface {
	isBlockContent()
}

type Paragraph struct {
	Inline []InlineContent `json:"inlineContent"`
}

type Heading struct {
	Level  int    `json:"level"`
	Anchor string `json:"anchor"`
	Text   string `json:"text"`
}

// Aside is a callout such as a note or warning. Name is empty when absent.
type Aside struct {
	Style   string         `json:"style"`
	Name    string         `json:"name,omitempty"`
	Content []BlockContent `json:"content"`
}

// UnorderedList holds one block sequence per list item.
type UnorderedList struct {
	Items [][]BlockContent `json:"items"`
}

// UnknownBlock stands in for a block type this package does not model.
// Type is the tag as it appeared on the wire.
type UnknownBlock struct {
	Type string `json:"type"`
}

func (Paragraph) isBlockContent()     {}
func (Heading) isBlockContent()       {}
func (Aside) isBlockContent()         {}
func (UnorderedList) isBlockContent() {}
func (UnknownBlock) isBlockContent()  {}

// InlineContent is an inline span: Text, CodeVoice, Strong, Emphasis,
// InlineReference, Image, InlineHead or UnknownInline.
type InlineContent interface {
	isInlineContent()
}

type Text struct {
	Text string `json:"text"`
}

type CodeVoice struct {
	Code string `json:"code"`
}

type Strong struct {
	Inline []InlineContent `json:"inlineContent"`
}

type Emphasis struct {
	Inline []InlineContent `json:"inlineContent"`
}

// InlineReference links to an entry of the references table.
type InlineReference struct {
	Identifier Identifier `json:"identifier"`
	IsActive   bool       `json:"isActive"`
}

type Image struct {
	Identifier Identifier `json:"identifier"`
}

type InlineHead struct {
	Inline []InlineContent `json:"inlineContent"`
}

// UnknownInline stands in for an inline type this package does not model.
type UnknownInline struct {
	Type string `json:"type"`
}

func (Text) isInlineContent()            {}
func (CodeVoice) isInlineContent()       {}
func (Strong) isInlineContent()          {}
func (Emphasis) isInlineContent()        {}
func (InlineReference) isInlineContent() {}
func (Image) isInlineContent()           {}
func (InlineHead) isInlineContent()      {}
func (UnknownInline) isInlineContent()   {}

// PlainText flattens inline content into text. References are written via
// title, which may be nil; unresolved references and images are dropped.
func PlainText(inline []InlineContent, title func(Identifier) string) string {
	var b strings.Builder
	writePlain(&b, inline, title)
	return b.String()
}

func writePlain(b *strings.Builder, inline []InlineContent, title func(Identifier) string) {
	for _, n := range inline {
		switch n := n.(type) {
		case Text:
			b.WriteString(n.Text)
		case CodeVoice:
			b.WriteString(n.Code)
		case Strong:
			writePlain(b, n.Inline, title)
		case Emphasis:
			writePlain(b, n.Inline, title)
		case InlineHead:
			writePlain(b, n.Inline, title)
		case InlineReference:
			if title != nil {
				b.WriteString(title(n.Identifier))
			}
		}
	}
}
