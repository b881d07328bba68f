package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jcdickinson/applefetch/internal/docs"
)

// ResourceBase turns a documentation path into an appledoc:// URI when
// prepended to it.
const ResourceBase = "appledoc:/"

// Render converts a decoded page to markdown. Links point at reference
// identifiers; ReferenceLinks builds the map that RewriteLinks uses to turn
// them into URLs.
func Render(detail *docs.TechnologyDetail) string {
	r := renderer{detail: detail}
	r.page()
	return strings.TrimRight(r.b.String(), "\n") + "\n"
}

// Export renders detail, rewrites reference links against base and prepends
// front matter.
func Export(detail *docs.TechnologyDetail, path docs.DocumentPath, base string) string {
	out := RewriteLinks(Render(detail), ReferenceLinks(detail, base))
	return AddFrontMatter(out, FrontMatter(detail, path))
}

// ReferenceLinks maps each reference identifier to a URL. Relative reference
// URLs are appended to base, which has no trailing slash; absolute ones are
// kept as they are.
func ReferenceLinks(detail *docs.TechnologyDetail, base string) map[string]string {
	links := make(map[string]string, len(detail.References))
	for id, ref := range detail.References {
		if ref.URL == "" {
			continue
		}
		if strings.HasPrefix(ref.URL, "/") {
			links[string(id)] = base + ref.URL
		} else {
			links[string(id)] = ref.URL
		}
	}
	return links
}

// FrontMatter returns the front-matter fields for a page.
func FrontMatter(detail *docs.TechnologyDetail, path docs.DocumentPath) map[string]string {
	fm := map[string]string{"title": detail.Metadata.Title}
	if path != "" {
		fm["path"] = path.String()
	}
	if detail.Metadata.Role != "" {
		fm["role"] = detail.Metadata.Role
	}
	if len(detail.Metadata.Platforms) > 0 {
		names := make([]string, 0, len(detail.Metadata.Platforms))
		for _, p := range detail.Metadata.Platforms {
			names = append(names, p.Name)
		}
		fm["platforms"] = strings.Join(names, ", ")
	}
	if d := detail.DiffAvailability.Sorted(); len(d) > 0 {
		fm["changed"] = fmt.Sprintf("%s %s → %s", d[0].Payload.Platform, d[0].Payload.Versions.From, d[0].Payload.Versions.To)
	}
	return fm
}

type renderer struct {
	detail *docs.TechnologyDetail
	b      strings.Builder
}

func (r *renderer) page() {
	md := r.detail.Metadata
	fmt.Fprintf(&r.b, "# %s\n\n", md.Title)
	if md.RoleHeading != "" {
		fmt.Fprintf(&r.b, "*%s*\n\n", md.RoleHeading)
	}
	if len(md.Platforms) > 0 {
		r.b.WriteString("**Availability:** ")
		for i, p := range md.Platforms {
			if i > 0 {
				r.b.WriteString(", ")
			}
			r.b.WriteString(platformString(p))
		}
		r.b.WriteString("\n\n")
	}
	if len(r.detail.Abstract) > 0 {
		r.b.WriteString(r.inline(r.detail.Abstract))
		r.b.WriteString("\n\n")
	}

	for _, pc := range r.detail.PrimaryContents {
		r.primary(pc)
	}

	r.topics("Topics", r.detail.Topics)
	r.topics("Relationships", r.detail.Relationships)

	if len(r.detail.SeeAlso) > 0 {
		r.b.WriteString("## See Also\n\n")
		for _, s := range r.detail.SeeAlso {
			fmt.Fprintf(&r.b, "### %s\n\n", s.Title)
			r.identifiers(s.Identifiers)
		}
	}
}

func platformString(p docs.Platform) string {
	s := p.Name
	if p.IntroducedAt != "" {
		s += " " + p.IntroducedAt + "+"
	}
	if p.Beta {
		s += " Beta"
	}
	if p.Deprecated {
		s += " (deprecated)"
	}
	return s
}

func (r *renderer) primary(pc docs.PrimaryContent) {
	switch pc.Kind {
	case "declarations":
		for _, d := range pc.Declarations {
			r.b.WriteString("```swift\n")
			for _, tok := range d.Tokens {
				r.b.WriteString(tok.Text)
			}
			r.b.WriteString("\n```\n\n")
		}
	case "parameters":
		if len(pc.Parameters) == 0 {
			return
		}
		r.b.WriteString("## Parameters\n\n")
		for _, p := range pc.Parameters {
			fmt.Fprintf(&r.b, "- `%s`: ", p.Name)
			r.b.WriteString(indent(strings.TrimSpace(r.blocks(p.Content)), "  "))
			r.b.WriteString("\n")
		}
		r.b.WriteString("\n")
	default:
		r.b.WriteString(r.blocks(pc.Content))
	}
}

func (r *renderer) topics(heading string, topics []docs.Topic) {
	if len(topics) == 0 {
		return
	}
	fmt.Fprintf(&r.b, "## %s\n\n", heading)
	for _, t := range topics {
		fmt.Fprintf(&r.b, "### %s\n\n", t.TopicTitle())
		r.identifiers(t.TopicIdentifiers())
	}
}

func (r *renderer) identifiers(ids []docs.Identifier) {
	for _, id := range ids {
		ref, ok := r.detail.Reference(id)
		if !ok {
			fmt.Fprintf(&r.b, "- `%s`\n", id)
			continue
		}
		fmt.Fprintf(&r.b, "- [%s](%s)", referenceTitle(ref), id)
		if abstract := docs.PlainText(ref.Abstract, r.title); abstract != "" {
			r.b.WriteString(": " + abstract)
		}
		r.b.WriteString("\n")
	}
	r.b.WriteString("\n")
}

func referenceTitle(ref docs.Reference) string {
	if ref.Title != "" {
		return ref.Title
	}
	var b strings.Builder
	for _, f := range ref.Fragments {
		b.WriteString(f.Text)
	}
	if b.Len() > 0 {
		return b.String()
	}
	return ref.Identifier.String()
}

func (r *renderer) title(id docs.Identifier) string {
	if ref, ok := r.detail.Reference(id); ok {
		return referenceTitle(ref)
	}
	return ""
}

func (r *renderer) blocks(blocks []docs.BlockContent) string {
	var b strings.Builder
	for _, blk := range blocks {
		switch blk := blk.(type) {
		case docs.Paragraph:
			b.WriteString(r.inline(blk.Inline))
			b.WriteString("\n\n")
		case docs.Heading:
			level := min(max(blk.Level, 1), 6)
			fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", level), blk.Text)
		case docs.Aside:
			name := blk.Name
			if name == "" && blk.Style != "" {
				name = strings.ToUpper(blk.Style[:1]) + blk.Style[1:]
			}
			body := strings.TrimSpace(r.blocks(blk.Content))
			if name != "" {
				body = "**" + name + ":** " + body
			}
			b.WriteString(indent("> "+body, "> "))
			b.WriteString("\n\n")
		case docs.UnorderedList:
			for _, item := range blk.Items {
				b.WriteString("- ")
				b.WriteString(indent(strings.TrimSpace(r.blocks(item)), "  "))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		case docs.UnknownBlock:
			fmt.Fprintf(&b, "<!-- unsupported block: %s -->\n\n", blk.Type)
		}
	}
	return b.String()
}

func (r *renderer) inline(inline []docs.InlineContent) string {
	var b strings.Builder
	for _, n := range inline {
		switch n := n.(type) {
		case docs.Text:
			b.WriteString(n.Text)
		case docs.CodeVoice:
			b.WriteString("`" + n.Code + "`")
		case docs.Strong:
			b.WriteString("**" + r.inline(n.Inline) + "**")
		case docs.InlineHead:
			b.WriteString("**" + r.inline(n.Inline) + "**")
		case docs.Emphasis:
			b.WriteString("*" + r.inline(n.Inline) + "*")
		case docs.InlineReference:
			title := r.title(n.Identifier)
			switch {
			case title == "":
				b.WriteString("`" + n.Identifier.String() + "`")
			case n.IsActive:
				fmt.Fprintf(&b, "[%s](%s)", title, n.Identifier)
			default:
				b.WriteString(title)
			}
		case docs.Image:
			ref, ok := r.detail.Reference(n.Identifier)
			if !ok || len(ref.Variants) == 0 {
				continue
			}
			fmt.Fprintf(&b, "![%s](%s)", ref.Title, preferredVariant(ref.Variants).URL)
		}
	}
	return b.String()
}

// preferredVariant picks the light 1x image when available, then any light
// image, then the first one.
func preferredVariant(variants []docs.ImageVariant) docs.ImageVariant {
	ranked := make([]docs.ImageVariant, len(variants))
	copy(ranked, variants)
	score := func(v docs.ImageVariant) int {
		s := 0
		if v.HasTrait(docs.TraitDark) {
			s += 2
		}
		if v.HasTrait(docs.Trait2x) {
			s++
		}
		return s
	}
	sort.SliceStable(ranked, func(i, j int) bool { return score(ranked[i]) < score(ranked[j]) })
	return ranked[0]
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}

// RenderIndex writes an index tree as a nested markdown list. maxDepth 0
// renders every level.
func RenderIndex(nodes []docs.TechnologyDetailIndex, maxDepth int) string {
	var b strings.Builder
	for _, root := range nodes {
		root.Walk(func(n docs.TechnologyDetailIndex, depth int) bool {
			b.WriteString(strings.Repeat("  ", depth))
			label := n.Title
			if n.Path != "" {
				label = fmt.Sprintf("[%s](%s%s)", n.Title, ResourceBase, n.Path)
			}
			fmt.Fprintf(&b, "- %s `%s`", label, n.Kind)
			if n.Deprecated {
				b.WriteString(" (deprecated)")
			}
			b.WriteString("\n")
			return maxDepth == 0 || depth+1 < maxDepth
		})
	}
	return b.String()
}
