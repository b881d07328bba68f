package markdown

import (
	"sort"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
	"gopkg.in/yaml.v3"
)

// RewriteLinks rewrites link and image destinations using linkMap. The
// markdown is parsed to find the destinations actually used as links, then
// only those are replaced in the source so the rest of the text is untouched.
func RewriteLinks(src string, linkMap map[string]string) string {
	if len(linkMap) == 0 {
		return src
	}

	doc := gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))

	used := make(map[string]string)
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		var dest string
		switch n := node.(type) {
		case *ast.Link:
			dest = string(n.Destination)
		case *ast.Image:
			dest = string(n.Destination)
		default:
			return ast.GoToNext
		}
		if newDest, ok := linkMap[dest]; ok {
			used[dest] = newDest
		}
		return ast.GoToNext
	})

	if len(used) == 0 {
		return src
	}

	// One pass, so a new destination is never rewritten again.
	pairs := make([]string, 0, len(used)*2)
	for oldDest, newDest := range used {
		pairs = append(pairs, "]("+oldDest+")", "]("+newDest+")")
	}
	result := strings.NewReplacer(pairs...).Replace(src)

	lines := strings.Split(result, "\n")
	for i, line := range lines {
		_, def, ok := strings.Cut(strings.TrimSpace(line), "]: ")
		if !ok {
			continue
		}
		if newDest, ok := used[def]; ok {
			lines[i] = strings.Replace(line, "]: "+def, "]: "+newDest, 1)
		}
	}
	return strings.Join(lines, "\n")
}

// AddFrontMatter prepends a YAML front-matter block with the given fields,
// sorted by key. Values are YAML-quoted where needed.
func AddFrontMatter(src string, fields map[string]string) string {
	if len(fields) == 0 {
		return src
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("---\n")
	for _, k := range keys {
		value, err := yaml.Marshal(fields[k])
		if err != nil {
			continue
		}
		b.WriteString(k + ": ")
		b.Write(value)
	}
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String()
}
