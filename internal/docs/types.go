package docs

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Identifier is an opaque documentation identifier such as
// "doc://com.apple.documentation/documentation/swiftui". It keys the
// references table and is embedded in content nodes as a link target.
// Equality is plain string equality.
type Identifier string

func (id Identifier) String() string { return string(id) }

// DocumentPath is the URL path of a documentation page, e.g.
// "/documentation/swiftui". It addresses detail, index and diff payloads.
type DocumentPath string

func (p DocumentPath) String() string { return string(p) }

// Language is an interface language a technology is documented in.
type Language int

const (
	LanguageOther Language = iota
	LanguageSwift
	LanguageObjectiveC
)

// ParseLanguage maps the wire value ("swift", "occ", "data") to a Language.
// Anything unrecognized is LanguageOther.
func ParseLanguage(s string) Language {
	switch s {
	case "swift":
		return LanguageSwift
	case "occ":
		return LanguageObjectiveC
	default:
		return LanguageOther
	}
}

func (l Language) String() string {
	switch l {
	case LanguageSwift:
		return "swift"
	case LanguageObjectiveC:
		return "objc"
	default:
		return "other"
	}
}

func (l Language) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Language) UnmarshalText(b []byte) error {
	switch string(b) {
	case "objc":
		*l = LanguageObjectiveC
	default:
		*l = ParseLanguage(string(b))
	}
	return nil
}

// Technology is one browsable entry of the technologies list.
type Technology struct {
	Title       string      `json:"title"`
	Languages   []Language  `json:"languages"`
	Tags        []string    `json:"tags"`
	Destination Destination `json:"destination"`
}

// Destination is the page a Technology leads to.
// Two destinations are the same destination iff their identifiers match.
type Destination struct {
	Identifier Identifier   `json:"identifier"`
	Title      string       `json:"title"`
	Value      DocumentPath `json:"value"`
	Abstract   string       `json:"abstract"`
}

// Equal reports whether d and o point at the same identifier.
// Title, Value and Abstract are ignored.
func (d Destination) Equal(o Destination) bool { return d.Identifier == o.Identifier }

// Key returns the value to use when a Destination keys a map.
func (d Destination) Key() Identifier { return d.Identifier }

// Technologies is the decoded technologies list.
type Technologies []Technology

// Filter returns the technologies carrying tag, compared case-insensitively,
// preserving order. An empty tag returns all technologies.
func (ts Technologies) Filter(tag string) Technologies {
	if tag == "" {
		return ts
	}
	var out Technologies
	for _, t := range ts {
		if slices.ContainsFunc(t.Tags, func(s string) bool { return strings.EqualFold(s, tag) }) {
			out = append(out, t)
		}
	}
	return out
}

// Tags returns the union of all tags in order of first occurrence.
func (ts Technologies) Tags() []string {
	var tags []string
	for _, t := range ts {
		tags = append(tags, t.Tags...)
	}
	return uniqued(tags)
}

// DiffKey selects one of the availability deltas.
type DiffKey string

const (
	DiffMinor DiffKey = "minor"
	DiffMajor DiffKey = "major"
	DiffBeta  DiffKey = "beta"
)

// ParseDiffKey validates a diff key name.
func ParseDiffKey(s string) (DiffKey, error) {
	switch k := DiffKey(s); k {
	case DiffMinor, DiffMajor, DiffBeta:
		return k, nil
	}
	return "", fmt.Errorf("unknown diff key %q (want minor, major or beta)", s)
}

// keyRank orders keys with equal versions: beta, minor, major, then the rest.
func keyRank(k DiffKey) int {
	switch k {
	case DiffBeta:
		return 0
	case DiffMinor:
		return 1
	case DiffMajor:
		return 2
	default:
		return 3
	}
}

// DiffVersions is the [from, to] pair of a delta. On the wire it is a
// two-element array.
type DiffVersions struct {
	From string
	To   string
}

func (v *DiffVersions) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("versions: want [from, to], got %d elements", len(raw))
	}
	v.From, v.To = raw[0], raw[1]
	return nil
}

func (v DiffVersions) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{v.From, v.To})
}

// DiffPayload describes one availability delta.
type DiffPayload struct {
	Change   string       `json:"change"`
	Platform string       `json:"platform"`
	Versions DiffVersions `json:"versions"`
}

// Compare orders payloads by the version they diff from. Digit runs
// compare numerically, so "9.0" sorts before "10.0".
func (p DiffPayload) Compare(o DiffPayload) int {
	return compareVersions(p.Versions.From, o.Versions.From)
}

func compareVersions(a, b string) int {
	for a != "" && b != "" {
		da, db := isDigit(a[0]), isDigit(b[0])
		if da && db {
			na, ra := splitDigits(a)
			nb, rb := splitDigits(b)
			na, nb = strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if c := cmp.Compare(len(na), len(nb)); c != 0 {
				return c
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return cmp.Compare(a[0], b[0])
		}
		a, b = a[1:], b[1:]
	}
	return cmp.Compare(len(a), len(b))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// DiffAvailability maps a delta key to its payload.
type DiffAvailability map[DiffKey]DiffPayload

// DiffEntry is one key/payload pair of a DiffAvailability.
type DiffEntry struct {
	Key     DiffKey     `json:"key"`
	Payload DiffPayload `json:"payload"`
}

func (d DiffAvailability) Len() int { return len(d) }

func (d DiffAvailability) Get(key DiffKey) (DiffPayload, bool) {
	p, ok := d[key]
	return p, ok
}

// Sorted returns the entries newest-first: descending by Versions.From,
// ties broken by beta, minor, major and then key name.
func (d DiffAvailability) Sorted() []DiffEntry {
	entries := make([]DiffEntry, 0, len(d))
	for k, p := range d {
		entries = append(entries, DiffEntry{Key: k, Payload: p})
	}
	slices.SortFunc(entries, func(a, b DiffEntry) int {
		if c := b.Payload.Compare(a.Payload); c != 0 {
			return c
		}
		if r := keyRank(a.Key) - keyRank(b.Key); r != 0 {
			return r
		}
		return strings.Compare(string(a.Key), string(b.Key))
	})
	return entries
}

// Change is the annotation attached to a changed symbol.
type Change string

const (
	ChangeModified Change = "modified"
	ChangeAdded    Change = "added"
)

// Changes maps identifiers to their change annotation. Entries without a
// recognizable annotation are absent.
type Changes map[Identifier]Change

func (c Changes) Len() int { return len(c) }

func (c Changes) Get(id Identifier) (Change, bool) {
	ch, ok := c[id]
	return ch, ok
}

// uniqued drops duplicates, keeping the first occurrence of each value.
func uniqued[T comparable](in []T) []T {
	if in == nil {
		return nil
	}
	seen := make(map[T]bool, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
