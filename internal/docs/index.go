package docs

// IndexKind is the symbol kind of an index node. Known kinds compare equal
// to the Kind* variables; anything else is UnknownIndexKind(tag).
type IndexKind struct {
	tag   string
	known bool
}

var (
	KindModule      = IndexKind{"module", true}
	KindGroupMarker = IndexKind{"groupMarker", true}
	KindProtocol    = IndexKind{"protocol", true}
	KindClass       = IndexKind{"class", true}
	KindStruct      = IndexKind{"struct", true}
	KindEnum        = IndexKind{"enum", true}
	KindCollection  = IndexKind{"collection", true}
	KindProperty    = IndexKind{"property", true}
	KindMethod      = IndexKind{"method", true}
	KindInit        = IndexKind{"init", true}
	KindFunc        = IndexKind{"func", true}
	KindCase        = IndexKind{"case", true}
)

var indexKinds = []IndexKind{
	KindModule, KindGroupMarker, KindProtocol, KindClass, KindStruct, KindEnum,
	KindCollection, KindProperty, KindMethod, KindInit, KindFunc, KindCase,
}

// UnknownIndexKind wraps a tag that is not one of the known kinds.
func UnknownIndexKind(tag string) IndexKind { return IndexKind{tag: tag} }

// ParseIndexKind maps an index node type to its kind by exact match.
func ParseIndexKind(tag string) IndexKind {
	for _, k := range indexKinds {
		if k.tag == tag {
			return k
		}
	}
	return UnknownIndexKind(tag)
}

// String returns the wire tag.
func (k IndexKind) String() string { return k.tag }

func (k IndexKind) IsUnknown() bool { return !k.known }

func (k IndexKind) MarshalText() ([]byte, error) { return []byte(k.tag), nil }

func (k *IndexKind) UnmarshalText(b []byte) error {
	*k = ParseIndexKind(string(b))
	return nil
}

// TechnologyDetailIndex is a node of a technology's symbol index tree.
// Path is empty when the node has none.
type TechnologyDetailIndex struct {
	Title      string                  `json:"title"`
	Path       DocumentPath            `json:"path,omitempty"`
	External   bool                    `json:"external"`
	Deprecated bool                    `json:"deprecated"`
	Kind       IndexKind               `json:"kind"`
	Children   []TechnologyDetailIndex `json:"children"`
}

// Walk visits n and its descendants depth-first. depth is 0 for n.
// Returning false from fn skips the node's children.
func (n TechnologyDetailIndex) Walk(fn func(node TechnologyDetailIndex, depth int) bool) {
	n.walk(fn, 0)
}

func (n TechnologyDetailIndex) walk(fn func(TechnologyDetailIndex, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}
