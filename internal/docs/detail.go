package docs

// TechnologyDetail is the decoded document of a single documentation page.
type TechnologyDetail struct {
	Metadata         Metadata                 `json:"metadata"`
	Abstract         []InlineContent          `json:"abstract"`
	PrimaryContents  []PrimaryContent         `json:"primaryContents"`
	Topics           []Topic                  `json:"topics"`
	Relationships    []Topic                  `json:"relationships"`
	SeeAlso          []SeeAlso                `json:"seeAlso"`
	References       map[Identifier]Reference `json:"references"`
	DiffAvailability DiffAvailability         `json:"diffAvailability"`
}

// Reference looks up id in the references table. The decoder never resolves
// identifiers itself; consumers call this when they need the target.
func (d *TechnologyDetail) Reference(id Identifier) (Reference, bool) {
	r, ok := d.References[id]
	return r, ok
}

// Metadata is the page header. RoleHeading and ExternalID are empty when absent.
type Metadata struct {
	Title       string     `json:"title"`
	Role        string     `json:"role"`
	RoleHeading string     `json:"roleHeading,omitempty"`
	Platforms   []Platform `json:"platforms"`
	ExternalID  string     `json:"externalID,omitempty"`
}

// Platform is the availability of the page's subject on one platform.
type Platform struct {
	Name         string `json:"name"`
	IntroducedAt string `json:"introducedAt,omitempty"`
	Current      string `json:"current,omitempty"`
	Beta         bool   `json:"beta"`
	Deprecated   bool   `json:"deprecated"`
}

// PrimaryContent is one primary content section. Kind is the raw section
// kind; only the fields matching it are populated.
type PrimaryContent struct {
	Kind         string         `json:"kind"`
	Content      []BlockContent `json:"content,omitempty"`
	Declarations []Declaration  `json:"declarations,omitempty"`
	Parameters   []Parameter    `json:"parameters,omitempty"`
}

// Declaration is a syntax-highlighted symbol declaration.
type Declaration struct {
	Tokens []Fragment `json:"tokens"`
}

// Parameter documents one parameter of a symbol.
type Parameter struct {
	Name    string         `json:"name"`
	Content []BlockContent `json:"content"`
}

// FragmentKind classifies a declaration token.
type FragmentKind int

const (
	FragmentText FragmentKind = iota
	FragmentKeyword
	FragmentIdentifier
	FragmentLabel
	FragmentTypeIdentifier
	FragmentGenericParameter
	FragmentInternalParam
	FragmentExternalParam
	FragmentAttribute
	FragmentNumber
)

var fragmentKindNames = [...]string{
	FragmentText:             "text",
	FragmentKeyword:          "keyword",
	FragmentIdentifier:       "identifier",
	FragmentLabel:            "label",
	FragmentTypeIdentifier:   "typeIdentifier",
	FragmentGenericParameter: "genericParameter",
	FragmentInternalParam:    "internalParam",
	FragmentExternalParam:    "externalParam",
	FragmentAttribute:        "attribute",
	FragmentNumber:           "number",
}

// ParseFragmentKind maps a wire kind to a FragmentKind. Unknown kinds are
// rendered as plain text.
func ParseFragmentKind(s string) FragmentKind {
	for k, name := range fragmentKindNames {
		if name == s {
			return FragmentKind(k)
		}
	}
	return FragmentText
}

func (k FragmentKind) String() string {
	if k < 0 || int(k) >= len(fragmentKindNames) {
		return "text"
	}
	return fragmentKindNames[k]
}

func (k FragmentKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Fragment is one token of a declaration or symbol title. Identifier, when
// set, links the token to an entry of the references table.
type Fragment struct {
	Text       string       `json:"text"`
	Kind       FragmentKind `json:"kind"`
	Identifier Identifier   `json:"identifier,omitempty"`
}

// Topic is a named group of identifiers: DocumentTopic, TaskGroup or
// RelationshipGroup.
type Topic interface {
	TopicTitle() string
	TopicIdentifiers() []Identifier
	isTopic()
}

// DocumentTopic is a topic section without a kind.
type DocumentTopic struct {
	Title       string       `json:"title"`
	Identifiers []Identifier `json:"identifiers"`
}

// TaskGroup is a topic section of kind "taskGroup".
type TaskGroup struct {
	Title       string       `json:"title"`
	Identifiers []Identifier `json:"identifiers"`
	Anchor      string       `json:"anchor"`
}

// RelationshipGroup is a topic section of kind "relationships"; Type is the
// relationship, e.g. "conformsTo".
type RelationshipGroup struct {
	Title       string       `json:"title"`
	Identifiers []Identifier `json:"identifiers"`
	Type        string       `json:"type"`
}

func (t DocumentTopic) TopicTitle() string                 { return t.Title }
func (t DocumentTopic) TopicIdentifiers() []Identifier     { return t.Identifiers }
func (t TaskGroup) TopicTitle() string                     { return t.Title }
func (t TaskGroup) TopicIdentifiers() []Identifier         { return t.Identifiers }
func (t RelationshipGroup) TopicTitle() string             { return t.Title }
func (t RelationshipGroup) TopicIdentifiers() []Identifier { return t.Identifiers }

func (DocumentTopic) isTopic()     {}
func (TaskGroup) isTopic()         {}
func (RelationshipGroup) isTopic() {}

// SeeAlso is a "See Also" group.
type SeeAlso struct {
	Title       string       `json:"title"`
	Generated   bool         `json:"generated"`
	Identifiers []Identifier `json:"identifiers"`
}

// Reference is an entry of the references side table.
type Reference struct {
	Identifier     Identifier      `json:"identifier"`
	Type           string          `json:"type,omitempty"`
	Title          string          `json:"title,omitempty"`
	URL            string          `json:"url,omitempty"`
	Kind           string          `json:"kind,omitempty"`
	Role           string          `json:"role,omitempty"`
	Abstract       []InlineContent `json:"abstract,omitempty"`
	Fragments      []Fragment      `json:"fragments,omitempty"`
	NavigatorTitle []Fragment      `json:"navigatorTitle,omitempty"`
	Variants       []ImageVariant  `json:"variants,omitempty"`
	Beta           bool            `json:"beta"`
}

// ImageTrait is a rendition trait of an image variant.
type ImageTrait string

const (
	Trait1x    ImageTrait = "1x"
	Trait2x    ImageTrait = "2x"
	TraitLight ImageTrait = "light"
	TraitDark  ImageTrait = "dark"
)

func parseImageTrait(s string) (ImageTrait, bool) {
	switch t := ImageTrait(s); t {
	case Trait1x, Trait2x, TraitLight, TraitDark:
		return t, true
	}
	return "", false
}

// ImageVariant is one rendition of an image reference.
type ImageVariant struct {
	URL    string       `json:"url"`
	Traits []ImageTrait `json:"traits"`
}

// HasTrait reports whether the variant carries t.
func (v ImageVariant) HasTrait(t ImageTrait) bool {
	for _, have := range v.Traits {
		if have == t {
			return true
		}
	}
	return false
}
