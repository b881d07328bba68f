package docs

import (
	"encoding/json"
	"fmt"
)

type rawTechnologyDetail struct {
	Metadata               *rawMetadata                   `json:"metadata"`
	Abstract               []typedNode                    `json:"abstract"`
	PrimaryContentSections []kindNode                     `json:"primaryContentSections"`
	TopicSections          []kindNode                     `json:"topicSections"`
	RelationshipsSections  []kindNode                     `json:"relationshipsSections"`
	SeeAlsoSections        []rawSeeAlso                   `json:"seeAlsoSections"`
	References             map[Identifier]json.RawMessage `json:"references"`
	DiffAvailability       DiffAvailability               `json:"diffAvailability"`
}

type rawMetadata struct {
	Title       *string       `json:"title"`
	Role        string        `json:"role"`
	RoleHeading string        `json:"roleHeading"`
	Platforms   []rawPlatform `json:"platforms"`
	ExternalID  string        `json:"externalID"`
}

type rawPlatform struct {
	Name         string `json:"name"`
	IntroducedAt string `json:"introducedAt"`
	Current      string `json:"current"`
	Beta         bool   `json:"beta"`
	Deprecated   bool   `json:"deprecated"`
}

type rawDeclarations struct {
	Declarations []struct {
		Tokens []rawFragment `json:"tokens"`
	} `json:"declarations"`
}

type rawParameters struct {
	Parameters []struct {
		Name    string      `json:"name"`
		Content []typedNode `json:"content"`
	} `json:"parameters"`
}

type rawFragment struct {
	Text       string     `json:"text"`
	Kind       string     `json:"kind"`
	Identifier Identifier `json:"identifier"`
}

type rawTopicGroup struct {
	Title       string       `json:"title"`
	Identifiers []Identifier `json:"identifiers"`
	Anchor      string       `json:"anchor"`
	Type        string       `json:"type"`
}

type rawSeeAlso struct {
	Title       string       `json:"title"`
	Generated   bool         `json:"generated"`
	Identifiers []Identifier `json:"identifiers"`
}

type rawReference struct {
	Identifier     Identifier        `json:"identifier"`
	Type           string            `json:"type"`
	Title          string            `json:"title"`
	URL            string            `json:"url"`
	Kind           string            `json:"kind"`
	Role           string            `json:"role"`
	Abstract       []typedNode       `json:"abstract"`
	Fragments      []rawFragment     `json:"fragments"`
	NavigatorTitle []rawFragment     `json:"navigatorTitle"`
	Variants       []rawImageVariant `json:"variants"`
	Beta           bool              `json:"beta"`
}

type rawImageVariant struct {
	URL    string   `json:"url"`
	Traits []string `json:"traits"`
}

// DecodeTechnologyDetail decodes the render JSON of a documentation page.
//
// It fails only on invalid JSON, a missing metadata.title, or a field of the
// wrong JSON type. Unknown content tags decode to UnknownBlock/UnknownInline,
// absent optional sections decode to empty slices, and references that
// cannot be decoded are left out of the table.
func DecodeTechnologyDetail(data []byte) (*TechnologyDetail, error) {
	const op = "technology detail"

	var raw rawTechnologyDetail
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if raw.Metadata == nil {
		return nil, &DecodeError{Op: op, Field: "metadata", Err: errRequired}
	}
	if raw.Metadata.Title == nil {
		return nil, &DecodeError{Op: op, Field: "metadata.title", Err: errRequired}
	}

	detail := &TechnologyDetail{
		Metadata:         toMetadata(raw.Metadata),
		DiffAvailability: raw.DiffAvailability,
	}
	if detail.DiffAvailability == nil {
		detail.DiffAvailability = DiffAvailability{}
	}

	var err error
	if detail.Abstract, err = decodeInlines(raw.Abstract); err != nil {
		return nil, &DecodeError{Op: op, Field: "abstract", Err: err}
	}

	detail.PrimaryContents = make([]PrimaryContent, 0, len(raw.PrimaryContentSections))
	for i, section := range raw.PrimaryContentSections {
		pc, err := toPrimaryContent(section)
		if err != nil {
			return nil, &DecodeError{Op: op, Field: fmt.Sprintf("primaryContentSections[%d]", i), Err: err}
		}
		detail.PrimaryContents = append(detail.PrimaryContents, pc)
	}

	if detail.Topics, err = toTopics(raw.TopicSections); err != nil {
		return nil, &DecodeError{Op: op, Field: "topicSections", Err: err}
	}
	if detail.Relationships, err = toTopics(raw.RelationshipsSections); err != nil {
		return nil, &DecodeError{Op: op, Field: "relationshipsSections", Err: err}
	}

	detail.SeeAlso = make([]SeeAlso, 0, len(raw.SeeAlsoSections))
	for _, s := range raw.SeeAlsoSections {
		detail.SeeAlso = append(detail.SeeAlso, SeeAlso(s))
	}

	detail.References = make(map[Identifier]Reference, len(raw.References))
	for id, body := range raw.References {
		ref, ok := toReference(id, body)
		if !ok {
			continue
		}
		detail.References[id] = ref
	}

	return detail, nil
}

func toMetadata(raw *rawMetadata) Metadata {
	md := Metadata{
		Title:       *raw.Title,
		Role:        raw.Role,
		RoleHeading: raw.RoleHeading,
		ExternalID:  raw.ExternalID,
		Platforms:   make([]Platform, 0, len(raw.Platforms)),
	}
	for _, p := range raw.Platforms {
		if p.Name == "" {
			continue
		}
		md.Platforms = append(md.Platforms, Platform(p))
	}
	return md
}

func toPrimaryContent(section kindNode) (PrimaryContent, error) {
	pc := PrimaryContent{Kind: section.Kind}
	switch section.Kind {
	case "content":
		var raw rawBlockContainer
		if err := json.Unmarshal(section.Raw, &raw); err != nil {
			return pc, err
		}
		content, err := decodeBlocks(raw.Content)
		if err != nil {
			return pc, fmt.Errorf("content%w", err)
		}
		pc.Content = content

	case "declarations":
		var raw rawDeclarations
		if err := json.Unmarshal(section.Raw, &raw); err != nil {
			return pc, err
		}
		pc.Declarations = make([]Declaration, 0, len(raw.Declarations))
		for _, d := range raw.Declarations {
			pc.Declarations = append(pc.Declarations, Declaration{Tokens: toFragments(d.Tokens)})
		}

	case "parameters":
		var raw rawParameters
		if err := json.Unmarshal(section.Raw, &raw); err != nil {
			return pc, err
		}
		pc.Parameters = make([]Parameter, 0, len(raw.Parameters))
		for i, p := range raw.Parameters {
			content, err := decodeBlocks(p.Content)
			if err != nil {
				return pc, fmt.Errorf("parameters[%d]%w", i, err)
			}
			pc.Parameters = append(pc.Parameters, Parameter{Name: p.Name, Content: content})
		}
	}
	return pc, nil
}

func toFragments(raw []rawFragment) []Fragment {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Fragment, 0, len(raw))
	for _, f := range raw {
		out = append(out, Fragment{Text: f.Text, Kind: ParseFragmentKind(f.Kind), Identifier: f.Identifier})
	}
	return out
}

func toTopics(sections []kindNode) ([]Topic, error) {
	topics := make([]Topic, 0, len(sections))
	for i, section := range sections {
		var raw rawTopicGroup
		if err := json.Unmarshal(section.Raw, &raw); err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		topics = append(topics, toTopic(section, raw))
	}
	return topics, nil
}

// toTopic dispatches on kind. An absent kind, and any kind other than
// taskGroup or relationships, is a plain document topic.
func toTopic(section kindNode, raw rawTopicGroup) Topic {
	if section.HasKind {
		switch section.Kind {
		case "taskGroup":
			return TaskGroup{Title: raw.Title, Identifiers: raw.Identifiers, Anchor: raw.Anchor}
		case "relationships":
			return RelationshipGroup{Title: raw.Title, Identifiers: raw.Identifiers, Type: raw.Type}
		}
	}
	return DocumentTopic{Title: raw.Title, Identifiers: raw.Identifiers}
}

// toReference decodes one references entry. ok is false when the entry is
// malformed; the caller drops it.
func toReference(key Identifier, body json.RawMessage) (ref Reference, ok bool) {
	if len(body) == 0 || string(body) == "null" {
		return Reference{}, false
	}
	var raw rawReference
	if err := json.Unmarshal(body, &raw); err != nil {
		return Reference{}, false
	}
	abstract, err := decodeInlines(raw.Abstract)
	if err != nil {
		return Reference{}, false
	}

	ref = Reference{
		Identifier:     raw.Identifier,
		Type:           raw.Type,
		Title:          raw.Title,
		URL:            raw.URL,
		Kind:           raw.Kind,
		Role:           raw.Role,
		Fragments:      toFragments(raw.Fragments),
		NavigatorTitle: toFragments(raw.NavigatorTitle),
		Beta:           raw.Beta,
	}
	if ref.Identifier == "" {
		ref.Identifier = key
	}
	if len(abstract) > 0 {
		ref.Abstract = abstract
	}
	for _, v := range raw.Variants {
		variant := ImageVariant{URL: v.URL}
		for _, t := range v.Traits {
			if trait, ok := parseImageTrait(t); ok {
				variant.Traits = append(variant.Traits, trait)
			}
		}
		variant.Traits = uniqued(variant.Traits)
		ref.Variants = append(ref.Variants, variant)
	}
	return ref, true
}
