package docs

import (
	"encoding/json"
	"fmt"
)

type rawTechnologiesRoot struct {
	Sections         []kindNode                     `json:"sections"`
	References       map[Identifier]json.RawMessage `json:"references"`
	DiffAvailability DiffAvailability               `json:"diffAvailability"`
}

type rawTechnologiesSection struct {
	Groups []struct {
		Technologies []json.RawMessage `json:"technologies"`
	} `json:"groups"`
}

type rawTechnology struct {
	Title       string   `json:"title"`
	Languages   []string `json:"languages"`
	Tags        []string `json:"tags"`
	Destination *struct {
		Identifier Identifier `json:"identifier"`
		Type       string     `json:"type"`
		IsActive   bool       `json:"isActive"`
	} `json:"destination"`
}

type rawTopicReference struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Abstract []struct {
		Text *string `json:"text"`
	} `json:"abstract"`
}

// DecodeTechnologies decodes the technologies root payload.
//
// Only the section of kind "technologies" is read. Each entry is joined with
// the references table; entries that are malformed, inactive, unresolvable,
// not of type "topic", or without abstract text are dropped. The payload
// fails as a whole only when it is not JSON, lacks sections or references,
// or carries a malformed diffAvailability.
func DecodeTechnologies(data []byte) (Technologies, DiffAvailability, error) {
	const op = "technologies"

	var root rawTechnologiesRoot
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, nil, &DecodeError{Op: op, Err: err}
	}
	if root.Sections == nil {
		return nil, nil, &DecodeError{Op: op, Field: "sections", Err: errRequired}
	}
	if root.References == nil {
		return nil, nil, &DecodeError{Op: op, Field: "references", Err: errRequired}
	}

	technologies := Technologies{}
	for i, section := range root.Sections {
		if section.Kind != "technologies" {
			continue
		}
		var raw rawTechnologiesSection
		if err := json.Unmarshal(section.Raw, &raw); err != nil {
			return nil, nil, &DecodeError{Op: op, Field: fmt.Sprintf("sections[%d]", i), Err: err}
		}
		for _, group := range raw.Groups {
			for _, entry := range group.Technologies {
				if t, ok := resolveTechnology(entry, root.References); ok {
					technologies = append(technologies, t)
				}
			}
		}
	}

	diff := root.DiffAvailability
	if diff == nil {
		diff = DiffAvailability{}
	}
	return technologies, diff, nil
}

// resolveTechnology applies the filter-join for one raw entry.
func resolveTechnology(entry json.RawMessage, refs map[Identifier]json.RawMessage) (Technology, bool) {
	var tech rawTechnology
	if err := json.Unmarshal(entry, &tech); err != nil || tech.Destination == nil {
		return Technology{}, false
	}
	if !tech.Destination.IsActive {
		return Technology{}, false
	}
	body, ok := refs[tech.Destination.Identifier]
	if !ok {
		return Technology{}, false
	}
	var topic rawTopicReference
	if err := json.Unmarshal(body, &topic); err != nil || topic.Type != "topic" {
		return Technology{}, false
	}
	abstract, ok := firstAbstractText(topic)
	if !ok {
		return Technology{}, false
	}

	languages := make([]Language, 0, len(tech.Languages))
	for _, l := range tech.Languages {
		languages = append(languages, ParseLanguage(l))
	}
	tags := uniqued(tech.Tags)
	if tags == nil {
		tags = []string{}
	}

	return Technology{
		Title:     tech.Title,
		Languages: uniqued(languages),
		Tags:      tags,
		Destination: Destination{
			Identifier: tech.Destination.Identifier,
			Title:      topic.Title,
			Value:      DocumentPath(topic.URL),
			Abstract:   abstract,
		},
	}, true
}

func firstAbstractText(topic rawTopicReference) (string, bool) {
	for _, a := range topic.Abstract {
		if a.Text != nil {
			return *a.Text, true
		}
	}
	return "", false
}
