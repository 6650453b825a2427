package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HintKind discriminates the Hint variants in storage and on the wire.
type HintKind string

// Hint kinds.
const (
	HintKindNone                 HintKind = "none"
	HintKindInfinitiveOnly       HintKind = "infinitive"
	HintKindInfinitiveWithPerson HintKind = "infinitive_person"
	HintKindInfinitiveWithForm   HintKind = "infinitive_form"
	HintKindFullRule             HintKind = "full_rule"
)

// Hint is the optional grammatical aid attached to an exercise.
// The set of implementations is closed: NoHint, InfinitiveOnly,
// InfinitiveWithPerson, InfinitiveWithForm and FullRule.
type Hint interface {
	Kind() HintKind
	hint()
}

// NoHint means the exercise carries no aid.
type NoHint struct{}

// InfinitiveOnly shows the dictionary form of the verb.
type InfinitiveOnly struct {
	Infinitive string
}

// InfinitiveWithPerson adds the grammatical person, e.g. "1st singular".
type InfinitiveWithPerson struct {
	Infinitive string
	Person     string
}

// InfinitiveWithForm adds the tense or form label, e.g. "preterite".
type InfinitiveWithForm struct {
	Infinitive string
	Form       string
}

// FullRule carries rule text. Infinitive, Person and Form may be empty.
type FullRule struct {
	Infinitive string
	Person     string
	Form       string
	Rule       string
}

func (NoHint) Kind() HintKind               { return HintKindNone }
func (InfinitiveOnly) Kind() HintKind       { return HintKindInfinitiveOnly }
func (InfinitiveWithPerson) Kind() HintKind { return HintKindInfinitiveWithPerson }
func (InfinitiveWithForm) Kind() HintKind   { return HintKindInfinitiveWithForm }
func (FullRule) Kind() HintKind             { return HintKindFullRule }

func (NoHint) hint()               {}
func (InfinitiveOnly) hint()       {}
func (InfinitiveWithPerson) hint() {}
func (InfinitiveWithForm) hint()   {}
func (FullRule) hint()             {}

// HintFields is the flat shape hints take in model output, seed files and JSON columns.
type HintFields struct {
	Kind       HintKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Infinitive string   `json:"infinitive,omitempty" yaml:"infinitive,omitempty"`
	Person     string   `json:"person,omitempty" yaml:"person,omitempty"`
	Form       string   `json:"form,omitempty" yaml:"form,omitempty"`
	Rule       string   `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// NewHint picks the variant that matches the fields present.
// Person or form without an infinitive carry no meaning and are dropped.
func NewHint(f HintFields) Hint {
	inf := strings.TrimSpace(f.Infinitive)
	person := strings.TrimSpace(f.Person)
	form := strings.TrimSpace(f.Form)
	rule := strings.TrimSpace(f.Rule)

	switch {
	case rule != "":
		return FullRule{Infinitive: inf, Person: person, Form: form, Rule: rule}
	case inf == "":
		return NoHint{}
	case person != "" && form != "":
		return FullRule{Infinitive: inf, Person: person, Form: form}
	case person != "":
		return InfinitiveWithPerson{Infinitive: inf, Person: person}
	case form != "":
		return InfinitiveWithForm{Infinitive: inf, Form: form}
	default:
		return InfinitiveOnly{Infinitive: inf}
	}
}

// FieldsOf flattens a hint. A nil hint is treated as NoHint.
func FieldsOf(h Hint) HintFields {
	switch v := h.(type) {
	case nil, NoHint:
		return HintFields{Kind: HintKindNone}
	case InfinitiveOnly:
		return HintFields{Kind: v.Kind(), Infinitive: v.Infinitive}
	case InfinitiveWithPerson:
		return HintFields{Kind: v.Kind(), Infinitive: v.Infinitive, Person: v.Person}
	case InfinitiveWithForm:
		return HintFields{Kind: v.Kind(), Infinitive: v.Infinitive, Form: v.Form}
	case FullRule:
		return HintFields{Kind: v.Kind(), Infinitive: v.Infinitive, Person: v.Person, Form: v.Form, Rule: v.Rule}
	default:
		panic(fmt.Sprintf("domain: unhandled hint type %T", h))
	}
}

// HasHint reports whether h carries any aid.
func HasHint(h Hint) bool {
	return h != nil && h.Kind() != HintKindNone
}

// EncodeHint serializes a hint for a JSON column.
func EncodeHint(h Hint) ([]byte, error) {
	return json.Marshal(FieldsOf(h))
}

// DecodeHint restores a hint written by EncodeHint. Empty input yields NoHint.
func DecodeHint(data []byte) (Hint, error) {
	if len(data) == 0 {
		return NoHint{}, nil
	}
	var f HintFields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode hint: %w", err)
	}
	return NewHint(f), nil
}
