// Package metadata implements the multivalued key/value records describing
// items and attachments. A field is either single valued, holding one
// string, or multivalued, holding an ordered list of strings or structured
// entries. The field lists here follow the repository's descriptive
// metadata schema; names not in either list are treated as multivalued
// since the server's schema grows faster than this client.
package metadata

import (
	"errors"
)

// The repository's field classes. Anything not in StringFields is stored
// as a list, even when it holds a single entry.
var (
	ListFields = []string{
		"title",
		"subject",
		"description",
		"extent",
		"type",
		"contributor",
		"language",
		"notes",
		"series",
		"identifier",
		"citation",
	}
	StringFields = []string{
		"created",
		"rights",
		"file_access",
		"derivative_access",
	}
)

// ErrNoField is returned when a single valued field is read but absent.
var ErrNoField = errors.New("no such metadata field")

// ErrBadKind is returned for a description kind outside the allowed set.
var ErrBadKind = errors.New("unknown description kind")

// A Description is one entry in the "description" field.
type Description struct {
	Value string `json:"value"`
	Kind  string `json:"type,omitempty"`
}

// A Contributor is one entry in the "contributor" field. Institutional
// contributors put their whole name in Last and leave Rest empty.
type Contributor struct {
	Last          string   `json:"last"`
	Rest          string   `json:"rest"`
	Roles         []string `json:"roles"`
	IsInstitution bool     `json:"is_institution"`
}

// An Identifier is one entry in the "identifier" field.
type Identifier struct {
	Value string `json:"value"`
	Kind  string `json:"type,omitempty"`
}

// A Record maps field names to their values: a string for single valued
// fields, a []interface{} for multivalued ones. It marshals directly into
// the manifest JSON shape. The zero value is not usable; make one with New
// or an empty Record{} literal.
type Record map[string]interface{}

// New makes a Record from seed values, coercing each one per its field
// class. A scalar given for a multivalued field becomes a one element
// list. []string values are widened so later entries of other types can
// join the same list.
func New(seed map[string]interface{}) Record {
	r := Record{}
	for field, value := range seed {
		r.Set(field, value)
	}
	return r
}

// IsMultiValued tells whether the named field stores a list.
func IsMultiValued(field string) bool {
	for _, s := range StringFields {
		if s == field {
			return false
		}
	}
	return true
}

// Set assigns a field, applying the multivalued coercion rule. On a
// multivalued field it replaces the whole list; use Add to append.
func (r Record) Set(field string, value interface{}) {
	if !IsMultiValued(field) {
		r[field] = value
		return
	}
	switch v := value.(type) {
	case []interface{}:
		r[field] = v
	case []string:
		list := make([]interface{}, 0, len(v))
		for _, s := range v {
			list = append(list, s)
		}
		r[field] = list
	default:
		r[field] = []interface{}{value}
	}
}

// Entries returns the list stored under field. An absent field is
// initialized to an empty list first, so the field is present afterwards.
// A scalar already stored there is wrapped in place.
func (r Record) Entries(field string) []interface{} {
	v, ok := r[field]
	if !ok {
		list := []interface{}{}
		r[field] = list
		return list
	}
	list, ok := v.([]interface{})
	if !ok {
		list = []interface{}{v}
		r[field] = list
	}
	return list
}

// Add appends entries to a multivalued field.
func (r Record) Add(field string, values ...interface{}) {
	r[field] = append(r.Entries(field), values...)
}

// String reads a single valued field. Absent fields return ErrNoField.
func (r Record) String(field string) (string, error) {
	v, ok := r[field]
	if !ok {
		return "", ErrNoField
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrNoField
	}
	return s, nil
}

// AddDescription appends a description. kind may be empty, "abstract", or
// "tableOfContents"; anything else returns ErrBadKind.
func (r Record) AddDescription(text string, kind string) error {
	switch kind {
	case "", "abstract", "tableOfContents":
	default:
		return ErrBadKind
	}
	r.Add("description", Description{Value: text, Kind: kind})
	return nil
}

// AddPersonalContributor appends a person to the contributor field.
func (r Record) AddPersonalContributor(lastName, restOfName string, roles ...string) {
	r.addContributor(lastName, restOfName, roles, false)
}

// AddInstitutionalContributor appends an institution to the contributor
// field.
func (r Record) AddInstitutionalContributor(name string, roles ...string) {
	r.addContributor(name, "", roles, true)
}

func (r Record) addContributor(last, rest string, roles []string, isInstitution bool) {
	if roles == nil {
		roles = []string{}
	}
	r.Add("contributor", Contributor{
		Last:          last,
		Rest:          rest,
		Roles:         roles,
		IsInstitution: isInstitution,
	})
}

// AddIdentifier appends an identifier, optionally tagged with a kind such
// as "doi" or "isbn".
func (r Record) AddIdentifier(value string, kind string) {
	r.Add("identifier", Identifier{Value: value, Kind: kind})
}

// AddNote appends free text to the notes field.
func (r Record) AddNote(text string) {
	r.Add("notes", text)
}

// Copy returns a shallow copy of the record. List headers are duplicated
// so appends to the copy do not show in the original.
func (r Record) Copy() Record {
	out := make(Record, len(r))
	for field, value := range r {
		if list, ok := value.([]interface{}); ok {
			dup := make([]interface{}, len(list))
			copy(dup, list)
			out[field] = dup
			continue
		}
		out[field] = value
	}
	return out
}
