package graph

import (
	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"
	"github.com/volatiletech/strmangle"
)

type AssocType int

const (
	HasMany AssocType = iota
	HasOne
	BelongsTo
)

func (t AssocType) String() string {
	switch t {
	case HasMany:
		return "has_many"
	case HasOne:
		return "has_one"
	case BelongsTo:
		return "belongs_to"
	}
	return "unknown"
}

// Association is a directed edge from an owner kind to a related kind.
//
// For HasMany and HasOne the ForeignKey column lives on the related kind and
// points at the owner; for BelongsTo it lives on the owner and points at the
// related kind. TypeField names the polymorphic discriminator column (e.g.
// "context_type") on whichever side holds the foreign key.
type Association struct {
	Name       string
	Type       AssocType
	Kind       Kind
	ForeignKey string
	TypeField  string
}

func HasManyOf(name string, kind Kind, fk string) Association {
	return Association{Name: name, Type: HasMany, Kind: kind, ForeignKey: fk}
}

func HasOneOf(name string, kind Kind, fk string) Association {
	return Association{Name: name, Type: HasOne, Kind: kind, ForeignKey: fk}
}

func BelongsToOne(name string, kind Kind, fk string) Association {
	return Association{Name: name, Type: BelongsTo, Kind: kind, ForeignKey: fk}
}

// Polymorphic marks the association as discriminated by typeField.
func (a Association) Polymorphic(typeField string) Association {
	a.TypeField = typeField
	return a
}

// IsChild reports whether ownership points away from the owner.
func (a Association) IsChild() bool { return a.Type == HasMany || a.Type == HasOne }

// Model declares everything the engine needs to know about one kind.
type Model struct {
	Kind         Kind
	Table        string // defaults to the pluralized snake case of Kind
	Associations []Association
	Deletion     Deletion
}

func (m *Model) Children() []Association {
	var out []Association
	for _, a := range m.Associations {
		if a.IsChild() {
			out = append(out, a)
		}
	}
	return out
}

func (m *Model) Parents() []Association {
	var out []Association
	for _, a := range m.Associations {
		if a.Type == BelongsTo {
			out = append(out, a)
		}
	}
	return out
}

func (m *Model) Association(name string) (Association, bool) {
	for _, a := range m.Associations {
		if a.Name == name {
			return a, true
		}
	}
	return Association{}, false
}

// Inbound is a belongs-to edge that points at some kind from another one.
type Inbound struct {
	From        Kind
	Association Association
}

// Schema is the static registry of every kind, its table and its edges.
type Schema struct {
	models  map[Kind]*Model
	kinds   []Kind
	inbound map[Kind][]Inbound
}

// TableName is the default table name for a kind.
func TableName(k Kind) string {
	return inflection.Plural(strmangle.SnakeCase(string(k)))
}

// NewSchema validates and indexes the given models. Every kind must declare a
// deletion strategy with at least one capability, tables must be unique and
// every association must target a declared kind.
func NewSchema(models ...Model) (*Schema, error) {
	s := &Schema{
		models:  make(map[Kind]*Model, len(models)),
		inbound: make(map[Kind][]Inbound),
	}
	tables := make(map[string]Kind, len(models))
	for i := range models {
		m := models[i]
		if m.Kind == "" {
			return nil, errors.Errorf("model %d has no kind", i)
		}
		if _, dup := s.models[m.Kind]; dup {
			return nil, errors.Errorf("kind %s declared twice", m.Kind)
		}
		if m.Table == "" {
			m.Table = TableName(m.Kind)
		}
		if other, dup := tables[m.Table]; dup {
			return nil, errors.Errorf("table %q declared by both %s and %s", m.Table, other, m.Kind)
		}
		if !hasCapability(m.Deletion) {
			return nil, errors.Errorf("kind %s declares no deletion capability", m.Kind)
		}
		tables[m.Table] = m.Kind
		s.models[m.Kind] = &m
		s.kinds = append(s.kinds, m.Kind)
	}

	for _, k := range s.kinds {
		m := s.models[k]
		names := make(map[string]bool, len(m.Associations))
		for _, a := range m.Associations {
			if names[a.Name] {
				return nil, errors.Errorf("%s.%s declared twice", k, a.Name)
			}
			names[a.Name] = true
			if a.ForeignKey == "" {
				return nil, errors.Errorf("%s.%s has no foreign key", k, a.Name)
			}
			if _, ok := s.models[a.Kind]; !ok {
				return nil, errors.Errorf("%s.%s targets undeclared kind %q", k, a.Name, a.Kind)
			}
			if a.Type == BelongsTo && a.TypeField == "" {
				s.inbound[a.Kind] = append(s.inbound[a.Kind], Inbound{From: k, Association: a})
			}
		}
	}
	return s, nil
}

// MustSchema is NewSchema that panics; for package-level registries.
func MustSchema(models ...Model) *Schema {
	s, err := NewSchema(models...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Model(k Kind) (*Model, bool) {
	m, ok := s.models[k]
	return m, ok
}

// Kinds returns the declared kinds in declaration order.
func (s *Schema) Kinds() []Kind {
	out := make([]Kind, len(s.kinds))
	copy(out, s.kinds)
	return out
}

func (s *Schema) Table(k Kind) string {
	if m, ok := s.models[k]; ok {
		return m.Table
	}
	return TableName(k)
}

// Inbound returns the non-polymorphic belongs-to edges that reference k, i.e.
// the foreign keys a row of k must be free of before it can be removed.
func (s *Schema) Inbound(k Kind) []Inbound {
	return s.inbound[k]
}
