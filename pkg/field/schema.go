// Package field implements the schema-driven value container shared by every
// table. A Schema is an immutable list of typed field descriptors; a Data is
// the per-operation bag of values keyed by field ID, restricted to an active
// field set.
package field

import (
	"fmt"
	"strings"

	"github.com/newtron-network/portmgr/pkg/util"
)

// ID identifies a field within one schema. IDs are 1-based.
type ID uint32

// Type is the declared data type of a field.
type Type uint8

const (
	TypeBool Type = iota + 1
	TypeU32
	TypeU64
	TypeI64
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeI64:
		return "i64"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// maxWidth is the natural bit width of each numeric type.
func (t Type) maxWidth() uint8 {
	switch t {
	case TypeBool:
		return 1
	case TypeU32:
		return 32
	case TypeU64, TypeI64:
		return 64
	default:
		return 0
	}
}

// Descriptor declares one field of a schema.
type Descriptor struct {
	ID       ID
	Name     string
	Type     Type
	Width    uint8 // bits; 0 means the type's natural width
	ReadOnly bool
}

// Schema is the immutable field list of one table.
type Schema struct {
	name   string
	descs  []Descriptor
	byID   map[ID]int
	byName map[string]int
}

// NewSchema validates descs and builds a schema. IDs must be unique and
// non-zero, and widths may not exceed the natural width of the type.
func NewSchema(name string, descs ...Descriptor) (*Schema, error) {
	s := &Schema{
		name:   name,
		descs:  make([]Descriptor, 0, len(descs)),
		byID:   make(map[ID]int, len(descs)),
		byName: make(map[string]int, len(descs)),
	}
	for _, d := range descs {
		if d.ID == 0 {
			return nil, fmt.Errorf("schema %s: field %q has id 0", name, d.Name)
		}
		if _, dup := s.byID[d.ID]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field id %d", name, d.ID)
		}
		key := util.NormalizeFieldName(d.Name)
		if _, dup := s.byName[key]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field name %q", name, d.Name)
		}
		if d.Type < TypeBool || d.Type > TypeString {
			return nil, fmt.Errorf("schema %s: field %q has unknown type", name, d.Name)
		}
		if max := d.Type.maxWidth(); d.Width == 0 {
			d.Width = max
		} else if d.Width > max && d.Type != TypeString {
			return nil, fmt.Errorf("schema %s: field %q width %d exceeds %s", name, d.Name, d.Width, d.Type)
		}
		s.byID[d.ID] = len(s.descs)
		s.byName[key] = len(s.descs)
		s.descs = append(s.descs, d)
	}
	return s, nil
}

// MustSchema is NewSchema for package-level schema tables.
func MustSchema(name string, descs ...Descriptor) *Schema {
	s, err := NewSchema(name, descs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the table name the schema belongs to.
func (s *Schema) Name() string { return s.name }

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.descs) }

// Descriptor returns the descriptor for id.
func (s *Schema) Descriptor(id ID) (Descriptor, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return s.descs[i], true
}

// Lookup finds a field by name. Matching ignores case and an optional
// leading "$".
func (s *Schema) Lookup(name string) (Descriptor, bool) {
	i, ok := s.byName[util.NormalizeFieldName(name)]
	if !ok {
		return Descriptor{}, false
	}
	return s.descs[i], true
}

// IDs returns every field ID in declaration order.
func (s *Schema) IDs() []ID {
	ids := make([]ID, len(s.descs))
	for i, d := range s.descs {
		ids[i] = d.ID
	}
	return ids
}

// Descriptors returns a copy of the field list in declaration order.
func (s *Schema) Descriptors() []Descriptor {
	out := make([]Descriptor, len(s.descs))
	copy(out, s.descs)
	return out
}

// IDsByName resolves a list of field names, as accepted on the command
// line, to IDs.
func (s *Schema) IDsByName(names ...string) ([]ID, error) {
	ids := make([]ID, 0, len(names))
	var unknown []string
	for _, n := range names {
		d, ok := s.Lookup(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		ids = append(ids, d.ID)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown field(s) in %s: %s", util.ErrInvalidArgument, s.name, strings.Join(unknown, ", "))
	}
	return ids, nil
}

func (s *Schema) fieldName(id ID) string {
	if d, ok := s.Descriptor(id); ok {
		return d.Name
	}
	return fmt.Sprintf("field#%d", id)
}
