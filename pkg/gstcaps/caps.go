// Package gstcaps models GStreamer capability sets as plain Go values.
//
// A capability set is an ordered list of media structures, each naming a
// format family ("video/x-raw-yuv") and carrying typed fields such as
// width, height and framerate. The package parses and serializes the
// textual form GStreamer uses ("video/x-raw-yuv, width=(int)640, ...")
// and implements the set operations capability probing needs, so the
// probing and table derivation logic stays independent of any GStreamer
// runtime binding.
package gstcaps

import "strings"

// Field is a named, typed value inside a Structure.
type Field struct {
	Name  string
	Value Value
}

// Structure describes one media format: a family name plus its fields.
// Field order is preserved for serialization.
type Structure struct {
	name   string
	fields []Field
}

// NewStructure builds a structure from a family name and fields.
func NewStructure(name string, fields ...Field) *Structure {
	s := &Structure{name: name}
	s.fields = append(s.fields, fields...)
	return s
}

// Name returns the format family, e.g. "video/x-raw-yuv".
func (s *Structure) Name() string { return s.name }

// Fields returns the structure's fields in declaration order.
func (s *Structure) Fields() []Field { return s.fields }

// Value looks up a field by name.
func (s *Structure) Value(name string) (Value, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the named field or appends it when absent.
func (s *Structure) Set(name string, v Value) {
	for i, f := range s.fields {
		if f.Name == name {
			s.fields[i].Value = v
			return
		}
	}
	s.fields = append(s.fields, Field{Name: name, Value: v})
}

func (s *Structure) clone() *Structure {
	c := &Structure{name: s.name}
	c.fields = append(c.fields, s.fields...)
	return c
}

// String serializes the structure in GStreamer's textual form.
func (s *Structure) String() string {
	var b strings.Builder
	s.appendTo(&b)
	return b.String()
}

func (s *Structure) appendTo(b *strings.Builder) {
	b.WriteString(s.name)
	for _, f := range s.fields {
		b.WriteString(", ")
		b.WriteString(f.Name)
		b.WriteByte('=')
		writeAnnotated(b, f.Value)
	}
}

// intersect computes the common subset of two structures. Structures
// with different family names never intersect. Fields present on only
// one side carry over unchanged; fields present on both must have a
// non-empty value intersection.
func (s *Structure) intersect(o *Structure) (*Structure, bool) {
	if s.name != o.name {
		return nil, false
	}
	out := &Structure{name: s.name}
	for _, f := range s.fields {
		ov, ok := o.Value(f.Name)
		if !ok {
			out.fields = append(out.fields, f)
			continue
		}
		v, ok := intersectValues(f.Value, ov)
		if !ok {
			return nil, false
		}
		out.fields = append(out.fields, Field{Name: f.Name, Value: v})
	}
	for _, f := range o.fields {
		if _, ok := s.Value(f.Name); !ok {
			out.fields = append(out.fields, f)
		}
	}
	return out, true
}

// Caps is an ordered set of structures. The zero value is the empty set.
type Caps struct {
	any        bool
	structures []*Structure
}

// NewEmpty returns a capability set with no structures.
func NewEmpty() *Caps { return &Caps{} }

// NewAny returns the set that matches every format.
func NewAny() *Caps { return &Caps{any: true} }

// NewSimple returns a set holding a single structure.
func NewSimple(name string, fields ...Field) *Caps {
	return &Caps{structures: []*Structure{NewStructure(name, fields...)}}
}

// Append adds a copy of each structure to the set. Appending to ANY is
// a no-op since ANY already covers every format.
func (c *Caps) Append(structures ...*Structure) {
	if c.any {
		return
	}
	for _, s := range structures {
		c.structures = append(c.structures, s.clone())
	}
}

// AppendCaps adds copies of every structure from o.
func (c *Caps) AppendCaps(o *Caps) {
	if o == nil {
		return
	}
	if o.any {
		c.any = true
		c.structures = nil
		return
	}
	c.Append(o.structures...)
}

// Size returns the number of structures in the set.
func (c *Caps) Size() int { return len(c.structures) }

// StructureAt returns the i-th structure, or nil when out of range.
func (c *Caps) StructureAt(i int) *Structure {
	if i < 0 || i >= len(c.structures) {
		return nil
	}
	return c.structures[i]
}

// IsEmpty reports whether the set matches no format at all.
func (c *Caps) IsEmpty() bool { return !c.any && len(c.structures) == 0 }

// IsAny reports whether the set matches every format.
func (c *Caps) IsAny() bool { return c.any }

// Clone returns a deep copy of the set.
func (c *Caps) Clone() *Caps {
	out := &Caps{any: c.any}
	for _, s := range c.structures {
		out.structures = append(out.structures, s.clone())
	}
	return out
}

// Intersect returns the formats present in both sets. Structure order
// follows the receiver, so intersecting device capabilities with a
// policy filter keeps the device's own ordering.
func (c *Caps) Intersect(o *Caps) *Caps {
	if o == nil {
		return NewEmpty()
	}
	if c.any {
		return o.Clone()
	}
	if o.any {
		return c.Clone()
	}
	out := NewEmpty()
	seen := make(map[string]struct{})
	for _, sa := range c.structures {
		for _, sb := range o.structures {
			s, ok := sa.intersect(sb)
			if !ok {
				continue
			}
			key := s.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out.structures = append(out.structures, s)
		}
	}
	return out
}

// String serializes the set in GStreamer's textual form. The empty set
// serializes as "EMPTY" and the universal set as "ANY".
func (c *Caps) String() string {
	if c.any {
		return "ANY"
	}
	if len(c.structures) == 0 {
		return "EMPTY"
	}
	var b strings.Builder
	for i, s := range c.structures {
		if i > 0 {
			b.WriteString("; ")
		}
		s.appendTo(&b)
	}
	return b.String()
}
