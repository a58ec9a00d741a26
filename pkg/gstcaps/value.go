package gstcaps

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a typed field value inside a Structure. The concrete types
// mirror the subset of the GStreamer type system that capability
// descriptions use: fixed scalars, inclusive ranges and lists.
type Value interface {
	// String serializes the value without its type annotation.
	String() string

	typeName() string
}

// Int is a fixed integer value.
type Int int

func (v Int) String() string   { return strconv.Itoa(int(v)) }
func (v Int) typeName() string { return "int" }

// IntRange is an inclusive integer range. Step is the increment between
// valid values; zero or one means every integer in the range is valid.
type IntRange struct {
	Min  int
	Max  int
	Step int
}

func (v IntRange) String() string {
	if v.Step > 1 {
		return fmt.Sprintf("[ %d, %d, %d ]", v.Min, v.Max, v.Step)
	}
	return fmt.Sprintf("[ %d, %d ]", v.Min, v.Max)
}

func (v IntRange) typeName() string { return "int" }

// contains reports whether n is a valid member of the range.
func (v IntRange) contains(n int) bool {
	if n < v.Min || n > v.Max {
		return false
	}
	if v.Step > 1 {
		return (n-v.Min)%v.Step == 0
	}
	return true
}

// Fraction is an exact rational value, typically a frame rate.
type Fraction struct {
	Num int
	Den int
}

func (v Fraction) String() string   { return fmt.Sprintf("%d/%d", v.Num, v.Den) }
func (v Fraction) typeName() string { return "fraction" }

// Cmp compares two fractions, returning -1, 0 or 1.
func (v Fraction) Cmp(o Fraction) int {
	a := int64(v.Num) * int64(o.Den)
	b := int64(o.Num) * int64(v.Den)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FractionRange is an inclusive range of fractions.
type FractionRange struct {
	Min Fraction
	Max Fraction
}

func (v FractionRange) String() string {
	return fmt.Sprintf("[ %s, %s ]", v.Min.String(), v.Max.String())
}

func (v FractionRange) typeName() string { return "fraction" }

func (v FractionRange) contains(f Fraction) bool {
	return v.Min.Cmp(f) <= 0 && f.Cmp(v.Max) <= 0
}

// Str is a string value.
type Str string

func (v Str) String() string {
	if needsQuoting(string(v)) {
		return strconv.Quote(string(v))
	}
	return string(v)
}

func (v Str) typeName() string { return "string" }

// FourCC is a four character media format code such as YUY2 or I420.
type FourCC string

func (v FourCC) String() string   { return string(v) }
func (v FourCC) typeName() string { return "fourcc" }

// Bool is a boolean value.
type Bool bool

func (v Bool) String() string {
	if v {
		return "true"
	}
	return "false"
}

func (v Bool) typeName() string { return "boolean" }

// List is an unordered set of alternative values.
type List []Value

func (v List) String() string {
	var b strings.Builder
	b.WriteString("{ ")
	for i, m := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.String())
	}
	b.WriteString(" }")
	return b.String()
}

func (v List) typeName() string { return "" }

// memberType returns the shared annotation name when every member has
// the same type, or "" for mixed lists.
func (v List) memberType() string {
	if len(v) == 0 {
		return ""
	}
	tn := v[0].typeName()
	for _, m := range v[1:] {
		if m.typeName() != tn {
			return ""
		}
	}
	return tn
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '+' || r == '.' || r == ':' || r == '/':
		default:
			return true
		}
	}
	return false
}

// writeAnnotated serializes a value with its GStreamer type annotation,
// e.g. "(int)640" or "(fraction)[ 0/1, 30/1 ]".
func writeAnnotated(b *strings.Builder, v Value) {
	if l, ok := v.(List); ok {
		if tn := l.memberType(); tn != "" {
			b.WriteByte('(')
			b.WriteString(tn)
			b.WriteByte(')')
			b.WriteString(l.String())
			return
		}
		b.WriteString("{ ")
		for i, m := range l {
			if i > 0 {
				b.WriteString(", ")
			}
			writeAnnotated(b, m)
		}
		b.WriteString(" }")
		return
	}
	b.WriteByte('(')
	b.WriteString(v.typeName())
	b.WriteByte(')')
	b.WriteString(v.String())
}

// intersectValues computes the common subset of two values. The second
// return is false when the values have nothing in common.
func intersectValues(a, b Value) (Value, bool) {
	// Lists distribute over every other kind, including other lists.
	if la, ok := a.(List); ok {
		return intersectList(la, b)
	}
	if lb, ok := b.(List); ok {
		return intersectList(lb, a)
	}

	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			if av == bv {
				return av, true
			}
		case IntRange:
			if bv.contains(int(av)) {
				return av, true
			}
		}
	case IntRange:
		switch bv := b.(type) {
		case Int:
			if av.contains(int(bv)) {
				return bv, true
			}
		case IntRange:
			return intersectIntRanges(av, bv)
		}
	case Fraction:
		switch bv := b.(type) {
		case Fraction:
			if av.Cmp(bv) == 0 {
				return av, true
			}
		case FractionRange:
			if bv.contains(av) {
				return av, true
			}
		}
	case FractionRange:
		switch bv := b.(type) {
		case Fraction:
			if av.contains(bv) {
				return bv, true
			}
		case FractionRange:
			lo := av.Min
			if bv.Min.Cmp(lo) > 0 {
				lo = bv.Min
			}
			hi := av.Max
			if bv.Max.Cmp(hi) < 0 {
				hi = bv.Max
			}
			switch lo.Cmp(hi) {
			case 1:
				return nil, false
			case 0:
				return lo, true
			default:
				return FractionRange{Min: lo, Max: hi}, true
			}
		}
	case Str:
		if bv, ok := b.(Str); ok && av == bv {
			return av, true
		}
	case FourCC:
		if bv, ok := b.(FourCC); ok && av == bv {
			return av, true
		}
	case Bool:
		if bv, ok := b.(Bool); ok && av == bv {
			return av, true
		}
	}
	return nil, false
}

func intersectIntRanges(a, b IntRange) (Value, bool) {
	lo := a.Min
	if b.Min > lo {
		lo = b.Min
	}
	hi := a.Max
	if b.Max < hi {
		hi = b.Max
	}
	if lo > hi {
		return nil, false
	}
	step := 1
	if a.Step == b.Step {
		step = a.Step
	}
	if lo == hi {
		return Int(lo), true
	}
	return IntRange{Min: lo, Max: hi, Step: step}, true
}

func intersectList(l List, other Value) (Value, bool) {
	var out List
	seen := make(map[string]struct{})
	for _, m := range l {
		v, ok := intersectValues(m, other)
		if !ok {
			continue
		}
		key := v.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	switch len(out) {
	case 0:
		return nil, false
	case 1:
		return out[0], true
	default:
		return out, true
	}
}
