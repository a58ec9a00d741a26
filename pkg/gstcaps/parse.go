package gstcaps

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads GStreamer's textual capability form, e.g.
//
//	video/x-raw-yuv, width=(int)[ 160, 2592 ], framerate=(fraction)30/1; video/x-raw-rgb, ...
//
// The literals "ANY" and "EMPTY" (or "NONE") parse to the corresponding
// sets. Unannotated values are inferred as int, then fraction, then
// boolean, then string; unrecognized type annotations fall back to
// string so exotic device fields never fail the whole parse.
func Parse(s string) (*Caps, error) {
	switch strings.TrimSpace(s) {
	case "":
		return nil, fmt.Errorf("gstcaps: empty capability string")
	case "ANY":
		return NewAny(), nil
	case "EMPTY", "NONE":
		return NewEmpty(), nil
	}
	p := &parser{s: s}
	caps := NewEmpty()
	for {
		st, err := p.parseStructure()
		if err != nil {
			return nil, err
		}
		caps.structures = append(caps.structures, st)
		p.skipSpace()
		if p.eof() {
			return caps, nil
		}
		if !p.consume(';') {
			return nil, p.errorf("expected ';' between structures")
		}
		p.skipSpace()
		if p.eof() {
			return caps, nil
		}
	}
}

// MustParse is Parse for trusted literals in tests and defaults; it
// panics on malformed input.
func MustParse(s string) *Caps {
	caps, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return caps
}

type parser struct {
	s   string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.s) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) consume(c byte) bool {
	if !p.eof() && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// token reads up to (not including) any byte in stop, trimming
// surrounding whitespace.
func (p *parser) token(stop string) string {
	start := p.pos
	for !p.eof() && !strings.ContainsRune(stop, rune(p.s[p.pos])) {
		p.pos++
	}
	return strings.TrimSpace(p.s[start:p.pos])
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("gstcaps: offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) parseStructure() (*Structure, error) {
	p.skipSpace()
	name := p.token(",;")
	if name == "" {
		return nil, p.errorf("missing structure name")
	}
	st := &Structure{name: name}
	for {
		p.skipSpace()
		if p.eof() || p.peek() == ';' {
			return st, nil
		}
		if !p.consume(',') {
			return nil, p.errorf("expected ',' before field")
		}
		p.skipSpace()
		if p.eof() || p.peek() == ';' {
			return st, nil
		}
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		st.fields = append(st.fields, f)
	}
}

func (p *parser) parseField() (Field, error) {
	name := p.token("=,;")
	if name == "" {
		return Field{}, p.errorf("missing field name")
	}
	if !p.consume('=') {
		return Field{}, p.errorf("field %q missing '='", name)
	}
	v, err := p.parseValue("")
	if err != nil {
		return Field{}, err
	}
	return Field{Name: name, Value: v}, nil
}

func (p *parser) parseValue(annot string) (Value, error) {
	p.skipSpace()
	if p.consume('(') {
		annot = strings.TrimSpace(p.token(")"))
		if !p.consume(')') {
			return nil, p.errorf("unterminated type annotation")
		}
		p.skipSpace()
	}
	switch p.peek() {
	case '[':
		return p.parseRange(annot)
	case '{':
		return p.parseList(annot)
	case '"':
		s, err := p.parseQuoted()
		if err != nil {
			return nil, err
		}
		return scalarValue(s, annot, true)
	}
	tok := p.token(",;}]")
	if tok == "" {
		return nil, p.errorf("missing value")
	}
	return scalarValue(tok, annot, false)
}

func (p *parser) parseRange(annot string) (Value, error) {
	p.consume('[')
	var parts []string
	for {
		p.skipSpace()
		if tok := p.token(",]"); tok != "" {
			parts = append(parts, tok)
		}
		if p.consume(',') {
			continue
		}
		if p.consume(']') {
			break
		}
		return nil, p.errorf("unterminated range")
	}
	if len(parts) < 2 || len(parts) > 3 {
		return nil, p.errorf("range needs two or three members, got %d", len(parts))
	}
	if annot == "fraction" || (annot == "" && strings.Contains(parts[0], "/")) {
		if len(parts) == 3 {
			return nil, p.errorf("fraction range cannot have a step")
		}
		lo, err := parseFraction(parts[0])
		if err != nil {
			return nil, err
		}
		hi, err := parseFraction(parts[1])
		if err != nil {
			return nil, err
		}
		return FractionRange{Min: lo, Max: hi}, nil
	}
	lo, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, p.errorf("invalid range bound %q", parts[0])
	}
	hi, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, p.errorf("invalid range bound %q", parts[1])
	}
	r := IntRange{Min: lo, Max: hi}
	if len(parts) == 3 {
		step, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, p.errorf("invalid range step %q", parts[2])
		}
		r.Step = step
	}
	return r, nil
}

func (p *parser) parseList(annot string) (Value, error) {
	p.consume('{')
	var out List
	for {
		p.skipSpace()
		if p.consume('}') {
			break
		}
		v, err := p.parseValue(annot)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			break
		}
		return nil, p.errorf("unterminated list")
	}
	return out, nil
}

func (p *parser) parseQuoted() (string, error) {
	p.consume('"')
	var b strings.Builder
	for !p.eof() {
		c := p.s[p.pos]
		p.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			b.WriteByte(p.s[p.pos])
			p.pos++
		default:
			b.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated string")
}

func scalarValue(text, annot string, quoted bool) (Value, error) {
	switch annot {
	case "int", "i", "gint", "uint", "guint":
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("gstcaps: invalid int %q", text)
		}
		return Int(n), nil
	case "fraction":
		return parseFraction(text)
	case "boolean", "bool", "b":
		switch strings.ToLower(text) {
		case "true", "yes", "t", "1":
			return Bool(true), nil
		case "false", "no", "f", "0":
			return Bool(false), nil
		}
		return nil, fmt.Errorf("gstcaps: invalid boolean %q", text)
	case "fourcc":
		return FourCC(text), nil
	case "":
		if quoted {
			return Str(text), nil
		}
		return inferScalar(text), nil
	default:
		return Str(text), nil
	}
}

func inferScalar(text string) Value {
	if n, err := strconv.Atoi(text); err == nil {
		return Int(n)
	}
	if strings.Contains(text, "/") {
		if f, err := parseFraction(text); err == nil {
			return f
		}
	}
	switch text {
	case "true", "TRUE":
		return Bool(true)
	case "false", "FALSE":
		return Bool(false)
	}
	return Str(text)
}

func parseFraction(text string) (Fraction, error) {
	num, den, ok := strings.Cut(text, "/")
	if !ok {
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return Fraction{}, fmt.Errorf("gstcaps: invalid fraction %q", text)
		}
		return Fraction{Num: n, Den: 1}, nil
	}
	n, errN := strconv.Atoi(strings.TrimSpace(num))
	d, errD := strconv.Atoi(strings.TrimSpace(den))
	if errN != nil || errD != nil || d == 0 {
		return Fraction{}, fmt.Errorf("gstcaps: invalid fraction %q", text)
	}
	return Fraction{Num: n, Den: d}, nil
}
