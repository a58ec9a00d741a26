package gstcaps

import "testing"

func TestIntersectValues(t *testing.T) {
	tests := []struct {
		name string
		a    Value
		b    Value
		want Value
		ok   bool
	}{
		{name: "equal ints", a: Int(640), b: Int(640), want: Int(640), ok: true},
		{name: "unequal ints", a: Int(640), b: Int(1280), ok: false},
		{name: "int in range", a: Int(640), b: IntRange{Min: 160, Max: 2592}, want: Int(640), ok: true},
		{name: "int below range", a: Int(100), b: IntRange{Min: 160, Max: 2592}, ok: false},
		{name: "int off step grid", a: Int(170), b: IntRange{Min: 160, Max: 2592, Step: 16}, ok: false},
		{name: "int on step grid", a: IntRange{Min: 160, Max: 2592, Step: 16}, b: Int(176), want: Int(176), ok: true},
		{
			name: "overlapping ranges",
			a:    IntRange{Min: 160, Max: 1280},
			b:    IntRange{Min: 640, Max: 2592},
			want: IntRange{Min: 640, Max: 1280, Step: 1},
			ok:   true,
		},
		{name: "disjoint ranges", a: IntRange{Min: 160, Max: 320}, b: IntRange{Min: 640, Max: 1280}, ok: false},
		{
			name: "ranges touching at a point",
			a:    IntRange{Min: 160, Max: 640},
			b:    IntRange{Min: 640, Max: 1280},
			want: Int(640),
			ok:   true,
		},
		{name: "equal fractions", a: Fraction{30, 1}, b: Fraction{60, 2}, want: Fraction{30, 1}, ok: true},
		{name: "unequal fractions", a: Fraction{30, 1}, b: Fraction{25, 1}, ok: false},
		{
			name: "fraction in range",
			a:    Fraction{15, 1},
			b:    FractionRange{Min: Fraction{0, 1}, Max: Fraction{30, 1}},
			want: Fraction{15, 1},
			ok:   true,
		},
		{
			name: "fraction above range",
			a:    FractionRange{Min: Fraction{0, 1}, Max: Fraction{30, 1}},
			b:    Fraction{60, 1},
			ok:   false,
		},
		{
			name: "overlapping fraction ranges",
			a:    FractionRange{Min: Fraction{0, 1}, Max: Fraction{120, 1}},
			b:    FractionRange{Min: Fraction{0, 1}, Max: Fraction{30, 1}},
			want: FractionRange{Min: Fraction{0, 1}, Max: Fraction{30, 1}},
			ok:   true,
		},
		{
			name: "fraction ranges touching at a point",
			a:    FractionRange{Min: Fraction{0, 1}, Max: Fraction{30, 1}},
			b:    FractionRange{Min: Fraction{30, 1}, Max: Fraction{60, 1}},
			want: Fraction{30, 1},
			ok:   true,
		},
		{name: "equal strings", a: Str("YUY2"), b: Str("YUY2"), want: Str("YUY2"), ok: true},
		{name: "unequal strings", a: Str("YUY2"), b: Str("NV12"), ok: false},
		{name: "string vs fourcc never match", a: Str("YUY2"), b: FourCC("YUY2"), ok: false},
		{name: "equal fourcc", a: FourCC("I420"), b: FourCC("I420"), want: FourCC("I420"), ok: true},
		{name: "equal booleans", a: Bool(true), b: Bool(true), want: Bool(true), ok: true},
		{name: "unequal booleans", a: Bool(true), b: Bool(false), ok: false},
		{name: "int vs fraction never match", a: Int(30), b: Fraction{30, 1}, ok: false},
		{
			name: "list filtered by range",
			a:    List{Fraction{60, 1}, Fraction{30, 1}, Fraction{15, 1}},
			b:    FractionRange{Min: Fraction{0, 1}, Max: Fraction{30, 1}},
			want: List{Fraction{30, 1}, Fraction{15, 1}},
			ok:   true,
		},
		{
			name: "list collapsing to a single member",
			a:    List{Int(640), Int(1280)},
			b:    Int(640),
			want: Int(640),
			ok:   true,
		},
		{
			name: "list with no surviving members",
			a:    List{Int(640), Int(1280)},
			b:    Int(320),
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := intersectValues(tt.a, tt.b)
			if ok != tt.ok {
				t.Fatalf("intersectValues() ok = %v, expected %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if gl, isList := got.(List); isList {
				wl, wantList := tt.want.(List)
				if !wantList || len(gl) != len(wl) {
					t.Fatalf("intersectValues() = %#v, expected %#v", got, tt.want)
				}
				for i := range gl {
					if gl[i] != wl[i] {
						t.Errorf("member %d = %#v, expected %#v", i, gl[i], wl[i])
					}
				}
				return
			}
			if got != tt.want {
				t.Errorf("intersectValues() = %#v, expected %#v", got, tt.want)
			}
		})
	}
}

func TestValueSerialization(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{name: "int", v: Int(640), want: "640"},
		{name: "range", v: IntRange{Min: 160, Max: 2592}, want: "[ 160, 2592 ]"},
		{name: "stepped range", v: IntRange{Min: 160, Max: 2592, Step: 16}, want: "[ 160, 2592, 16 ]"},
		{name: "fraction", v: Fraction{30, 1}, want: "30/1"},
		{name: "fraction range", v: FractionRange{Min: Fraction{0, 1}, Max: Fraction{30, 1}}, want: "[ 0/1, 30/1 ]"},
		{name: "plain string", v: Str("YUY2"), want: "YUY2"},
		{name: "string needing quotes", v: Str("two words"), want: `"two words"`},
		{name: "boolean", v: Bool(false), want: "false"},
		{name: "list", v: List{Fraction{30, 1}, Fraction{15, 1}}, want: "{ 30/1, 15/1 }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestFractionCmp(t *testing.T) {
	tests := []struct {
		name string
		a    Fraction
		b    Fraction
		want int
	}{
		{name: "equal", a: Fraction{30, 1}, b: Fraction{30, 1}, want: 0},
		{name: "equal after reduction", a: Fraction{30, 1}, b: Fraction{60, 2}, want: 0},
		{name: "less", a: Fraction{15, 1}, b: Fraction{30, 1}, want: -1},
		{name: "greater", a: Fraction{30000, 1001}, b: Fraction{25, 1}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Cmp(tt.b); got != tt.want {
				t.Errorf("Cmp() = %d, expected %d", got, tt.want)
			}
		})
	}
}
