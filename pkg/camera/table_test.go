package camera

import (
	"io"
	"log/slog"
	"testing"

	"github.com/camprobe/camprobe/pkg/gstcaps"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func formatsEqual(a, b []Format) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDeriveFormats(t *testing.T) {
	tests := []struct {
		name string
		caps string
		want []Format
	}{
		{
			name: "fixed resolution",
			caps: "video/x-raw-yuv, width=(int)640, height=(int)480, framerate=(fraction)30/1",
			want: []Format{{Width: 640, Height: 480}},
		},
		{
			name: "range collapsed to a point yields exactly one candidate",
			caps: "video/x-raw-yuv, width=(int)[ 320, 320 ], height=(int)[ 240, 240 ]",
			want: []Format{{Width: 320, Height: 240}},
		},
		{
			name: "doubling sweep stops past the maximum",
			caps: "video/x-raw-yuv, width=(int)[ 160, 640 ], height=(int)[ 120, 480 ]",
			want: []Format{
				{Width: 160, Height: 120},
				{Width: 320, Height: 240},
				{Width: 640, Height: 480},
			},
		},
		{
			name: "halving sweep contributes sizes the doubling sweep missed",
			caps: "video/x-raw-yuv, width=(int)[ 160, 1000 ], height=(int)[ 120, 750 ]",
			want: []Format{
				{Width: 160, Height: 120},
				{Width: 320, Height: 240},
				{Width: 640, Height: 480},
				{Width: 1000, Height: 750},
				{Width: 500, Height: 375},
				{Width: 250, Height: 187},
			},
		},
		{
			name: "duplicates across structures collapse",
			caps: "video/x-raw-yuv, width=(int)640, height=(int)480; video/x-raw-rgb, width=(int)640, height=(int)480",
			want: []Format{{Width: 640, Height: 480}},
		},
		{
			name: "fixed and ranged structures combine",
			caps: "video/x-raw-yuv, width=(int)1280, height=(int)720; video/x-raw-yuv, width=(int)[ 320, 640 ], height=(int)[ 240, 480 ]",
			want: []Format{
				{Width: 1280, Height: 720},
				{Width: 320, Height: 240},
				{Width: 640, Height: 480},
			},
		},
		{
			name: "fixed width with ranged height is skipped",
			caps: "video/x-raw-yuv, width=(int)640, height=(int)[ 120, 480 ]",
			want: nil,
		},
		{
			name: "ranged width with fixed height is skipped",
			caps: "video/x-raw-yuv, width=(int)[ 160, 640 ], height=(int)480",
			want: nil,
		},
		{
			name: "unhandled width type is skipped",
			caps: "video/x-raw-yuv, width=(string)wide, height=(int)480",
			want: nil,
		},
		{
			name: "missing width is skipped",
			caps: "video/x-raw-yuv, height=(int)480",
			want: nil,
		},
		{
			name: "skipped structure does not fail the rest",
			caps: "video/x-raw-yuv, width=(string)wide, height=(int)480; video/x-raw-yuv, width=(int)640, height=(int)480",
			want: []Format{{Width: 640, Height: 480}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveFormats(gstcaps.MustParse(tt.caps), testLogger())
			if !formatsEqual(got, tt.want) {
				t.Errorf("deriveFormats() = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestSortedByAreaDescending(t *testing.T) {
	formats := []Format{
		{Width: 160, Height: 120},
		{Width: 1000, Height: 750},
		{Width: 640, Height: 480},
		{Width: 320, Height: 240},
	}

	got := sortedByArea(formats)

	for i := 1; i < len(got); i++ {
		if got[i-1].area() < got[i].area() {
			t.Errorf("position %d: area %d precedes larger area %d", i, got[i-1].area(), got[i].area())
		}
	}
	if got[0] != (Format{Width: 1000, Height: 750}) {
		t.Errorf("largest format = %v, expected 1000x750 first", got[0])
	}
}

func TestSortedByAreaIsStableForTies(t *testing.T) {
	// 320x240 and 240x320 have equal area; discovery order wins.
	formats := []Format{
		{Width: 320, Height: 240},
		{Width: 240, Height: 320},
		{Width: 640, Height: 480},
	}

	got := sortedByArea(formats)

	want := []Format{
		{Width: 640, Height: 480},
		{Width: 320, Height: 240},
		{Width: 240, Height: 320},
	}
	if !formatsEqual(got, want) {
		t.Errorf("sortedByArea() = %v, expected %v", got, want)
	}
}

func TestSortedByAreaCopies(t *testing.T) {
	formats := []Format{
		{Width: 160, Height: 120},
		{Width: 640, Height: 480},
	}

	got := sortedByArea(formats)
	got[0] = Format{Width: 1, Height: 1}

	if formats[0] != (Format{Width: 160, Height: 120}) {
		t.Error("sortedByArea() mutated its input")
	}
}
