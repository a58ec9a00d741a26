package camera

import "fmt"

// APIVersion is the Video4Linux API generation a capture device speaks.
// Only versions 1 and 2 exist.
type APIVersion uint

const (
	V4L1 APIVersion = 1
	V4L2 APIVersion = 2
)

// Valid reports whether v names a real API generation.
func (v APIVersion) Valid() bool { return v == V4L1 || v == V4L2 }

// SourceElement returns the GStreamer element that opens devices of
// this API generation.
func (v APIVersion) SourceElement() string {
	if v == V4L2 {
		return "v4l2src"
	}
	return "v4lsrc"
}

func (v APIVersion) String() string { return fmt.Sprintf("v4l%d", uint(v)) }

// Format is a single capture resolution supported by a device.
type Format struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (f Format) String() string { return fmt.Sprintf("%dx%d", f.Width, f.Height) }

func (f Format) area() int { return f.Width * f.Height }
