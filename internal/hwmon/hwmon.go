// Package hwmon discovers Video4Linux capture hardware and reports
// when devices come and go. It supplies the identity tuples (uuid,
// device node, display name, API version) that the probing layers
// consume; nothing GStreamer-related lives here.
package hwmon

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/camprobe/camprobe/pkg/camera"
)

// ErrUnsupportedPlatform is returned on systems without Video4Linux.
var ErrUnsupportedPlatform = errors.New("video capture discovery requires linux")

// Device identifies one capture node found on the system.
type Device struct {
	// UUID is derived deterministically from the hardware identity, so
	// the same camera keeps the same UUID across replugs and reboots.
	UUID string

	// Node is the device file path, e.g. "/dev/video0".
	Node string

	// Name is the human-readable device name.
	Name string

	// APIVersion is the Video4Linux generation the node speaks.
	APIVersion camera.APIVersion
}

// Scanner lists the capture devices currently present.
type Scanner interface {
	Scan(ctx context.Context) ([]Device, error)
}

// HotplugSource selects where hotplug notifications come from.
type HotplugSource string

const (
	// SourceUdev listens to the udev daemon's netlink group via libudev.
	SourceUdev HotplugSource = "udev"

	// SourceKernel listens to raw kernel uevents, for systems that run
	// without a udev daemon.
	SourceKernel HotplugSource = "kernel"
)

// ChangeNotice signals that the set of capture devices may have
// changed. It carries only what triggered it; consumers rescan and
// diff rather than trusting the notice alone.
type ChangeNotice struct {
	Action string // "add", "remove", ...
	Path   string // sysfs path or device node behind the notice
}

// Notifier delivers change notices until the context is cancelled.
type Notifier interface {
	Watch(ctx context.Context, notices chan<- ChangeNotice) error
}

// NewScanner returns the device scanner for the running platform.
func NewScanner() Scanner {
	return newScanner()
}

// NewNotifier returns a hotplug notifier reading from the given source.
func NewNotifier(source HotplugSource) (Notifier, error) {
	return newNotifier(source)
}

// uuidNamespace scopes the derived device UUIDs. It must never change:
// the same hardware has to map to the same UUID forever.
var uuidNamespace = uuid.MustParse("55c2319e-58a8-4a7e-a15e-a1c3cf0a9a5c")

// DeviceUUID derives the device UUID from a stable hardware identity
// string such as a /dev/v4l/by-id symlink name.
func DeviceUUID(stableID string) string {
	return uuid.NewSHA1(uuidNamespace, []byte(stableID)).String()
}

// hasCaptureCapability interprets udev's ID_V4L_CAPABILITIES property,
// a colon-delimited list like ":capture:" or ":capture:video_output:".
func hasCaptureCapability(prop string) bool {
	return strings.Contains(prop, ":capture:")
}

// apiVersionFromProperty maps udev's ID_V4L_VERSION property to an API
// version. Anything but an explicit "1" means V4L2; the v4l1
// compatibility layer left the kernel long ago and the property is
// absent on most systems.
func apiVersionFromProperty(prop string) camera.APIVersion {
	if strings.TrimSpace(prop) == "1" {
		return camera.V4L1
	}
	return camera.V4L2
}

// pickName chooses the display name for a device: the udev product
// string first, then the driver-reported card name, then the node path
// itself.
func pickName(product, card, node string) string {
	if product != "" {
		return product
	}
	if card != "" {
		return card
	}
	return node
}
