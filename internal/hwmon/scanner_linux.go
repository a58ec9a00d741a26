//go:build linux

package hwmon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jochenvg/go-udev"

	"github.com/camprobe/camprobe/internal/logging"
	"github.com/camprobe/camprobe/pkg/camera"
)

type linuxScanner struct {
	logger *slog.Logger
}

func newScanner() Scanner {
	return &linuxScanner{logger: logging.GetLogger("hwmon")}
}

// Scan enumerates video4linux devices through libudev and falls back
// to a plain sysfs walk when udev has nothing to say, as in minimal
// containers without a udev daemon.
func (s *linuxScanner) Scan(ctx context.Context) ([]Device, error) {
	devices, err := s.scanUdev(ctx)
	if err != nil {
		s.logger.Warn("Udev enumeration failed, falling back to sysfs", "error", err)
		return s.scanSysfs(ctx)
	}
	if len(devices) == 0 {
		// The udev database can lag behind sysfs right after boot.
		return s.scanSysfs(ctx)
	}
	return devices, nil
}

func (s *linuxScanner) scanUdev(ctx context.Context) ([]Device, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if e == nil {
		return nil, fmt.Errorf("failed to create udev enumerator")
	}
	if err := e.AddMatchSubsystem("video4linux"); err != nil {
		return nil, fmt.Errorf("failed to add subsystem match: %w", err)
	}

	udevDevices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var devices []Device
	for _, d := range udevDevices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := d.Devnode()
		if node == "" {
			continue
		}
		dev, ok := s.deviceFromUdev(d, node)
		if !ok {
			continue
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// deviceFromUdev builds the identity tuple for one enumerated node.
// Udev properties are preferred; VIDIOC_QUERYCAP fills the gaps when
// the database has no metadata for the node.
func (s *linuxScanner) deviceFromUdev(d *udev.Device, node string) (Device, bool) {
	cap, capErr := queryCapability(node)

	capsProp := d.PropertyValue("ID_V4L_CAPABILITIES")
	switch {
	case capsProp != "":
		if !hasCaptureCapability(capsProp) {
			return Device{}, false
		}
	case capErr == nil:
		if cap.effective()&v4l2CapVideoCapture == 0 {
			return Device{}, false
		}
	default:
		s.logger.Debug("Cannot establish capture capability, skipping",
			"node", node, "error", capErr)
		return Device{}, false
	}

	card, bus := "", ""
	if capErr == nil {
		card = cap.cardName()
		bus = cap.bus()
	}

	index := readSysfsInt(filepath.Join(d.Syspath(), "index"))
	stableID := stableIdentity(filepath.Base(node), index, bus, d.PropertyValue("ID_SERIAL"), node)

	return Device{
		UUID:       DeviceUUID(stableID),
		Node:       node,
		Name:       pickName(d.PropertyValue("ID_V4L_PRODUCT"), card, node),
		APIVersion: apiVersionFromProperty(d.PropertyValue("ID_V4L_VERSION")),
	}, true
}

// scanSysfs walks /sys/class/video4linux directly and interrogates
// every node with VIDIOC_QUERYCAP. No udev properties exist on this
// path, so names come from the driver and the API version defaults to
// V4L2.
func (s *linuxScanner) scanSysfs(ctx context.Context) ([]Device, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []Device
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		node := "/dev/" + entry.Name()

		cap, err := queryCapability(node)
		if err != nil {
			s.logger.Debug("Failed to query device capabilities", "node", node, "error", err)
			continue
		}
		if cap.effective()&v4l2CapVideoCapture == 0 {
			continue
		}

		index := readSysfsInt(filepath.Join("/sys/class/video4linux", entry.Name(), "index"))
		stableID := stableIdentity(entry.Name(), index, cap.bus(), "", node)

		devices = append(devices, Device{
			UUID:       DeviceUUID(stableID),
			Node:       node,
			Name:       pickName("", cap.cardName(), node),
			APIVersion: camera.V4L2,
		})
	}
	return devices, nil
}

// stableIdentity resolves the identity string device UUIDs derive
// from. Preference order: the /dev/v4l/by-id symlink name, a synthetic
// ID from the bus info or the udev serial, and as a last resort the
// node path itself. Node paths are not stable across re-enumeration,
// so everything else wins over them.
func stableIdentity(deviceName string, index int, busInfo, serial, node string) string {
	if id := findStableID(deviceName, index); id != "" {
		return id
	}
	return syntheticIdentity(index, busInfo, serial, node)
}

func syntheticIdentity(index int, busInfo, serial, node string) string {
	if busInfo != "" {
		if strings.HasPrefix(busInfo, "usb-") {
			return fmt.Sprintf("%s-video-index%d", busInfo, index)
		}
		return fmt.Sprintf("platform-%s-video-index%d", busInfo, index)
	}
	if serial != "" {
		return fmt.Sprintf("usb-%s-video-index%d", serial, index)
	}
	return node
}

// findStableID looks for the /dev/v4l/by-id symlink pointing at the
// given video device.
func findStableID(deviceName string, index int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", index)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}
		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}
	return ""
}

// readSysfsInt reads an integer value from a sysfs file, zero when the
// file is missing or malformed.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}
