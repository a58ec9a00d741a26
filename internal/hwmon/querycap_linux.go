//go:build linux

package hwmon

import (
	"bytes"
	"syscall"
	"unsafe"
)

// Compile-time struct size assertion. A mismatch against the kernel
// layout would corrupt the ioctl.
var _ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}

const (
	vidiocQuerycap = 0x80685600

	v4l2CapVideoCapture = 0x00000001
	v4l2CapDeviceCaps   = 0x80000000
)

// v4l2Capability mirrors struct v4l2_capability. Only fixed-width
// fields, so the size is 104 bytes on every architecture.
type v4l2Capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

// effective returns the capability bits describing this node. When the
// driver reports per-node capabilities, those win over the ones of the
// physical device as a whole.
func (c *v4l2Capability) effective() uint32 {
	if c.capabilities&v4l2CapDeviceCaps != 0 {
		return c.deviceCaps
	}
	return c.capabilities
}

func (c *v4l2Capability) cardName() string { return cstr(c.card[:]) }

func (c *v4l2Capability) bus() string { return cstr(c.busInfo[:]) }

// queryCapability opens the node and issues VIDIOC_QUERYCAP.
func queryCapability(node string) (*v4l2Capability, error) {
	fd, err := syscall.Open(node, syscall.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	defer syscall.Close(fd)

	cap := &v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(cap)); err != nil {
		return nil, err
	}
	return cap, nil
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
