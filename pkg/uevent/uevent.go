//go:build linux

// Package uevent watches kernel device events over netlink, without
// cgo and without a running udev daemon. It is the raw hotplug source
// behind capture-device monitoring on systems where libudev is
// unavailable or undesirable.
package uevent

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"syscall"
)

// Device event actions as reported by the kernel.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionMove   = "move"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// SubsystemVideo4Linux is the subsystem video capture nodes appear in.
const SubsystemVideo4Linux = "video4linux"

// netlinkKobjectUEvent is the netlink protocol carrying kernel object
// events.
const netlinkKobjectUEvent = 15

// Event is one kernel device event.
type Event struct {
	Action    string            // "add", "remove", "change", ...
	KObj      string            // kernel object path
	Subsystem string            // "video4linux", "usb", ...
	DevType   string            // device type when reported
	DevName   string            // device name, e.g. "video0"
	DevPath   string            // sysfs device path
	Env       map[string]string // every variable from the event
}

// DeviceNode returns the /dev path for the event's device, or "" when
// the event carries no device name.
func (e *Event) DeviceNode() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/") {
		return e.DevName
	}
	return "/dev/" + e.DevName
}

// Monitor listens on the kernel uevent broadcast group.
type Monitor struct {
	fd         int
	subsystems map[string]struct{}
}

// NewMonitor opens a netlink socket bound to the kernel broadcast
// group. When subsystems are given, only their events are delivered;
// with none, every event passes through.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}

	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Groups: 1,
	}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	m := &Monitor{
		fd:         fd,
		subsystems: make(map[string]struct{}, len(subsystems)),
	}
	for _, s := range subsystems {
		m.subsystems[s] = struct{}{}
	}
	return m, nil
}

// Close releases the netlink socket.
func (m *Monitor) Close() error {
	return syscall.Close(m.fd)
}

// Run delivers matching events to ch until the context is cancelled or
// the socket fails. The channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, ch chan<- Event) error {
	defer close(ch)

	buf := make([]byte, 8192)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// A receive timeout keeps the loop responsive to cancellation.
		tv := syscall.Timeval{Sec: 1}
		if err := syscall.SetsockoptTimeval(m.fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
			return err
		}

		n, _, err := syscall.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		ev, ok := Parse(buf[:n])
		if !ok {
			continue
		}
		if len(m.subsystems) > 0 {
			if _, match := m.subsystems[ev.Subsystem]; !match {
				continue
			}
		}

		select {
		case ch <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Parse decodes a raw uevent datagram. The kernel wire format is
// "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0...". Datagrams relayed by udev
// carry a binary libudev header first, which is skipped.
func Parse(data []byte) (Event, bool) {
	if len(data) == 0 {
		return Event{}, false
	}
	if bytes.HasPrefix(data, []byte("libudev")) {
		data = skipLibudevHeader(data)
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts[0]) == 0 {
		return Event{}, false
	}

	action, kobj, ok := strings.Cut(string(parts[0]), "@")
	if !ok || action == "" {
		return Event{}, false
	}

	ev := Event{
		Action: action,
		KObj:   kobj,
		Env:    make(map[string]string),
	}
	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVTYPE":
			ev.DevType = value
		case "DEVNAME":
			ev.DevName = value
		case "DEVPATH":
			ev.DevPath = value
		}
	}
	return ev, true
}

// skipLibudevHeader advances past the binary header udev prepends,
// landing on the first NUL boundary followed by an "action@" pattern.
func skipLibudevHeader(data []byte) []byte {
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 0 && startsWithAction(data[i+1:]) {
			return data[i+1:]
		}
	}
	return data
}

// startsWithAction reports whether rest begins with a short lowercase
// word followed by '@', the shape of every kernel event header.
func startsWithAction(rest []byte) bool {
	idx := bytes.IndexByte(rest, '@')
	if idx < 1 || idx >= 20 {
		return false
	}
	for _, c := range rest[:idx] {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
