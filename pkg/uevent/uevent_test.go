//go:build linux

package uevent

import "testing"

func rawEvent(parts ...string) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
		out = append(out, 0)
	}
	return out
}

func TestParseKernelEvent(t *testing.T) {
	data := rawEvent(
		"add@/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/video4linux/video0",
		"ACTION=add",
		"DEVPATH=/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/video4linux/video0",
		"SUBSYSTEM=video4linux",
		"DEVNAME=video0",
		"SEQNUM=4711",
	)

	ev, ok := Parse(data)
	if !ok {
		t.Fatal("Parse() rejected a well-formed kernel event")
	}
	if ev.Action != ActionAdd {
		t.Errorf("Action = %q, expected %q", ev.Action, ActionAdd)
	}
	if ev.Subsystem != SubsystemVideo4Linux {
		t.Errorf("Subsystem = %q, expected %q", ev.Subsystem, SubsystemVideo4Linux)
	}
	if ev.DevName != "video0" {
		t.Errorf("DevName = %q, expected %q", ev.DevName, "video0")
	}
	if ev.KObj == "" || ev.DevPath == "" {
		t.Error("expected kernel object and device paths to be populated")
	}
	if ev.Env["SEQNUM"] != "4711" {
		t.Errorf("Env[SEQNUM] = %q, expected %q", ev.Env["SEQNUM"], "4711")
	}
}

func TestParseSkipsLibudevHeader(t *testing.T) {
	header := append([]byte("libudev"), 0)
	header = append(header, 0xfe, 0xed, 0xca, 0xfe, 0x28, 0x00, 0x00, 0x00, 0)
	data := append(header, rawEvent(
		"remove@/devices/virtual/video4linux/video2",
		"SUBSYSTEM=video4linux",
		"DEVNAME=video2",
	)...)

	ev, ok := Parse(data)
	if !ok {
		t.Fatal("Parse() rejected an event with a libudev header")
	}
	if ev.Action != ActionRemove {
		t.Errorf("Action = %q, expected %q", ev.Action, ActionRemove)
	}
	if ev.DevName != "video2" {
		t.Errorf("DevName = %q, expected %q", ev.DevName, "video2")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "no separator", data: rawEvent("adddevicespath")},
		{name: "empty action", data: rawEvent("@/devices/video0")},
		{name: "leading nul", data: []byte{0, 'a', 'd', 'd', '@', 'x'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Parse(tt.data); ok {
				t.Errorf("Parse(%q) accepted malformed input", tt.data)
			}
		})
	}
}

func TestParseToleratesBrokenPairs(t *testing.T) {
	data := rawEvent(
		"change@/devices/virtual/video4linux/video1",
		"NOVALUE",
		"=nokey",
		"SUBSYSTEM=video4linux",
	)

	ev, ok := Parse(data)
	if !ok {
		t.Fatal("Parse() rejected an event with stray pairs")
	}
	if ev.Subsystem != SubsystemVideo4Linux {
		t.Errorf("Subsystem = %q, expected valid pairs to be kept", ev.Subsystem)
	}
	if _, present := ev.Env["NOVALUE"]; present {
		t.Error("pair without '=' should be dropped")
	}
}

func TestDeviceNode(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{name: "relative name", ev: Event{DevName: "video0"}, want: "/dev/video0"},
		{name: "absolute name", ev: Event{DevName: "/dev/video3"}, want: "/dev/video3"},
		{name: "no name", ev: Event{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.DeviceNode(); got != tt.want {
				t.Errorf("DeviceNode() = %q, expected %q", got, tt.want)
			}
		})
	}
}
