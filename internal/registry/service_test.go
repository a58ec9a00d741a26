package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/camprobe/camprobe/internal/api/models"
	"github.com/camprobe/camprobe/internal/events"
	"github.com/camprobe/camprobe/internal/hwmon"
	"github.com/camprobe/camprobe/pkg/camera"
	"github.com/camprobe/camprobe/pkg/gstcaps"
)

// fakeScanner serves a swappable device list.
type fakeScanner struct {
	mu      sync.Mutex
	devices []hwmon.Device
}

func (f *fakeScanner) Scan(context.Context) ([]hwmon.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]hwmon.Device, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakeScanner) set(devices []hwmon.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
}

// fakeRunner answers probes per device node, extracted from the launch
// description.
type fakeRunner struct {
	mu   sync.Mutex
	caps map[string]string // node -> offered caps
	errs map[string]error  // node -> probe failure
}

func (f *fakeRunner) ProbeCaps(_ context.Context, launch, _ string, _ time.Duration) (*gstcaps.Caps, error) {
	node := nodeFromLaunch(launch)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[node]; ok {
		return nil, err
	}
	if c, ok := f.caps[node]; ok {
		return gstcaps.Parse(c)
	}
	return nil, fmt.Errorf("no fixture for %s", node)
}

func nodeFromLaunch(launch string) string {
	for _, field := range strings.Fields(launch) {
		if after, ok := strings.CutPrefix(field, "device="); ok {
			return after
		}
	}
	return ""
}

type fakeNotifier struct {
	ch chan hwmon.ChangeNotice
}

func (f *fakeNotifier) Watch(ctx context.Context, notices chan<- hwmon.ChangeNotice) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-f.ch:
			select {
			case notices <- n:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

const goodCaps = "video/x-raw-yuv, width=(int)640, height=(int)480, framerate=(fraction)30/1; " +
	"video/x-raw-yuv, width=(int)1280, height=(int)720, framerate=(fraction)30/1"

func webcam(uuid, node string) hwmon.Device {
	return hwmon.Device{UUID: uuid, Node: node, Name: "Test Webcam", APIVersion: camera.V4L2}
}

func TestRescanSeedsAndProbes(t *testing.T) {
	scanner := &fakeScanner{}
	scanner.set([]hwmon.Device{
		webcam("uuid-good", "/dev/video0"),
		{UUID: "uuid-bad", Node: "/dev/video9", Name: "Broken Capture", APIVersion: camera.V4L2},
	})
	runner := &fakeRunner{
		caps: map[string]string{"/dev/video0": goodCaps},
		errs: map[string]error{"/dev/video9": errors.New("pipeline refused to start")},
	}
	bus := events.New()

	completed := make(chan events.ProbeCompletedEvent, 10)
	failed := make(chan events.ProbeFailedEvent, 10)
	added := make(chan events.DeviceAddedEvent, 10)
	defer bus.Subscribe(func(e events.ProbeCompletedEvent) { completed <- e })()
	defer bus.Subscribe(func(e events.ProbeFailedEvent) { failed <- e })()
	defer bus.Subscribe(func(e events.DeviceAddedEvent) { added <- e })()

	s := New(scanner, runner, bus)
	s.Rescan(context.Background())
	s.WaitForProbes()

	devices := s.Devices()
	if len(devices) != 2 {
		t.Fatalf("Devices() returned %d entries, want 2", len(devices))
	}
	// Sorted by node.
	if devices[0].DeviceNode != "/dev/video0" || devices[1].DeviceNode != "/dev/video9" {
		t.Errorf("unexpected order: %s, %s", devices[0].DeviceNode, devices[1].DeviceNode)
	}

	good := devices[0]
	if good.State != models.DeviceStateReady {
		t.Fatalf("good device state = %s, want ready", good.State)
	}
	if len(good.Formats) != 2 {
		t.Fatalf("good device has %d formats, want 2", len(good.Formats))
	}
	if good.Formats[0].Width != 1280 || good.Formats[0].Height != 720 {
		t.Errorf("largest format = %dx%d, want 1280x720", good.Formats[0].Width, good.Formats[0].Height)
	}
	if good.BestFormat == nil || good.BestFormat.Width != 1280 {
		t.Errorf("BestFormat = %+v, want 1280x720", good.BestFormat)
	}

	bad := devices[1]
	if bad.State != models.DeviceStateFailed {
		t.Fatalf("bad device state = %s, want failed", bad.State)
	}
	if bad.ErrorCode != camera.ErrCodeFailedInitialization {
		t.Errorf("bad device code = %s, want %s", bad.ErrorCode, camera.ErrCodeFailedInitialization)
	}
	if !strings.Contains(bad.Error, "/dev/video9") {
		t.Errorf("failure message %q does not name the node", bad.Error)
	}

	waitFor(t, added, "first added event")
	waitFor(t, added, "second added event")
	done := waitFor(t, completed, "probe completed event")
	if done.UUID != "uuid-good" {
		t.Errorf("completed event for %s, want uuid-good", done.UUID)
	}
	if done.State != models.DeviceStateReady || len(done.Formats) != 2 {
		t.Errorf("completed event carries %+v", done.DeviceInfo)
	}
	fail := waitFor(t, failed, "probe failed event")
	if fail.UUID != "uuid-bad" || fail.Code != camera.ErrCodeFailedInitialization {
		t.Errorf("failed event = %+v", fail)
	}
}

func TestRescanUnsupportedCaps(t *testing.T) {
	scanner := &fakeScanner{}
	scanner.set([]hwmon.Device{webcam("uuid-bayer", "/dev/video1")})
	runner := &fakeRunner{
		caps: map[string]string{
			"/dev/video1": "video/x-bayer, width=(int)640, height=(int)480, framerate=(fraction)30/1",
		},
	}

	s := New(scanner, runner, events.New())
	s.Rescan(context.Background())
	s.WaitForProbes()

	info, err := s.Device("uuid-bayer")
	if err != nil {
		t.Fatalf("Device() error: %v", err)
	}
	if info.State != models.DeviceStateFailed {
		t.Fatalf("state = %s, want failed", info.State)
	}
	if info.ErrorCode != camera.ErrCodeUnsupportedCaps {
		t.Errorf("code = %s, want %s", info.ErrorCode, camera.ErrCodeUnsupportedCaps)
	}
	if info.Error != "Device capabilities not supported" {
		t.Errorf("message = %q", info.Error)
	}
}

func TestRescanRemoval(t *testing.T) {
	scanner := &fakeScanner{}
	scanner.set([]hwmon.Device{webcam("uuid-1", "/dev/video0")})
	runner := &fakeRunner{caps: map[string]string{"/dev/video0": goodCaps}}
	bus := events.New()

	removed := make(chan events.DeviceRemovedEvent, 10)
	defer bus.Subscribe(func(e events.DeviceRemovedEvent) { removed <- e })()

	s := New(scanner, runner, bus)
	s.Rescan(context.Background())
	s.WaitForProbes()

	scanner.set(nil)
	s.Rescan(context.Background())

	ev := waitFor(t, removed, "device removed event")
	if ev.UUID != "uuid-1" || ev.DeviceNode != "/dev/video0" {
		t.Errorf("removed event = %+v", ev)
	}
	if got := len(s.Devices()); got != 0 {
		t.Errorf("Devices() returned %d entries after removal, want 0", got)
	}
	if _, err := s.Device("uuid-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Device() after removal = %v, want ErrNotFound", err)
	}
}

func TestReprobeBuildsReplacementHandle(t *testing.T) {
	scanner := &fakeScanner{}
	scanner.set([]hwmon.Device{webcam("uuid-1", "/dev/video0")})
	runner := &fakeRunner{
		errs: map[string]error{"/dev/video0": errors.New("device busy")},
	}
	bus := events.New()

	completed := make(chan events.ProbeCompletedEvent, 10)
	defer bus.Subscribe(func(e events.ProbeCompletedEvent) { completed <- e })()

	s := New(scanner, runner, bus)
	s.Rescan(context.Background())
	s.WaitForProbes()

	info, _ := s.Device("uuid-1")
	if info.State != models.DeviceStateFailed {
		t.Fatalf("state = %s, want failed before re-probe", info.State)
	}

	// The device frees up; a re-probe must build a fresh handle instead
	// of retrying the failed one.
	runner.mu.Lock()
	delete(runner.errs, "/dev/video0")
	runner.caps = map[string]string{"/dev/video0": goodCaps}
	runner.mu.Unlock()

	if err := s.Reprobe("uuid-1"); err != nil {
		t.Fatalf("Reprobe() error: %v", err)
	}
	s.WaitForProbes()

	info, err := s.Device("uuid-1")
	if err != nil {
		t.Fatalf("Device() error: %v", err)
	}
	if info.State != models.DeviceStateReady {
		t.Fatalf("state = %s, want ready after re-probe", info.State)
	}
	if len(info.Formats) != 2 {
		t.Errorf("formats = %d, want 2", len(info.Formats))
	}

	ev := waitFor(t, completed, "probe completed event")
	if ev.UUID != "uuid-1" {
		t.Errorf("completed event for %s", ev.UUID)
	}
}

func TestReprobeUnknownDevice(t *testing.T) {
	s := New(&fakeScanner{}, &fakeRunner{}, events.New())
	if err := s.Reprobe("no-such-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reprobe() = %v, want ErrNotFound", err)
	}
}

func TestCapsQueries(t *testing.T) {
	scanner := &fakeScanner{}
	scanner.set([]hwmon.Device{
		webcam("uuid-good", "/dev/video0"),
		{UUID: "uuid-bad", Node: "/dev/video9", Name: "Broken", APIVersion: camera.V4L2},
	})
	runner := &fakeRunner{
		caps: map[string]string{"/dev/video0": goodCaps},
		errs: map[string]error{"/dev/video9": errors.New("nope")},
	}

	s := New(scanner, runner, events.New())
	s.Rescan(context.Background())
	s.WaitForProbes()

	full, err := s.Caps("uuid-good")
	if err != nil {
		t.Fatalf("Caps() error: %v", err)
	}
	if !strings.Contains(full, "video/x-raw-yuv") {
		t.Errorf("Caps() = %q, missing family", full)
	}

	narrowed, err := s.CapsForFormat("uuid-good", 640, 480)
	if err != nil {
		t.Fatalf("CapsForFormat() error: %v", err)
	}
	if !strings.Contains(narrowed, "width=(int)640") {
		t.Errorf("CapsForFormat() = %q, missing width", narrowed)
	}
	if strings.Contains(narrowed, "1280") {
		t.Errorf("CapsForFormat() = %q, not narrowed", narrowed)
	}

	if _, err := s.Caps("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Caps(missing) = %v, want ErrNotFound", err)
	}
	if _, err := s.Caps("uuid-bad"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Caps(failed device) = %v, want ErrNotReady", err)
	}
	if _, err := s.CapsForFormat("uuid-bad", 640, 480); !errors.Is(err, ErrNotReady) {
		t.Errorf("CapsForFormat(failed device) = %v, want ErrNotReady", err)
	}
}

func TestRunFollowsHotplugNotices(t *testing.T) {
	scanner := &fakeScanner{}
	scanner.set([]hwmon.Device{webcam("uuid-1", "/dev/video0")})
	runner := &fakeRunner{caps: map[string]string{"/dev/video0": goodCaps}}
	notifier := &fakeNotifier{ch: make(chan hwmon.ChangeNotice)}
	bus := events.New()

	completed := make(chan events.ProbeCompletedEvent, 10)
	removed := make(chan events.DeviceRemovedEvent, 10)
	defer bus.Subscribe(func(e events.ProbeCompletedEvent) { completed <- e })()
	defer bus.Subscribe(func(e events.DeviceRemovedEvent) { removed <- e })()

	s := New(scanner, runner, bus, WithNotifier(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	waitFor(t, completed, "seed probe")

	scanner.set(nil)
	notifier.ch <- hwmon.ChangeNotice{Action: "remove", Path: "/dev/video0"}

	waitFor(t, removed, "removal after notice")

	cancel()
	if err := waitFor(t, runDone, "Run() return"); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}
