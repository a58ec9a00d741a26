package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camprobe/camprobe/pkg/gstcaps"
)

// fakeRunner implements PipelineRunner for tests and records how it was
// called.
type fakeRunner struct {
	caps string
	err  error

	launches []string
	elements []string
	timeouts []time.Duration
}

func (f *fakeRunner) ProbeCaps(ctx context.Context, launch, elementName string, timeout time.Duration) (*gstcaps.Caps, error) {
	f.launches = append(f.launches, launch)
	f.elements = append(f.elements, elementName)
	f.timeouts = append(f.timeouts, timeout)
	if f.err != nil {
		return nil, f.err
	}
	return gstcaps.Parse(f.caps)
}

const rangedYUV = "video/x-raw-yuv, width=(int)[ 160, 640 ], height=(int)[ 120, 480 ], framerate=(fraction)[ 0/1, 30/1 ]"

func newTestDevice(t *testing.T, runner *fakeRunner, opts ...Option) *Device {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger())}, opts...)
	d, err := NewDevice("uuid-1", "/dev/video0", "Test Camera", V4L2, runner, opts...)
	if err != nil {
		t.Fatalf("NewDevice() returned error: %v", err)
	}
	return d
}

func TestNewDeviceProbesAndDerivesFormats(t *testing.T) {
	d := newTestDevice(t, &fakeRunner{caps: rangedYUV})

	if err := d.FinalizeInit(context.Background()); err != nil {
		t.Fatalf("FinalizeInit() returned error: %v", err)
	}

	want := []Format{
		{Width: 640, Height: 480},
		{Width: 320, Height: 240},
		{Width: 160, Height: 120},
	}
	if got := d.Formats(); !formatsEqual(got, want) {
		t.Errorf("Formats() = %v, expected %v", got, want)
	}
	if best := d.BestFormat(); best != (Format{Width: 640, Height: 480}) {
		t.Errorf("BestFormat() = %v, expected 640x480", best)
	}
}

func TestNewDeviceBuildsLaunchForAPIVersion(t *testing.T) {
	tests := []struct {
		name    string
		version APIVersion
		want    string
	}{
		{name: "v4l2", version: V4L2, want: "v4l2src name=source device=/dev/video0 ! fakesink"},
		{name: "v4l1", version: V4L1, want: "v4lsrc name=source device=/dev/video0 ! fakesink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{caps: rangedYUV}
			if _, err := NewDevice("u", "/dev/video0", "cam", tt.version, runner, WithLogger(testLogger())); err != nil {
				t.Fatalf("NewDevice() returned error: %v", err)
			}
			if len(runner.launches) != 1 {
				t.Fatalf("runner called %d times, expected exactly once", len(runner.launches))
			}
			if runner.launches[0] != tt.want {
				t.Errorf("launch = %q, expected %q", runner.launches[0], tt.want)
			}
			if runner.elements[0] != "source" {
				t.Errorf("element name = %q, expected %q", runner.elements[0], "source")
			}
			if runner.timeouts[0] != DefaultProbeTimeout {
				t.Errorf("timeout = %v, expected %v", runner.timeouts[0], DefaultProbeTimeout)
			}
		})
	}
}

func TestNewDeviceStoresUnsupportedCaps(t *testing.T) {
	// Compressed-only device: nothing survives the family filter.
	d := newTestDevice(t, &fakeRunner{caps: "image/jpeg, width=(int)640, height=(int)480"})

	err := d.FinalizeInit(context.Background())
	if err == nil {
		t.Fatal("FinalizeInit() succeeded, expected stored probe error")
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("error type = %T, expected *DeviceError", err)
	}
	if devErr.Code != ErrCodeUnsupportedCaps {
		t.Errorf("Code = %q, expected %q", devErr.Code, ErrCodeUnsupportedCaps)
	}
	if devErr.Message != "Device capabilities not supported" {
		t.Errorf("Message = %q, expected %q", devErr.Message, "Device capabilities not supported")
	}
	if len(d.Formats()) != 0 {
		t.Errorf("Formats() = %v, expected none on a failed handle", d.Formats())
	}
	if !d.Caps().IsEmpty() {
		t.Errorf("Caps() = %q, expected the empty filtered set to be stored", d.Caps().String())
	}
}

func TestNewDeviceStoresFailedInitialization(t *testing.T) {
	runner := &fakeRunner{err: errors.New("v4l2src reported: Device is busy")}
	d := newTestDevice(t, runner)

	err := d.FinalizeInit(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("error = %v, expected *DeviceError", err)
	}
	if devErr.Code != ErrCodeFailedInitialization {
		t.Errorf("Code = %q, expected %q", devErr.Code, ErrCodeFailedInitialization)
	}
	want := "Failed to initialize device /dev/video0 for capability probing"
	if devErr.Message != want {
		t.Errorf("Message = %q, expected %q", devErr.Message, want)
	}
	// The runner's technical detail stays in the log, not on the handle.
	if devErr.Cause != nil {
		t.Errorf("Cause = %v, expected none", devErr.Cause)
	}
}

func TestFinalizeInitRejectsCancellableContext(t *testing.T) {
	d := newTestDevice(t, &fakeRunner{caps: rangedYUV})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := d.FinalizeInit(ctx)
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("error = %v, expected *DeviceError", err)
	}
	if devErr.Code != ErrCodeNotSupported {
		t.Errorf("Code = %q, expected %q", devErr.Code, ErrCodeNotSupported)
	}
	if devErr.Message != "Cancellable initialization not supported" {
		t.Errorf("Message = %q, expected %q", devErr.Message, "Cancellable initialization not supported")
	}

	// A plain background context still succeeds afterwards.
	if err := d.FinalizeInit(context.Background()); err != nil {
		t.Errorf("FinalizeInit(background) returned %v after rejected cancellable call", err)
	}
}

func TestFinalizeInitCancellableWinsOverStoredError(t *testing.T) {
	d := newTestDevice(t, &fakeRunner{err: errors.New("boom")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var devErr *DeviceError
	if err := d.FinalizeInit(ctx); !errors.As(err, &devErr) || devErr.Code != ErrCodeNotSupported {
		t.Errorf("FinalizeInit(cancellable) = %v, expected %s before the stored error", err, ErrCodeNotSupported)
	}
}

func TestFinalizeInitReplaysStoredErrorAsCopy(t *testing.T) {
	d := newTestDevice(t, &fakeRunner{err: errors.New("boom")})

	first := d.FinalizeInit(context.Background())
	second := d.FinalizeInit(context.Background())
	if first == nil || second == nil {
		t.Fatal("expected the stored error on every finalization")
	}

	var firstErr, secondErr *DeviceError
	if !errors.As(first, &firstErr) || !errors.As(second, &secondErr) {
		t.Fatalf("errors = %T, %T, expected *DeviceError", first, second)
	}
	if firstErr == secondErr {
		t.Error("expected distinct copies of the stored error")
	}

	// Mutating one replay must not leak into the next.
	firstErr.Message = "mutated"
	if third := d.FinalizeInit(context.Background()); third.Error() == firstErr.Error() {
		t.Error("mutation of a replayed error reached the handle")
	}
}

func TestNewReturnsErrorInsteadOfFailedHandle(t *testing.T) {
	d, err := New("u", "/dev/video9", "cam", V4L2, &fakeRunner{err: errors.New("no such device")}, WithLogger(testLogger()))
	if err == nil {
		t.Fatal("New() succeeded, expected stored probe error")
	}
	if d != nil {
		t.Errorf("New() handle = %v, expected nil on failure", d)
	}

	d, err = New("u", "/dev/video0", "cam", V4L2, &fakeRunner{caps: rangedYUV}, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if d == nil {
		t.Fatal("New() returned nil handle without error")
	}
}

func TestNewDeviceInvalidParams(t *testing.T) {
	runner := &fakeRunner{caps: rangedYUV}

	tests := []struct {
		name string
		call func() (*Device, error)
	}{
		{
			name: "nil runner",
			call: func() (*Device, error) {
				return NewDevice("u", "/dev/video0", "cam", V4L2, nil)
			},
		},
		{
			name: "api version zero",
			call: func() (*Device, error) {
				return NewDevice("u", "/dev/video0", "cam", 0, runner)
			},
		},
		{
			name: "api version out of range",
			call: func() (*Device, error) {
				return NewDevice("u", "/dev/video0", "cam", 3, runner)
			},
		},
		{
			name: "no families",
			call: func() (*Device, error) {
				return NewDevice("u", "/dev/video0", "cam", V4L2, runner, WithFamilies())
			},
		},
		{
			name: "zero frame rate",
			call: func() (*Device, error) {
				return NewDevice("u", "/dev/video0", "cam", V4L2, runner, WithMaxFrameRate(0))
			},
		},
		{
			name: "zero timeout",
			call: func() (*Device, error) {
				return NewDevice("u", "/dev/video0", "cam", V4L2, runner, WithProbeTimeout(0))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.call()
			if d != nil {
				t.Error("expected nil handle on contract violation")
			}
			var devErr *DeviceError
			if !errors.As(err, &devErr) || devErr.Code != ErrCodeInvalidParams {
				t.Errorf("error = %v, expected code %s", err, ErrCodeInvalidParams)
			}
		})
	}
}

func TestDeviceOptions(t *testing.T) {
	runner := &fakeRunner{caps: "video/x-raw-yuv, width=(int)640, height=(int)480, framerate=(fraction)60/1"}

	// 60 fps is past the default ceiling.
	d := newTestDevice(t, runner)
	if err := d.FinalizeInit(context.Background()); err == nil {
		t.Error("expected unsupported capabilities at the default rate ceiling")
	}

	// Raising the ceiling admits the device.
	runner = &fakeRunner{caps: "video/x-raw-yuv, width=(int)640, height=(int)480, framerate=(fraction)60/1"}
	d = newTestDevice(t, runner, WithMaxFrameRate(60), WithProbeTimeout(2*time.Second))
	if err := d.FinalizeInit(context.Background()); err != nil {
		t.Errorf("FinalizeInit() returned %v with raised rate ceiling", err)
	}
	if runner.timeouts[0] != 2*time.Second {
		t.Errorf("timeout = %v, expected override to reach the runner", runner.timeouts[0])
	}
}

func TestDeviceAccessors(t *testing.T) {
	d := newTestDevice(t, &fakeRunner{caps: rangedYUV})

	if d.Name() != "Test Camera" {
		t.Errorf("Name() = %q, expected %q", d.Name(), "Test Camera")
	}
	if d.UUID() != "uuid-1" {
		t.Errorf("UUID() = %q, expected %q", d.UUID(), "uuid-1")
	}
	if d.DeviceNode() != "/dev/video0" {
		t.Errorf("DeviceNode() = %q, expected %q", d.DeviceNode(), "/dev/video0")
	}
	if d.Source() != "v4l2src" {
		t.Errorf("Source() = %q, expected %q", d.Source(), "v4l2src")
	}
	if d.APIVersion() != V4L2 {
		t.Errorf("APIVersion() = %v, expected %v", d.APIVersion(), V4L2)
	}
}

func TestDeviceDefaultsNameWhenEmpty(t *testing.T) {
	d, err := NewDevice("u", "/dev/video0", "", V4L2, &fakeRunner{caps: rangedYUV}, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewDevice() returned error: %v", err)
	}
	if d.Name() != "Unknown device" {
		t.Errorf("Name() = %q, expected %q", d.Name(), "Unknown device")
	}
}

func TestCapsForFormat(t *testing.T) {
	d := newTestDevice(t, &fakeRunner{caps: rangedYUV})

	got := d.CapsForFormat(Format{Width: 320, Height: 240})
	if got.IsEmpty() {
		t.Fatal("CapsForFormat() returned the empty set for an in-range format")
	}
	for i := 0; i < got.Size(); i++ {
		st := got.StructureAt(i)
		if w, _ := st.Value("width"); w != gstcaps.Int(320) {
			t.Errorf("structure %d width = %v, expected 320", i, w)
		}
		if h, _ := st.Value("height"); h != gstcaps.Int(240) {
			t.Errorf("structure %d height = %v, expected 240", i, h)
		}
	}
	// The device only offers YUV; the RGB half of the request finds no
	// counterpart.
	if got.Size() != 1 {
		t.Errorf("Size() = %d, expected 1", got.Size())
	}
	if name := got.StructureAt(0).Name(); name != "video/x-raw-yuv" {
		t.Errorf("family = %q, expected video/x-raw-yuv", name)
	}
}

func TestCapsForFormatOutsideStoredSet(t *testing.T) {
	d := newTestDevice(t, &fakeRunner{caps: rangedYUV})

	if got := d.CapsForFormat(Format{Width: 4000, Height: 3000}); !got.IsEmpty() {
		t.Errorf("CapsForFormat(4000x3000) = %q, expected empty set", got.String())
	}
}

func TestFormatsIdempotentAndCopied(t *testing.T) {
	d := newTestDevice(t, &fakeRunner{caps: rangedYUV})

	first := d.Formats()
	first[0] = Format{Width: 1, Height: 1}

	second := d.Formats()
	if second[0] != (Format{Width: 640, Height: 480}) {
		t.Errorf("Formats() after caller mutation = %v, expected fresh copy", second)
	}
}
