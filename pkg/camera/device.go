// Package camera provides handles to video capture devices. A handle
// probes its device once at construction through a throwaway capture
// pipeline, derives the usable capture resolutions from what the device
// offers, and afterwards answers capability queries without touching
// the hardware again.
package camera

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camprobe/camprobe/pkg/gstcaps"
)

// Device is a handle to one video capture device. Each handle owns
// exactly one probe, run during construction; a failed probe marks the
// handle permanently unusable for capability queries and the stored
// error is replayed by FinalizeInit. Handles are immutable once
// constructed, so queries are safe from multiple goroutines.
type Device struct {
	uuid       string
	deviceNode string
	name       string
	apiVersion APIVersion
	source     string

	runner       PipelineRunner
	probeTimeout time.Duration
	maxFrameRate int
	families     []string
	logger       *slog.Logger

	caps         *gstcaps.Caps
	formats      []Format
	constructErr *DeviceError
}

// Option configures a Device before its probe runs.
type Option func(*Device)

// WithProbeTimeout overrides the ready-state wait bound.
// Default is DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(dev *Device) {
		dev.probeTimeout = d
	}
}

// WithMaxFrameRate overrides the frame rate ceiling applied when
// filtering device capabilities. Default is DefaultMaxFrameRate.
func WithMaxFrameRate(rate int) Option {
	return func(dev *Device) {
		dev.maxFrameRate = rate
	}
}

// WithFamilies overrides the allowed pixel-encoding families.
// Default is DefaultFamilies.
func WithFamilies(families ...string) Option {
	return func(dev *Device) {
		dev.families = families
	}
}

// WithLogger sets the logger used during probing.
// Default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(dev *Device) {
		dev.logger = logger
	}
}

// NewDevice builds a handle and synchronously probes the device. The
// returned error covers contract violations only; probe failures are
// stored on the handle and surface through FinalizeInit or Err. The
// call blocks until probing completes, which can take up to the probe
// timeout on an unresponsive device.
func NewDevice(uuid, deviceNode, name string, apiVersion APIVersion, runner PipelineRunner, opts ...Option) (*Device, error) {
	if runner == nil {
		return nil, NewDeviceError(ErrCodeInvalidParams, "pipeline runner is required", nil)
	}
	if !apiVersion.Valid() {
		return nil, NewDeviceError(ErrCodeInvalidParams,
			fmt.Sprintf("unsupported Video4Linux API version %d", uint(apiVersion)), nil)
	}

	d := &Device{
		uuid:         uuid,
		deviceNode:   deviceNode,
		name:         name,
		apiVersion:   apiVersion,
		source:       apiVersion.SourceElement(),
		runner:       runner,
		probeTimeout: DefaultProbeTimeout,
		maxFrameRate: DefaultMaxFrameRate,
		families:     DefaultFamilies(),
		logger:       slog.Default(),
		caps:         gstcaps.NewEmpty(),
	}
	if d.name == "" {
		d.name = "Unknown device"
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.families) == 0 {
		return nil, NewDeviceError(ErrCodeInvalidParams, "at least one encoding family is required", nil)
	}
	if d.maxFrameRate < 1 {
		return nil, NewDeviceError(ErrCodeInvalidParams, "maximum frame rate must be positive", nil)
	}
	if d.probeTimeout <= 0 {
		return nil, NewDeviceError(ErrCodeInvalidParams, "probe timeout must be positive", nil)
	}

	d.probe()

	return d, nil
}

// New builds a handle and finalizes it in one step, returning the
// stored probe error instead of a handle when probing failed.
func New(uuid, deviceNode, name string, apiVersion APIVersion, runner PipelineRunner, opts ...Option) (*Device, error) {
	d, err := NewDevice(uuid, deviceNode, name, apiVersion, runner, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.FinalizeInit(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

// probe runs the one-shot capability probe and stores either the
// filtered capability set plus derived formats, or a construction
// error.
func (d *Device) probe() {
	launch := launchDescription(d.source, d.deviceNode)
	d.logger.Debug("Probing device", "name", d.name, "device", d.deviceNode, "pipeline", launch)

	offered, err := d.runner.ProbeCaps(context.Background(), launch, sourceElementName, d.probeTimeout)
	if err != nil {
		// The runner's failure detail is too technical for display;
		// it goes to the log while the handle stores a message that
		// names the device and nothing more.
		d.logger.Warn("Failed to start the capability probing pipeline",
			"device", d.deviceNode, "error", err)
		d.constructErr = NewDeviceError(ErrCodeFailedInitialization,
			fmt.Sprintf("Failed to initialize device %s for capability probing", d.deviceNode), nil)
		return
	}

	d.caps = filterCaps(offered, d.families, d.maxFrameRate, d.logger)
	if d.caps.IsEmpty() {
		d.constructErr = NewDeviceError(ErrCodeUnsupportedCaps, "Device capabilities not supported", nil)
		return
	}
	d.formats = deriveFormats(d.caps, d.logger)
}

// FinalizeInit completes two-stage construction. Cancellation is not
// supported: a context that can be cancelled is rejected outright, even
// when probing succeeded. Otherwise the error stored during probing, if
// any, is returned as a copy, so finalizing twice works and callers can
// hold the error without aliasing the handle's.
func (d *Device) FinalizeInit(ctx context.Context) error {
	if ctx != nil && ctx.Done() != nil {
		return NewDeviceError(ErrCodeNotSupported, "Cancellable initialization not supported", nil)
	}
	if d.constructErr != nil {
		return d.constructErr.clone()
	}
	return nil
}

// Err returns the stored construction error, or nil when probing
// succeeded.
func (d *Device) Err() error {
	if d.constructErr == nil {
		return nil
	}
	return d.constructErr.clone()
}

// Formats returns the derived resolutions ordered largest area first.
// Equal areas keep discovery order. The slice is a fresh copy on every
// call.
func (d *Device) Formats() []Format {
	return sortedByArea(d.formats)
}

// BestFormat returns the highest-area format. It is only meaningful on
// a handle whose probe succeeded with a non-empty format table; calling
// it on a failed or empty handle panics.
func (d *Device) BestFormat() Format {
	best := d.Formats()[0]
	d.logger.Debug("Best format", "width", best.Width, "height", best.Height)
	return best
}

// CapsForFormat narrows the stored capability set to exactly the given
// width and height across every allowed family. The result is what a
// capture pipeline should request to use that format without probing
// the device again.
func (d *Device) CapsForFormat(f Format) *gstcaps.Caps {
	d.logger.Debug("Getting caps for format", "width", f.Width, "height", f.Height)

	size := []gstcaps.Field{
		{Name: "width", Value: gstcaps.Int(f.Width)},
		{Name: "height", Value: gstcaps.Int(f.Height)},
	}
	desired := gstcaps.NewSimple(d.families[0], size...)
	for _, family := range d.families[1:] {
		desired.Append(gstcaps.NewStructure(family, size...))
	}

	subset := desired.Intersect(d.caps)
	d.logger.Debug("Got format caps", "caps", subset.String())
	return subset
}

// Name returns the human-readable device name supplied at construction,
// or "Unknown device" when none was.
func (d *Device) Name() string { return d.name }

// UUID returns the device's unique identifier.
func (d *Device) UUID() string { return d.uuid }

// DeviceNode returns the path to the device node.
func (d *Device) DeviceNode() string { return d.deviceNode }

// Source returns the capture element chosen for the device's API
// generation, either "v4l2src" or "v4lsrc".
func (d *Device) Source() string { return d.source }

// APIVersion returns the Video4Linux API generation of the device.
func (d *Device) APIVersion() APIVersion { return d.apiVersion }

// Caps returns a copy of the filtered capability set stored by the
// probe. It is empty on a handle whose probe failed.
func (d *Device) Caps() *gstcaps.Caps { return d.caps.Clone() }
