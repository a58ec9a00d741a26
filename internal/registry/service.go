// Package registry tracks the capture devices present on the system
// and owns one probed camera handle per device. Probes run
// concurrently across devices; a handle is probed exactly once, and a
// re-probe always builds a replacement handle.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/camprobe/camprobe/internal/api/models"
	"github.com/camprobe/camprobe/internal/events"
	"github.com/camprobe/camprobe/internal/hwmon"
	"github.com/camprobe/camprobe/internal/logging"
	"github.com/camprobe/camprobe/internal/metrics"
	"github.com/camprobe/camprobe/pkg/camera"
)

var (
	// ErrNotFound is returned for lookups of unknown device UUIDs.
	ErrNotFound = errors.New("device not found")

	// ErrNotReady is returned when an operation needs a successful
	// probe that the device does not have.
	ErrNotReady = errors.New("device has no successful probe")
)

// DeviceRegistry is the query surface served over the API. *Service
// implements it.
type DeviceRegistry interface {
	Devices() []models.DeviceInfo
	Device(uuid string) (models.DeviceInfo, error)
	Caps(uuid string) (string, error)
	CapsForFormat(uuid string, width, height int) (string, error)
	Reprobe(uuid string) error
}

var _ DeviceRegistry = (*Service)(nil)

// entry is one tracked device. gen ties in-flight probe goroutines to
// the lifecycle that started them; results whose generation no longer
// matches are discarded.
type entry struct {
	hw     hwmon.Device
	state  models.DeviceState
	err    *camera.DeviceError
	handle *camera.Device
	gen    uint64
}

type probeJob struct {
	hw  hwmon.Device
	gen uint64
}

// Option configures the Service.
type Option func(*Service)

// WithProbeOptions forwards camera options to every probe.
func WithProbeOptions(opts ...camera.Option) Option {
	return func(s *Service) { s.probeOpts = opts }
}

// WithNotifier supplies the hotplug source. Without one the registry
// only ever knows what the seed scan found.
func WithNotifier(n hwmon.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Service owns the live device table.
type Service struct {
	scanner   hwmon.Scanner
	runner    camera.PipelineRunner
	bus       *events.Bus
	notifier  hwmon.Notifier
	probeOpts []camera.Option
	logger    *slog.Logger

	mu         sync.RWMutex
	entries    map[string]*entry
	genCounter uint64

	probes sync.WaitGroup
}

// New creates a registry service over the given hardware scanner,
// pipeline runner and event bus.
func New(scanner hwmon.Scanner, runner camera.PipelineRunner, bus *events.Bus, opts ...Option) *Service {
	s := &Service{
		scanner: scanner,
		runner:  runner,
		bus:     bus,
		logger:  logging.GetLogger("registry"),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run seeds the table with a full scan, then follows hotplug notices
// until the context is cancelled. Every notice triggers a rescan and
// diff; notices may over-report, the diff decides what changed.
func (s *Service) Run(ctx context.Context) error {
	s.Rescan(ctx)

	if s.notifier == nil {
		<-ctx.Done()
		s.probes.Wait()
		return ctx.Err()
	}

	notices := make(chan hwmon.ChangeNotice, 16)
	watchErr := make(chan error, 1)
	go func() { watchErr <- s.notifier.Watch(ctx, notices) }()

	for {
		select {
		case <-ctx.Done():
			s.probes.Wait()
			return ctx.Err()
		case err := <-watchErr:
			// Hotplug is an enhancement; the seeded table keeps
			// serving without it.
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Hotplug monitoring stopped", "error", err)
			}
			<-ctx.Done()
			s.probes.Wait()
			return ctx.Err()
		case notice := <-notices:
			s.logger.Debug("Hotplug notice", "action", notice.Action, "path", notice.Path)
			s.Rescan(ctx)
		}
	}
}

// Rescan diffs the current hardware against the table. New devices are
// added and probed, vanished devices are dropped, and a device whose
// node moved is treated as a replug: dropped and re-added with a fresh
// probe.
func (s *Service) Rescan(ctx context.Context) {
	devices, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error("Device scan failed", "error", err)
		return
	}

	current := make(map[string]hwmon.Device, len(devices))
	for _, d := range devices {
		current[d.UUID] = d
	}

	var removed []hwmon.Device
	var jobs []probeJob

	s.mu.Lock()
	for uuid, e := range s.entries {
		if _, exists := current[uuid]; !exists {
			removed = append(removed, e.hw)
			delete(s.entries, uuid)
		}
	}
	for uuid, d := range current {
		if e, exists := s.entries[uuid]; exists {
			if e.hw.Node == d.Node {
				continue
			}
			removed = append(removed, e.hw)
			delete(s.entries, uuid)
		}
		e := &entry{hw: d, state: models.DeviceStateProbing, gen: s.nextGenLocked()}
		s.entries[uuid] = e
		jobs = append(jobs, probeJob{hw: d, gen: e.gen})
	}
	count := len(s.entries)
	s.mu.Unlock()

	metrics.SetDevicesPresent(count)

	for _, d := range removed {
		s.logger.Info("Device removed", "device", d.Node, "name", d.Name, "uuid", d.UUID)
		s.bus.Publish(events.DeviceRemovedEvent{
			UUID:       d.UUID,
			DeviceNode: d.Node,
			Action:     "removed",
			Timestamp:  time.Now().Format(time.RFC3339),
		})
	}
	for _, job := range jobs {
		s.logger.Info("Device added", "device", job.hw.Node, "name", job.hw.Name, "uuid", job.hw.UUID)
		s.bus.Publish(events.DeviceAddedEvent{
			DeviceInfo: probingInfo(job.hw),
			Action:     "added",
			Timestamp:  time.Now().Format(time.RFC3339),
		})
		s.startProbe(job)
	}
}

// Reprobe schedules a fresh probe for a known device. The entry goes
// back to the probing state until the replacement handle lands, so
// format and caps queries answer ErrNotReady in the meantime.
func (s *Service) Reprobe(uuid string) error {
	s.mu.Lock()
	e, ok := s.entries[uuid]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if e.state == models.DeviceStateProbing {
		// A probe is already in flight; scheduling another would only
		// race it.
		s.mu.Unlock()
		return nil
	}
	e.state = models.DeviceStateProbing
	e.err = nil
	e.gen = s.nextGenLocked()
	job := probeJob{hw: e.hw, gen: e.gen}
	s.mu.Unlock()

	s.logger.Info("Re-probe scheduled", "device", job.hw.Node, "uuid", uuid)
	s.startProbe(job)
	return nil
}

// Devices returns a snapshot of every tracked device, ordered by node.
func (s *Service) Devices() []models.DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DeviceInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, infoFor(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceNode < out[j].DeviceNode })
	return out
}

// Device returns the snapshot for one device.
func (s *Service) Device(uuid string) (models.DeviceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[uuid]
	if !ok {
		return models.DeviceInfo{}, ErrNotFound
	}
	return infoFor(e), nil
}

// Caps returns the serialized filtered capability set of a ready
// device.
func (s *Service) Caps(uuid string) (string, error) {
	handle, err := s.readyHandle(uuid)
	if err != nil {
		return "", err
	}
	return handle.Caps().String(), nil
}

// CapsForFormat narrows a ready device's capability set to the given
// resolution and returns it serialized.
func (s *Service) CapsForFormat(uuid string, width, height int) (string, error) {
	handle, err := s.readyHandle(uuid)
	if err != nil {
		return "", err
	}
	return handle.CapsForFormat(camera.Format{Width: width, Height: height}).String(), nil
}

// WaitForProbes blocks until every in-flight probe has finished.
func (s *Service) WaitForProbes() {
	s.probes.Wait()
}

func (s *Service) readyHandle(uuid string) (*camera.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[uuid]
	if !ok {
		return nil, ErrNotFound
	}
	if e.state != models.DeviceStateReady || e.handle == nil {
		return nil, ErrNotReady
	}
	return e.handle, nil
}

func (s *Service) nextGenLocked() uint64 {
	s.genCounter++
	return s.genCounter
}

func (s *Service) startProbe(job probeJob) {
	s.probes.Add(1)
	go func() {
		defer s.probes.Done()
		s.probe(job)
	}()
}

// probe constructs a fresh handle for the device and publishes the
// outcome. Failed handles are kept with their stored error so lookups
// can report what went wrong.
func (s *Service) probe(job probeJob) {
	d := job.hw
	start := time.Now()

	handle, err := camera.NewDevice(d.UUID, d.Node, d.Name, d.APIVersion, s.runner, s.probeOpts...)
	if err == nil {
		err = handle.FinalizeInit(context.Background())
	}
	elapsed := time.Since(start)

	var devErr *camera.DeviceError
	if err != nil && !errors.As(err, &devErr) {
		devErr = camera.NewDeviceError(camera.ErrCodeUnknown, err.Error(), nil)
	}

	s.mu.Lock()
	e, exists := s.entries[d.UUID]
	if !exists || e.gen != job.gen {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale probe result", "device", d.Node, "uuid", d.UUID)
		return
	}
	e.handle = handle
	if devErr != nil {
		e.state = models.DeviceStateFailed
		e.err = devErr
	} else {
		e.state = models.DeviceStateReady
		e.err = nil
	}
	info := infoFor(e)
	s.mu.Unlock()

	if devErr != nil {
		metrics.RecordProbe(metrics.OutcomeFailure, elapsed)
		s.logger.Warn("Device probe failed",
			"device", d.Node, "name", d.Name, "code", devErr.Code,
			"error", devErr.Message, "duration", elapsed)
		s.bus.Publish(events.ProbeFailedEvent{
			UUID:       d.UUID,
			DeviceNode: d.Node,
			Code:       devErr.Code,
			Error:      devErr.Message,
			DurationMs: elapsed.Milliseconds(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
		return
	}

	metrics.RecordProbe(metrics.OutcomeSuccess, elapsed)
	s.logger.Info("Device probe completed",
		"device", d.Node, "name", d.Name, "formats", len(info.Formats), "duration", elapsed)
	s.bus.Publish(events.ProbeCompletedEvent{
		DeviceInfo: info,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// infoFor builds the wire snapshot of an entry. Callers hold the
// service mutex.
func infoFor(e *entry) models.DeviceInfo {
	info := models.DeviceInfo{
		UUID:       e.hw.UUID,
		DeviceNode: e.hw.Node,
		Name:       e.hw.Name,
		APIVersion: uint(e.hw.APIVersion),
		Source:     e.hw.APIVersion.SourceElement(),
		State:      e.state,
	}

	switch e.state {
	case models.DeviceStateFailed:
		if e.err != nil {
			info.ErrorCode = e.err.Code
			info.Error = e.err.Message
		}
	case models.DeviceStateReady:
		formats := e.handle.Formats()
		info.Formats = make([]models.FormatInfo, len(formats))
		for i, f := range formats {
			info.Formats[i] = models.FormatInfo{Width: f.Width, Height: f.Height}
		}
		if len(formats) > 0 {
			best := e.handle.BestFormat()
			info.BestFormat = &models.FormatInfo{Width: best.Width, Height: best.Height}
		}
	}
	return info
}

// probingInfo is the snapshot for a device whose probe has not
// finished yet.
func probingInfo(d hwmon.Device) models.DeviceInfo {
	return models.DeviceInfo{
		UUID:       d.UUID,
		DeviceNode: d.Node,
		Name:       d.Name,
		APIVersion: uint(d.APIVersion),
		Source:     d.APIVersion.SourceElement(),
		State:      models.DeviceStateProbing,
	}
}
