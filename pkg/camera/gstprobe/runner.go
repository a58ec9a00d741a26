// Package gstprobe runs capability probes through real GStreamer
// pipelines. It is the production implementation of camera's
// PipelineRunner: a throwaway pipeline is brought to the ready state,
// the bus is checked for errors, and the capture element's offered
// capabilities are read back as a plain capability set.
package gstprobe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/camprobe/camprobe/pkg/gstcaps"
)

var initOnce sync.Once

// Runner probes devices with real pipelines. The zero value is not
// usable; construct with New.
type Runner struct {
	logger *slog.Logger
}

// New returns a Runner, initializing the GStreamer library on first
// use.
func New(logger *slog.Logger) *Runner {
	initOnce.Do(func() {
		gst.Init(nil)
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// ProbeCaps builds the pipeline from its textual description, waits up
// to timeout for it to reach the ready state, and reads the offered
// capabilities from the named element's source pad. The pipeline is
// torn down before returning on every path.
func (r *Runner) ProbeCaps(ctx context.Context, launch, elementName string, timeout time.Duration) (*gstcaps.Caps, error) {
	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("gstprobe: failed to build pipeline %q: %w", launch, err)
	}
	defer pipeline.SetState(gst.StateNull)

	if err := r.waitReady(ctx, pipeline, timeout); err != nil {
		return nil, err
	}
	if err := r.popBusError(pipeline); err != nil {
		return nil, err
	}

	capsStr, err := r.readOfferedCaps(pipeline, elementName)
	if err != nil {
		return nil, err
	}

	caps, err := gstcaps.Parse(capsStr)
	if err != nil {
		return nil, fmt.Errorf("gstprobe: device offered unparseable caps: %w", err)
	}

	r.logger.Debug("Probe pipeline ready", "pipeline", launch, "caps", capsStr)
	return caps, nil
}

// waitReady requests the ready state and bounds the wait. A wedged
// driver can block the state change indefinitely, so the call runs on
// its own goroutine and the bound is enforced here.
func (r *Runner) waitReady(ctx context.Context, pipeline *gst.Pipeline, timeout time.Duration) error {
	stateErr := make(chan error, 1)
	go func() {
		stateErr <- pipeline.SetState(gst.StateReady)
	}()

	select {
	case err := <-stateErr:
		if err != nil {
			return fmt.Errorf("gstprobe: failed to reach ready state: %w", err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("gstprobe: device did not reach ready state within %v", timeout)
	case <-ctx.Done():
		return fmt.Errorf("gstprobe: %w", ctx.Err())
	}
}

// popBusError drains pending bus messages and fails on the first error
// found, mirroring a filtered pop of the whole queue.
func (r *Runner) popBusError(pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()
	for {
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			return nil
		}
		if msg.Type() != gst.MessageError {
			continue
		}
		gerr := msg.ParseError()
		debug := gerr.DebugString()
		if debug == "" {
			debug = "no extra debug detail"
		}
		r.logger.Warn("Error from probing pipeline",
			"element", msg.Source(), "error", gerr.Error(), "debug", debug)
		return fmt.Errorf("gstprobe: error from element %s: %s", msg.Source(), gerr.Error())
	}
}

// readOfferedCaps locates the capture element and serializes the
// capabilities offered on its source pad. At the ready state the pad
// has no negotiated caps yet, so the query path is the usual source.
func (r *Runner) readOfferedCaps(pipeline *gst.Pipeline, elementName string) (string, error) {
	elements, err := pipeline.GetElements()
	if err != nil {
		return "", fmt.Errorf("gstprobe: failed to list pipeline elements: %w", err)
	}

	var source *gst.Element
	for _, elem := range elements {
		if elem.GetName() == elementName {
			source = elem
			break
		}
	}
	if source == nil {
		return "", fmt.Errorf("gstprobe: element %q not found in pipeline", elementName)
	}

	pad := source.GetStaticPad("src")
	if pad == nil {
		return "", fmt.Errorf("gstprobe: element %q has no source pad", elementName)
	}

	caps := pad.GetCurrentCaps()
	if caps == nil {
		caps = pad.GetAllowedCaps()
	}
	if caps == nil {
		return "", fmt.Errorf("gstprobe: element %q offered no capabilities", elementName)
	}
	return caps.String(), nil
}
