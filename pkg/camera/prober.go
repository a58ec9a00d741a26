package camera

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camprobe/camprobe/pkg/gstcaps"
)

const (
	// DefaultProbeTimeout bounds how long a device may take to reach
	// the ready state while its capabilities are read.
	DefaultProbeTimeout = 10 * time.Second

	// DefaultMaxFrameRate is the highest frame rate, in frames per
	// second, that probing accepts from a device.
	DefaultMaxFrameRate = 30
)

// sourceElementName is the name given to the capture element inside the
// probing pipeline so the runner can find its output pad.
const sourceElementName = "source"

// DefaultFamilies returns the raw pixel-encoding families usable for
// capture, in filter order.
func DefaultFamilies() []string {
	return []string{"video/x-raw-rgb", "video/x-raw-yuv"}
}

// PipelineRunner starts a throwaway probing pipeline and reports the
// capabilities offered on the named element's output pad once the
// pipeline reaches the ready state. Implementations must tear the
// pipeline fully down before returning, on every path, so the device
// is never left locked. The context covers the runner's own waiting;
// timeout is the hard bound on the ready-state transition.
type PipelineRunner interface {
	ProbeCaps(ctx context.Context, launch, elementName string, timeout time.Duration) (*gstcaps.Caps, error)
}

// launchDescription builds the probing pipeline: the capture element
// wired straight into a no-op sink.
func launchDescription(source, deviceNode string) string {
	return fmt.Sprintf("%s name=%s device=%s ! fakesink", source, sourceElementName, deviceNode)
}

// rateFilter builds the policy filter: one structure per allowed
// family, each restricted to frame rates in [0, maxRate].
func rateFilter(families []string, maxRate int) *gstcaps.Caps {
	rate := gstcaps.Field{
		Name: "framerate",
		Value: gstcaps.FractionRange{
			Min: gstcaps.Fraction{Num: 0, Den: 1},
			Max: gstcaps.Fraction{Num: maxRate, Den: 1},
		},
	}
	filter := gstcaps.NewSimple(families[0], rate)
	for _, family := range families[1:] {
		filter.Append(gstcaps.NewStructure(family, rate))
	}
	return filter
}

// filterCaps intersects what the device offers with what the policy
// allows. Device ordering is preserved in the result.
func filterCaps(caps *gstcaps.Caps, families []string, maxRate int, logger *slog.Logger) *gstcaps.Caps {
	filter := rateFilter(families, maxRate)
	allowed := caps.Intersect(filter)

	logger.Debug("Supported caps", "caps", caps.String())
	logger.Debug("Filter caps", "caps", filter.String())
	logger.Debug("Filtered caps", "caps", allowed.String())

	return allowed
}
