//go:build linux

package hwmon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jochenvg/go-udev"

	"github.com/camprobe/camprobe/internal/logging"
	"github.com/camprobe/camprobe/pkg/uevent"
)

// settleDelay gives the kernel time to finish enumerating the capture
// nodes of freshly attached hardware before anyone rescans.
const settleDelay = 1 * time.Second

func newNotifier(source HotplugSource) (Notifier, error) {
	switch source {
	case SourceUdev, "":
		return &udevNotifier{logger: logging.GetLogger("hwmon")}, nil
	case SourceKernel:
		return &kernelNotifier{logger: logging.GetLogger("hwmon")}, nil
	default:
		return nil, fmt.Errorf("unknown hotplug source %q", source)
	}
}

// udevNotifier watches the udev daemon's netlink group. USB attach and
// detach covers cameras in practice, and consumers rescan on every
// notice, so coarse filtering is good enough.
type udevNotifier struct {
	logger *slog.Logger
}

func (n *udevNotifier) Watch(ctx context.Context, notices chan<- ChangeNotice) error {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if mon == nil {
		return fmt.Errorf("failed to create udev monitor")
	}

	mon.FilterAddMatchSubsystemDevtype("usb", "usb_device")

	deviceCh, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		return fmt.Errorf("failed to get udev device channel: %w", err)
	}

	go func() {
		for err := range errCh {
			n.logger.Error("Udev monitor error", "error", err)
		}
	}()

	n.logger.Info("Udev monitoring started for USB devices")
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Udev monitor stopped")
			return ctx.Err()
		case dev, ok := <-deviceCh:
			if !ok {
				n.logger.Info("Udev device channel closed")
				return nil
			}

			action := dev.Action()
			if action != "add" && action != "remove" {
				continue
			}
			n.logger.Debug("Udev event",
				"action", action, "device", dev.Syspath(), "subsystem", dev.Subsystem())

			// New hardware needs a moment before its video nodes exist.
			if action == "add" {
				time.Sleep(settleDelay)
			}

			select {
			case notices <- ChangeNotice{Action: action, Path: dev.Syspath()}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// kernelNotifier reads raw kernel uevents filtered to the video4linux
// subsystem. It works without a udev daemon but needs permission to
// bind the kernel netlink broadcast group.
type kernelNotifier struct {
	logger *slog.Logger
}

func (n *kernelNotifier) Watch(ctx context.Context, notices chan<- ChangeNotice) error {
	mon, err := uevent.NewMonitor(uevent.SubsystemVideo4Linux)
	if err != nil {
		return fmt.Errorf("failed to open uevent socket: %w", err)
	}
	defer mon.Close()

	events := make(chan uevent.Event, 16)
	runErr := make(chan error, 1)
	go func() {
		runErr <- mon.Run(ctx, events)
	}()

	n.logger.Info("Kernel uevent monitoring started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-runErr:
			return err
		case ev, ok := <-events:
			if !ok {
				return <-runErr
			}
			if ev.Action != uevent.ActionAdd && ev.Action != uevent.ActionRemove {
				continue
			}
			n.logger.Debug("Kernel uevent", "action", ev.Action, "device", ev.DevName)

			if ev.Action == uevent.ActionAdd {
				time.Sleep(settleDelay)
			}

			path := ev.DeviceNode()
			if path == "" {
				path = ev.DevPath
			}
			select {
			case notices <- ChangeNotice{Action: ev.Action, Path: path}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
