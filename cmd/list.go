package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/camprobe/camprobe/internal/hwmon"
	"github.com/camprobe/camprobe/internal/logging"
	"github.com/camprobe/camprobe/pkg/camera"
	"github.com/camprobe/camprobe/pkg/camera/gstprobe"
	"github.com/spf13/cobra"
)

// CreateListCmd creates the list command.
func CreateListCmd() *cobra.Command {
	var probe bool
	var timeout time.Duration
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List video capture devices",
		Long: `Enumerates the Video4Linux capture devices currently attached to the system. ` +
			`With --probe each device is additionally probed for its supported capture resolutions.`,
		Run: func(_ *cobra.Command, _ []string) {
			// Warnings only; the command output itself goes to stdout.
			loggingConfig := logging.Config{
				Level:  "warn",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			scanner := hwmon.NewScanner()
			devices, err := scanner.Scan(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Device scan failed: %v\n", err)
				os.Exit(1)
			}

			if len(devices) == 0 {
				fmt.Println("No capture devices found")
				return
			}

			var runner camera.PipelineRunner
			if probe {
				runner = gstprobe.New(logging.GetLogger("probe"))
			}

			for _, dev := range devices {
				fmt.Printf("%s  %s  %s (%s)\n", dev.UUID, dev.Node, dev.Name, dev.APIVersion)
				if !probe {
					continue
				}

				handle, probeErr := camera.New(dev.UUID, dev.Node, dev.Name, dev.APIVersion, runner,
					camera.WithProbeTimeout(timeout))
				if probeErr != nil {
					fmt.Printf("    probe failed: %v\n", probeErr)
					continue
				}

				formats := handle.Formats()
				if len(formats) == 0 {
					fmt.Println("    0 resolutions")
					continue
				}
				fmt.Printf("    %d resolutions, best %s\n", len(formats), handle.BestFormat())
			}
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Probe each device for supported resolutions")
	cmd.Flags().DurationVar(&timeout, "timeout", camera.DefaultProbeTimeout, "Per-device probe timeout")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
