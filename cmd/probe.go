package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/camprobe/camprobe/internal/hwmon"
	"github.com/camprobe/camprobe/internal/logging"
	"github.com/camprobe/camprobe/pkg/camera"
	"github.com/camprobe/camprobe/pkg/camera/gstprobe"
	"github.com/spf13/cobra"
)

// probeReport is the JSON shape printed by probe --json.
type probeReport struct {
	Device     string          `json:"device"`
	Source     string          `json:"source"`
	BestFormat camera.Format   `json:"best_format"`
	Formats    []camera.Format `json:"formats"`
	Caps       string          `json:"caps"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var apiVersion uint
	var timeout time.Duration
	var maxRate int
	var asJSON bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "probe <device-node>",
		Short: "Probe one device for its capture capabilities",
		Long: `Runs a one-shot capability probe against the given device node (e.g. /dev/video0) ` +
			`and prints the derived capture resolutions plus the filtered capability set.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			node := args[0]

			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Initialize(logging.Config{
				Level:  level,
				Format: "text",
			})

			version := camera.APIVersion(apiVersion)
			if !version.Valid() {
				fmt.Fprintf(os.Stderr, "Unsupported Video4Linux API version %d (only 1 and 2 exist)\n", apiVersion)
				os.Exit(1)
			}

			runner := gstprobe.New(logging.GetLogger("probe"))
			handle, err := camera.New(hwmon.DeviceUUID(node), node, node, version, runner,
				camera.WithProbeTimeout(timeout),
				camera.WithMaxFrameRate(maxRate))
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}

			formats := handle.Formats()
			if len(formats) == 0 {
				fmt.Fprintf(os.Stderr, "Device %s offered no usable resolutions\n", node)
				os.Exit(1)
			}

			if asJSON {
				report := probeReport{
					Device:     node,
					Source:     handle.Source(),
					BestFormat: handle.BestFormat(),
					Formats:    formats,
					Caps:       handle.Caps().String(),
				}
				out, marshalErr := json.MarshalIndent(report, "", "  ")
				if marshalErr != nil {
					fmt.Fprintf(os.Stderr, "Failed to encode report: %v\n", marshalErr)
					os.Exit(1)
				}
				fmt.Println(string(out))
				return
			}

			fmt.Printf("Device: %s (%s)\n", node, handle.Source())
			fmt.Printf("Resolutions (%d, largest first):\n", len(formats))
			for _, f := range formats {
				fmt.Printf("  %s\n", f)
			}
			fmt.Printf("Caps: %s\n", handle.Caps())
		},
	}

	cmd.Flags().UintVar(&apiVersion, "api-version", 2, "Video4Linux API generation of the device (1 or 2)")
	cmd.Flags().DurationVar(&timeout, "timeout", camera.DefaultProbeTimeout, "Probe timeout")
	cmd.Flags().IntVar(&maxRate, "max-rate", camera.DefaultMaxFrameRate, "Frame rate ceiling applied when filtering capabilities")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the probe result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log probe internals")

	return cmd
}
