package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/camprobe/camprobe/internal/logging"
	"github.com/camprobe/camprobe/internal/updater"
	"github.com/camprobe/camprobe/internal/version"
	"github.com/spf13/cobra"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var check bool
	var rollback bool
	var repo string
	var prerelease bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update camprobe to the latest release",
		Long: `Checks GitHub releases for a newer camprobe build and replaces the running binary, ` +
			`keeping a backup of the current one. With --check the update is only reported, not applied.`,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{
				Level:  "warn",
				Format: "text",
			})

			svc, err := updater.NewService(&updater.Options{
				Repository: repo,
				Prerelease: prerelease,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to initialize updater: %v\n", err)
				os.Exit(1)
			}
			if !svc.IsEnabled() {
				fmt.Fprintf(os.Stderr, "Update service disabled: %s\n", svc.DisabledReason())
				os.Exit(1)
			}

			ctx := context.Background()

			if rollback {
				if err := svc.Rollback(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "Rollback failed: %v\n", err)
					os.Exit(1)
				}
				fmt.Println("Restored the previous binary")
				os.Exit(0)
			}

			info, err := svc.CheckForUpdate(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Update check failed: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Current version: %s\n", version.String())
			fmt.Printf("Latest release:  %s\n", info.LatestVersion)
			if !info.UpdateAvailable {
				fmt.Println("Already up to date")
				return
			}
			if check {
				fmt.Printf("Update available: %s\n", info.ReleaseURL)
				return
			}

			fmt.Printf("Updating to %s...\n", info.LatestVersion)
			if err := svc.ApplyUpdate(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Updated to %s\n", info.LatestVersion)
			// Exit before the updater's restart timer fires; a one-shot
			// invocation has nothing to restart.
			os.Exit(0)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Only report whether an update is available")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the previously backed up binary")
	cmd.Flags().StringVar(&repo, "repo", "camprobe/camprobe", "GitHub repository to update from")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prerelease builds")

	return cmd
}
