package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/camprobe/camprobe/cmd"
	"github.com/camprobe/camprobe/internal/api"
	"github.com/camprobe/camprobe/internal/config"
	"github.com/camprobe/camprobe/internal/events"
	"github.com/camprobe/camprobe/internal/hwmon"
	"github.com/camprobe/camprobe/internal/logging"
	"github.com/camprobe/camprobe/internal/metrics/exporters"
	"github.com/camprobe/camprobe/internal/registry"
	"github.com/camprobe/camprobe/internal/updater"
	"github.com/camprobe/camprobe/pkg/camera"
	"github.com/camprobe/camprobe/pkg/camera/gstprobe"
	"github.com/danielgtaylor/huma/v2/humacli"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Probe settings
	ProbeTimeout      string `help:"Per-device probe timeout" default:"10s" toml:"probe.timeout" env:"PROBE_TIMEOUT"`
	ProbeMaxFrameRate int    `help:"Frame rate ceiling applied when filtering capabilities" default:"30" toml:"probe.max_frame_rate" env:"PROBE_MAX_FRAME_RATE"`

	// Hotplug settings
	HotplugEnabled bool   `help:"Follow device hotplug events" default:"true" toml:"hotplug.enabled" env:"HOTPLUG_ENABLED"`
	HotplugSource  string `help:"Hotplug notification source (udev, kernel)" default:"udev" toml:"hotplug.source" env:"HOTPLUG_SOURCE"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-update" default:"camprobe/camprobe" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prerelease builds when updating" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera   string `help:"Device probing logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingHwmon    string `help:"Hardware monitor logging level" default:"info" toml:"logging.hwmon" env:"LOGGING_HWMON"`
	LoggingRegistry string `help:"Device registry logging level" default:"info" toml:"logging.registry" env:"LOGGING_REGISTRY"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingUpdater  string `help:"Updater logging level" default:"info" toml:"logging.updater" env:"LOGGING_UPDATER"`
}

func main() {
	// Create Huma CLI. The variable is captured by the callback so the
	// root cobra command is available for flag lookups during config load.
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":   opts.LoggingCamera,
				"hwmon":    opts.LoggingHwmon,
				"registry": opts.LoggingRegistry,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
				"updater":  opts.LoggingUpdater,
			},
		})

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Forward log entries onto the bus for the SSE log stream
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		probeTimeout, err := time.ParseDuration(opts.ProbeTimeout)
		if err != nil {
			probeTimeout = camera.DefaultProbeTimeout
		}

		// Hotplug notifications are best effort: without them the
		// registry still serves whatever the startup scan found.
		var notifier hwmon.Notifier
		if opts.HotplugEnabled {
			n, notifyErr := hwmon.NewNotifier(hwmon.HotplugSource(opts.HotplugSource))
			if notifyErr != nil {
				logger.Warn("Hotplug notifications unavailable, devices are scanned once at startup",
					"source", opts.HotplugSource, "error", notifyErr)
			} else {
				notifier = n
			}
		}

		registryOpts := []registry.Option{
			registry.WithProbeOptions(
				camera.WithProbeTimeout(probeTimeout),
				camera.WithMaxFrameRate(opts.ProbeMaxFrameRate),
				camera.WithLogger(logging.GetLogger("camera")),
			),
		}
		if notifier != nil {
			registryOpts = append(registryOpts, registry.WithNotifier(notifier))
		}

		runner := gstprobe.New(logging.GetLogger("camera"))
		deviceRegistry := registry.New(hwmon.NewScanner(), runner, eventBus, registryOpts...)

		// Self-update service; nil when construction fails outright
		updateService, updErr := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepository,
			Prerelease: opts.UpdatePrerelease,
		})
		if updErr != nil {
			logger.Warn("Update service unavailable", "error", updErr)
		}

		apiOpts := &api.Options{
			AuthUsername:  opts.AuthUsername,
			AuthPassword:  opts.AuthPassword,
			Registry:      deviceRegistry,
			Bus:           eventBus,
			UpdateService: updateService,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}

		server := api.NewServer(apiOpts)

		// Re-apply log levels when the config file changes on disk
		configWatcher := config.NewConfigWatcher(
			opts.Config,
			func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			},
			logger,
		)
		configWatcher.OnReload(func(cfg logging.Config) {
			logger.Info("Applying logging levels from config", "config", opts.Config)
			logging.ApplyLevels(cfg)
		})

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			go func() {
				if runErr := deviceRegistry.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
					logger.Error("Device registry stopped", "error", runErr)
				}
			}()

			if watchErr := configWatcher.Start(); watchErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", watchErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			cancel()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			_ = configWatcher.Stop()
		})
	})

	// Add device inspection commands
	cli.Root().AddCommand(cmd.CreateListCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())

	// Add self-update command
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	// Run the CLI
	cli.Run()
}
