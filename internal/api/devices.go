package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/camprobe/camprobe/internal/api/models"
	"github.com/camprobe/camprobe/internal/registry"
	"github.com/danielgtaylor/huma/v2"
)

// DeviceUUIDInput identifies a device by its stable UUID.
type DeviceUUIDInput struct {
	UUID string `path:"uuid" example:"398f9fdc-3739-5ab8-a7ae-b03af21427a3" doc:"Stable device identifier"`
}

// DeviceCapsInput selects an optional resolution to narrow the caps to.
// Width and height are strings so an absent parameter is
// distinguishable from zero; either both or neither must be given.
type DeviceCapsInput struct {
	DeviceUUIDInput
	Width  string `query:"width" example:"1280" doc:"Frame width in pixels"`
	Height string `query:"height" example:"720" doc:"Frame height in pixels"`
}

// parseResolution interprets the optional width/height query pair.
// Returns narrowed=false when neither is present.
func parseResolution(widthStr, heightStr string) (width, height int, narrowed bool, err error) {
	if widthStr == "" && heightStr == "" {
		return 0, 0, false, nil
	}
	if widthStr == "" || heightStr == "" {
		return 0, 0, false, fmt.Errorf("width and height must be given together")
	}

	width, err = strconv.Atoi(widthStr)
	if err != nil || width <= 0 {
		return 0, 0, false, fmt.Errorf("width must be a positive integer")
	}
	height, err = strconv.Atoi(heightStr)
	if err != nil || height <= 0 {
		return 0, 0, false, fmt.Errorf("height must be a positive integer")
	}
	return width, height, true, nil
}

// mapDeviceError converts registry errors to Huma HTTP errors.
func mapDeviceError(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return huma.Error404NotFound("Device not found", err)
	case errors.Is(err, registry.ErrNotReady):
		return huma.Error409Conflict("Device has no successful probe", err)
	default:
		return huma.Error500InternalServerError("Device lookup failed", err)
	}
}

// registerDeviceRoutes registers all device-related endpoints.
func (s *Server) registerDeviceRoutes() {
	// List all devices.
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List all known video capture devices with their probe state",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		devices := s.registry.Devices()
		return &models.DeviceListResponse{
			Body: models.DeviceListData{
				Devices: devices,
				Count:   len(devices),
			},
		}, nil
	})

	// Get one device.
	huma.Register(s.api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/api/devices/{uuid}",
		Summary:     "Get Device",
		Description: "Get a single device with its probe state and formats",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DeviceUUIDInput) (*models.DeviceResponse, error) {
		info, err := s.registry.Device(input.UUID)
		if err != nil {
			return nil, mapDeviceError(err)
		}
		return &models.DeviceResponse{Body: info}, nil
	})

	// List probed formats.
	huma.Register(s.api, huma.Operation{
		OperationID: "device-formats",
		Method:      http.MethodGet,
		Path:        "/api/devices/{uuid}/formats",
		Summary:     "Formats",
		Description: "List probed capture formats, largest area first",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(ctx context.Context, input *DeviceUUIDInput) (*models.DeviceFormatsResponse, error) {
		info, err := s.registry.Device(input.UUID)
		if err != nil {
			return nil, mapDeviceError(err)
		}
		if info.State != models.DeviceStateReady {
			return nil, mapDeviceError(registry.ErrNotReady)
		}
		return &models.DeviceFormatsResponse{
			Body: models.DeviceFormatsData{
				UUID:       info.UUID,
				Formats:    info.Formats,
				BestFormat: info.BestFormat,
			},
		}, nil
	})

	// Get serialized caps, optionally narrowed to one resolution.
	huma.Register(s.api, huma.Operation{
		OperationID: "device-caps",
		Method:      http.MethodGet,
		Path:        "/api/devices/{uuid}/caps",
		Summary:     "Caps",
		Description: "Get the device's filtered GStreamer caps, narrowed to a single resolution when width and height are given",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 409},
	}, func(ctx context.Context, input *DeviceCapsInput) (*models.DeviceCapsResponse, error) {
		width, height, narrowed, err := parseResolution(input.Width, input.Height)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid resolution parameters", err)
		}

		info, err := s.registry.Device(input.UUID)
		if err != nil {
			return nil, mapDeviceError(err)
		}

		data := models.DeviceCapsData{
			UUID:       info.UUID,
			DeviceNode: info.DeviceNode,
		}
		if narrowed {
			data.Format = &models.FormatInfo{Width: width, Height: height}
			data.Caps, err = s.registry.CapsForFormat(input.UUID, width, height)
		} else {
			data.Caps, err = s.registry.Caps(input.UUID)
		}
		if err != nil {
			return nil, mapDeviceError(err)
		}
		return &models.DeviceCapsResponse{Body: data}, nil
	})

	// Schedule a re-probe.
	huma.Register(s.api, huma.Operation{
		OperationID:   "probe-device",
		Method:        http.MethodPost,
		Path:          "/api/devices/{uuid}/probe",
		Summary:       "Probe Device",
		Description:   "Schedule a fresh capability probe. The outcome is published via SSE.",
		Tags:          []string{"devices"},
		DefaultStatus: http.StatusAccepted,
		Security:      withAuth(),
		Errors:        []int{401, 404},
	}, func(ctx context.Context, input *DeviceUUIDInput) (*models.ProbeAcceptedResponse, error) {
		if err := s.registry.Reprobe(input.UUID); err != nil {
			return nil, mapDeviceError(err)
		}
		return &models.ProbeAcceptedResponse{
			Body: models.ProbeAcceptedData{
				UUID:    input.UUID,
				Message: "Probe scheduled. The result will be sent via SSE.",
			},
		}, nil
	})
}
