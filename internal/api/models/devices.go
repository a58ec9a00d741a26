package models

// DeviceState reflects where a device is in its probe lifecycle.
type DeviceState string

const (
	// DeviceStateProbing means the capability probe is still running.
	DeviceStateProbing DeviceState = "probing"
	// DeviceStateReady means the probe succeeded and formats are available.
	DeviceStateReady DeviceState = "ready"
	// DeviceStateFailed means the probe failed; Error and ErrorCode are set.
	DeviceStateFailed DeviceState = "failed"
)

// FormatInfo represents a discrete capture resolution.
type FormatInfo struct {
	Width  int `json:"width" example:"1280" doc:"Frame width in pixels"`
	Height int `json:"height" example:"720" doc:"Frame height in pixels"`
}

// DeviceInfo represents a video capture device and its probe results.
type DeviceInfo struct {
	UUID       string       `json:"uuid" example:"398f9fdc-3739-5ab8-a7ae-b03af21427a3" doc:"Stable device identifier"`
	DeviceNode string       `json:"device_node" example:"/dev/video0" doc:"Device node path"`
	Name       string       `json:"name" example:"HD Pro Webcam C920" doc:"Product name reported by the driver"`
	APIVersion uint         `json:"api_version" example:"2" doc:"Video4Linux API version (1 or 2)"`
	Source     string       `json:"source" example:"v4l2src" doc:"GStreamer source element used for this device"`
	State      DeviceState  `json:"state" example:"ready" doc:"Probe lifecycle state"`
	ErrorCode  string       `json:"error_code,omitempty" example:"UNSUPPORTED_CAPS" doc:"Probe failure code when state is failed"`
	Error      string       `json:"error,omitempty" doc:"Probe failure detail when state is failed"`
	Formats    []FormatInfo `json:"formats,omitempty" doc:"Supported formats ordered largest first"`
	BestFormat *FormatInfo  `json:"best_format,omitempty" doc:"Highest resolution format"`
}

// Device API response models
type DeviceListData struct {
	Devices []DeviceInfo `json:"devices" doc:"List of known video capture devices"`
	Count   int          `json:"count" example:"2" doc:"Number of devices"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

type DeviceResponse struct {
	Body DeviceInfo
}

type DeviceFormatsData struct {
	UUID       string       `json:"uuid" example:"398f9fdc-3739-5ab8-a7ae-b03af21427a3" doc:"Stable device identifier"`
	Formats    []FormatInfo `json:"formats" doc:"Supported formats ordered largest first"`
	BestFormat *FormatInfo  `json:"best_format,omitempty" doc:"Highest resolution format"`
}

type DeviceFormatsResponse struct {
	Body DeviceFormatsData
}

type DeviceCapsData struct {
	UUID       string      `json:"uuid" example:"398f9fdc-3739-5ab8-a7ae-b03af21427a3" doc:"Stable device identifier"`
	DeviceNode string      `json:"device_node" example:"/dev/video0" doc:"Device node path"`
	Format     *FormatInfo `json:"format,omitempty" doc:"Resolution the caps were narrowed to, if requested"`
	Caps       string      `json:"caps" example:"video/x-raw-yuv, width=(int)1280, height=(int)720" doc:"GStreamer caps in serialized form"`
}

type DeviceCapsResponse struct {
	Body DeviceCapsData
}

type ProbeAcceptedData struct {
	UUID    string `json:"uuid" example:"398f9fdc-3739-5ab8-a7ae-b03af21427a3" doc:"Stable device identifier"`
	Message string `json:"message" example:"Probe scheduled" doc:"Status message"`
}

type ProbeAcceptedResponse struct {
	Body ProbeAcceptedData
}
