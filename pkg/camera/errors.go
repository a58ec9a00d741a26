package camera

import "fmt"

// DeviceError represents a device probing or usage error
type DeviceError struct {
	Code    string
	Message string
	Cause   error
}

func (e *DeviceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DeviceError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeUnknown              = "UNKNOWN"
	ErrCodeFailedInitialization = "FAILED_INITIALIZATION"
	ErrCodeUnsupportedCaps      = "UNSUPPORTED_CAPS"
	ErrCodeNotSupported         = "NOT_SUPPORTED"
	ErrCodeInvalidParams        = "INVALID_PARAMS"
	ErrCodeDeviceNotFound       = "DEVICE_NOT_FOUND"
)

// NewDeviceError creates a new device error
func NewDeviceError(code, message string, cause error) *DeviceError {
	return &DeviceError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// clone copies an error so callers replaying a stored probe failure
// cannot mutate the handle's record of it.
func (e *DeviceError) clone() *DeviceError {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
