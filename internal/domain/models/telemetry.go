package models

import (
	"time"

	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
)

// TelemetryReading is a sensor report pushed by a device for one bin.
type TelemetryReading struct {
	DeviceID  string    `json:"deviceId"`
	BinID     string    `json:"binId"`
	FillLevel int       `json:"fillLevel"`
	Timestamp time.Time `json:"timestamp"`

	// BatteryLevel is optional; -1 when unreported.
	BatteryLevel int `json:"batteryLevel"`
}

// Validate returns the field-level failures of the reading, if any.
func (r TelemetryReading) Validate() []errors.FieldError {
	var fields []errors.FieldError
	if r.DeviceID == "" {
		fields = append(fields, errors.FieldError{Field: "deviceId", Message: "required"})
	}
	if r.BinID == "" {
		fields = append(fields, errors.FieldError{Field: "binId", Message: "required"})
	}
	if r.FillLevel < constants.MinFillLevel || r.FillLevel > constants.MaxFillLevel {
		fields = append(fields, errors.FieldError{Field: "fillLevel", Message: "must be between 0 and 100"})
	}
	if r.Timestamp.IsZero() {
		fields = append(fields, errors.FieldError{Field: "timestamp", Message: "required"})
	}
	return fields
}
