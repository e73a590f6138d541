package dto

import (
	"time"

	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
)

// TelemetryRequest is the body of POST /api/iot/telemetry.
type TelemetryRequest struct {
	DeviceID     string    `json:"deviceId"`
	BinID        string    `json:"binId"`
	FillLevel    *int      `json:"fillLevel"`
	Timestamp    time.Time `json:"timestamp"`
	BatteryLevel *int      `json:"batteryLevel,omitempty"`
}

// ToReading converts the request into a domain reading. Pointer fields
// distinguish "absent" from a legitimate zero value.
func (r TelemetryRequest) ToReading() models.TelemetryReading {
	reading := models.TelemetryReading{
		DeviceID:     r.DeviceID,
		BinID:        r.BinID,
		Timestamp:    r.Timestamp,
		BatteryLevel: -1,
	}
	if r.FillLevel != nil {
		reading.FillLevel = *r.FillLevel
	} else {
		reading.FillLevel = -1
	}
	if r.BatteryLevel != nil {
		reading.BatteryLevel = *r.BatteryLevel
	}
	return reading
}

// HeartbeatRequest is the body of POST /api/iot/heartbeat.
type HeartbeatRequest struct {
	DeviceID string `json:"deviceId"`
	BinID    string `json:"binId"`
}

// Validate checks the required identifiers.
func (r HeartbeatRequest) Validate() []errors.FieldError {
	var fields []errors.FieldError
	if r.DeviceID == "" {
		fields = append(fields, errors.FieldError{Field: "deviceId", Message: "device identifier is required"})
	}
	if r.BinID == "" {
		fields = append(fields, errors.FieldError{Field: "binId", Message: "bin identifier is required"})
	}
	return fields
}

// LocationRequest mirrors the bin location payload.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

// ProvisionBinRequest is the body of POST /api/bins.
type ProvisionBinRequest struct {
	BinID                string          `json:"binId"`
	Category             string          `json:"category"`
	Location             LocationRequest `json:"location"`
	Capacity             int             `json:"capacity"`
	MaintenanceFrequency string          `json:"maintenanceFrequency,omitempty"`
}

// Validate checks the provisioning payload.
func (r ProvisionBinRequest) Validate() []errors.FieldError {
	var fields []errors.FieldError
	if r.BinID == "" {
		fields = append(fields, errors.FieldError{Field: "binId", Message: "bin identifier is required"})
	}
	if !constants.IsValidCategory(constants.WasteCategory(r.Category)) {
		fields = append(fields, errors.FieldError{Field: "category", Message: "unrecognized waste category"})
	}
	if r.Location.Latitude == nil || *r.Location.Latitude < -90 || *r.Location.Latitude > 90 {
		fields = append(fields, errors.FieldError{Field: "location.latitude", Message: "latitude must be between -90 and 90"})
	}
	if r.Location.Longitude == nil || *r.Location.Longitude < -180 || *r.Location.Longitude > 180 {
		fields = append(fields, errors.FieldError{Field: "location.longitude", Message: "longitude must be between -180 and 180"})
	}
	if r.Capacity <= 0 {
		fields = append(fields, errors.FieldError{Field: "capacity", Message: "capacity must be positive"})
	}
	if r.MaintenanceFrequency != "" &&
		!constants.MaintenanceFrequency(r.MaintenanceFrequency).IsValid() {
		fields = append(fields, errors.FieldError{Field: "maintenanceFrequency", Message: "unrecognized maintenance frequency"})
	}
	return fields
}

// ToBin converts a validated request into a domain bin.
func (r ProvisionBinRequest) ToBin() *models.Bin {
	frequency := constants.MaintenanceFrequency(r.MaintenanceFrequency)
	if r.MaintenanceFrequency == "" {
		frequency = constants.DefaultMaintenanceFrequency
	}
	return models.NewBin(
		r.BinID,
		constants.WasteCategory(r.Category),
		models.Location{
			Latitude:  *r.Location.Latitude,
			Longitude: *r.Location.Longitude,
			Address:   r.Location.Address,
		},
		r.Capacity,
		frequency,
	)
}

// MaintenanceRequest is the body of POST /api/maintenance/:binId. An
// absent PerformedAt means "now".
type MaintenanceRequest struct {
	PerformedAt *time.Time `json:"performedAt,omitempty"`
}
