package models

import (
	"time"

	"github.com/greenops/binsight/pkg/constants"
)

// Location is the physical placement of a bin.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// MaintenanceSchedule tracks the maintenance cadence for a bin.
// NextMaintenanceDate is always derived from LastMaintenanceDate plus
// the frequency interval; it is recomputed whenever either changes.
type MaintenanceSchedule struct {
	Frequency           constants.MaintenanceFrequency `json:"frequency"`
	LastMaintenanceDate time.Time                      `json:"lastMaintenanceDate"`
	NextMaintenanceDate time.Time                      `json:"nextMaintenanceDate"`
}

// Recompute derives NextMaintenanceDate from the current inputs.
func (s *MaintenanceSchedule) Recompute() {
	s.NextMaintenanceDate = s.LastMaintenanceDate.Add(s.Frequency.Interval())
}

// BinImage is a dashboard image reference attached to a bin.
type BinImage struct {
	URL        string    `json:"url"`
	Caption    string    `json:"caption"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Bin represents a monitored waste bin. Bins are provisioned by seed or
// admin action, mutated by telemetry and maintenance events, and never
// hard-deleted; retirement is expressed through status.
type Bin struct {
	ID               uint                    `json:"-" gorm:"primaryKey"`
	BinID            string                  `json:"binId" gorm:"uniqueIndex;size:64"`
	Category         constants.WasteCategory `json:"category" gorm:"size:32;index"`
	Location         Location                `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	Status           constants.BinStatus     `json:"status" gorm:"size:32;index"`
	FillLevel        int                     `json:"fillLevel"`
	Capacity         int                     `json:"capacity"`
	LastEmptied      time.Time               `json:"lastEmptied"`
	InstallationDate time.Time               `json:"installationDate"`
	Maintenance      MaintenanceSchedule     `json:"maintenanceSchedule" gorm:"embedded;embeddedPrefix:maintenance_"`
	Images           []BinImage              `json:"images" gorm:"serializer:json"`

	// LastSeenAt is the arrival time of the newest accepted telemetry;
	// it drives the offline sweep.
	LastSeenAt time.Time `json:"lastSeenAt"`

	// LastTelemetryAt is the device-reported timestamp of the newest
	// accepted reading; strictly older reports are rejected as stale.
	LastTelemetryAt time.Time `json:"lastTelemetryAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewBin creates a provisioned bin in the active state.
func NewBin(binID string, category constants.WasteCategory, loc Location, capacity int, frequency constants.MaintenanceFrequency) *Bin {
	now := time.Now().UTC()
	bin := &Bin{
		BinID:            binID,
		Category:         category,
		Location:         loc,
		Status:           constants.BinStatusActive,
		FillLevel:        0,
		Capacity:         capacity,
		LastEmptied:      now,
		InstallationDate: now,
		LastSeenAt:       now,
		Maintenance: MaintenanceSchedule{
			Frequency:           frequency,
			LastMaintenanceDate: now,
		},
	}
	bin.Maintenance.Recompute()
	return bin
}

// RecordMaintenance applies a maintenance-performed event, advancing
// the schedule and recomputing the derived next date.
func (b *Bin) RecordMaintenance(at time.Time) {
	b.Maintenance.LastMaintenanceDate = at
	b.Maintenance.Recompute()
}

// MaintenanceDue reports whether the derived next maintenance date has
// passed at the given instant.
func (b *Bin) MaintenanceDue(now time.Time) bool {
	return !now.Before(b.Maintenance.NextMaintenanceDate)
}

// Silent reports whether the bin has been without telemetry for longer
// than the heartbeat timeout at the given instant.
func (b *Bin) Silent(now time.Time, heartbeatTimeout time.Duration) bool {
	return now.Sub(b.LastSeenAt) >= heartbeatTimeout
}

// Zone returns the human-readable placement used in alert messages.
func (b *Bin) Zone() string {
	if b.Location.Address != "" {
		return b.Location.Address
	}
	return "unknown location"
}
