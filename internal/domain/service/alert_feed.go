package service

import (
	"sync"

	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
)

// AlertFeed is the bounded in-memory buffer of alerts served to the
// dashboard. It is append-only up to its capacity; once full, the
// oldest entry is dropped for each new one. Callers must treat the
// capacity as the documented retention contract: an alert older than
// the newest `capacity` entries may no longer be listable.
type AlertFeed struct {
	mu       sync.RWMutex
	capacity int

	// entries is a ring: head points at the oldest element, size counts
	// the occupied slots.
	entries []models.Alert
	head    int
	size    int
}

// AlertFilter narrows List results. Zero values match everything.
type AlertFilter struct {
	Severity constants.AlertSeverity
	BinID    string
}

// NewAlertFeed creates a feed retaining the most recent capacity alerts.
func NewAlertFeed(capacity int) *AlertFeed {
	if capacity <= 0 {
		capacity = constants.DefaultAlertFeedCapacity
	}
	return &AlertFeed{
		capacity: capacity,
		entries:  make([]models.Alert, capacity),
	}
}

// Append adds an alert, evicting the oldest entry when at capacity.
func (f *AlertFeed) Append(alert models.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tail := (f.head + f.size) % f.capacity
	f.entries[tail] = alert
	if f.size < f.capacity {
		f.size++
	} else {
		f.head = (f.head + 1) % f.capacity
	}
}

// List returns the retained alerts newest-first, optionally filtered.
// Dismissed alerts are included; the dashboard renders them greyed out.
func (f *AlertFeed) List(filter AlertFilter) []models.Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]models.Alert, 0, f.size)
	for i := f.size - 1; i >= 0; i-- {
		a := f.entries[(f.head+i)%f.capacity]
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.BinID != "" && a.BinID != filter.BinID {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Dismiss marks the alert with the given id as read. Returns not_found
// if the alert has already been evicted or never existed.
func (f *AlertFeed) Dismiss(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := 0; i < f.size; i++ {
		idx := (f.head + i) % f.capacity
		if f.entries[idx].ID == id {
			f.entries[idx].Dismissed = true
			return nil
		}
	}
	return errors.ErrNotFound("alert")
}

// Len returns the number of retained alerts.
func (f *AlertFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.size
}

// Capacity returns the retention bound.
func (f *AlertFeed) Capacity() int {
	return f.capacity
}
