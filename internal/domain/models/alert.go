package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenops/binsight/pkg/constants"
)

// Alert is a dashboard notification produced by the bin state engine.
// The bin reference is a weak relation: dismissing or dropping an alert
// never touches the bin itself.
type Alert struct {
	ID        string                  `json:"id"`
	Message   string                  `json:"message"`
	Severity  constants.AlertSeverity `json:"severity"`
	BinID     string                  `json:"binId"`
	Zone      string                  `json:"zone"`
	CreatedAt time.Time               `json:"createdAt"`
	Dismissed bool                    `json:"dismissed"`
}

func newAlert(severity constants.AlertSeverity, binID, zone, message string) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		BinID:     binID,
		Zone:      zone,
		CreatedAt: time.Now().UTC(),
	}
}

// NewFullAlert reports a bin crossing the full threshold.
func NewFullAlert(binID, zone string, fillLevel int) Alert {
	return newAlert(constants.SeverityWarning, binID, zone,
		fmt.Sprintf("Bin %s at %s is full (%d%%)", binID, zone, fillLevel))
}

// NewAnomalyAlert reports an already-full bin climbing past the anomaly
// threshold.
func NewAnomalyAlert(binID, zone string, fillLevel int) Alert {
	return newAlert(constants.SeverityWarning, binID, zone,
		fmt.Sprintf("Anomaly detected at %s: bin %s overfilled (%d%%)", zone, binID, fillLevel))
}

// NewOfflineAlert reports a bin silent past the heartbeat timeout.
func NewOfflineAlert(binID, zone string, lastSeen time.Time) Alert {
	return newAlert(constants.SeverityWarning, binID, zone,
		fmt.Sprintf("Bin %s at %s is offline; last seen %s", binID, zone,
			lastSeen.UTC().Format(time.RFC3339)))
}

// NewMaintenanceDueAlert reports a bin whose scheduled maintenance date
// has passed.
func NewMaintenanceDueAlert(binID, zone string, due time.Time) Alert {
	return newAlert(constants.SeverityInfo, binID, zone,
		fmt.Sprintf("Scheduled maintenance due for bin %s at %s since %s", binID, zone,
			due.UTC().Format("2006-01-02")))
}
