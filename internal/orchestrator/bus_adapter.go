package orchestrator

import (
	"time"

	"github.com/cyber-rangers/cratec/internal/broadcast"
	"github.com/cyber-rangers/cratec/internal/catalog"
)

// HubBus adapts the broadcast package's flat frame-sending Hub to the
// dialect-aware EventBus the orchestrator depends on, translating a job's
// config and destination set into the wire frames spec.md §6 defines.
type HubBus struct {
	Hub *broadcast.Hub
}

func (b HubBus) SendProcessFullEWF(jobID, processID int64, sourceDisk string, destDisks []string, cfg catalog.EWFConfig) {
	b.Hub.SendProcessFull(broadcast.ProcessFullFrame{
		ID:               jobID,
		StartDatetime:    time.Now().UTC(),
		Status:           string(catalog.JobRunning),
		TriggeredByEWF:   &processID,
		SourceDisk:       sourceDisk,
		DestinationDisks: destDisks,
	})
}

func (b HubBus) SendProcessFullRaw(jobID, processID int64, sourceDisk string, destDisks []string, cfg catalog.RawConfig) {
	b.Hub.SendProcessFull(broadcast.ProcessFullFrame{
		ID:               jobID,
		StartDatetime:    time.Now().UTC(),
		Status:           string(catalog.JobRunning),
		TriggeredByDD:    &processID,
		SourceDisk:       sourceDisk,
		DestinationDisks: destDisks,
	})
}

func (b HubBus) SendProcessOutput(jobID int64, line string) {
	b.Hub.SendProcessOutput(jobID, line)
}

func (b HubBus) SendProcessProgress(jobID int64, percent *float64, etaText *string, speed *float64) {
	b.Hub.SendProcessProgress(broadcast.ProcessProgressFrame{
		ID:           jobID,
		ProgressPerc: percent,
		ProgressTime: etaText,
		Speed:        speed,
	})
}

func (b HubBus) SendProcessDone(jobID int64, status string) {
	b.Hub.SendProcessDone(broadcast.ProcessDoneFrame{
		ID:          jobID,
		Status:      status,
		EndDatetime: time.Now().UTC(),
	})
}
