package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
)

// StatusEvent is one message on the status queue. The job-controller
// sidecar reports individual jobs (run_id + job_id + status); the engine
// reports the run itself (run_id + status, no job_id). Either kind may
// carry a chunk of engine logs, and a message may carry logs alone.
// Producers may redeliver; consumers must stay idempotent.
type StatusEvent struct {
	RunId      string     `json:"run_id"`
	JobId      string     `json:"job_id,omitempty"`
	Status     string     `json:"status,omitempty"`
	Logs       string     `json:"logs,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Event is a decoded and validated StatusEvent.
type Event struct {
	RunId string
	Logs  string

	// Job is set for job reports. Nil otherwise.
	Job *domain.Job

	// RunStatus is set for run reports from the engine. Empty for job
	// reports and for messages carrying logs only.
	RunStatus domain.RunStatus
}

// ParseEvent decodes and validates a message body.
//
// A body that cannot be decoded, or names no run, or carries a status
// unknown for its kind, is poison: it will never become processable.
func ParseEvent(body []byte) (Event, error) {
	var raw StatusEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("undecodable message: %w", err)
	}
	if raw.RunId == "" {
		return Event{}, fmt.Errorf("message without run_id")
	}

	ev := Event{RunId: raw.RunId, Logs: raw.Logs}

	if raw.JobId != "" {
		status, err := domain.AsJobStatus(raw.Status)
		if err != nil {
			return Event{}, err
		}
		ev.Job = &domain.Job{
			Id:         raw.JobId,
			RunId:      raw.RunId,
			Status:     status,
			StartedAt:  raw.StartedAt,
			FinishedAt: raw.FinishedAt,
		}
		return ev, nil
	}

	if raw.Status != "" {
		status, err := domain.AsRunStatus(raw.Status)
		if err != nil {
			return Event{}, err
		}
		ev.RunStatus = status
		return ev, nil
	}

	if raw.Logs == "" {
		return Event{}, fmt.Errorf("message without job_id, status or logs")
	}
	return ev, nil
}
