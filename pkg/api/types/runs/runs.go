package runs

import (
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/rfctime"
)

type Progress struct {
	Total    int `json:"total"`
	Running  int `json:"running"`
	Finished int `json:"finished"`
	Failed   int `json:"failed"`
	Stopped  int `json:"stopped"`
}

type Summary struct {
	RunId          string            `json:"runId"`
	Name           string            `json:"name"`
	Number         int               `json:"number"`
	Status         string            `json:"status"`
	Engine         string            `json:"engine"`
	ComputeBackend string            `json:"computeBackend,omitempty"`
	RestartedFrom  string            `json:"restartedFrom,omitempty"`
	CreatedAt      rfctime.RFC3339   `json:"createdAt"`
	StartedAt      *rfctime.RFC3339  `json:"startedAt,omitempty"`
	FinishedAt     *rfctime.RFC3339  `json:"finishedAt,omitempty"`
}

func ComposeSummary(r domain.RunBody) Summary {
	return Summary{
		RunId:          r.Id,
		Name:           r.Name,
		Number:         r.Number,
		Status:         string(r.Status),
		Engine:         string(r.Engine),
		ComputeBackend: string(r.ComputeBackend),
		RestartedFrom:  r.RestartedFrom,
		CreatedAt:      rfctime.RFC3339(r.CreatedAt),
		StartedAt:      rfctime.Pointer(r.StartedAt),
		FinishedAt:     rfctime.Pointer(r.FinishedAt),
	}
}

type Detail struct {
	Summary
	Workspace string            `json:"workspace"`
	Progress  Progress          `json:"progress"`
	Options   map[string]string `json:"options,omitempty"`
}

func ComposeDetail(r domain.Run) Detail {
	return Detail{
		Summary:   ComposeSummary(r.RunBody),
		Workspace: r.Workspace,
		Progress: Progress{
			Total:    r.Progress.Total,
			Running:  r.Progress.Running,
			Finished: r.Progress.Finished,
			Failed:   r.Progress.Failed,
			Stopped:  r.Progress.Stopped,
		},
		Options: r.Options,
	}
}

// StatusChange is the body of PUT /workflows/:id/status.
type StatusChange struct {
	Status string `json:"status"`

	// honored with Status "deleted".
	DeleteWorkspace bool `json:"deleteWorkspace,omitempty"`
	AllRuns         bool `json:"allRuns,omitempty"`
}

// LogResponse is the body of GET /workflows/:id/logs.
type LogResponse struct {
	RunId string `json:"runId"`
	Logs  string `json:"logs"`
}
