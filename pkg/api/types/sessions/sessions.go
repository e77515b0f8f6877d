package sessions

import (
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/rfctime"
)

type Detail struct {
	Name      string          `json:"name"`
	RunId     string          `json:"runId"`
	Kind      string          `json:"kind"`
	Path      string          `json:"path"`
	CreatedAt rfctime.RFC3339 `json:"createdAt"`

	// pod phase as last observed; empty for a fresh session.
	Status string `json:"status,omitempty"`

	// full access URL with the signed token; only returned on creation.
	AccessURL string `json:"accessUrl,omitempty"`
}

func ComposeDetail(s domain.Session) Detail {
	return Detail{
		Name:      s.Name,
		RunId:     s.RunId,
		Kind:      string(s.Kind),
		Path:      s.Path,
		CreatedAt: rfctime.RFC3339(s.CreatedAt),
	}
}

// CreateRequest is the body of POST /workflows/:id/session.
type CreateRequest struct {
	Kind string `json:"kind"`
}
