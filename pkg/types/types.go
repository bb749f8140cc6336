// Package types holds the wire payloads exchanged with the Risk Modeler API
// and the workflow status classification shared by every poller.
package types

import (
	"encoding/json"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Workflow and job statuses reported by the API.
const (
	StatusQueued          = "QUEUED"
	StatusPending         = "PENDING"
	StatusRunning         = "RUNNING"
	StatusCancelRequested = "CANCEL_REQUESTED"
	StatusCancelling      = "CANCELLING"
	StatusFinished        = "FINISHED"
	StatusFailed          = "FAILED"
	StatusCancelled       = "CANCELLED"
)

var (
	// CompletedStatuses are terminal; polling stops when one is observed.
	CompletedStatuses = mapset.NewSet(StatusFinished, StatusFailed, StatusCancelled)

	// InProgressStatuses keep a batch poll waiting.
	InProgressStatuses = mapset.NewSet(StatusQueued, StatusPending, StatusRunning, StatusCancelRequested, StatusCancelling)
)

// IsCompleted reports whether status is terminal.
func IsCompleted(status string) bool {
	return CompletedStatuses.Contains(status)
}

// IsInProgress reports whether status is a known in-progress value.
// Unknown values are neither completed nor in progress.
func IsInProgress(status string) bool {
	return InProgressStatuses.Contains(status)
}

// WorkflowStatus is a single workflow or job status record. Raw keeps the
// full payload so callers get back exactly what the server sent.
type WorkflowStatus struct {
	ID       int64
	Status   string
	Progress *float64
	Raw      json.RawMessage

	hasStatus bool
}

// HasStatus reports whether the payload carried a status field.
func (w WorkflowStatus) HasStatus() bool {
	return w.hasStatus
}

// HasProgress reports whether the payload carried a progress field.
func (w WorkflowStatus) HasProgress() bool {
	return w.Progress != nil
}

// ProgressString renders progress for log output.
func (w WorkflowStatus) ProgressString() string {
	if w.Progress == nil {
		return ""
	}
	return fmt.Sprintf("%g", *w.Progress)
}

// UnmarshalJSON records field presence and retains the raw payload.
func (w *WorkflowStatus) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID       *int64   `json:"id"`
		Status   *string  `json:"status"`
		Progress *float64 `json:"progress"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*w = WorkflowStatus{Raw: append(json.RawMessage(nil), data...)}
	if aux.ID != nil {
		w.ID = *aux.ID
	}
	if aux.Status != nil {
		w.Status = *aux.Status
		w.hasStatus = true
	}
	w.Progress = aux.Progress
	return nil
}

// MarshalJSON writes the payload back unchanged.
func (w WorkflowStatus) MarshalJSON() ([]byte, error) {
	if len(w.Raw) > 0 {
		return w.Raw, nil
	}
	out := map[string]any{"status": w.Status}
	if w.ID != 0 {
		out["id"] = w.ID
	}
	if w.Progress != nil {
		out["progress"] = *w.Progress
	}
	return json.Marshal(out)
}

// AnalysisID returns output.analysisId from a finished workflow payload.
func (w WorkflowStatus) AnalysisID() (string, error) {
	var aux struct {
		Output *struct {
			AnalysisID *json.Number `json:"analysisId"`
		} `json:"output"`
	}
	if err := json.Unmarshal(w.Raw, &aux); err != nil {
		return "", err
	}
	if aux.Output == nil {
		return "", fmt.Errorf("missing 'output' in workflow payload")
	}
	if aux.Output.AnalysisID == nil {
		return "", fmt.Errorf("missing 'output.analysisId' in workflow payload")
	}
	return aux.Output.AnalysisID.String(), nil
}

// WorkflowPage is one page of the workflow listing endpoint.
type WorkflowPage struct {
	TotalMatchCount int              `json:"totalMatchCount"`
	Workflows       []WorkflowStatus `json:"workflows"`

	hasTotal bool
}

// HasTotalMatchCount reports whether the page carried totalMatchCount.
func (p WorkflowPage) HasTotalMatchCount() bool {
	return p.hasTotal
}

// UnmarshalJSON records whether totalMatchCount was present.
func (p *WorkflowPage) UnmarshalJSON(data []byte) error {
	var aux struct {
		TotalMatchCount *int             `json:"totalMatchCount"`
		Workflows       []WorkflowStatus `json:"workflows"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = WorkflowPage{Workflows: aux.Workflows}
	if aux.TotalMatchCount != nil {
		p.TotalMatchCount = *aux.TotalMatchCount
		p.hasTotal = true
	}
	return nil
}
