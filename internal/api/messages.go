// Package api defines the JSON wire contract shared by the sync server and
// the device agent. Documents travel whole, never as deltas; images travel
// base64 inside the JSON envelope. Timestamps are unix milliseconds.
package api

import (
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ProjectState is one locally-held project as reported during negotiation.
type ProjectState struct {
	ProjectID    string `json:"projectId"`
	LastModified int64  `json:"lastModified"`
	BillCount    int    `json:"billCount"`
}

type NegotiateRequest struct {
	LocalProjects []ProjectState `json:"localProjects"`
	SyncFromDate  int64          `json:"syncFromDate,omitempty"`
	DeviceID      string         `json:"deviceId,omitempty"`
}

func (r NegotiateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.LocalProjects, validation.By(func(value any) error {
			for _, p := range r.LocalProjects {
				if p.ProjectID == "" {
					return errors.New("localProjects: projectId is required")
				}
			}
			return nil
		})),
	)
}

// PlanEntry is one pull or push decision in a negotiate response.
type PlanEntry struct {
	ProjectID    string `json:"projectId"`
	LastModified int64  `json:"lastModified"`
	Reason       string `json:"reason"`
}

// BillToPull identifies one bill image missing on the device.
type BillToPull struct {
	ProjectID string `json:"projectId"`
	BillID    string `json:"billId"`
	AddedAt   int64  `json:"addedAt"`
}

type NegotiateResponse struct {
	Success          bool         `json:"success"`
	ProjectsToPull   []PlanEntry  `json:"projectsToPull"`
	ProjectsToPush   []PlanEntry  `json:"projectsToPush"`
	ProjectsToDelete []string     `json:"projectsToDelete"`
	BillsToPull      []BillToPull `json:"billsToPull"`
	ServerTimestamp  int64        `json:"serverTimestamp"`
	AvailablePersons []string     `json:"availablePersons"`
	ErrorMessage     string       `json:"errorMessage,omitempty"`
}

type PullRequest struct {
	ProjectID string `json:"projectId"`
}

func (r PullRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectID, validation.Required),
	)
}

type PullResponse struct {
	Success      bool            `json:"success"`
	ProjectJSON  json.RawMessage `json:"projectJson,omitempty"`
	LastModified int64           `json:"lastModified,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

type BatchPullRequest struct {
	ProjectIDs []string `json:"projectIds"`
}

func (r BatchPullRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectIDs, validation.Required),
	)
}

type BatchPullResponse struct {
	Success           bool                       `json:"success"`
	Projects          map[string]json.RawMessage `json:"projects"`
	LastModifiedTimes map[string]int64           `json:"lastModifiedTimes"`
	FailedProjects    map[string]string          `json:"failedProjects"`
	ErrorMessage      string                     `json:"errorMessage,omitempty"`
}

type PushRequest struct {
	ProjectID         string          `json:"projectId"`
	ProjectJSON       json.RawMessage `json:"projectJson"`
	LocalLastModified int64           `json:"localLastModified"`
	UpdatedBy         string          `json:"updatedBy,omitempty"`
}

func (r PushRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectID, validation.Required),
		validation.Field(&r.ProjectJSON, validation.Required),
	)
}

type PushResponse struct {
	Success            bool            `json:"success"`
	FinalProjectJSON   json.RawMessage `json:"finalProjectJson,omitempty"`
	ServerLastModified int64           `json:"serverLastModified,omitempty"`
	HadConflict        bool            `json:"hadConflict"`
	ErrorMessage       string          `json:"errorMessage,omitempty"`
}

// BatchPushEntry is one document in a batch push request.
type BatchPushEntry struct {
	ProjectID         string          `json:"projectId"`
	ProjectJSON       json.RawMessage `json:"projectJson"`
	LocalLastModified int64           `json:"localLastModified"`
}

type BatchPushRequest struct {
	Projects  []BatchPushEntry `json:"projects"`
	UpdatedBy string           `json:"updatedBy,omitempty"`
}

func (r BatchPushRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Projects, validation.Required),
		validation.Field(&r.Projects, validation.By(func(value any) error {
			for _, p := range r.Projects {
				if p.ProjectID == "" {
					return errors.New("projects: projectId is required")
				}
			}
			return nil
		})),
	)
}

// PushOutcome is one per-item result inside a batch push response.
type PushOutcome struct {
	ProjectID          string          `json:"projectId"`
	Success            bool            `json:"success"`
	HadConflict        bool            `json:"hadConflict"`
	FinalProjectJSON   json.RawMessage `json:"finalProjectJson,omitempty"`
	ServerLastModified int64           `json:"serverLastModified,omitempty"`
	ErrorMessage       string          `json:"errorMessage,omitempty"`
}

type BatchPushResponse struct {
	Success       bool          `json:"success"`
	Results       []PushOutcome `json:"results"`
	SuccessCount  int           `json:"successCount"`
	ConflictCount int           `json:"conflictCount"`
	FailureCount  int           `json:"failureCount"`
	ErrorMessage  string        `json:"errorMessage,omitempty"`
}

type CloseRequest struct {
	ProjectID string `json:"projectId"`
	ClosedBy  string `json:"closedBy,omitempty"`
}

func (r CloseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectID, validation.Required),
	)
}

type CloseResponse struct {
	Success            bool            `json:"success"`
	UpdatedProjectJSON json.RawMessage `json:"updatedProjectJson,omitempty"`
	LastModified       int64           `json:"lastModified,omitempty"`
	ErrorMessage       string          `json:"errorMessage,omitempty"`
}

// PullAssetRequest fetches either a project's primary scan (by projectId)
// or one attached bill image (by billId). Exactly one must be set.
type PullAssetRequest struct {
	ProjectID string `json:"projectId,omitempty"`
	BillID    string `json:"billId,omitempty"`
}

func (r PullAssetRequest) Validate() error {
	if (r.ProjectID == "") == (r.BillID == "") {
		return errors.New("exactly one of projectId or billId is required")
	}
	return nil
}

type PullAssetResponse struct {
	Success      bool   `json:"success"`
	ImageBase64  string `json:"imageBase64,omitempty"`
	Filename     string `json:"filename,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type PingResponse struct {
	Status string `json:"status"`
}
