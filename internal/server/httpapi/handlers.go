// Package httpapi exposes the sync coordinator over a JSON HTTP surface.
//
// Domain outcomes (not found, conflict, invalid payload) are reported inside
// a 200 envelope via the success/errorMessage fields so clients branch on
// data, not transport codes. Storage trouble maps to 503 so retry layers can
// key off the status.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/newwaysadmin/slipsync/internal/api"
	"github.com/newwaysadmin/slipsync/internal/common"
	"github.com/newwaysadmin/slipsync/internal/logging"
	"github.com/newwaysadmin/slipsync/internal/server/assets"
	"github.com/newwaysadmin/slipsync/internal/server/models"
	"github.com/newwaysadmin/slipsync/internal/server/projects"
)

// maxBodyBytes caps request bodies. Batch pushes carry whole documents and
// pull-asset responses carry base64 images, so the limit is generous.
const maxBodyBytes = 32 << 20

type Handler struct {
	sync   *projects.Service
	assets *assets.Service
	logger logging.Logger
}

func NewHandler(sync *projects.Service, assets *assets.Service, logger logging.Logger) *Handler {
	return &Handler{sync: sync, assets: assets, logger: logger.With("component", "httpapi")}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

type validatable interface{ Validate() error }

// decode parses and validates the request body. A false return means the
// error response has already been written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success":      false,
			"errorMessage": "malformed request body",
		})
		return false
	}
	if err := dest.Validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success":      false,
			"errorMessage": err.Error(),
		})
		return false
	}
	return true
}

// status maps a service error to the HTTP code carrying the failure
// envelope.
func status(err error) int {
	if errors.Is(err, common.ErrStorageUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.PingResponse{Status: "OK"})
}

func (h *Handler) Negotiate(w http.ResponseWriter, r *http.Request) {
	var req api.NegotiateRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.DeviceID != "" {
		h.logger.Info(r.Context(), "negotiate", "device", req.DeviceID, "reported", len(req.LocalProjects))
	}

	client := make([]models.ClientProjectState, 0, len(req.LocalProjects))
	for _, p := range req.LocalProjects {
		client = append(client, models.ClientProjectState{
			ID:           p.ProjectID,
			LastModified: p.LastModified,
			BillCount:    p.BillCount,
		})
	}

	plan, err := h.sync.Negotiate(r.Context(), client, req.SyncFromDate)
	if err != nil {
		respondJSON(w, status(err), api.NegotiateResponse{ErrorMessage: err.Error()})
		return
	}

	resp := api.NegotiateResponse{
		Success:          true,
		ProjectsToPull:   planEntries(plan.Pull),
		ProjectsToPush:   planEntries(plan.Push),
		ProjectsToDelete: plan.Delete,
		ServerTimestamp:  plan.ServerTime,
		AvailablePersons: plan.Owners,
	}
	for _, b := range plan.Bills {
		resp.BillsToPull = append(resp.BillsToPull, api.BillToPull{
			ProjectID: b.ProjectID,
			BillID:    b.BillID,
			AddedAt:   b.AddedAt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func planEntries(items []models.PlanItem) []api.PlanEntry {
	out := make([]api.PlanEntry, 0, len(items))
	for _, it := range items {
		out = append(out, api.PlanEntry{
			ProjectID:    it.ID,
			LastModified: it.LastModified,
			Reason:       string(it.Reason),
		})
	}
	return out
}

func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	var req api.PullRequest
	if !h.decode(w, r, &req) {
		return
	}

	env, err := h.sync.Pull(r.Context(), req.ProjectID)
	if err != nil {
		respondJSON(w, status(err), api.PullResponse{ErrorMessage: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, api.PullResponse{
		Success:      true,
		ProjectJSON:  json.RawMessage(env.Raw),
		LastModified: env.LastModified,
	})
}

func (h *Handler) BatchPull(w http.ResponseWriter, r *http.Request) {
	var req api.BatchPullRequest
	if !h.decode(w, r, &req) {
		return
	}

	succeeded, failed := h.sync.BatchPull(r.Context(), req.ProjectIDs)

	resp := api.BatchPullResponse{
		Success:           true,
		Projects:          make(map[string]json.RawMessage, len(succeeded)),
		LastModifiedTimes: make(map[string]int64, len(succeeded)),
		FailedProjects:    make(map[string]string, len(failed)),
	}
	for id, env := range succeeded {
		resp.Projects[id] = json.RawMessage(env.Raw)
		resp.LastModifiedTimes[id] = env.LastModified
	}
	for id, msg := range failed {
		resp.FailedProjects[id] = msg
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	var req api.PushRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.sync.Push(r.Context(), req.ProjectID, req.ProjectJSON, req.LocalLastModified, req.UpdatedBy)
	if err != nil {
		respondJSON(w, status(err), api.PushResponse{ErrorMessage: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, api.PushResponse{
		Success:            true,
		FinalProjectJSON:   json.RawMessage(res.FinalPayload),
		ServerLastModified: res.FinalLastModified,
		HadConflict:        res.HadConflict,
	})
}

func (h *Handler) BatchPush(w http.ResponseWriter, r *http.Request) {
	var req api.BatchPushRequest
	if !h.decode(w, r, &req) {
		return
	}

	items := make([]projects.BatchPushItem, 0, len(req.Projects))
	for _, p := range req.Projects {
		items = append(items, projects.BatchPushItem{
			ID:                 p.ProjectID,
			Payload:            p.ProjectJSON,
			ClientLastModified: p.LocalLastModified,
		})
	}

	results, counts := h.sync.BatchPush(r.Context(), items, req.UpdatedBy)

	resp := api.BatchPushResponse{
		Success:       true,
		SuccessCount:  counts.Succeeded,
		ConflictCount: counts.Conflicted,
		FailureCount:  counts.Failed,
	}
	for _, res := range results {
		resp.Results = append(resp.Results, api.PushOutcome{
			ProjectID:          res.ProjectID,
			Success:            res.OK,
			HadConflict:        res.HadConflict,
			FinalProjectJSON:   json.RawMessage(res.FinalPayload),
			ServerLastModified: res.FinalLastModified,
			ErrorMessage:       res.Err,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var req api.CloseRequest
	if !h.decode(w, r, &req) {
		return
	}

	env, err := h.sync.Close(r.Context(), req.ProjectID, req.ClosedBy)
	if err != nil {
		respondJSON(w, status(err), api.CloseResponse{ErrorMessage: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, api.CloseResponse{
		Success:            true,
		UpdatedProjectJSON: json.RawMessage(env.Raw),
		LastModified:       env.LastModified,
	})
}

func (h *Handler) PullAsset(w http.ResponseWriter, r *http.Request) {
	var req api.PullAssetRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		img *assets.Image
		err error
	)
	if req.ProjectID != "" {
		img, err = h.assets.PullScan(r.Context(), req.ProjectID)
	} else {
		img, err = h.assets.PullBill(r.Context(), req.BillID)
	}
	if err != nil {
		respondJSON(w, status(err), api.PullAssetResponse{ErrorMessage: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, api.PullAssetResponse{
		Success:     true,
		ImageBase64: base64.StdEncoding.EncodeToString(img.Bytes),
		Filename:    img.Filename,
		ContentType: img.ContentType,
	})
}
