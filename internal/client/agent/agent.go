// Package agent runs sync rounds for one device: it pushes local edits,
// negotiates a plan against the server, applies pulls and deletions, fetches
// missing bill images and sweeps old closed projects out of the local store.
package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/newwaysadmin/slipsync/internal/api"
	"github.com/newwaysadmin/slipsync/internal/client/serverapi"
	"github.com/newwaysadmin/slipsync/internal/client/store"
	"github.com/newwaysadmin/slipsync/internal/logging"
)

// Summary reports what one sync round did.
type Summary struct {
	Pushed       int
	Conflicts    int
	Pulled       int
	Deleted      int
	BillsFetched int
	Swept        int
}

type Agent struct {
	store     *store.Store
	client    *serverapi.Client
	assetDir  string
	retention time.Duration
	logger    logging.Logger
	now       func() time.Time
}

func New(st *store.Store, client *serverapi.Client, assetDir string, retention time.Duration, logger logging.Logger) *Agent {
	return &Agent{
		store:     st,
		client:    client,
		assetDir:  assetDir,
		retention: retention,
		logger:    logger.With("component", "agent"),
		now:       time.Now,
	}
}

// RunOnce performs one full sync round. Local edits go up before the plan is
// negotiated so that projects captured on this device are never mistaken for
// server-side deletions.
func (a *Agent) RunOnce(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	if err := a.pushDirty(ctx, summary); err != nil {
		return summary, err
	}

	since, err := a.store.SyncTime(ctx)
	if err != nil {
		return summary, err
	}

	states, err := a.store.States(ctx)
	if err != nil {
		return summary, err
	}
	local := make([]api.ProjectState, 0, len(states))
	for _, p := range states {
		local = append(local, api.ProjectState{
			ProjectID:    p.ID,
			LastModified: p.LastModified,
			BillCount:    p.BillCount,
		})
	}

	plan, err := a.client.Negotiate(ctx, api.NegotiateRequest{
		LocalProjects: local,
		SyncFromDate:  since,
	})
	if err != nil {
		return summary, fmt.Errorf("negotiate: %w", err)
	}
	if !plan.Success {
		return summary, fmt.Errorf("negotiate: %s", plan.ErrorMessage)
	}

	if err := a.applyPulls(ctx, plan.ProjectsToPull, summary); err != nil {
		return summary, err
	}
	if err := a.applyDeletes(ctx, plan.ProjectsToDelete, summary); err != nil {
		return summary, err
	}
	if err := a.fetchBills(ctx, plan.BillsToPull, summary); err != nil {
		return summary, err
	}

	cutoff := a.now().Add(-a.retention).UnixMilli()
	swept, err := a.store.SweepClosed(ctx, cutoff)
	if err != nil {
		return summary, err
	}
	summary.Swept = int(swept)

	if err := a.store.SetSyncTime(ctx, plan.ServerTimestamp); err != nil {
		return summary, err
	}

	a.logger.Info(ctx, "sync round complete",
		"pushed", summary.Pushed, "conflicts", summary.Conflicts,
		"pulled", summary.Pulled, "deleted", summary.Deleted,
		"bills", summary.BillsFetched, "swept", summary.Swept)
	return summary, nil
}

// pushDirty uploads every locally edited project. A conflict means the server
// already held a newer version; its copy replaces ours and counts as clean.
func (a *Agent) pushDirty(ctx context.Context, summary *Summary) error {
	dirty, err := a.store.DirtyProjects(ctx)
	if err != nil {
		return err
	}
	if len(dirty) == 0 {
		return nil
	}

	entries := make([]api.BatchPushEntry, 0, len(dirty))
	for _, p := range dirty {
		entries = append(entries, api.BatchPushEntry{
			ProjectID:         p.ID,
			ProjectJSON:       p.Payload,
			LocalLastModified: p.LastModified,
		})
	}

	resp, err := a.client.BatchPush(ctx, api.BatchPushRequest{Projects: entries})
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	for _, r := range resp.Results {
		if !r.Success {
			a.logger.Warn(ctx, "push failed", "project", r.ProjectID, "error", r.ErrorMessage)
			continue
		}
		if err := a.storeServerCopy(ctx, r.ProjectID, r.FinalProjectJSON, r.ServerLastModified); err != nil {
			return err
		}
		if r.HadConflict {
			summary.Conflicts++
		} else {
			summary.Pushed++
		}
	}
	return nil
}

func (a *Agent) applyPulls(ctx context.Context, entries []api.PlanEntry, summary *Summary) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProjectID)
	}

	resp, err := a.client.BatchPull(ctx, api.BatchPullRequest{ProjectIDs: ids})
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	for id, reason := range resp.FailedProjects {
		a.logger.Warn(ctx, "pull failed", "project", id, "error", reason)
	}

	for id, payload := range resp.Projects {
		if err := a.storeServerCopy(ctx, id, payload, resp.LastModifiedTimes[id]); err != nil {
			return err
		}
		summary.Pulled++
	}
	return nil
}

// storeServerCopy saves a server-authored document as the clean local state.
func (a *Agent) storeServerCopy(ctx context.Context, id string, payload []byte, lastModified int64) error {
	doc := gjson.ParseBytes(payload)

	billCount := 0
	if refs := doc.Get("billReferences"); refs.IsArray() {
		billCount = len(refs.Array())
	}

	return a.store.Upsert(ctx, &store.Project{
		ID:           id,
		LastModified: lastModified,
		IsClosed:     doc.Get("isClosed").Bool(),
		OwnerName:    doc.Get("ownerPersonName").String(),
		BillCount:    billCount,
		Payload:      payload,
		Dirty:        false,
	})
}

func (a *Agent) applyDeletes(ctx context.Context, ids []string, summary *Summary) error {
	for _, id := range ids {
		if err := a.store.Delete(ctx, id); err != nil {
			return err
		}
		summary.Deleted++
	}
	return nil
}

func (a *Agent) fetchBills(ctx context.Context, bills []api.BillToPull, summary *Summary) error {
	for _, b := range bills {
		resp, err := a.client.PullAsset(ctx, api.PullAssetRequest{BillID: b.BillID})
		if err != nil {
			return fmt.Errorf("pull bill %s: %w", b.BillID, err)
		}
		if !resp.Success {
			a.logger.Warn(ctx, "bill fetch failed", "bill", b.BillID, "error", resp.ErrorMessage)
			continue
		}

		img, err := base64.StdEncoding.DecodeString(resp.ImageBase64)
		if err != nil {
			return fmt.Errorf("decode bill %s: %w", b.BillID, err)
		}
		name := resp.Filename
		if name == "" {
			name = b.BillID
		}
		if err := os.WriteFile(filepath.Join(a.assetDir, name), img, 0o644); err != nil {
			return fmt.Errorf("write bill %s: %w", b.BillID, err)
		}

		if seq, ok := billSeq(b.BillID); ok {
			if err := a.store.SetBillCount(ctx, b.ProjectID, seq+1); err != nil {
				return err
			}
		}
		summary.BillsFetched++
	}
	return nil
}

// billSeq extracts the zero-based sequence number from a bill asset id of
// the form "<projectId>_bill_NNN<ext>".
func billSeq(billID string) (int, bool) {
	id := strings.TrimSuffix(billID, filepath.Ext(billID))
	i := strings.LastIndex(id, "_bill_")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+len("_bill_"):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
