// Package projects implements the sync coordinator: the metadata
// negotiation between a device's project list and the server's, and the
// pull/push/close write paths with last-writer-wins conflict handling.
//
// The coordinator holds no durable state of its own. Documents live in the
// document store, the listing in the index; every accepted write refreshes
// the index so the next negotiation sees it.
package projects

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/newwaysadmin/slipsync/internal/common"
	"github.com/newwaysadmin/slipsync/internal/logging"
	"github.com/newwaysadmin/slipsync/internal/server/index"
	"github.com/newwaysadmin/slipsync/internal/server/models"
	"github.com/newwaysadmin/slipsync/internal/server/storage"
)

// batchPullWorkers bounds the parallelism of batch pulls. Pulls share no
// mutable state, so running a few concurrently is safe.
const batchPullWorkers = 4

type Service struct {
	docs   storage.DocumentStore
	idx    index.Index
	locks  *keyedMutex
	logger logging.Logger
	now    func() time.Time
}

func NewService(docs storage.DocumentStore, idx index.Index, logger logging.Logger) *Service {
	return &Service{
		docs:   docs,
		idx:    idx,
		locks:  newKeyedMutex(),
		logger: logger.With("component", "sync"),
		now:    time.Now,
	}
}

// WithClock overrides the timestamp source. Tests use it to get
// deterministic stamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// stamp returns the timestamp for an accepted write. The server clock is
// authoritative, but the result always strictly exceeds prev so a close or
// re-push after a read can never be equal to what was read.
func (s *Service) stamp(prev int64) int64 {
	ts := s.now().UnixMilli()
	if ts <= prev {
		ts = prev + 1
	}
	return ts
}

// Negotiate diffs the client's reported projects against the server listing
// and returns the action plan.
//
// The server set is every project with lastModified >= since, plus every
// open project regardless of date; an unfinished review must never drop out
// of an incremental window. For ids the client holds but the listing does
// not show, the document store is probed directly: only a true miss becomes
// a delete. An old closed project merely filtered out by the date window is
// left alone, aging it out is the client's own decision.
func (s *Service) Negotiate(ctx context.Context, client []models.ClientProjectState, since int64) (*models.Plan, error) {
	entries, err := s.idx.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	filtered := make([]models.MetadataEntry, 0, len(entries))
	allKnown := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		allKnown[e.ID] = struct{}{}
		if e.LastModified >= since || !e.IsClosed {
			filtered = append(filtered, e)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })

	remaining := make(map[string]models.ClientProjectState, len(client))
	for _, c := range client {
		remaining[c.ID] = c
	}

	plan := &models.Plan{ServerTime: s.now().UnixMilli()}
	ownerSet := map[string]struct{}{}

	for _, srv := range filtered {
		if srv.OwnerName != "" {
			ownerSet[srv.OwnerName] = struct{}{}
		}

		cli, ok := remaining[srv.ID]
		if !ok {
			plan.Pull = append(plan.Pull, models.PlanItem{ID: srv.ID, LastModified: srv.LastModified, Reason: models.ReasonNewOnServer})
			continue
		}
		delete(remaining, srv.ID)

		switch {
		case srv.LastModified > cli.LastModified:
			plan.Pull = append(plan.Pull, models.PlanItem{ID: srv.ID, LastModified: srv.LastModified, Reason: models.ReasonServerNewer})
		case cli.LastModified > srv.LastModified:
			plan.Push = append(plan.Push, models.PlanItem{ID: srv.ID, LastModified: srv.LastModified, Reason: models.ReasonLocalNewer})
		}
		// equal timestamps: already in sync, nothing to do

		// bills are append-only, so a higher server count means exactly the
		// newest (server-client) bills are missing on the device
		for seq := cli.BillCount; seq < srv.BillCount; seq++ {
			plan.Bills = append(plan.Bills, models.BillRef{
				ProjectID: srv.ID,
				BillID:    models.BillAssetKey(srv.ID, seq),
				AddedAt:   srv.LastModified,
			})
		}
	}

	unmatched := make([]string, 0, len(remaining))
	for id := range remaining {
		unmatched = append(unmatched, id)
	}
	sort.Strings(unmatched)

	for _, id := range unmatched {
		if _, known := allKnown[id]; known {
			// excluded by the date window only; not the server's call
			continue
		}
		exists, err := s.docs.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		if !exists {
			plan.Delete = append(plan.Delete, id)
		}
	}

	for owner := range ownerSet {
		plan.Owners = append(plan.Owners, owner)
	}
	sort.Strings(plan.Owners)

	s.logger.Debug(ctx, "negotiated",
		"pull", len(plan.Pull), "push", len(plan.Push),
		"delete", len(plan.Delete), "bills", len(plan.Bills))

	return plan, nil
}

// Pull returns the current server copy of one project. Pure read.
func (s *Service) Pull(ctx context.Context, id string) (*models.Envelope, error) {
	raw, err := s.docs.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.ParseEnvelope(id, raw)
}

// BatchPull attempts every id independently; one missing or corrupt project
// never aborts the rest. Pulls run on a small worker pool.
func (s *Service) BatchPull(ctx context.Context, ids []string) (map[string]*models.Envelope, map[string]string) {
	var mu sync.Mutex
	succeeded := make(map[string]*models.Envelope)
	failed := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchPullWorkers)

	for _, id := range ids {
		g.Go(func() error {
			env, err := s.Pull(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = err.Error()
			} else {
				succeeded[id] = env
			}
			return nil
		})
	}
	_ = g.Wait()

	return succeeded, failed
}

// Push applies last-writer-wins at whole-document granularity. If the server
// copy is newer than what the client last saw, the write is rejected and the
// server's copy is returned for the client to adopt. Accepted writes are
// re-stamped with the server clock; the client's claimed timestamp is only
// ever compared, never stored.
func (s *Service) Push(ctx context.Context, id string, payload []byte, clientLastModified int64, updatedBy string) (*models.PushResult, error) {
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return nil, fmt.Errorf("project %s: %w", id, common.ErrInvalidPayload)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var prev int64
	cur, err := s.docs.Load(ctx, id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		// first copy of this project on the server
	case err != nil:
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	default:
		curEnv, perr := models.ParseEnvelope(id, cur)
		if perr != nil {
			// stored copy is corrupt; let the incoming document replace it
			s.logger.Warn(ctx, "replacing unreadable stored project", "project", id)
		} else {
			prev = curEnv.LastModified
			if prev > clientLastModified {
				s.logger.Info(ctx, "push conflict", "project", id,
					"server", prev, "client", clientLastModified)
				return &models.PushResult{
					ProjectID:         id,
					OK:                true,
					HadConflict:       true,
					FinalPayload:      curEnv.Raw,
					FinalLastModified: prev,
				}, nil
			}
		}
	}

	env, err := models.ParseEnvelope(id, payload)
	if err != nil {
		return nil, err
	}
	if err := env.MarkUpdatedBy(updatedBy); err != nil {
		return nil, err
	}
	if err := env.Stamp(s.stamp(prev)); err != nil {
		return nil, err
	}

	if err := s.docs.Save(ctx, id, env.Raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if err := s.idx.Upsert(ctx, env.Metadata()); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	s.logger.Info(ctx, "push accepted", "project", id, "lastModified", env.LastModified)

	return &models.PushResult{
		ProjectID:         id,
		OK:                true,
		HadConflict:       false,
		FinalPayload:      env.Raw,
		FinalLastModified: env.LastModified,
	}, nil
}

// BatchPushItem is one document in a batch push.
type BatchPushItem struct {
	ID                 string
	Payload            []byte
	ClientLastModified int64
}

// BatchPushCounts summarizes a batch push for reporting.
type BatchPushCounts struct {
	Succeeded  int
	Conflicted int
	Failed     int
}

// BatchPush applies Push to each item independently and accumulates counts.
// Items run sequentially; the per-id locks make that cheap and keep the
// result order aligned with the request.
func (s *Service) BatchPush(ctx context.Context, items []BatchPushItem, updatedBy string) ([]models.PushResult, BatchPushCounts) {
	results := make([]models.PushResult, 0, len(items))
	var counts BatchPushCounts

	for _, item := range items {
		res, err := s.Push(ctx, item.ID, item.Payload, item.ClientLastModified, updatedBy)
		if err != nil {
			counts.Failed++
			results = append(results, models.PushResult{ProjectID: item.ID, Err: err.Error()})
			continue
		}
		if res.HadConflict {
			counts.Conflicted++
		} else {
			counts.Succeeded++
		}
		results = append(results, *res)
	}

	return results, counts
}

// Close marks a project finished. It re-reads under the per-id lock and
// stamps past whatever it read, so a close always wins over a concurrent
// push.
func (s *Service) Close(ctx context.Context, id, closedBy string) (*models.Envelope, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	raw, err := s.docs.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	env, err := models.ParseEnvelope(id, raw)
	if err != nil {
		return nil, err
	}

	if err := env.MarkClosed(closedBy); err != nil {
		return nil, err
	}
	if err := env.Stamp(s.stamp(env.LastModified)); err != nil {
		return nil, err
	}

	if err := s.docs.Save(ctx, id, env.Raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if err := s.idx.Upsert(ctx, env.Metadata()); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	s.logger.Info(ctx, "project closed", "project", id, "closedBy", closedBy)
	return env, nil
}
