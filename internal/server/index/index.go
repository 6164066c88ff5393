// Package index maintains the metadata listing of every known project used
// by the negotiation phase. The listing is derived from the document store
// and must be refreshed on every accepted write so the next negotiation does
// not diff against stale timestamps.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/newwaysadmin/slipsync/internal/common"
	"github.com/newwaysadmin/slipsync/internal/server/models"
	"github.com/newwaysadmin/slipsync/internal/server/storage"
)

type Index interface {
	// List returns metadata for every known project, in no particular order.
	List(ctx context.Context) ([]models.MetadataEntry, error)

	// Upsert inserts or replaces the entry for one project.
	Upsert(ctx context.Context, e models.MetadataEntry) error
}

// Rebuild repopulates idx from every document in the store. Documents that
// fail to parse are skipped; the store copy stays authoritative and a later
// successful write will re-index them.
func Rebuild(ctx context.Context, store storage.DocumentStore, idx Index) (int, error) {
	keys, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	n := 0
	for _, key := range keys {
		raw, err := store.Load(ctx, key)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return n, fmt.Errorf("load %s: %w", key, err)
		}
		env, err := models.ParseEnvelope(key, raw)
		if err != nil {
			continue
		}
		if err := idx.Upsert(ctx, env.Metadata()); err != nil {
			return n, fmt.Errorf("index %s: %w", key, err)
		}
		n++
	}
	return n, nil
}
