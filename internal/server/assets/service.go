// Package assets serves the binary images attached to projects: the primary
// slip scan and any appended bill photos.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/newwaysadmin/slipsync/internal/common"
	"github.com/newwaysadmin/slipsync/internal/logging"
	"github.com/newwaysadmin/slipsync/internal/server/models"
	"github.com/newwaysadmin/slipsync/internal/server/storage"
)

type Service struct {
	store  storage.AssetStore
	logger logging.Logger
}

func NewService(store storage.AssetStore, logger logging.Logger) *Service {
	return &Service{store: store, logger: logger.With("component", "assets")}
}

// Image is a resolved asset ready for the wire.
type Image struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// PullScan resolves a project's primary scan image by probing the known
// extensions in priority order. The capture app never recorded which format
// it wrote, so a miss costs up to two extra probe reads.
func (s *Service) PullScan(ctx context.Context, projectID string) (*Image, error) {
	for _, ext := range models.ScanExtensions {
		key := models.ScanAssetKey(projectID, ext)
		b, err := s.store.Load(ctx, key)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		return &Image{Filename: key, ContentType: ContentTypeForKey(key), Bytes: b}, nil
	}
	return nil, fmt.Errorf("scan for %s: %w", projectID, common.ErrNotFound)
}

// PullBill loads a bill image by its literal asset id as stored in the
// project's bill references.
func (s *Service) PullBill(ctx context.Context, billID string) (*Image, error) {
	b, err := s.store.Load(ctx, billID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return &Image{Filename: billID, ContentType: ContentTypeForKey(billID), Bytes: b}, nil
}

// ContentTypeForKey maps an asset key's extension to a MIME type.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
