package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"task-list/internal/blob"
	"task-list/internal/export"
	"task-list/internal/logging"
	"task-list/internal/view"
)

// SnapshotPrefix is the blob key prefix of stored snapshots.
const SnapshotPrefix = "exports/"

// ExportService renders arranged lists and stores dated snapshots.
type ExportService struct {
	store EntryLister
	blobs blob.Store
	log   logging.Logger
	now   func() time.Time
}

func NewExportService(store EntryLister, blobs blob.Store, log logging.Logger) *ExportService {
	return &ExportService{store: store, blobs: blobs, log: log, now: time.Now}
}

// Render produces the document for the filtered, sorted list; pagination in
// q is ignored. An empty result returns export.ErrEmpty.
func (s *ExportService) Render(ctx context.Context, q view.Query, f export.Format) ([]byte, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return export.Bytes(f, view.Arrange(entries, q))
}

// Snapshot stores the default view in every format. An empty list stores
// nothing and is not an error.
func (s *ExportService) Snapshot(ctx context.Context) ([]blob.Info, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	arranged := view.Arrange(entries, view.DefaultQuery())
	if len(arranged) == 0 {
		s.log.Info(ctx, "export snapshot skipped", "reason", "empty list")
		return nil, nil
	}

	now := s.now().UTC()
	var stored []blob.Info
	for _, f := range export.Formats {
		data, err := export.Bytes(f, arranged)
		if err != nil {
			return stored, fmt.Errorf("render %s: %w", f, err)
		}
		info, err := s.blobs.Put(ctx, SnapshotKey(now, f), bytes.NewReader(data), blob.PutOptions{ContentType: f.ContentType()})
		if err != nil {
			return stored, fmt.Errorf("store %s snapshot: %w", f, err)
		}
		stored = append(stored, info)
	}

	s.log.Info(ctx, "export snapshot stored", "entries", len(arranged), "objects", len(stored), "driver", s.blobs.Driver())
	return stored, nil
}

// Snapshots lists stored snapshots, oldest first.
func (s *ExportService) Snapshots(ctx context.Context) ([]blob.Info, error) {
	return s.blobs.List(ctx, SnapshotPrefix)
}

// Prune deletes snapshots last modified before cutoff and returns how many
// were removed.
func (s *ExportService) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	infos, err := s.blobs.List(ctx, SnapshotPrefix)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}
	removed := 0
	for _, info := range infos {
		if !info.LastModified.Before(cutoff) {
			continue
		}
		deleted, err := s.blobs.Delete(ctx, info.Key)
		if err != nil {
			return removed, fmt.Errorf("delete snapshot %s: %w", info.Key, err)
		}
		if deleted {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info(ctx, "old export snapshots removed", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// OpenSnapshot streams one stored snapshot. Keys outside the snapshot prefix
// are reported as not found.
func (s *ExportService) OpenSnapshot(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if !strings.HasPrefix(key, SnapshotPrefix) {
		return blob.Info{}, nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	info, rc, err := s.blobs.Get(ctx, key)
	if errors.Is(err, blob.ErrBadKey) {
		return blob.Info{}, nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return info, rc, err
}

// SnapshotKey is exports/YYYY/MM/DD/task-list-<unix>.<ext>.
func SnapshotKey(at time.Time, f export.Format) string {
	return fmt.Sprintf("%s%s/%s-%d.%s", SnapshotPrefix, at.Format("2006/01/02"), export.BaseName, at.Unix(), f)
}
