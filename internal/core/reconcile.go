package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type ReconcileOptions struct {
	DryRun      bool
	Concurrency int
	// MinAge protects objects of uploads that are still between storage and persistence
	MinAge time.Duration
}

type ReconcileReport struct {
	Scanned    int
	Referenced int
	Orphaned   []string
	Deleted    int
	Failed     int
}

// ReconcileOrphans deletes stored objects that no DesignFile references. Template
// previews are never touched.
func (service *CoreService) ReconcileOrphans(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MinAge == 0 {
		opts.MinAge = time.Hour
	}

	paths, err := service.databaseService.ListStoragePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list referenced paths: %w", err)
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		referenced[path] = struct{}{}
	}

	objects, err := service.storage.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list stored objects: %w", err)
	}

	report := &ReconcileReport{Scanned: len(objects)}
	cutoff := service.now().Add(-opts.MinAge)
	for _, object := range objects {
		if strings.HasPrefix(object.Key, TemplatePrefix+"/") {
			continue
		}
		if _, ok := referenced[object.Key]; ok {
			report.Referenced++
			continue
		}
		if object.LastModified.After(cutoff) {
			continue
		}
		report.Orphaned = append(report.Orphaned, object.Key)
	}

	slog.Info("reconciliation scan finished",
		"scanned", report.Scanned,
		"referenced", report.Referenced,
		"orphaned", len(report.Orphaned),
		"dry_run", opts.DryRun)
	if opts.DryRun || len(report.Orphaned) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)
	for _, key := range report.Orphaned {
		group.Go(func() error {
			err := service.storage.Delete(groupCtx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				service.observer.RecordStorageError("delete")
				slog.Warn("failed to delete orphaned object", "key", key, "error", err)
				return nil
			}
			report.Deleted++
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

