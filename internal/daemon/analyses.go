package daemon

import (
	"context"

	"emotrack/internal/logging"
)

// DeleteAnalysis removes a persisted analysis. Its snapshot and original file
// are deleted once no remaining analysis references them.
func (d *Daemon) DeleteAnalysis(ctx context.Context, id int64) (bool, error) {
	rec, err := d.store.Get(ctx, id)
	if err != nil || rec == nil {
		return false, err
	}
	removed, err := d.store.Delete(ctx, id)
	if err != nil || !removed {
		return removed, err
	}

	logger := logging.WithContext(ctx, d.logger)
	var orphaned []string
	for _, rel := range []string{rec.SnapshotPath, rec.OriginalPath} {
		if rel == "" {
			continue
		}
		inUse, err := d.store.HasPath(ctx, rel)
		if err != nil {
			logger.Warn("file reference lookup failed", logging.String("path", rel), logging.Error(err))
			continue
		}
		if !inUse {
			orphaned = append(orphaned, rel)
		}
	}
	d.removeFiles(logger, orphaned...)
	logger.Info("analysis deleted",
		logging.Int64("analysis_id", id),
		logging.Int("files_removed", len(orphaned)),
	)
	return true, nil
}
