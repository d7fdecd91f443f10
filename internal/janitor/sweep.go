package janitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CacheSweepJob removes converted-image artifacts older than MaxAge from Dir.
// Artifacts are only needed long enough for Telegram to fetch or for the
// message to be assembled, so anything past MaxAge is garbage.
type CacheSweepJob struct {
	Dir          string
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "17 * * * *"
}

// Compile-time interface check.
var _ Job = (*CacheSweepJob)(nil)

// Name implements Job.
func (j *CacheSweepJob) Name() string {
	return "cache_sweep"
}

// Schedule implements Job.
func (j *CacheSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "17 * * * *"
}

// Run sweeps the cache directory once.
func (j *CacheSweepJob) Run(_ context.Context) error {
	removed, err := Sweep(j.Dir, j.MaxAge, time.Now())
	if err != nil {
		return err
	}
	if removed > 0 && j.Logger != nil {
		j.Logger.Info("janitor: removed stale cache artifacts", "count", removed, "dir", j.Dir)
	}
	return nil
}

// Sweep deletes regular files in dir whose modification time is before
// now-maxAge. It returns the number of files removed. A missing directory is
// not an error: nothing has been cached yet.
func Sweep(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
