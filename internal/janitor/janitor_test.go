package janitor

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func writeFileAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := writeFileAged(t, dir, "old.jpg", 48*time.Hour)
	fresh := writeFileAged(t, dir, "new.jpg", time.Minute)

	removed, err := Sweep(dir, 24*time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale artifact still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh artifact removed: %v", err)
	}
}

func TestSweepMissingDir(t *testing.T) {
	t.Parallel()

	removed, err := Sweep(filepath.Join(t.TempDir(), "absent"), time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestSweepSkipsDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	stamp := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(sub, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	removed, err := Sweep(dir, 24*time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(sub); err != nil {
		t.Errorf("subdirectory removed: %v", err)
	}
}

func TestCacheSweepJobRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFileAged(t, dir, "old.jpg", 48*time.Hour)

	j := &CacheSweepJob{Dir: dir, MaxAge: 24 * time.Hour, Logger: testLogger()}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("cache not empty after sweep: %d entries", len(entries))
	}
}

func TestCacheSweepJobDefaults(t *testing.T) {
	t.Parallel()

	j := &CacheSweepJob{}
	if j.Name() != "cache_sweep" {
		t.Errorf("Name = %q", j.Name())
	}
	if j.Schedule() != "17 * * * *" {
		t.Errorf("Schedule = %q, want default", j.Schedule())
	}

	j.ScheduleExpr = "*/5 * * * *"
	if j.Schedule() != "*/5 * * * *" {
		t.Errorf("Schedule = %q, want override", j.Schedule())
	}
}

func TestSchedulerDuplicateJobName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(testLogger())
	if err := s.RegisterJob(&CacheSweepJob{Dir: t.TempDir()}); err != nil {
		t.Fatalf("first RegisterJob: %v", err)
	}
	if err := s.RegisterJob(&CacheSweepJob{Dir: t.TempDir()}); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(testLogger())
	j := &CacheSweepJob{Dir: t.TempDir(), ScheduleExpr: "not a schedule"}
	if err := s.RegisterJob(j); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("expected schedule parse error")
		_ = s.Stop(context.Background())
	}
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(testLogger())
	if err := s.RegisterJob(&CacheSweepJob{Dir: t.TempDir(), MaxAge: time.Hour}); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
