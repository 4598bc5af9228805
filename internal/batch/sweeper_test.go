package batch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"carstudio/internal/domain"
	"carstudio/internal/registry"
	"carstudio/internal/storage"
)

func TestSweepRemovesExpiredArtifactsAndJobs(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	jobs := registry.NewMemoryJobRegistry()
	s := NewSweeper(store, jobs, time.Hour, time.Hour, time.Minute, zerolog.Nop())

	stale := time.Now().Add(-2 * time.Hour)
	oldZip := filepath.Join(store.DownloadsPath(), "car-batch-old.zip")
	freshZip := filepath.Join(store.DownloadsPath(), "car-batch-new.zip")
	oldScratch := filepath.Join(store.ZipScratchPath(), "stuck.zip")
	for _, p := range []string{oldZip, freshZip, oldScratch} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	for _, p := range []string{oldZip, oldScratch} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatalf("chtimes %s: %v", p, err)
		}
	}

	// A job dir this old can only have been orphaned by a crash.
	crashedDir, err := store.EnsureJobDir("crashed")
	if err != nil {
		t.Fatalf("EnsureJobDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(crashedDir, "car-01.png"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	if err := os.Chtimes(crashedDir, stale, stale); err != nil {
		t.Fatalf("chtimes %s: %v", crashedDir, err)
	}
	liveDir, err := store.EnsureJobDir("live")
	if err != nil {
		t.Fatalf("EnsureJobDir: %v", err)
	}

	jobs.Create(&domain.Job{ID: "old-done", Status: domain.JobStatusDone, CreatedAt: stale})
	jobs.Create(&domain.Job{ID: "running", Status: domain.JobStatusProcessing, CreatedAt: stale})

	s.Sweep()

	if _, err := os.Stat(oldZip); !os.IsNotExist(err) {
		t.Fatal("expired download zip survived")
	}
	if _, err := os.Stat(oldScratch); !os.IsNotExist(err) {
		t.Fatal("expired scratch zip survived")
	}
	if _, err := os.Stat(freshZip); err != nil {
		t.Fatal("fresh zip was removed")
	}
	if _, err := os.Stat(crashedDir); !os.IsNotExist(err) {
		t.Fatal("orphaned job dir survived")
	}
	if _, err := os.Stat(liveDir); err != nil {
		t.Fatal("recent job dir was removed")
	}
	if _, ok := jobs.Snapshot("old-done"); ok {
		t.Fatal("terminal job past retention survived")
	}
	if _, ok := jobs.Snapshot("running"); !ok {
		t.Fatal("in-flight job was swept")
	}
}
