package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	appconfig "github.com/cellarlog/cellarlog/internal/config"
	"github.com/cellarlog/cellarlog/internal/logging"
	"github.com/cellarlog/cellarlog/internal/models"
)

func newTestBackupService(t *testing.T, env *testEnv, retention int) *BackupService {
	t.Helper()
	cfg := &appconfig.Config{
		BackupDir:       t.TempDir(),
		BackupRetention: retention,
	}
	return NewBackupService(env.db, cfg, env.repos, env.entitlement, disabledStorage(), logging.New())
}

func TestBackupRun(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestBackupService(t, env, 7)
	ctx := context.Background()

	insertTestNote(t, env.db, "n1", "published", 90)

	archive, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasPrefix(archive.Filename, "cellarlog-") || !strings.HasSuffix(archive.Filename, ".db") {
		t.Errorf("Filename = %q", archive.Filename)
	}
	if archive.SizeBytes == 0 {
		t.Error("archive should not be empty")
	}
	if archive.StorageKey != "" {
		t.Errorf("StorageKey = %q, want empty without storage", archive.StorageKey)
	}
	if _, err := os.Stat(archive.Path); err != nil {
		t.Errorf("archive file missing: %v", err)
	}

	// The run lands in the maintenance log
	runs, err := env.repos.Maintenance.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("Maintenance.ListRecent() error = %v", err)
	}
	if len(runs) != 1 || runs[0].TaskName != TaskBackup {
		t.Fatalf("maintenance runs = %+v", runs)
	}
	if runs[0].Status != models.MaintenanceStatusCompleted {
		t.Errorf("Status = %q, want completed", runs[0].Status)
	}
	if !strings.Contains(runs[0].DetailsJSON, archive.Filename) {
		t.Errorf("DetailsJSON = %q, want archive filename recorded", runs[0].DetailsJSON)
	}
}

func TestBackupRetention(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestBackupService(t, env, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := svc.Run(ctx); err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
		// The timestamp in the name has second resolution; the ULID
		// keeps names unique regardless
		time.Sleep(5 * time.Millisecond)
	}

	archives, err := svc.ListArchives()
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if len(archives) != 2 {
		t.Errorf("got %d archives, want retention of 2", len(archives))
	}
}

func TestBackupRetention_ZeroKeepsAll(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestBackupService(t, env, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Run(ctx); err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
	}

	archives, err := svc.ListArchives()
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if len(archives) != 3 {
		t.Errorf("got %d archives, want all 3 kept", len(archives))
	}
}

func TestListArchives_EmptyDir(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestBackupService(t, env, 7)

	archives, err := svc.ListArchives()
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if len(archives) != 0 {
		t.Errorf("got %d archives, want none", len(archives))
	}
}

func TestIsArchiveName(t *testing.T) {
	cases := map[string]bool{
		"cellarlog-20260101-120000-01HV5K7Q8N.db": true,
		"cellarlog-foo.db":                        true,
		"notes.csv":                               false,
		"other-20260101.db":                       false,
		"cellarlog-20260101.txt":                  false,
	}
	for name, want := range cases {
		if got := isArchiveName(name); got != want {
			t.Errorf("isArchiveName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRestoreFromArchive(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cellarlog.db")
	archivePath := filepath.Join(dir, "cellarlog-archive.db")

	if err := os.WriteFile(dbPath, []byte("current"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbPath+"-wal", []byte("wal"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archivePath, []byte("archived"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RestoreFromArchive(archivePath, dbPath, logging.New()); err != nil {
		t.Fatalf("RestoreFromArchive() error = %v", err)
	}

	restored, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != "archived" {
		t.Errorf("database content = %q, want archive content", restored)
	}

	// The WAL sidecar from the old database must be gone
	if _, err := os.Stat(dbPath + "-wal"); !os.IsNotExist(err) {
		t.Error("stale -wal sidecar should be removed")
	}

	// A pre-restore copy of the old database is kept
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), ".pre-restore-") {
			found = true
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != "current" {
				t.Errorf("pre-restore copy = %q, want old content", data)
			}
		}
	}
	if !found {
		t.Error("expected a pre-restore safety copy")
	}
}

func TestRestoreFromArchive_MissingArchive(t *testing.T) {
	dir := t.TempDir()
	err := RestoreFromArchive(filepath.Join(dir, "nope.db"), filepath.Join(dir, "db.db"), logging.New())
	if err == nil {
		t.Error("expected an error for a missing archive")
	}
}
