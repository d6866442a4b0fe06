package writer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newSession(t *testing.T) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	return sm
}

func TestSessionManager_Paths(t *testing.T) {
	sm := newSession(t)

	if info, err := os.Stat(sm.GetSessionDir()); err != nil || !info.IsDir() {
		t.Fatalf("session dir not created: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(sm.GetSessionDir()), "session_") {
		t.Errorf("unexpected session dir %s", sm.GetSessionDir())
	}
	if got := filepath.Base(sm.GetProgramPath("abc")); got != "program_abc.json" {
		t.Errorf("GetProgramPath() = %s", got)
	}
}

func TestSessionManager_BackupConfig(t *testing.T) {
	sm := newSession(t)
	src := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(src, []byte("[model]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := sm.BackupConfig(src); err != nil {
		t.Fatalf("BackupConfig() error = %v", err)
	}
	got, _ := os.ReadFile(sm.GetConfigBackupPath())
	if string(got) != "[model]\n" {
		t.Errorf("backup = %q", got)
	}
}

func TestFileArtifactStore_SaveAndLoad(t *testing.T) {
	sm := newSession(t)
	store := NewFileArtifactStore(sm, testLogger())
	ctx := context.Background()

	a := &models.Artifact{
		JobID:     "job-1",
		Program:   models.Program{Name: "Home Strength", Weeks: []models.Week{{Number: 1, Focus: "base"}}},
		Summary:   models.Summary{Chunks: 1, MovementBalance: map[string]int{"push": 3}},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := store.SaveProgram(ctx, a); err != nil {
		t.Fatalf("SaveProgram() error = %v", err)
	}
	a.Program.Name = "Home Strength v2"
	if err := store.SaveProgram(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadProgram(ctx, "job-1")
	if err != nil {
		t.Fatalf("LoadProgram() error = %v", err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("artifact mismatch (-want +got):\n%s", diff)
	}

	entries, _ := os.ReadDir(sm.GetSessionDir())
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}

	if _, err := store.LoadProgram(ctx, "missing"); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("LoadProgram(missing) error = %v", err)
	}
}

func TestFileArtifactStore_DeleteProgram(t *testing.T) {
	sm := newSession(t)
	store := NewFileArtifactStore(sm, testLogger())
	ctx := context.Background()

	if err := store.SaveProgram(ctx, &models.Artifact{JobID: "job-1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteProgram(ctx, "job-1"); err != nil {
		t.Fatalf("DeleteProgram() error = %v", err)
	}
	if _, err := os.Stat(sm.GetProgramPath("job-1")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("program file still present: %v", err)
	}
	if err := store.DeleteProgram(ctx, "job-1"); err != nil {
		t.Errorf("deleting a missing program should succeed, got %v", err)
	}
}

func TestFileArtifactStore_AuditAppends(t *testing.T) {
	sm := newSession(t)
	store := NewFileArtifactStore(sm, testLogger())

	for i := 0; i < 3; i++ {
		if err := store.SaveAudit(context.Background(), models.AuditRecord{ID: "a", JobID: "job-1"}); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(sm.GetAuditPath())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	lines := 0
	for sc := bufio.NewScanner(f); sc.Scan(); {
		lines++
	}
	if lines != 3 {
		t.Errorf("audit lines = %d, want 3", lines)
	}
}

func TestFileArtifactStore_CancelledContext(t *testing.T) {
	store := NewFileArtifactStore(newSession(t), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.SaveProgram(ctx, &models.Artifact{JobID: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("SaveProgram() error = %v, want context.Canceled", err)
	}
}

func TestNewLogger_WritesBothDestinations(t *testing.T) {
	var console, file bytes.Buffer
	logger := NewLogger(&console, &file, slog.LevelInfo)

	logger.With("component", "test").Info("Job accepted", "job_id", "j1")
	logger.Debug("hidden")

	if !strings.Contains(console.String(), "job_id=j1") {
		t.Errorf("console output = %q", console.String())
	}
	if !strings.Contains(file.String(), `"job_id":"j1"`) || !strings.Contains(file.String(), `"component":"test"`) {
		t.Errorf("file output = %q", file.String())
	}
	if strings.Contains(console.String()+file.String(), "hidden") {
		t.Error("debug record leaked at info level")
	}
}
