package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "%PDF-1.4 a")
	writeFile(t, filepath.Join(root, "sub", "B.PDF"), "%PDF-1.4 b")
	writeFile(t, filepath.Join(root, "sub", "copy.pdf"), "%PDF-1.4 a")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignore me")
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"), "%PDF-1.4 c")

	results, stats, err := ScanDirectory(context.Background(), root, true, quietLogger())
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	if stats.Matched != 3 || stats.Succeeded != 3 || stats.Deduplicated != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	dups := 0
	for _, r := range results {
		if r.HashHex == "" || r.Size == 0 {
			t.Errorf("result = %+v", r)
		}
		if r.Deduplicated {
			dups++
			if filepath.Base(r.Path) != "copy.pdf" {
				t.Errorf("duplicate = %s", r.Path)
			}
		}
	}
	if dups != 1 {
		t.Errorf("duplicates = %d", dups)
	}

	_, stats, err = ScanDirectory(context.Background(), root, false, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Matched != 4 {
		t.Errorf("with hidden: matched = %d", stats.Matched)
	}
}

func TestScanDirectoryRequiresRoot(t *testing.T) {
	if _, _, err := ScanDirectory(context.Background(), " ", true, nil); err == nil {
		t.Error("empty root accepted")
	}
}

func TestIsHidden(t *testing.T) {
	for path, want := range map[string]bool{
		"/tmp/.git":      true,
		"/tmp/a.pdf":     false,
		".":              false,
		"docs/.DS_Store": true,
	} {
		if got := IsHidden(path); got != want {
			t.Errorf("IsHidden(%q) = %v", path, got)
		}
	}
}

func TestWatcherInitialScanAndNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.pdf"), "%PDF old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
		Logger:      quietLogger(),
	})
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	if got := next(); filepath.Base(got) != "old.pdf" {
		t.Fatalf("initial = %s", got)
	}

	writeFile(t, filepath.Join(root, "skip.txt"), "x")
	writeFile(t, filepath.Join(root, "new.pdf"), "%PDF new")
	if got := next(); filepath.Base(got) != "new.pdf" {
		t.Errorf("event = %s", got)
	}

	cancel()
	for range events {
	}
}
