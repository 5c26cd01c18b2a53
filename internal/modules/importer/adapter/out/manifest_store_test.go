package out_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	importerout "worktally/internal/modules/importer/adapter/out"
)

func writeManifests(t *testing.T, dir, raw string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "plugins.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write plugins.json: %v", err)
	}
}

func TestFileManifestStoreMissingIsEmpty(t *testing.T) {
	t.Parallel()
	manifests, err := importerout.NewFileManifestStore(t.TempDir()).Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 0 {
		t.Fatalf("expected no manifests, got %d", len(manifests))
	}
}

func TestFileManifestStoreResolvesRelativeBinary(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeManifests(t, dir, `[
  {
    "name": "jsonl",
    "version": "1.0.0",
    "binary": "bin/jsonl-importer",
    "sha256": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
    "enabled": true,
    "options": {"path": "/var/lib/history.jsonl"}
  }
]`)
	manifests, err := importerout.NewFileManifestStore(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("expected one manifest, got %d", len(manifests))
	}
	if manifests[0].Binary != filepath.Join(dir, "bin", "jsonl-importer") {
		t.Fatalf("unexpected binary path %s", manifests[0].Binary)
	}
	if manifests[0].Options["path"] != "/var/lib/history.jsonl" {
		t.Fatalf("options not decoded: %v", manifests[0].Options)
	}
}

func TestFileManifestStoreRejectsUnknownField(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeManifests(t, dir, `[{"name": "jsonl", "capabilities": ["command"]}]`)
	if _, err := importerout.NewFileManifestStore(dir).Load(context.Background()); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
