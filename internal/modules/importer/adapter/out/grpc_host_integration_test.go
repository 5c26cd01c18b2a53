package out_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	importerout "worktally/internal/modules/importer/adapter/out"
	"worktally/internal/modules/importer/domain"
)

func TestGRPCHostIntegrationJSONLImporter(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the importer plugin binary")
	}
	binPath, checksum := buildImporterPlugin(t)
	history := filepath.Join(t.TempDir(), "history.jsonl")
	lines := `{"timestamp":1710234000000,"project":"api","category":"coding","durationMs":1800000}
{"timestamp":1710320400000,"category":"meeting","durationMs":600000}
`
	if err := os.WriteFile(history, []byte(lines), 0o644); err != nil {
		t.Fatalf("write history: %v", err)
	}
	manifest := domain.Manifest{Name: "jsonl", Version: "1.0.0", Binary: binPath, SHA256: checksum, Enabled: true}

	host := importerout.NewGRPCHost(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := host.CheckLifecycle(ctx, manifest); err != nil {
		t.Fatalf("check lifecycle: %v", err)
	}
	meta, err := host.GetMetadata(ctx, manifest)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if meta.Name != "jsonl" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	records, err := host.FetchActivity(ctx, manifest, domain.FetchRequest{
		ToMs:    1710288000000,
		Options: map[string]string{"path": history},
	})
	if err != nil {
		t.Fatalf("fetch activity: %v", err)
	}
	if len(records) != 1 || records[0].Project != "api" || records[0].DurationMs != 1800000 {
		t.Fatalf("unexpected records %+v", records)
	}
	if _, err := host.FetchActivity(ctx, manifest, domain.FetchRequest{}); err == nil {
		t.Fatalf("expected missing path option to fail")
	}
}

func buildImporterPlugin(t *testing.T) (string, string) {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "jsonl-importer")
	cmd := exec.Command("go", "build", "-o", binPath, "./plugins/jsonl-importer")
	cmd.Dir = repositoryRoot(t)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build importer plugin: %v\n%s", err, string(out))
	}
	payload, err := os.ReadFile(binPath)
	if err != nil {
		t.Fatalf("read built plugin: %v", err)
	}
	hash := sha256.Sum256(payload)
	return binPath, hex.EncodeToString(hash[:])
}

func repositoryRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "../../../../../"))
}
