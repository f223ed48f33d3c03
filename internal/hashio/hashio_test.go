package hashio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestComputeHashes(t *testing.T) {
	path := writeTemp(t, []byte("hello heimdall"))

	hashes, err := ComputeHashes(path, AllAlgorithms, 0)
	if err != nil {
		t.Fatalf("ComputeHashes: %v", err)
	}
	if len(hashes) != 4 {
		t.Fatalf("got %d hashes, want 4", len(hashes))
	}

	for _, algo := range AllAlgorithms {
		if hashes[algo] == "" {
			t.Errorf("missing digest for %s", algo)
		}
	}
	if len(hashes[model.HashSHA256]) != 64 {
		t.Errorf("sha256 digest length = %d, want 64 hex chars", len(hashes[model.HashSHA256]))
	}
	if len(hashes[model.HashMD5]) != 32 {
		t.Errorf("md5 digest length = %d, want 32 hex chars", len(hashes[model.HashMD5]))
	}
}

func TestComputeHashes_TooLarge(t *testing.T) {
	path := writeTemp(t, make([]byte, 1024))

	_, err := ComputeHashes(path, AllAlgorithms, 100)
	if err == nil {
		t.Fatal("expected TooLarge error")
	}
}

func TestComputeHashes_MissingFile(t *testing.T) {
	_, err := ComputeHashes("/nonexistent/path/does-not-exist", AllAlgorithms, 0)
	if err == nil {
		t.Fatal("expected io error for missing file")
	}
}

func TestReadAll(t *testing.T) {
	content := []byte("the quick brown fox")
	path := writeTemp(t, content)

	got, err := ReadAll(path, 0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("ReadAll() = %q, want %q", got, content)
	}
}

func TestReadAll_TooLarge(t *testing.T) {
	path := writeTemp(t, make([]byte, 1024))
	if _, err := ReadAll(path, 10); err == nil {
		t.Fatal("expected TooLarge error")
	}
}
