package disassemble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/miktex/mpc/repo"
	"github.com/miktex/mpc/stage"
	"github.com/miktex/mpc/tds"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// TestDisassembleRoundTrip mirrors testable invariant 3: disassemble a
// package into a staging directory then re-collect it, and the
// resulting digest must equal the original.
func TestDisassembleRoundTrip(t *testing.T) {
	srcStaging := t.TempDir()
	writeFile(t, filepath.Join(srcStaging, "package.ini"), "id=foo\nname=Foo\n")
	writeFile(t, filepath.Join(srcStaging, "Files", "texmf", "tex", "x.sty"), "hello\n\n\n\n\n")

	original, err := stage.ReadStagingDir(srcStaging, nil)
	if err != nil {
		t.Fatalf("ReadStagingDir failed: %v", err)
	}
	digests := map[string]tds.Digest{}
	for _, rel := range original.AllFiles() {
		d, err := tds.FileDigest(filepath.Join(srcStaging, "Files", rel))
		if err != nil {
			t.Fatal(err)
		}
		digests[rel] = d
	}
	original.Digest = tds.DigestTree(digests)

	sourceDir := t.TempDir()
	if err := os.Rename(filepath.Join(srcStaging, "Files", "texmf"), filepath.Join(sourceDir, "texmf")); err != nil {
		t.Fatal(err)
	}

	tpmPath := filepath.Join(sourceDir, "texmf", "tpm", "packages", "foo.tpm")
	if err := os.MkdirAll(filepath.Dir(tpmPath), 0755); err != nil {
		t.Fatal(err)
	}
	original.Path = srcStaging
	if err := os.WriteFile(tpmPath, repo.MarshalTPM(original), 0644); err != nil {
		t.Fatal(err)
	}

	newStaging := t.TempDir()
	if err := Disassemble(tpmPath, sourceDir, newStaging, nil); err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}

	redone, err := stage.ReadStagingDir(newStaging, nil)
	if err != nil {
		t.Fatalf("re-reading disassembled staging dir failed: %v", err)
	}
	digests2 := map[string]tds.Digest{}
	for _, rel := range redone.AllFiles() {
		d, err := tds.FileDigest(filepath.Join(newStaging, "Files", rel))
		if err != nil {
			t.Fatal(err)
		}
		digests2[rel] = d
	}
	redone.Digest = tds.DigestTree(digests2)

	if redone.Digest != original.Digest {
		t.Errorf("round-trip digest mismatch: got %s, want %s", redone.Digest, original.Digest)
	}
}
