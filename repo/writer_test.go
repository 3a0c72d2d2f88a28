package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/miktex/mpc/catalog"
	"github.com/miktex/mpc/sign"
	"github.com/miktex/mpc/tds"
)

// generateTestKey writes a fresh, unprotected ASCII-armored private key
// to a temp file and returns its path (mirrors sign/sign_test.go's
// helper of the same name; kept local since it is unexported there).
func generateTestKey(t *testing.T) string {
	t.Helper()
	entity, err := openpgp.NewEntity("Test", "test", "test@example.com", nil)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("armor encode failed: %v", err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	w.Close()

	path := filepath.Join(t.TempDir(), "key.asc")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestTable() *catalog.Table {
	t := catalog.NewTable()
	t.Add(&tds.PackageInfo{
		ID:           "foo",
		Level:        tds.LevelTotal,
		RunFiles:     []string{"texmf/tex/latex/foo/foo.sty"},
		TimePackaged: 1700000000,
	}, nil)
	t.Add(&tds.PackageInfo{
		ID:           "bar",
		Level:        tds.LevelIgnore,
		RunFiles:     []string{"texmf/tex/latex/bar/bar.sty"},
		TimePackaged: 1700000001,
	}, nil)
	return t
}

func TestWriteDatabaseProducesAllArtifacts(t *testing.T) {
	repoDir := t.TempDir()
	tbl := newTestTable()
	manifest := tds.NewRepositoryManifest()
	tool := &fakeTool{}

	opts := WriteOptions{MiktexMajor: 2, MiktexMinor: 9, RelState: "stable", Now: 1700000500}
	if err := WriteDatabase(tbl, manifest, repoDir, tool, opts, nil); err != nil {
		t.Fatalf("WriteDatabase failed: %v", err)
	}

	for _, name := range []string{
		"miktex-zzdb1-2.9.tar.lzma",
		"miktex-zzdb2-2.9.tar.lzma",
		"miktex-zzdb3-2.9.tar.lzma",
		"files.csv.lzma",
		"pr.ini",
	} {
		if _, err := os.Stat(filepath.Join(repoDir, name)); err != nil {
			t.Errorf("expected artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(repoDir, "files.csv")); err == nil {
		t.Error("uncompressed files.csv should have been deleted")
	}
}

func TestWriteDatabaseFilesIndexExcludesIgnored(t *testing.T) {
	repoDir := t.TempDir()
	tbl := newTestTable()
	manifest := tds.NewRepositoryManifest()
	tool := &fakeTool{}

	// The fake CompressLZMA only renames its input, so files.csv.lzma
	// holds the plain index; countLive also backs pr.ini's numpkg.
	if n := countLive(tbl); n != 1 {
		t.Errorf("countLive = %d, want 1 (bar is ignored)", n)
	}

	opts := WriteOptions{MiktexMajor: 2, MiktexMinor: 9, RelState: "stable", Now: 1700000500}
	if err := WriteDatabase(tbl, manifest, repoDir, tool, opts, nil); err != nil {
		t.Fatalf("WriteDatabase failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(repoDir, "pr.ini"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "numpkg=1") {
		t.Errorf("pr.ini content = %s", content)
	}

	index, err := os.ReadFile(filepath.Join(repoDir, "files.csv.lzma"))
	if err != nil {
		t.Fatal(err)
	}
	if string(index) != "tex/latex/foo/foo.sty;foo\n" {
		t.Errorf("files index = %q, want only foo's file", index)
	}
}

// TestPruneRemovesIgnoredPackages mirrors S6: a package previously
// live is now marked '-' in the table; prune must drop its manifest
// section too, not just sections for ids absent from the table.
func TestPruneRemovesIgnoredPackages(t *testing.T) {
	tbl := catalog.NewTable()
	tbl.Add(&tds.PackageInfo{ID: "foo", Level: tds.LevelIgnore}, nil)

	manifest := tds.NewRepositoryManifest()
	manifest.Put("foo", &tds.ManifestEntry{Level: tds.LevelTotal, MD5: tds.Digest{1}})

	prune(manifest, tbl)

	if _, ok := manifest.Packages["foo"]; ok {
		t.Error("prune should have removed the now-ignored package foo")
	}
}

// TestLastUpdatedFiltersIgnoredBeforeCapping ensures an ignored package
// sorting into the top 20 by TimePackaged does not push a live package
// out of the returned list (invariant 7).
func TestLastUpdatedFiltersIgnoredBeforeCapping(t *testing.T) {
	tbl := catalog.NewTable()
	tbl.Add(&tds.PackageInfo{ID: "ignored", Level: tds.LevelIgnore, TimePackaged: 2000000000}, nil)
	for i := 0; i < 20; i++ {
		tbl.Add(&tds.PackageInfo{
			ID:           fmt.Sprintf("pkg%02d", i),
			Level:        tds.LevelTotal,
			TimePackaged: int64(1700000000 + i),
		}, nil)
	}

	ids := lastUpdated(tbl)
	if len(ids) != 20 {
		t.Fatalf("lastUpdated returned %d ids, want 20", len(ids))
	}
	for _, id := range ids {
		if id == "ignored" {
			t.Error("lastUpdated must not include an ignored package")
		}
	}
}

// TestWriteDatabasePublishesPublicKey mirrors the teacher's deb
// repository key-publication step: once a signing key is configured,
// WriteDatabase must publish its public half alongside the repository.
func TestWriteDatabasePublishesPublicKey(t *testing.T) {
	repoDir := t.TempDir()
	tbl := newTestTable()
	manifest := tds.NewRepositoryManifest()
	tool := &fakeTool{}

	keyPath := generateTestKey(t)
	opts := WriteOptions{
		MiktexMajor: 2, MiktexMinor: 9, RelState: "stable", Now: 1700000500,
		KeyProvider: sign.FileKeyProvider{KeyPath: keyPath},
	}
	if err := WriteDatabase(tbl, manifest, repoDir, tool, opts, nil); err != nil {
		t.Fatalf("WriteDatabase failed: %v", err)
	}

	pub, err := os.ReadFile(filepath.Join(repoDir, "public.asc"))
	if err != nil {
		t.Fatalf("expected public.asc to be written: %v", err)
	}
	if !strings.Contains(string(pub), "-----BEGIN PGP PUBLIC KEY BLOCK-----") {
		t.Error("public.asc does not look like an armored public key")
	}
}

func TestComputeLstDigestDeterministic(t *testing.T) {
	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "b.txt"), []byte("xx"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repoDir, "a.txt"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	d1, err := computeLstDigest(repoDir)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := computeLstDigest(repoDir)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Error("computeLstDigest must be deterministic for an unchanged directory")
	}
}
