package tds

import (
	"crypto/md5"
	"os"
	"path/filepath"
	"testing"
)

func TestFileDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.sty")
	content := []byte("hello\n\n\n\n\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FileDigest(path)
	if err != nil {
		t.Fatalf("FileDigest failed: %v", err)
	}
	want := md5.Sum(content)
	if got != Digest(want) {
		t.Errorf("FileDigest = %x, want %x", got, want)
	}
}

// TestDigestTreeS1 mirrors scenario S1 from the spec: a single run
// file "texmf/tex/x.sty" containing "hello\n\n\n\n\n" (10 bytes).
func TestDigestTreeS1(t *testing.T) {
	content := []byte("hello\n\n\n\n\n")
	fd := Digest(md5.Sum(content))

	got := DigestTree(map[string]Digest{"texmf/tex/x.sty": fd})

	h := md5.New()
	h.Write([]byte(`texmf\tex\x.sty`))
	h.Write(fd[:])
	var want Digest
	copy(want[:], h.Sum(nil))

	if got != want {
		t.Errorf("DigestTree = %x, want %x", got, want)
	}
}

func TestDigestTreeOrderInsensitive(t *testing.T) {
	a := Digest{1}
	b := Digest{2}
	m1 := map[string]Digest{"texmf/a/x": a, "texmf/b/y": b}
	m2 := map[string]Digest{"texmf/b/y": b, "texmf/a/x": a}

	if DigestTree(m1) != DigestTree(m2) {
		t.Error("DigestTree must not depend on map iteration order")
	}
}

func TestCopyWithDigest(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	content := []byte("payload")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatal(err)
	}

	d, err := CopyWithDigest(src, dst)
	if err != nil {
		t.Fatalf("CopyWithDigest failed: %v", err)
	}
	want := Digest(md5.Sum(content))
	if d != want {
		t.Errorf("digest = %x, want %x", d, want)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Error("copied content mismatch")
	}

	si, _ := os.Stat(src)
	di, _ := os.Stat(dst)
	if !si.ModTime().Equal(di.ModTime()) {
		t.Error("mtime not mirrored")
	}
}
