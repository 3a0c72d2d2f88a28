package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/tds"
)

// TestReadPackageListS6 mirrors scenario S6.
func TestReadPackageListS6(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(path, []byte("S foo;TarLzma\n- bar\n"), 0644); err != nil {
		t.Fatal(err)
	}

	specs, err := ReadPackageList(path, nil)
	if err != nil {
		t.Fatalf("ReadPackageList failed: %v", err)
	}
	foo, ok := specs["foo"]
	if !ok || foo.Level != tds.LevelSmall || foo.ArchiveFileType != tds.ArchiveTarLzma {
		t.Errorf("foo = %+v, ok=%v", foo, ok)
	}
	bar, ok := specs["bar"]
	if !ok || bar.Level != tds.LevelIgnore {
		t.Errorf("bar = %+v, ok=%v", bar, ok)
	}
}

func TestReadPackageListInclude(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub.txt")
	if err := os.WriteFile(sub, []byte("T included\n"), 0644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "main.txt")
	if err := os.WriteFile(main, []byte("T direct\n@sub.txt\n"), 0644); err != nil {
		t.Fatal(err)
	}

	specs, err := ReadPackageList(main, nil)
	if err != nil {
		t.Fatalf("ReadPackageList failed: %v", err)
	}
	if _, ok := specs["direct"]; !ok {
		t.Error("missing direct")
	}
	if _, ok := specs["included"]; !ok {
		t.Error("missing included from @sub.txt")
	}
}

func TestReadPackageListDuplicate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(path, []byte("T foo\nS foo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var warnings []string
	specs, err := ReadPackageList(path, event.Listener(func(e fmt.Stringer) {
		warnings = append(warnings, e.String())
	}))
	if err != nil {
		t.Fatalf("ReadPackageList failed: %v", err)
	}
	if specs["foo"].Level != tds.LevelTotal {
		t.Errorf("expected first entry (T) to win, got %v", specs["foo"].Level)
	}
	if len(warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(warnings))
	}
}
