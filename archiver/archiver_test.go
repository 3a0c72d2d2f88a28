package archiver

import "testing"

// fakeTool is the kind of substitute a caller injects in place of Exec
// to test reconciler/writer logic without shelling out.
type fakeTool struct {
	calls []string
}

func (f *fakeTool) CreateEmptyTar(path string) error {
	f.calls = append(f.calls, "create:"+path)
	return nil
}

func (f *fakeTool) AppendDir(tarPath, dir, member string) error {
	f.calls = append(f.calls, "append:"+tarPath+":"+dir+":"+member)
	return nil
}

func (f *fakeTool) CompressLZMA(tarPath string) (string, error) {
	f.calls = append(f.calls, "lzma:"+tarPath)
	return tarPath + ".lzma", nil
}

func (f *fakeTool) CompressBzip2(tarPath string) (string, error) {
	f.calls = append(f.calls, "bz2:"+tarPath)
	return tarPath + ".bz2", nil
}

func (f *fakeTool) ExtractSingleFile(archivePath, member string) ([]byte, error) {
	f.calls = append(f.calls, "extract:"+archivePath+":"+member)
	return []byte("fake"), nil
}

func TestFakeToolSatisfiesInterface(t *testing.T) {
	var tool Tool = &fakeTool{}
	if err := tool.CreateEmptyTar("x.tar"); err != nil {
		t.Fatal(err)
	}
	out, err := tool.CompressLZMA("x.tar")
	if err != nil {
		t.Fatal(err)
	}
	if out != "x.tar.lzma" {
		t.Errorf("got %q", out)
	}
}

func TestHasSuffix(t *testing.T) {
	if !hasSuffix("foo.cab", ".cab") {
		t.Error("expected match")
	}
	if hasSuffix("foo.tar.lzma", ".cab") {
		t.Error("expected no match")
	}
}
