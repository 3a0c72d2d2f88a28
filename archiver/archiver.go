// Package archiver implements the external-tool subprocess contract:
// tar, xz (lzma), bzip2, and cabextract invoked as child processes. The
// core never embeds an archive implementation; it only calls this
// narrow interface, so tests can substitute a fake Tool.
package archiver

import (
	"bytes"
	"os/exec"

	"github.com/miktex/mpc/mpcerr"
)

// Tool is the subprocess contract the archive reconciler and database
// writer depend on. The real implementation shells out to tar/xz/
// bzip2/cabextract; tests use a fake that records calls.
type Tool interface {
	// CreateEmptyTar creates a new, empty tar archive at path.
	CreateEmptyTar(path string) error
	// AppendDir appends member (a path relative to dir) into the tar
	// archive at tarPath, as if run from within dir.
	AppendDir(tarPath, dir, member string) error
	// CompressLZMA compresses tarPath in place with xz --format=lzma,
	// returning the path of the resulting "<tarPath>.lzma" file. The
	// uncompressed input is removed.
	CompressLZMA(tarPath string) (string, error)
	// CompressBzip2 compresses tarPath in place with bzip2, returning
	// the path of the resulting "<tarPath>.bz2" file. The uncompressed
	// input is removed.
	CompressBzip2(tarPath string) (string, error)
	// ExtractSingleFile extracts one member from archivePath (a
	// .tar.lzma, .tar.bz2, or legacy .cab file) and returns its bytes.
	ExtractSingleFile(archivePath, member string) ([]byte, error)
}

// Exec is the real Tool, invoking tar/xz/bzip2/cabextract on PATH.
type Exec struct{}

// CheckXZ verifies xz is discoverable on PATH, per the startup
// requirement in §6. Call this once before any archive creation.
func CheckXZ() error {
	if _, err := exec.LookPath("xz"); err != nil {
		return mpcerr.Configuration("xz not found on PATH", err)
	}
	return nil
}

func run(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var buf bytes.Buffer
	buf.Grow(512)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.Bytes(), mpcerr.ExternalTool(name, args, buf.Bytes(), err)
	}
	return buf.Bytes(), nil
}

func (Exec) CreateEmptyTar(path string) error {
	_, err := run("tar", "-cf", path, "-T", "/dev/null")
	return err
}

func (Exec) AppendDir(tarPath, dir, member string) error {
	_, err := run("tar", "-rf", tarPath, "-C", dir, member)
	return err
}

func (Exec) CompressLZMA(tarPath string) (string, error) {
	if _, err := run("xz", "--compress", "--format=lzma", tarPath); err != nil {
		return "", err
	}
	return tarPath + ".lzma", nil
}

func (Exec) CompressBzip2(tarPath string) (string, error) {
	if _, err := run("bzip2", "--compress", tarPath); err != nil {
		return "", err
	}
	return tarPath + ".bz2", nil
}

func (Exec) ExtractSingleFile(archivePath, member string) ([]byte, error) {
	switch {
	case hasSuffix(archivePath, ".cab"):
		out, err := run("cabextract", "-p", "-F", member, archivePath)
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		out, err := run("tar", "--force-local", "-xOf", archivePath, member)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func hasSuffix(s, suf string) bool {
	return len(s) >= len(suf) && s[len(s)-len(suf):] == suf
}
