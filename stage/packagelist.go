package stage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/tds"
)

// ReadPackageList parses a package-list file (§4.3) into id -> spec.
// Duplicate ids emit a Warning through l and the first entry wins.
func ReadPackageList(path string, l event.Listener) (map[string]tds.PackageSpec, error) {
	out := make(map[string]tds.PackageSpec)
	if err := readPackageListInto(path, out, l); err != nil {
		return nil, err
	}
	return out, nil
}

func readPackageListInto(path string, out map[string]tds.PackageSpec, l event.Listener) error {
	f, err := os.Open(path)
	if err != nil {
		return mpcerr.Io("open", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "@") {
			includePath := strings.TrimSpace(line[1:])
			if !filepath.IsAbs(includePath) {
				includePath = filepath.Join(filepath.Dir(path), includePath)
			}
			if err := readPackageListInto(includePath, out, l); err != nil {
				return err
			}
			continue
		}

		levelByte := line[0]
		var level tds.Level
		switch levelByte {
		case 'S', 'M', 'L', 'T', '-':
			level = tds.Level(levelByte)
		default:
			return mpcerr.InvalidManifest(path, fmt.Sprintf("unrecognized level %q in line %q", string(levelByte), raw), nil)
		}

		rest := strings.TrimSpace(line[1:])
		tokens := strings.Split(rest, ";")
		if len(tokens) == 0 || strings.TrimSpace(tokens[0]) == "" {
			return mpcerr.InvalidManifest(path, fmt.Sprintf("missing package id in line %q", raw), nil)
		}
		id := strings.TrimSpace(tokens[0])

		archType := tds.ArchiveNone
		if len(tokens) > 1 && strings.TrimSpace(tokens[1]) != "" {
			t, ok := tds.ParseArchiveFileType(strings.TrimSpace(tokens[1]))
			if !ok {
				return mpcerr.InvalidManifest(path, fmt.Sprintf("unrecognized archive type %q in line %q", tokens[1], raw), nil)
			}
			archType = t
		}

		if _, exists := out[id]; exists {
			event.Emit(l, event.Warning{Message: fmt.Sprintf("duplicate package %s in package list, first wins", id)})
			continue
		}
		out[id] = tds.PackageSpec{ID: id, Level: level, ArchiveFileType: archType}
	}
	if err := sc.Err(); err != nil {
		return mpcerr.Io("read", path, err)
	}
	return nil
}
