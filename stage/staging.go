// Package stage reads staging directories (package.ini + optional
// Description + Files/ tree) into tds.PackageInfo values, and reads
// package-list files into tds.PackageSpec values.
package stage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/tds"
)

// ReadStagingDir parses dir's package.ini and Description, and
// classifies every file under dir/Files into RunFiles/DocFiles/
// SourceFiles. It does not compute the package digest — the caller
// does that once all staging roots have been merged into a table,
// since the digest only covers non-manifest files and is cheaper to
// compute in bulk.
func ReadStagingDir(dir string, l event.Listener) (*tds.PackageInfo, error) {
	iniPath := filepath.Join(dir, "package.ini")
	f, err := os.Open(iniPath)
	if err != nil {
		return nil, mpcerr.Io("open", iniPath, err)
	}
	fields, err := parseFlatINI(f)
	f.Close()
	if err != nil {
		return nil, mpcerr.Io("read", iniPath, err)
	}

	id := first(fields, "id")
	if id == "" {
		id = first(fields, "externalname")
	}
	name := first(fields, "name")
	if id == "" || name == "" {
		return nil, mpcerr.InvalidManifest(iniPath, "missing required key id/externalname or name", nil)
	}

	p := &tds.PackageInfo{
		ID:                     id,
		DisplayName:            name,
		Title:                  first(fields, "title"),
		Creator:                first(fields, "creator"),
		Version:                first(fields, "version"),
		TargetSystem:           first(fields, "targetsystem"),
		MinTargetSystemVersion: first(fields, "mintargetsystemversion"),
		CTANPath:               first(fields, "ctanpath"),
		CopyrightOwner:         first(fields, "copyrightowner"),
		CopyrightYear:          first(fields, "copyrightyear"),
		LicenseType:            first(fields, "licensetype"),
		Path:                   dir,
	}
	for _, v := range fields["requires"] {
		for _, req := range strings.Split(v, ";") {
			if req = strings.TrimSpace(req); req != "" {
				p.RequiredPackages = append(p.RequiredPackages, req)
			}
		}
	}

	if md5 := first(fields, "md5"); md5 != "" {
		if d, ok := tds.ParseDigest(strings.ToLower(md5)); ok {
			p.Digest = d
		}
	}

	if desc, err := os.ReadFile(filepath.Join(dir, "Description")); err == nil {
		p.Description = string(desc)
	}

	filesRoot := filepath.Join(dir, "Files")
	if err := classifyFiles(filesRoot, p); err != nil {
		return nil, err
	}

	event.Emit(l, event.StagingRead{Path: dir, PackageID: p.ID})
	return p, nil
}

func classifyFiles(filesRoot string, p *tds.PackageInfo) error {
	info, err := os.Stat(filesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return mpcerr.Io("stat", filesRoot, err)
	}
	if !info.IsDir() {
		return mpcerr.InvalidManifest(filesRoot, "Files is not a directory", nil)
	}

	return filepath.WalkDir(filesRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return mpcerr.Io("walk", path, err)
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filesRoot, path)
		if err != nil {
			return mpcerr.Io("rel", path, err)
		}
		rel = filepath.ToSlash(rel)

		if tds.IsManifestFile(rel, p.ID) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return mpcerr.Io("stat", path, err)
		}
		size := fi.Size()

		switch tds.Classify(rel) {
		case "doc":
			p.DocFiles = append(p.DocFiles, rel)
			p.SizeDocFiles += size
		case "source":
			p.SourceFiles = append(p.SourceFiles, rel)
			p.SizeSourceFiles += size
		default:
			p.RunFiles = append(p.RunFiles, rel)
			p.SizeRunFiles += size
		}
		return nil
	})
}
