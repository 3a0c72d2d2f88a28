package repo

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/miktex/mpc/archiver"
	"github.com/miktex/mpc/catalog"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/tds"
)

// ReadRepository loads the existing repository manifest archive
// (miktex-zzdb1-<major>.<minor>.<ext>) and package-manifest bundle
// archive (miktex-zzdb3-<major>.<minor>.<ext>) from dir, giving the
// previous run's full state: the per-package mpm.ini summary, and
// every package's classified files/digest/metadata restored into a
// catalog.Table a caller can merge fresh staging data into. If no
// manifest archive exists yet (a first run against an empty repository
// directory), it returns a fresh empty manifest, an empty table, and no
// error.
func ReadRepository(dir string, tool archiver.Tool) (*tds.RepositoryManifest, *catalog.Table, error) {
	archivePath, err := findDatabaseArchive(dir, "miktex-zzdb1-")
	if err != nil {
		return nil, nil, err
	}
	if archivePath == "" {
		return tds.NewRepositoryManifest(), catalog.NewTable(), nil
	}

	data, err := tool.ExtractSingleFile(archivePath, "mpm.ini")
	if err != nil {
		return nil, nil, err
	}
	manifest, err := UnmarshalManifest(data)
	if err != nil {
		return nil, nil, err
	}

	table := catalog.NewTable()
	bundlePath, err := findDatabaseArchive(dir, "miktex-zzdb3-")
	if err != nil {
		return nil, nil, err
	}
	if bundlePath != "" {
		bundleData, err := tool.ExtractSingleFile(bundlePath, "package-manifests.ini")
		if err != nil {
			return nil, nil, err
		}
		packages, err := parsePackageManifestsBundle(bundleData)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range packages {
			if entry, ok := manifest.Packages[p.ID]; ok {
				p.Level = entry.Level
				p.ArchiveFileSize = entry.CabSize
				p.ArchiveFileDigest = entry.CabMD5
				p.ArchiveFileType = entry.Type
			}
			table.Put(p)
		}
	}

	return manifest, table, nil
}

// parsePackageManifestsBundle splits the package-manifests.ini document
// written by writePackageManifestsArchive back into one PackageInfo per
// [id] section. Each section's raw body (not folded through the
// generic sectioned-INI reader) is handed to ParseTPM so its
// ';'-uniquified multi-value fields — requires, runfiles, docfiles,
// sourcefiles — are reconstructed correctly.
func parsePackageManifestsBundle(data []byte) (map[string]*tds.PackageInfo, error) {
	packages := make(map[string]*tds.PackageInfo)
	var id string
	var body strings.Builder

	flush := func() error {
		if id == "" {
			return nil
		}
		p, err := ParseTPM([]byte(body.String()))
		if err != nil {
			return err
		}
		p.ID = id
		packages[id] = p
		body.Reset()
		return nil
	}

	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			if err := flush(); err != nil {
				return nil, err
			}
			id = trimmed[1 : len(trimmed)-1]
			continue
		}
		if id == "" {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, mpcerr.Io("scan", "package-manifests.ini", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return packages, nil
}

// findDatabaseArchive returns the path of the first dir entry whose
// name has the given prefix (e.g. "miktex-zzdb1-"), or "" if none
// exists. When more than one exists (a leftover from a series bump),
// the most recently modified one wins.
func findDatabaseArchive(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", mpcerr.Io("readdir", dir, err)
	}

	var best string
	var bestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().Unix() > bestMod {
			best = filepath.Join(dir, e.Name())
			bestMod = info.ModTime().Unix()
		}
	}
	return best, nil
}
