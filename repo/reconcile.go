package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/miktex/mpc/archiver"
	"github.com/miktex/mpc/dirscope"
	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/tds"
)

// reusePriority lists the archive extensions the reuse test looks for,
// in the order the spec requires: the last one found on disk wins, so
// a newer format is preferred over a legacy one even if both exist.
var reusePriority = []string{"cab", "tar.bz2", "tar.lzma"}

// Reconcile decides whether p's archive in repoDir can be reused, or
// rebuilds it, per §4.4. Callers must already have excluded ignored
// packages (Level == '-') and pure-container packages, and must have
// already set p.Level and p.Digest before calling. programStart is the
// --time-packaged override (or the true process start time) used as
// the packaged timestamp for freshly built archives.
func Reconcile(p *tds.PackageInfo, manifest *tds.RepositoryManifest, repoDir string, tool archiver.Tool, programStart int64, l event.Listener) (reused bool, err error) {
	archivePath := findExistingArchive(repoDir, p.ID)
	entry := manifest.Packages[p.ID]

	if archivePath != "" && entry != nil && entry.MD5 == p.Digest && entry.TimePackaged != 0 {
		p.TimePackaged = entry.TimePackaged
		if err := recordArchiveStats(p, archivePath); err != nil {
			return false, err
		}
		event.Emit(l, event.PackageReused{PackageID: p.ID, Archive: archivePath, TimePackaged: p.TimePackaged})
		updateManifestEntry(manifest, p, archivePath)
		return true, nil
	}

	if archivePath != "" {
		tpmData, extractErr := tool.ExtractSingleFile(archivePath, "texmf/tpm/packages/"+p.ID+".tpm")
		if extractErr == nil {
			archiveInfo, parseErr := ParseTPM(tpmData)
			if parseErr == nil && archiveInfo.Digest == p.Digest {
				event.Emit(l, event.Warning{
					Message: fmt.Sprintf("manifest disagrees with archive for %s; adopting archive time-packaged", p.ID),
				})
				p.TimePackaged = archiveInfo.TimePackaged
				if err := recordArchiveStats(p, archivePath); err != nil {
					return false, err
				}
				event.Emit(l, event.PackageReused{PackageID: p.ID, Archive: archivePath, TimePackaged: p.TimePackaged})
				updateManifestEntry(manifest, p, archivePath)
				return true, nil
			}
		}
	}

	if entry != nil && entry.MD5 == p.Digest {
		p.TimePackaged = entry.TimePackaged
	} else {
		p.TimePackaged = programStart
	}

	newArchivePath, err := rebuild(p, repoDir, tool)
	if err != nil {
		return false, err
	}
	if err := recordArchiveStats(p, newArchivePath); err != nil {
		return false, err
	}
	if err := os.Chtimes(newArchivePath, fileTime(programStart), fileTime(programStart)); err != nil {
		return false, mpcerr.Io("utime", newArchivePath, err)
	}

	event.Emit(l, event.PackageRebuilt{
		PackageID:    p.ID,
		Archive:      newArchivePath,
		ArchiveSize:  p.ArchiveFileSize,
		TimePackaged: p.TimePackaged,
	})
	updateManifestEntry(manifest, p, newArchivePath)
	return false, nil
}

func findExistingArchive(repoDir, id string) string {
	var found string
	for _, ext := range reusePriority {
		path := filepath.Join(repoDir, id+"."+ext)
		if _, err := os.Stat(path); err == nil {
			found = path
		}
	}
	return found
}

func recordArchiveStats(p *tds.PackageInfo, archivePath string) error {
	info, err := os.Stat(archivePath)
	if err != nil {
		return mpcerr.Io("stat", archivePath, err)
	}
	p.ArchiveFileSize = info.Size()
	d, err := tds.FileDigest(archivePath)
	if err != nil {
		return err
	}
	p.ArchiveFileDigest = d
	p.ArchiveFileType = archiveTypeFromExt(archivePath)
	return nil
}

func archiveTypeFromExt(path string) tds.ArchiveFileType {
	switch {
	case hasSuffix(path, ".tar.lzma"):
		return tds.ArchiveTarLzma
	case hasSuffix(path, ".tar.bz2"):
		return tds.ArchiveTarBzip2
	case hasSuffix(path, ".cab"):
		return tds.ArchiveMSCab
	default:
		return tds.ArchiveNone
	}
}

func hasSuffix(s, suf string) bool {
	return len(s) >= len(suf) && s[len(s)-len(suf):] == suf
}

// rebuild writes a fresh .tpm into p's Files tree, then drives the
// archiver protocol: create an empty tar, append "texmf" into it from
// within p.Path/Files, compress to the default TarLzma format at
// <repoDir>/<id>.tar.lzma.
func rebuild(p *tds.PackageInfo, repoDir string, tool archiver.Tool) (string, error) {
	tpmDir := filepath.Join(p.Path, "Files", "texmf", "tpm", "packages")
	if err := os.MkdirAll(tpmDir, 0755); err != nil {
		return "", mpcerr.Io("mkdir", tpmDir, err)
	}
	tpmPath := filepath.Join(tpmDir, p.ID+".tpm")
	if err := os.WriteFile(tpmPath, MarshalTPM(p), 0644); err != nil {
		return "", mpcerr.Io("write", tpmPath, err)
	}

	filesDir := filepath.Join(p.Path, "Files")
	tarPath := filepath.Join(repoDir, p.ID+".tar")

	if err := tool.CreateEmptyTar(tarPath); err != nil {
		return "", err
	}

	sc, err := dirscope.Enter(filesDir)
	if err != nil {
		return "", err
	}
	defer sc.Close()
	appendErr := tool.AppendDir(tarPath, filesDir, "texmf")
	closeErr := sc.Close()
	if appendErr != nil {
		return "", appendErr
	}
	if closeErr != nil {
		return "", closeErr
	}

	finalPath, err := tool.CompressLZMA(tarPath)
	if err != nil {
		return "", err
	}
	return finalPath, nil
}

func updateManifestEntry(manifest *tds.RepositoryManifest, p *tds.PackageInfo, archivePath string) {
	entry := &tds.ManifestEntry{
		Level:        p.Level,
		MD5:          p.Digest,
		TimePackaged: p.TimePackaged,
		CabSize:      p.ArchiveFileSize,
		CabMD5:       p.ArchiveFileDigest,
		Type:         archiveTypeFromExt(archivePath),
	}
	if p.Version != "" {
		entry.Version = p.Version
	}
	if p.TargetSystem != "" {
		entry.TargetSystem = p.TargetSystem
	}
	if p.MinTargetSystemVersion != "" {
		entry.MinTargetSystemVersion = p.MinTargetSystemVersion
	}
	manifest.Put(p.ID, entry)
}
