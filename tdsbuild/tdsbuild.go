// Package tdsbuild implements the TDS builder: an alternate terminal
// stage that materializes a complete TeX directory tree (no archives)
// plus an mpm.ini, used during distribution staging (§4.7).
package tdsbuild

import (
	"os"
	"path/filepath"

	"github.com/miktex/mpc/catalog"
	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/repo"
	"github.com/miktex/mpc/tds"
)

// Options configures the TDS builder.
type Options struct {
	TexmfParent string
	TpmDir      string // defaults to <TexmfParent>/texmf/tpm/packages
}

// Build materializes every non-ignored package in t under
// opts.TexmfParent, verifying each package's TDS digest against its
// copied files before trusting it, and writes the resulting mpm.ini.
func Build(t *catalog.Table, opts Options, l event.Listener) error {
	tpmDir := opts.TpmDir
	if tpmDir == "" {
		tpmDir = filepath.Join(opts.TexmfParent, "texmf", "tpm", "packages")
	}
	if err := os.MkdirAll(tpmDir, 0755); err != nil {
		return mpcerr.Io("mkdir", tpmDir, err)
	}

	manifest := tds.NewRepositoryManifest()

	for _, p := range t.All() {
		if p.Level == tds.LevelIgnore {
			continue
		}

		digests := make(map[string]tds.Digest, len(p.AllFiles()))
		for _, rel := range p.AllFiles() {
			if tds.IsManifestFile(rel, p.ID) {
				continue
			}
			src := filepath.Join(p.Path, "Files", filepath.FromSlash(rel))
			dst := filepath.Join(opts.TexmfParent, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
				return mpcerr.Io("mkdir", filepath.Dir(dst), err)
			}
			d, err := tds.CopyWithDigest(src, dst)
			if err != nil {
				return err
			}
			digests[rel] = d
		}

		got := tds.DigestTree(digests)
		if got != p.Digest {
			return mpcerr.DigestMismatch(p.ID, p.Digest.String(), got.String())
		}

		tpmPath := filepath.Join(tpmDir, p.ID+".tpm")
		if err := os.WriteFile(tpmPath, repo.MarshalTPM(p), 0644); err != nil {
			return mpcerr.Io("write", tpmPath, err)
		}

		manifest.Put(p.ID, &tds.ManifestEntry{
			Level:                  p.Level,
			MD5:                    p.Digest,
			TimePackaged:           p.TimePackaged,
			Version:                p.Version,
			TargetSystem:           p.TargetSystem,
			MinTargetSystemVersion: p.MinTargetSystemVersion,
		})

		event.Emit(l, event.ArtifactWritten{Path: tpmPath})
	}

	mpmPath := filepath.Join(opts.TexmfParent, "mpm.ini")
	if err := os.WriteFile(mpmPath, repo.MarshalManifest(manifest), 0644); err != nil {
		return mpcerr.Io("write", mpmPath, err)
	}
	event.Emit(l, event.ArtifactWritten{Path: mpmPath})
	return nil
}
