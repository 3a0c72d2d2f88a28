// Package disassemble implements the disassembler: the inverse of the
// staging reader. Given a live package manifest (.tpm) and a TeX
// directory tree, it reconstructs a staging directory (§4.8).
package disassemble

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/repo"
	"github.com/miktex/mpc/tds"
)

// Disassemble reads tpmPath in place, copies every file it lists out of
// sourceDir (a texmf-parent directory) into stagingDir/Files,
// recomputing digests, and synthesizes package.ini, md5sums.txt,
// Description, and a fresh .tpm under
// stagingDir/Files/texmf/tpm/packages/<id>.tpm.
func Disassemble(tpmPath, sourceDir, stagingDir string, l event.Listener) error {
	data, err := os.ReadFile(tpmPath)
	if err != nil {
		return mpcerr.Io("read", tpmPath, err)
	}
	p, err := repo.ParseTPM(data)
	if err != nil {
		return mpcerr.InvalidManifest(tpmPath, "cannot parse package manifest", err)
	}
	p.Path = stagingDir

	ownTpm := "texmf/tpm/packages/" + p.ID + ".tpm"
	p.RunFiles = dropPath(p.RunFiles, ownTpm)

	digests := make(map[string]tds.Digest)
	p.SizeRunFiles, p.SizeDocFiles, p.SizeSourceFiles = 0, 0, 0

	copyAll := func(files []string, sizeAcc *int64) error {
		for _, rel := range files {
			src := filepath.Join(sourceDir, filepath.FromSlash(rel))
			dst := filepath.Join(stagingDir, "Files", filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
				return mpcerr.Io("mkdir", filepath.Dir(dst), err)
			}
			d, err := tds.CopyWithDigest(src, dst)
			if err != nil {
				return err
			}
			digests[rel] = d
			info, err := os.Stat(dst)
			if err != nil {
				return mpcerr.Io("stat", dst, err)
			}
			*sizeAcc += info.Size()
		}
		return nil
	}

	if err := copyAll(p.RunFiles, &p.SizeRunFiles); err != nil {
		return err
	}
	if err := copyAll(p.DocFiles, &p.SizeDocFiles); err != nil {
		return err
	}
	if err := copyAll(p.SourceFiles, &p.SizeSourceFiles); err != nil {
		return err
	}

	p.Digest = tds.DigestTree(digests)

	if err := writePackageIni(stagingDir, p); err != nil {
		return err
	}
	if err := writeMD5Sums(stagingDir, p, digests); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(stagingDir, "Description"), []byte(p.Description), 0644); err != nil {
		return mpcerr.Io("write", filepath.Join(stagingDir, "Description"), err)
	}

	tpmDir := filepath.Join(stagingDir, "Files", "texmf", "tpm", "packages")
	if err := os.MkdirAll(tpmDir, 0755); err != nil {
		return mpcerr.Io("mkdir", tpmDir, err)
	}
	freshTpm := filepath.Join(tpmDir, p.ID+".tpm")
	if err := os.WriteFile(freshTpm, repo.MarshalTPM(p), 0644); err != nil {
		return mpcerr.Io("write", freshTpm, err)
	}

	event.Emit(l, event.ArtifactWritten{Path: stagingDir})
	return nil
}

func dropPath(files []string, path string) []string {
	out := files[:0]
	for _, f := range files {
		if tds.DOSNormalize(f) != tds.DOSNormalize(path) {
			out = append(out, f)
		}
	}
	return out
}

func writePackageIni(stagingDir string, p *tds.PackageInfo) error {
	path := filepath.Join(stagingDir, "package.ini")
	f, err := os.Create(path)
	if err != nil {
		return mpcerr.Io("create", path, err)
	}
	defer f.Close()

	write := func(key, val string) {
		if val != "" {
			fmt.Fprintf(f, "%s=%s\n", key, val)
		}
	}
	write("id", p.ID)
	write("name", p.DisplayName)
	write("title", p.Title)
	write("creator", p.Creator)
	write("version", p.Version)
	write("targetsystem", p.TargetSystem)
	write("mintargetsystemversion", p.MinTargetSystemVersion)
	write("ctanpath", p.CTANPath)
	write("copyrightowner", p.CopyrightOwner)
	write("copyrightyear", p.CopyrightYear)
	write("licensetype", p.LicenseType)
	write("md5", p.Digest.String())
	for i, r := range p.RequiredPackages {
		fmt.Fprintf(f, "requires;%d=%s\n", i+1, r)
	}
	return nil
}

func writeMD5Sums(stagingDir string, p *tds.PackageInfo, digests map[string]tds.Digest) error {
	path := filepath.Join(stagingDir, "md5sums.txt")
	rels := make([]string, 0, len(digests))
	for rel := range digests {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	f, err := os.Create(path)
	if err != nil {
		return mpcerr.Io("create", path, err)
	}
	defer f.Close()
	for _, rel := range rels {
		if _, err := fmt.Fprintf(f, "%s %s\n", digests[rel].String(), rel); err != nil {
			return mpcerr.Io("write", path, err)
		}
	}
	return nil
}
