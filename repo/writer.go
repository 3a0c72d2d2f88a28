package repo

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miktex/mpc/archiver"
	"github.com/miktex/mpc/catalog"
	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/sign"
	"github.com/miktex/mpc/tds"
)

// WriteOptions configures the database writer.
type WriteOptions struct {
	MiktexMajor, MiktexMinor int
	Prune                    bool
	RelState                 string // "stable" or "next"
	KeyProvider              sign.KeyProvider
	Now                      int64 // unix seconds; pr.ini's "date" field
}

// WriteDatabase emits the four derived artifacts in <repoDir>, strictly
// in the order §4.6 specifies, finishing with the double pr.ini write.
func WriteDatabase(t *catalog.Table, manifest *tds.RepositoryManifest, repoDir string, tool archiver.Tool, opts WriteOptions, l event.Listener) error {
	if opts.Prune {
		prune(manifest, t)
	}

	major, minor := opts.MiktexMajor, opts.MiktexMinor
	ext := "tar.lzma"
	if major < 2 || (major == 2 && minor < 7) {
		ext = "tar.bz2"
	}

	if err := writeManifestArchive(manifest, repoDir, major, minor, ext, tool, l); err != nil {
		return err
	}
	if err := writeTpmDirectoryArchive(t, repoDir, major, minor, ext, tool, l); err != nil {
		return err
	}
	if err := writePackageManifestsArchive(t, repoDir, major, minor, ext, tool, opts.KeyProvider, l); err != nil {
		return err
	}
	if err := writePublicKey(repoDir, opts.KeyProvider, l); err != nil {
		return err
	}
	if err := writeFilesIndex(t, repoDir, tool, l); err != nil {
		return err
	}
	cleanupObsoleteFormats(t, repoDir, l)

	return writePrIni(t, manifest, repoDir, opts, tool, l)
}

func prune(manifest *tds.RepositoryManifest, t *catalog.Table) {
	live := make(map[string]bool, t.Len())
	for _, p := range t.All() {
		if p.Level == tds.LevelIgnore {
			continue
		}
		live[p.ID] = true
	}
	for _, id := range append([]string{}, manifest.Order...) {
		if !live[id] {
			manifest.Delete(id)
		}
	}
}

func writeManifestArchive(manifest *tds.RepositoryManifest, repoDir string, major, minor int, ext string, tool archiver.Tool, l event.Listener) error {
	tmpDir, err := os.MkdirTemp("", "mpc-mpm-*")
	if err != nil {
		return mpcerr.Io("mkdtemp", "", err)
	}
	defer os.RemoveAll(tmpDir)

	iniPath := filepath.Join(tmpDir, "mpm.ini")
	if err := os.WriteFile(iniPath, MarshalManifest(manifest), 0644); err != nil {
		return mpcerr.Io("write", iniPath, err)
	}

	archivePath := filepath.Join(repoDir, fmt.Sprintf("miktex-zzdb1-%d.%d.%s", major, minor, ext))
	size, err := archiveSingleFile(tool, tmpDir, "mpm.ini", archivePath, ext)
	if err != nil {
		return err
	}
	event.Emit(l, event.ArtifactWritten{Path: archivePath, Size: size})
	return nil
}

func writeTpmDirectoryArchive(t *catalog.Table, repoDir string, major, minor int, ext string, tool archiver.Tool, l event.Listener) error {
	tmpDir, err := os.MkdirTemp("", "mpc-tpm-*")
	if err != nil {
		return mpcerr.Io("mkdtemp", "", err)
	}
	defer os.RemoveAll(tmpDir)

	tpmDir := filepath.Join(tmpDir, "texmf", "tpm", "packages")
	if err := os.MkdirAll(tpmDir, 0755); err != nil {
		return mpcerr.Io("mkdir", tpmDir, err)
	}
	for _, p := range t.All() {
		if p.Level == tds.LevelIgnore {
			continue
		}
		path := filepath.Join(tpmDir, p.ID+".tpm")
		if err := os.WriteFile(path, MarshalTPM(p), 0644); err != nil {
			return mpcerr.Io("write", path, err)
		}
	}

	archivePath := filepath.Join(repoDir, fmt.Sprintf("miktex-zzdb2-%d.%d.%s", major, minor, ext))
	size, err := archiveSingleFile(tool, tmpDir, "texmf", archivePath, ext)
	if err != nil {
		return err
	}
	event.Emit(l, event.ArtifactWritten{Path: archivePath, Size: size})
	return nil
}

func writePackageManifestsArchive(t *catalog.Table, repoDir string, major, minor int, ext string, tool archiver.Tool, kp sign.KeyProvider, l event.Listener) error {
	var b strings.Builder
	ids := make([]string, 0, t.Len())
	for _, p := range t.All() {
		if p.Level == tds.LevelIgnore {
			continue
		}
		ids = append(ids, p.ID)
	}
	for i, id := range ids {
		if i > 0 {
			fmt.Fprintln(&b)
		}
		p := t.Get(id)
		fmt.Fprintf(&b, "[%s]\n", id)
		b.Write(MarshalTPM(p))
	}

	signed, wasSigned, err := sign.SignINI([]byte(b.String()), kp)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "mpc-pm-*")
	if err != nil {
		return mpcerr.Io("mkdtemp", "", err)
	}
	defer os.RemoveAll(tmpDir)

	iniPath := filepath.Join(tmpDir, "package-manifests.ini")
	if err := os.WriteFile(iniPath, signed, 0644); err != nil {
		return mpcerr.Io("write", iniPath, err)
	}

	archivePath := filepath.Join(repoDir, fmt.Sprintf("miktex-zzdb3-%d.%d.%s", major, minor, ext))
	size, err := archiveSingleFile(tool, tmpDir, "package-manifests.ini", archivePath, ext)
	if err != nil {
		return err
	}
	event.Emit(l, event.ArtifactWritten{Path: archivePath, Size: size, Signed: wasSigned})
	return nil
}

// writePublicKey publishes the signing key's public half as public.asc
// alongside the repository, mirroring the teacher's deb repository key
// publication step. A no-op when no key is configured.
func writePublicKey(repoDir string, kp sign.KeyProvider, l event.Listener) error {
	if kp == nil {
		return nil
	}
	if _, ok := kp.PrivateKeyFile(); !ok {
		return nil
	}
	pub, err := sign.ExtractPublicKey(kp, true)
	if err != nil {
		return err
	}
	path := filepath.Join(repoDir, "public.asc")
	if err := os.WriteFile(path, pub, 0644); err != nil {
		return mpcerr.Io("write", path, err)
	}
	event.Emit(l, event.ArtifactWritten{Path: path, Size: int64(len(pub))})
	return nil
}

// archiveSingleFile creates an empty tar, appends member from within
// dir, and compresses it to the requested format, renaming the result
// to finalPath.
func archiveSingleFile(tool archiver.Tool, dir, member, finalPath, ext string) (int64, error) {
	tarPath := finalPath + ".tmp.tar"
	if err := tool.CreateEmptyTar(tarPath); err != nil {
		return 0, err
	}
	if err := tool.AppendDir(tarPath, dir, member); err != nil {
		return 0, err
	}

	var compressed string
	var err error
	if strings.HasSuffix(ext, "bz2") {
		compressed, err = tool.CompressBzip2(tarPath)
	} else {
		compressed, err = tool.CompressLZMA(tarPath)
	}
	if err != nil {
		return 0, err
	}
	if compressed != finalPath {
		if err := os.Rename(compressed, finalPath); err != nil {
			return 0, mpcerr.Io("rename", compressed, err)
		}
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return 0, mpcerr.Io("stat", finalPath, err)
	}
	return info.Size(), nil
}

// writeFilesIndex emits files.csv sorted, then compresses it to
// files.csv.lzma, deleting the uncompressed file (step 5).
func writeFilesIndex(t *catalog.Table, repoDir string, tool archiver.Tool, l event.Listener) error {
	var lines []string
	for _, p := range t.All() {
		if p.Level == tds.LevelIgnore {
			continue
		}
		for _, f := range p.AllFiles() {
			rel := strings.TrimPrefix(f, "texmf/")
			lines = append(lines, rel+";"+p.ID+"\n")
		}
	}
	sort.Strings(lines)

	csvPath := filepath.Join(repoDir, "files.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return mpcerr.Io("create", csvPath, err)
	}
	for _, line := range lines {
		if _, err := f.WriteString(line); err != nil {
			f.Close()
			return mpcerr.Io("write", csvPath, err)
		}
	}
	if err := f.Close(); err != nil {
		return mpcerr.Io("close", csvPath, err)
	}

	if _, err := tool.CompressLZMA(csvPath); err != nil {
		return err
	}
	event.Emit(l, event.ArtifactWritten{Path: csvPath + ".lzma"})
	return nil
}

// cleanupObsoleteFormats deletes a .cab once the same-stem .tar.bz2 or
// .tar.lzma exists, and a .tar.bz2 once the same-stem .tar.lzma exists.
func cleanupObsoleteFormats(t *catalog.Table, repoDir string, l event.Listener) {
	for _, p := range t.All() {
		lzma := filepath.Join(repoDir, p.ID+".tar.lzma")
		bz2 := filepath.Join(repoDir, p.ID+".tar.bz2")
		cab := filepath.Join(repoDir, p.ID+".cab")

		_, lzmaErr := os.Stat(lzma)
		_, bz2Err := os.Stat(bz2)

		if lzmaErr == nil || bz2Err == nil {
			if err := os.Remove(cab); err == nil {
				event.Emit(l, event.ArtifactWritten{Path: cab, Deleted: true})
			}
		}
		if lzmaErr == nil {
			if err := os.Remove(bz2); err == nil {
				event.Emit(l, event.ArtifactWritten{Path: bz2, Deleted: true})
			}
		}
	}
}

// writePrIni writes pr.ini twice: first with a placeholder lstdigest,
// then recomputed over the final directory listing (step 7). The
// second write is load-bearing: the first write itself changes the
// listing it is supposed to digest.
func writePrIni(t *catalog.Table, manifest *tds.RepositoryManifest, repoDir string, opts WriteOptions, tool archiver.Tool, l event.Listener) error {
	prPath := filepath.Join(repoDir, "pr.ini")

	info := tds.RepositoryInfo{
		Date:     opts.Now,
		Version:  (opts.Now - tds.Epoch2000) / 86400,
		NumPkg:   countLive(t),
		LastUpd:  lastUpdated(t),
		RelState: opts.RelState,
	}
	manifest.Repository = info

	if err := writePrFile(prPath, info, opts.KeyProvider); err != nil {
		return err
	}

	digest, err := computeLstDigest(repoDir)
	if err != nil {
		return err
	}
	info.LstDigest = digest
	manifest.Repository = info

	if err := writePrFile(prPath, info, opts.KeyProvider); err != nil {
		return err
	}

	st, err := os.Stat(prPath)
	if err != nil {
		return mpcerr.Io("stat", prPath, err)
	}
	event.Emit(l, event.ArtifactWritten{Path: prPath, Size: st.Size()})
	return nil
}

func writePrFile(path string, info tds.RepositoryInfo, kp sign.KeyProvider) error {
	var b strings.Builder
	fmt.Fprintln(&b, "[repository]")
	fields := repositoryToFields(info)
	for _, k := range repositoryKeyOrder {
		v, ok := fields[k]
		if !ok || v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}

	content, _, err := sign.SignINI([]byte(b.String()), kp)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return mpcerr.Io("write", path, err)
	}
	return nil
}

func countLive(t *catalog.Table) int {
	n := 0
	for _, p := range t.All() {
		if p.Level != tds.LevelIgnore {
			n++
		}
	}
	return n
}

// lastUpdated returns at most 20 ids in strictly non-increasing
// TimePackaged order (invariant 7). Ignored packages are filtered out
// before capping at 20, so a live package never falls off the list to
// make room for one excluded from every other derived artifact.
func lastUpdated(t *catalog.Table) []string {
	live := make([]*tds.PackageInfo, 0, t.Len())
	for _, p := range t.All() {
		if p.Level == tds.LevelIgnore {
			continue
		}
		live = append(live, p)
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].TimePackaged > live[j].TimePackaged
	})
	n := len(live)
	if n > 20 {
		n = 20
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, live[i].ID)
	}
	return out
}

// computeLstDigest hashes the sorted "<name>;<size>\n" listing of every
// regular file currently present in repoDir (invariant 6).
func computeLstDigest(repoDir string) (tds.Digest, error) {
	entries, err := os.ReadDir(repoDir)
	if err != nil {
		return tds.Digest{}, mpcerr.Io("readdir", repoDir, err)
	}
	var lines []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return tds.Digest{}, mpcerr.Io("stat", e.Name(), err)
		}
		lines = append(lines, e.Name()+";"+strconv.FormatInt(info.Size(), 10)+"\n")
	}
	sort.Strings(lines)

	h := md5.New()
	for _, line := range lines {
		h.Write([]byte(line))
	}
	var d tds.Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Now returns the current time as Unix seconds.
func Now() int64 { return time.Now().Unix() }
