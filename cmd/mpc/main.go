// Command mpc is the repository-assembly CLI: a thin front-end over
// the core pipeline (package tds/stage/catalog/repo/tdsbuild/
// disassemble). It parses long-option flags, dispatches to exactly one
// of the four mutually exclusive modes, and prints progress when
// --verbose is given.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/miktex/mpc/archiver"
	"github.com/miktex/mpc/catalog"
	"github.com/miktex/mpc/disassemble"
	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/policy"
	"github.com/miktex/mpc/repo"
	"github.com/miktex/mpc/sign"
	"github.com/miktex/mpc/stage"
	"github.com/miktex/mpc/tds"
	"github.com/miktex/mpc/tdsbuild"
)

// buildTimeMiktexSeries is the highest --miktex-series this build
// supports; --miktex-series beyond it is a ConfigurationError (§S7).
const buildTimeMiktexSeries = "2.9"

// arrayFlags collects repeated occurrences of a flag into a slice.
type arrayFlags []string

func (a *arrayFlags) String() string { return strings.Join(*a, ", ") }
func (a *arrayFlags) Set(v string) error {
	*a = append(*a, v)
	return nil
}

const version = "0.1.0"

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("mpc: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("mpc", flag.ContinueOnError)

	buildTDS := fs.Bool("build-tds", false, "TDS assembly mode")
	createPackage := fs.Bool("create-package", false, "single-package refresh mode")
	disassemblePackage := fs.Bool("disassemble-package", false, "disassemble mode")
	updateRepository := fs.Bool("update-repository", false, "full repository rebuild mode")
	showVersion := fs.Bool("version", false, "print version and exit")
	verbose := fs.Bool("verbose", false, "print progress events to stderr")

	defaultLevel := fs.String("default-level", "T", "default package level (S|M|L|T|-)")
	miktexSeries := fs.String("miktex-series", buildTimeMiktexSeries, "MAJOR.MINOR series")
	packageList := fs.String("package-list", "", "package-list file")
	passphraseFile := fs.String("passphrase-file", "", "private-key passphrase file")
	privateKeyFile := fs.String("private-key-file", "", "private key file")
	releaseState := fs.String("release-state", "stable", "stable|next")
	var stagingRoots arrayFlags
	fs.Var(&stagingRoots, "staging-roots", "staging root directories (repeatable, or joined by "+string(os.PathListSeparator)+")")
	texmfPrefix := fs.String("texmf-prefix", "texmf", "TDS prefix")
	timePackaged := fs.Int64("time-packaged", 0, "override time-packaged (unix seconds)")
	tpmDir := fs.String("tpm-dir", "", "package-manifest directory override")
	repository := fs.String("repository", "", "repository directory")
	stagingDir := fs.String("staging-dir", "", "staging directory")
	texmfParent := fs.String("texmf-parent", "", "texmf parent directory")
	tpmFile := fs.String("tpm-file", "", "package-manifest file (for --disassemble-package)")
	categorizerPolicy := fs.String("categorizer-policy", "", "optional YAML/JSON categorizer policy file")
	prune := fs.Bool("prune", false, "prune manifest entries no longer present")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Println("mpc", version)
		return nil
	}

	var l event.Listener
	if *verbose {
		l = func(e fmt.Stringer) { fmt.Fprintln(os.Stderr, e.String()) }
	}

	modes := 0
	for _, m := range []bool{*buildTDS, *createPackage, *disassemblePackage, *updateRepository} {
		if m {
			modes++
		}
	}
	if modes != 1 {
		return mpcerr.Configuration("exactly one of --build-tds, --create-package, --disassemble-package, --update-repository is required", nil)
	}

	if err := archiver.CheckXZ(); err != nil {
		return err
	}

	major, minor, err := parseSeries(*miktexSeries)
	if err != nil {
		return err
	}
	buildMajor, buildMinor, _ := parseSeries(buildTimeMiktexSeries)
	if major > buildMajor || (major == buildMajor && minor > buildMinor) {
		return mpcerr.Configuration(fmt.Sprintf("--miktex-series %s exceeds build-time series %s", *miktexSeries, buildTimeMiktexSeries), nil)
	}

	level, ok := parseLevel(*defaultLevel)
	if !ok {
		return mpcerr.Configuration("invalid --default-level", nil)
	}

	now := time.Now().Unix()
	if *timePackaged != 0 {
		now = *timePackaged
	}

	kp := sign.FileKeyProvider{KeyPath: *privateKeyFile, PassphrasePath: *passphraseFile}

	pol := policy.Default()
	if *categorizerPolicy != "" {
		p, err := policy.Load(*categorizerPolicy)
		if err != nil {
			return err
		}
		pol = p
	}

	switch {
	case *buildTDS:
		roots, err := splitRoots(stagingRoots)
		if err != nil {
			return err
		}
		if len(roots) == 0 || *texmfParent == "" {
			return mpcerr.Configuration("--build-tds requires --staging-roots and --texmf-parent", nil)
		}
		return runBuildTDS(roots, *texmfParent, *tpmDir, *packageList, level, pol, l)

	case *createPackage:
		if *repository == "" {
			return mpcerr.Configuration("--create-package requires --repository", nil)
		}
		dir := *stagingDir
		if dir == "" {
			dir, err = os.Getwd()
			if err != nil {
				return mpcerr.Io("getwd", "", err)
			}
		}
		return runCreatePackage(dir, *repository, major, minor, level, now, kp, *releaseState, *prune, l)

	case *disassemblePackage:
		if *tpmFile == "" || *texmfParent == "" || *stagingDir == "" {
			return mpcerr.Configuration("--disassemble-package requires --tpm-file, --texmf-parent, --staging-dir", nil)
		}
		return disassemble.Disassemble(*tpmFile, *texmfParent, *stagingDir, l)

	case *updateRepository:
		roots, err := splitRoots(stagingRoots)
		if err != nil {
			return err
		}
		if len(roots) == 0 || *repository == "" {
			return mpcerr.Configuration("--update-repository requires --staging-roots and --repository", nil)
		}
		return runUpdateRepository(roots, *repository, *packageList, level, major, minor, now, kp, *releaseState, *prune, pol, l)
	}

	return nil
}

func runBuildTDS(roots []string, texmfParent, tpmDir, packageList string, defaultLevel tds.Level, pol policy.Policy, l event.Listener) error {
	t, err := catalog.BuildFromStagingRoots(roots, l)
	if err != nil {
		return err
	}
	if err := applyDigestsAndLevels(t, packageList, defaultLevel, l); err != nil {
		return err
	}
	catalog.Categorize(t, pol, l)

	return tdsbuild.Build(t, tdsbuild.Options{TexmfParent: texmfParent, TpmDir: tpmDir}, l)
}

func runCreatePackage(stagingDir, repository string, major, minor int, defaultLevel tds.Level, now int64, kp sign.KeyProvider, relState string, prune bool, l event.Listener) error {
	p, err := stage.ReadStagingDir(stagingDir, l)
	if err != nil {
		return err
	}
	p.Level = defaultLevel
	if err := computeDigest(p); err != nil {
		return err
	}

	tool := archiver.Exec{}
	manifest, previous, err := repo.ReadRepository(repository, tool)
	if err != nil {
		return err
	}

	t := catalog.NewTable()
	for _, old := range previous.All() {
		t.Add(old, l)
	}
	t.Put(p)

	if _, err := repo.Reconcile(p, manifest, repository, tool, now, l); err != nil {
		return err
	}

	opts := repo.WriteOptions{MiktexMajor: major, MiktexMinor: minor, RelState: relState, KeyProvider: kp, Now: now, Prune: prune}
	return repo.WriteDatabase(t, manifest, repository, tool, opts, l)
}

func runUpdateRepository(roots []string, repository, packageList string, defaultLevel tds.Level, major, minor int, now int64, kp sign.KeyProvider, relState string, prune bool, pol policy.Policy, l event.Listener) error {
	t, err := catalog.BuildFromStagingRoots(roots, l)
	if err != nil {
		return err
	}
	if err := applyDigestsAndLevels(t, packageList, defaultLevel, l); err != nil {
		return err
	}
	catalog.Categorize(t, pol, l)

	tool := archiver.Exec{}
	manifest, _, err := repo.ReadRepository(repository, tool)
	if err != nil {
		return err
	}

	for _, p := range t.All() {
		if p.Level == tds.LevelIgnore || p.IsPureContainer() {
			continue
		}
		if _, err := repo.Reconcile(p, manifest, repository, tool, now, l); err != nil {
			return err
		}
	}

	opts := repo.WriteOptions{MiktexMajor: major, MiktexMinor: minor, RelState: relState, KeyProvider: kp, Now: now, Prune: prune}
	return repo.WriteDatabase(t, manifest, repository, tool, opts, l)
}

// applyDigestsAndLevels computes each package's TDS digest from its
// classified files (skipping any md5 already read from package.ini)
// and applies the package-list's per-package level/archive-type
// overrides, defaulting to defaultLevel when no list is given or a
// package is absent from it.
func applyDigestsAndLevels(t *catalog.Table, packageList string, defaultLevel tds.Level, l event.Listener) error {
	var specs map[string]tds.PackageSpec
	if packageList != "" {
		s, err := stage.ReadPackageList(packageList, l)
		if err != nil {
			return err
		}
		specs = s
	}

	for _, p := range t.All() {
		if err := computeDigest(p); err != nil {
			return err
		}
		p.Level = defaultLevel
		if spec, ok := specs[p.ID]; ok {
			p.Level = spec.Level
			p.ArchiveFileType = spec.ArchiveFileType
		}
	}
	return nil
}

func computeDigest(p *tds.PackageInfo) error {
	if !p.Digest.IsZero() {
		return nil
	}
	digests := make(map[string]tds.Digest, len(p.AllFiles()))
	for _, rel := range p.AllFiles() {
		if tds.IsManifestFile(rel, p.ID) {
			continue
		}
		d, err := tds.FileDigest(filepath.Join(p.Path, "Files", filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		digests[rel] = d
	}
	p.Digest = tds.DigestTree(digests)
	return nil
}

func splitRoots(flagged arrayFlags) ([]string, error) {
	var out []string
	for _, f := range flagged {
		out = append(out, strings.Split(f, string(os.PathListSeparator))...)
	}
	return out, nil
}

func parseLevel(s string) (tds.Level, bool) {
	if len(s) != 1 {
		return 0, false
	}
	switch s[0] {
	case 'S', 'M', 'L', 'T', '-':
		return tds.Level(s[0]), true
	default:
		return 0, false
	}
}

func parseSeries(s string) (major, minor int, err error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return 0, 0, mpcerr.Configuration("invalid series, expected MAJOR.MINOR", nil)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, mpcerr.Configuration("invalid series major", err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, mpcerr.Configuration("invalid series minor", err)
	}
	return major, minor, nil
}
