// Package tds implements the path and digest primitives and the core
// data model of the repository builder: PackageInfo, PackageSpec, and
// RepositoryManifest. See the invariants in SPEC_FULL.md §3: a
// package's Digest is always the TDS digest of its non-
// manifest files, RequiredBy is always the transpose of
// RequiredPackages, and RunFiles/DocFiles/SourceFiles always partition
// a package's files.
package tds

// Digest is a 128-bit content digest, either a per-file digest or a
// composite TDS digest over a package's file set.
type Digest [16]byte

// String renders the digest as lowercase hex, the form used in
// package.ini's md5 field and the manifest's MD5 field.
func (d Digest) String() string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 32)
	for i, b := range d {
		buf[i*2] = hexdigits[b>>4]
		buf[i*2+1] = hexdigits[b&0xf]
	}
	return string(buf)
}

// IsZero reports whether d has never been set.
func (d Digest) IsZero() bool { return d == Digest{} }

// ParseDigest parses a 32-character hex string into a Digest.
func ParseDigest(s string) (Digest, bool) {
	var d Digest
	if len(s) != 32 {
		return d, false
	}
	for i := 0; i < 16; i++ {
		hi, ok1 := hexVal(s[i*2])
		lo, ok2 := hexVal(s[i*2+1])
		if !ok1 || !ok2 {
			return Digest{}, false
		}
		d[i] = hi<<4 | lo
	}
	return d, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// Level is the single-character distribution-set tag on a package.
type Level byte

const (
	LevelSmall  Level = 'S'
	LevelMedium Level = 'M'
	LevelLarge  Level = 'L'
	LevelTotal  Level = 'T'
	LevelIgnore Level = '-'
)

// ArchiveFileType names the on-disk archive format for a package.
type ArchiveFileType int

const (
	ArchiveNone ArchiveFileType = iota
	ArchiveMSCab
	ArchiveTarBzip2
	ArchiveTarLzma
	ArchiveTar
	ArchiveZip
)

func (t ArchiveFileType) String() string {
	switch t {
	case ArchiveMSCab:
		return "MSCab"
	case ArchiveTarBzip2:
		return "TarBzip2"
	case ArchiveTarLzma:
		return "TarLzma"
	case ArchiveTar:
		return "Tar"
	case ArchiveZip:
		return "Zip"
	default:
		return "unknown"
	}
}

func (t ArchiveFileType) Ext() string {
	switch t {
	case ArchiveMSCab:
		return "cab"
	case ArchiveTarBzip2:
		return "tar.bz2"
	case ArchiveTarLzma:
		return "tar.lzma"
	case ArchiveTar:
		return "tar"
	case ArchiveZip:
		return "zip"
	default:
		return ""
	}
}

// ParseArchiveFileType parses the second token of a package-list line.
func ParseArchiveFileType(s string) (ArchiveFileType, bool) {
	switch s {
	case "MSCab":
		return ArchiveMSCab, true
	case "TarBzip2":
		return ArchiveTarBzip2, true
	case "TarLzma":
		return ArchiveTarLzma, true
	case "Tar":
		return ArchiveTar, true
	case "Zip":
		return ArchiveZip, true
	case "":
		return ArchiveNone, true
	default:
		return ArchiveNone, false
	}
}

// PackageSpec is one entry from a package-list file (§4.3).
type PackageSpec struct {
	ID              string
	Level           Level
	ArchiveFileType ArchiveFileType
}

// PackageInfo is the central entity of the builder: everything known
// about one package, whether it arrived from a staging directory or
// from the previous repository manifest.
type PackageInfo struct {
	ID                     string
	DisplayName            string
	Title                  string
	Creator                string
	Version                string
	TargetSystem           string
	MinTargetSystemVersion string
	CTANPath               string
	CopyrightOwner         string
	CopyrightYear          string
	LicenseType            string
	Description            string

	RequiredPackages []string
	RequiredBy       []string

	RunFiles    []string
	DocFiles    []string
	SourceFiles []string

	SizeRunFiles    int64
	SizeDocFiles    int64
	SizeSourceFiles int64

	Digest Digest

	ArchiveFileDigest Digest
	ArchiveFileSize   int64
	ArchiveFileType   ArchiveFileType
	TimePackaged      int64

	Level Level

	// Path is the staging directory this package was read from, or
	// empty for a package that only exists in the repository manifest.
	Path string
}

// AllFiles returns the package's run, doc, and source files
// concatenated, in that order, for iteration convenience.
func (p *PackageInfo) AllFiles() []string {
	out := make([]string, 0, len(p.RunFiles)+len(p.DocFiles)+len(p.SourceFiles))
	out = append(out, p.RunFiles...)
	out = append(out, p.DocFiles...)
	out = append(out, p.SourceFiles...)
	return out
}

// IsPureContainer reports whether p has no files at all, or its only
// file is its own .tpm manifest — such packages are excluded from
// archive creation (Glossary: "Pure container package").
func (p *PackageInfo) IsPureContainer() bool {
	all := p.AllFiles()
	if len(all) == 0 {
		return true
	}
	if len(all) == 1 && IsManifestFile(all[0], p.ID) {
		return true
	}
	return false
}

// IsManifestFile reports whether rel is id's own package-manifest file
// (texmf/tpm/packages/<id>.tpm). Package-manifest files are excluded
// from a package's TDS digest (§3) and from its classified file lists —
// they are generated artifacts, not package content.
func IsManifestFile(rel, id string) bool {
	want := "texmf/tpm/packages/" + id + ".tpm"
	return DOSNormalize(rel) == DOSNormalize(want)
}

// RepositoryManifest is the ordered mpm.ini document: per-package
// sections keyed by id, plus one [repository] section.
type RepositoryManifest struct {
	// Order is the insertion order of package ids, preserved so that
	// re-serialization is stable and diffs are small.
	Order    []string
	Packages map[string]*ManifestEntry

	Repository RepositoryInfo
}

// NewRepositoryManifest returns an empty, ready-to-use manifest.
func NewRepositoryManifest() *RepositoryManifest {
	return &RepositoryManifest{Packages: make(map[string]*ManifestEntry)}
}

// Put inserts or replaces the entry for id, recording insertion order
// only on first insert.
func (m *RepositoryManifest) Put(id string, e *ManifestEntry) {
	if _, ok := m.Packages[id]; !ok {
		m.Order = append(m.Order, id)
	}
	m.Packages[id] = e
}

// Delete removes id from both the map and the order slice.
func (m *RepositoryManifest) Delete(id string) {
	if _, ok := m.Packages[id]; !ok {
		return
	}
	delete(m.Packages, id)
	out := m.Order[:0]
	for _, o := range m.Order {
		if o != id {
			out = append(out, o)
		}
	}
	m.Order = out
}

// ManifestEntry is the per-package section of mpm.ini.
type ManifestEntry struct {
	Level                  Level
	MD5                    Digest
	TimePackaged           int64
	Version                string
	TargetSystem           string
	MinTargetSystemVersion string
	CabSize                int64
	CabMD5                 Digest
	Type                   ArchiveFileType
}

// RepositoryInfo is the [repository] section of mpm.ini / the content
// of pr.ini.
type RepositoryInfo struct {
	Date      int64
	Version   int64 // days since 2000-01-01 00:00:00 local
	LstDigest Digest
	NumPkg    int
	LastUpd   []string // at most 20 ids, non-increasing TimePackaged
	RelState  string   // "stable" or "next"
}

// Epoch2000 is 2000-01-01 00:00:00 local time at UTC+1 (that is,
// 1999-12-31 23:00:00 UTC) expressed as Unix seconds, the epoch the
// "version" day-counter field is measured from.
const Epoch2000 = 946681200
