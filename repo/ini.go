// Package repo implements the repository reader, the archive
// reconciler, and the database writer: everything that turns a
// catalog.Table into the on-disk repository directory, and everything
// that reads an existing repository directory back into a manifest.
package repo

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/miktex/mpc/tds"
)

// parseSectionedINI parses an INI document with [section] headers into
// an ordered list of section names and a map of their flat key=value
// fields. The unnamed leading section (before the first header, if any)
// is recorded under the empty string.
func parseSectionedINI(r io.Reader) (order []string, sections map[string]map[string]string, err error) {
	sections = make(map[string]map[string]string)
	cur := ""
	sections[cur] = make(map[string]string)
	seen := map[string]bool{cur: true}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			cur = line[1 : len(line)-1]
			if !seen[cur] {
				seen[cur] = true
				order = append(order, cur)
				sections[cur] = make(map[string]string)
			}
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		sections[cur][strings.ToLower(key)] = val
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return order, sections, nil
}

// writeSectionedINI writes sections back out in the given order, one
// blank line between sections, keys in the order given by keyOrder(name).
func writeSectionedINI(w io.Writer, order []string, sections map[string]map[string]string, keyOrder func(section string) []string) error {
	for i, name := range order {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "[%s]\n", name); err != nil {
			return err
		}
		fields := sections[name]
		for _, k := range keyOrder(name) {
			v, ok := fields[k]
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(w, "%s=%s\n", k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// manifestEntryKeyOrder is the field write order for a per-package
// mpm.ini section.
var manifestEntryKeyOrder = []string{
	"level", "md5", "timepackaged", "version",
	"targetsystem", "mintargetsystemversion",
	"cabsize", "cabmd5", "type",
}

var repositoryKeyOrder = []string{
	"date", "version", "lstdigest", "numpkg", "lastupd", "relstate",
}

func entryToFields(e *tds.ManifestEntry) map[string]string {
	f := map[string]string{
		"level":        string(e.Level),
		"md5":          e.MD5.String(),
		"timepackaged": strconv.FormatInt(e.TimePackaged, 10),
	}
	if e.Version != "" {
		f["version"] = e.Version
	}
	if e.TargetSystem != "" {
		f["targetsystem"] = e.TargetSystem
	}
	if e.MinTargetSystemVersion != "" {
		f["mintargetsystemversion"] = e.MinTargetSystemVersion
	}
	if e.CabSize != 0 {
		f["cabsize"] = strconv.FormatInt(e.CabSize, 10)
		f["cabmd5"] = e.CabMD5.String()
	}
	if e.Type != tds.ArchiveNone {
		f["type"] = e.Type.String()
	}
	return f
}

func fieldsToEntry(f map[string]string) *tds.ManifestEntry {
	e := &tds.ManifestEntry{}
	if v := f["level"]; v != "" {
		e.Level = tds.Level(v[0])
	}
	if v := f["md5"]; v != "" {
		if d, ok := tds.ParseDigest(v); ok {
			e.MD5 = d
		}
	}
	if v := f["timepackaged"]; v != "" {
		e.TimePackaged, _ = strconv.ParseInt(v, 10, 64)
	}
	e.Version = f["version"]
	e.TargetSystem = f["targetsystem"]
	e.MinTargetSystemVersion = f["mintargetsystemversion"]
	if v := f["cabsize"]; v != "" {
		e.CabSize, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := f["cabmd5"]; v != "" {
		if d, ok := tds.ParseDigest(v); ok {
			e.CabMD5 = d
		}
	}
	if v := f["type"]; v != "" {
		if t, ok := tds.ParseArchiveFileType(v); ok {
			e.Type = t
		}
	}
	return e
}

// MarshalManifest serializes m as the mpm.ini document: one section per
// package id in m.Order, then a trailing [repository] section.
func MarshalManifest(m *tds.RepositoryManifest) []byte {
	var b strings.Builder
	order := append([]string{}, m.Order...)
	order = append(order, "repository")
	sections := make(map[string]map[string]string, len(order))
	for _, id := range m.Order {
		sections[id] = entryToFields(m.Packages[id])
	}
	sections["repository"] = repositoryToFields(m.Repository)

	writeSectionedINI(&b, order, sections, func(name string) []string {
		if name == "repository" {
			return repositoryKeyOrder
		}
		return manifestEntryKeyOrder
	})
	return []byte(b.String())
}

// UnmarshalManifest parses an mpm.ini document.
func UnmarshalManifest(data []byte) (*tds.RepositoryManifest, error) {
	order, sections, err := parseSectionedINI(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	m := tds.NewRepositoryManifest()
	for _, name := range order {
		if name == "repository" {
			m.Repository = fieldsToRepository(sections[name])
			continue
		}
		m.Put(name, fieldsToEntry(sections[name]))
	}
	return m, nil
}

func repositoryToFields(r tds.RepositoryInfo) map[string]string {
	f := map[string]string{
		"date":      strconv.FormatInt(r.Date, 10),
		"version":   strconv.FormatInt(r.Version, 10),
		"lstdigest": r.LstDigest.String(),
		"numpkg":    strconv.Itoa(r.NumPkg),
		"lastupd":   strings.Join(r.LastUpd, ","),
	}
	if r.RelState != "" {
		f["relstate"] = r.RelState
	}
	return f
}

func fieldsToRepository(f map[string]string) tds.RepositoryInfo {
	r := tds.RepositoryInfo{}
	r.Date, _ = strconv.ParseInt(f["date"], 10, 64)
	r.Version, _ = strconv.ParseInt(f["version"], 10, 64)
	if d, ok := tds.ParseDigest(f["lstdigest"]); ok {
		r.LstDigest = d
	}
	r.NumPkg, _ = strconv.Atoi(f["numpkg"])
	if v := f["lastupd"]; v != "" {
		r.LastUpd = strings.Split(v, ",")
	}
	r.RelState = f["relstate"]
	return r
}
