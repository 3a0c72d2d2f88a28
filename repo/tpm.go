package repo

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/miktex/mpc/tds"
)

// MarshalTPM serializes a package manifest (.tpm) file: the same flat
// key=value, ';'-uniquified-multivalue convention as package.ini (§4.2),
// plus the derived fields a .tpm carries that package.ini does not:
// md5, timepackaged, and the three classified file lists.
func MarshalTPM(p *tds.PackageInfo) []byte {
	var b strings.Builder
	write := func(key, val string) {
		if val == "" {
			return
		}
		fmt.Fprintf(&b, "%s=%s\n", key, val)
	}
	writeMulti := func(key string, vals []string) {
		for i, v := range vals {
			fmt.Fprintf(&b, "%s;%d=%s\n", key, i+1, v)
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
	write("timepackaged", strconv.FormatInt(p.TimePackaged, 10))
	writeMulti("requires", p.RequiredPackages)
	writeMulti("runfiles", p.RunFiles)
	writeMulti("docfiles", p.DocFiles)
	writeMulti("sourcefiles", p.SourceFiles)
	return []byte(b.String())
}

// ParseTPM parses a .tpm file back into a PackageInfo. File sizes are
// not recorded in a .tpm (they're recomputed, not stored), so
// SizeRunFiles/SizeDocFiles/SizeSourceFiles are left zero; callers that
// need them recompute from the filesystem (the disassembler does).
func ParseTPM(data []byte) (*tds.PackageInfo, error) {
	fields := make(map[string][]string)
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if semi := strings.IndexByte(key, ';'); semi >= 0 {
			key = key[:semi]
		}
		key = strings.ToLower(key)
		fields[key] = append(fields[key], val)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	last := func(k string) string {
		v := fields[k]
		if len(v) == 0 {
			return ""
		}
		return v[len(v)-1]
	}

	p := &tds.PackageInfo{
		ID:                     last("id"),
		DisplayName:            last("name"),
		Title:                  last("title"),
		Creator:                last("creator"),
		Version:                last("version"),
		TargetSystem:           last("targetsystem"),
		MinTargetSystemVersion: last("mintargetsystemversion"),
		CTANPath:               last("ctanpath"),
		CopyrightOwner:         last("copyrightowner"),
		CopyrightYear:          last("copyrightyear"),
		LicenseType:            last("licensetype"),
		RequiredPackages:       fields["requires"],
		RunFiles:               fields["runfiles"],
		DocFiles:               fields["docfiles"],
		SourceFiles:            fields["sourcefiles"],
	}
	if d, ok := tds.ParseDigest(last("md5")); ok {
		p.Digest = d
	}
	if tp := last("timepackaged"); tp != "" {
		p.TimePackaged, _ = strconv.ParseInt(tp, 10, 64)
	}
	return p, nil
}
