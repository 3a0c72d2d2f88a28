package stage

import (
	"bufio"
	"io"
	"strings"
)

// parseFlatINI reads a flat key=value file (no sections) into an
// ordered multimap. Keys that carry a ';'-suffix uniquifier (the
// MiKTeX convention for repeating a key within an INI dialect that
// otherwise forbids duplicate keys, e.g. "requires;1=bar") are folded
// back to their base key, so "requires;1=bar" and "requires;2=baz"
// both contribute to the "requires" key. Blank lines and lines whose
// first non-space byte is ';' or '#' are comments.
func parseFlatINI(r io.Reader) (map[string][]string, error) {
	out := make(map[string][]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		eq := strings.IndexByte(trimmed, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:eq])
		val := strings.TrimSpace(trimmed[eq+1:])
		if semi := strings.IndexByte(key, ';'); semi >= 0 {
			key = key[:semi]
		}
		key = strings.ToLower(key)
		out[key] = append(out[key], val)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// first returns the last value recorded for key (later lines win, the
// same "last wins for scalar fields" rule the INI parser in the
// teacher follows for single-valued control fields), or "" if absent.
func first(m map[string][]string, key string) string {
	vs := m[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}
