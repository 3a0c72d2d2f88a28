package tds

import "strings"

// DOSNormalize converts rel to the DOS-style comparison form used by
// the TDS digest and by package file-path comparisons: forward slashes become
// backslashes, and ASCII letters are case-folded to lowercase. Non-ASCII
// bytes are left untouched.
func DOSNormalize(rel string) string {
	b := make([]byte, len(rel))
	for i := 0; i < len(rel); i++ {
		c := rel[i]
		switch {
		case c == '/':
			b[i] = '\\'
		case c >= 'A' && c <= 'Z':
			b[i] = c - 'A' + 'a'
		default:
			b[i] = c
		}
	}
	return string(b)
}

// StartsWithTexmf reports whether rel begins with "texmf/<sub>/".
func StartsWithTexmf(rel, sub string) bool {
	prefix := "texmf/" + sub + "/"
	return strings.HasPrefix(rel, prefix)
}

// Classify assigns rel to "doc", "source", or "run" per the TDS
// file-classification rule (spec.md §3/§4.2): a file is doc if its
// path starts with texmf/doc/, source if it starts with texmf/source/,
// run otherwise.
func Classify(rel string) string {
	switch {
	case StartsWithTexmf(rel, "doc"):
		return "doc"
	case StartsWithTexmf(rel, "source"):
		return "source"
	default:
		return "run"
	}
}
