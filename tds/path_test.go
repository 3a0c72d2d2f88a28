package tds

import "testing"

func TestDOSNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"texmf/tex/latex/foo/foo.sty", `texmf\tex\latex\foo\foo.sty`},
		{"Texmf/Doc/Foo.PDF", `texmf\doc\foo.pdf`},
		{"texmf/café/x", `texmf\café\x`},
	}
	for _, tt := range tests {
		if got := DOSNormalize(tt.in); got != tt.want {
			t.Errorf("DOSNormalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStartsWithTexmf(t *testing.T) {
	if !StartsWithTexmf("texmf/doc/foo.pdf", "doc") {
		t.Error("expected doc match")
	}
	if StartsWithTexmf("texmf/documentation/foo", "doc") {
		t.Error("should not match texmf/documentation")
	}
	if StartsWithTexmf("texmf/tex/foo.sty", "doc") {
		t.Error("should not match run file")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"texmf/doc/foo.pdf", "doc"},
		{"texmf/source/foo.dtx", "source"},
		{"texmf/tex/latex/foo/foo.sty", "run"},
	}
	for _, tt := range tests {
		if got := Classify(tt.path); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
