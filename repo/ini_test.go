package repo

import (
	"testing"

	"github.com/miktex/mpc/tds"
)

func TestMarshalUnmarshalManifestRoundTrip(t *testing.T) {
	m := tds.NewRepositoryManifest()
	m.Put("foo", &tds.ManifestEntry{
		Level:        tds.LevelTotal,
		MD5:          tds.Digest{1, 2, 3},
		TimePackaged: 1700000000,
		Version:      "1.0",
	})
	m.Put("bar", &tds.ManifestEntry{Level: tds.LevelSmall, MD5: tds.Digest{4, 5}})
	m.Repository = tds.RepositoryInfo{
		Date:     1700000000,
		Version:  8683,
		NumPkg:   2,
		LastUpd:  []string{"foo", "bar"},
		RelState: "stable",
	}

	data := MarshalManifest(m)
	got, err := UnmarshalManifest(data)
	if err != nil {
		t.Fatalf("UnmarshalManifest failed: %v", err)
	}

	if len(got.Order) != 2 || got.Order[0] != "foo" || got.Order[1] != "bar" {
		t.Errorf("Order = %v", got.Order)
	}
	fe := got.Packages["foo"]
	if fe.Level != tds.LevelTotal || fe.MD5 != (tds.Digest{1, 2, 3}) || fe.TimePackaged != 1700000000 || fe.Version != "1.0" {
		t.Errorf("foo entry = %+v", fe)
	}
	if got.Repository.NumPkg != 2 || got.Repository.RelState != "stable" {
		t.Errorf("repository section = %+v", got.Repository)
	}
}

func TestMarshalParseTPMRoundTrip(t *testing.T) {
	p := &tds.PackageInfo{
		ID:               "foo",
		DisplayName:      "Foo",
		Digest:           tds.Digest{9, 9, 9},
		TimePackaged:     123,
		RequiredPackages: []string{"bar", "baz"},
		RunFiles:         []string{"texmf/tex/x.sty"},
		DocFiles:         []string{"texmf/doc/x.pdf"},
	}

	data := MarshalTPM(p)
	got, err := ParseTPM(data)
	if err != nil {
		t.Fatalf("ParseTPM failed: %v", err)
	}
	if got.ID != "foo" || got.DisplayName != "Foo" || got.Digest != p.Digest {
		t.Errorf("got = %+v", got)
	}
	if len(got.RequiredPackages) != 2 || got.RequiredPackages[0] != "bar" {
		t.Errorf("RequiredPackages = %v", got.RequiredPackages)
	}
	if len(got.RunFiles) != 1 || len(got.DocFiles) != 1 {
		t.Errorf("file lists = %v / %v", got.RunFiles, got.DocFiles)
	}
}
