// Package policy loads the categorizer's umbrella-assignment rules
// from an optional declarative file, falling back to the two built-in
// rules when none is given. This externalizes the same two heuristics
// the core specifies, without changing their default behavior.
package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/miktex/mpc/mpcerr"
)

// Rule attaches any package matching CTANPrefix (and, if FontDirs is
// non-empty, having at least one run file under one of those
// texmf-relative directories) to Umbrella, provided Umbrella itself
// exists in the table.
type Rule struct {
	CTANPrefix string   `json:"ctan_prefix" yaml:"ctan_prefix"`
	FontDirs   []string `json:"font_dirs,omitempty" yaml:"font_dirs,omitempty"`
	Umbrella   string   `json:"umbrella" yaml:"umbrella"`
}

// Policy is an ordered list of umbrella rules; the first matching rule
// wins for a given orphan package.
type Policy struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// Default returns the two built-in rules from §4.5.
func Default() Policy {
	return Policy{Rules: []Rule{
		{
			CTANPrefix: "/macros/latex/contrib/",
			Umbrella:   "_miktex-latex-packages",
		},
		{
			CTANPrefix: "/fonts/",
			FontDirs:   []string{"texmf/fonts/type1/", "texmf/fonts/truetype/"},
			Umbrella:   "_miktex-fonts-type1",
		},
	}}
}

// Load reads a policy file (YAML or JSON, chosen by extension) from
// path. A ".yaml"/".yml" extension decodes with go.yaml.in/yaml/v3; any
// other extension (conventionally ".json") decodes with encoding/json.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, mpcerr.Io("read", path, err)
	}

	var p Policy
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Policy{}, mpcerr.InvalidManifest(path, "invalid YAML policy", err)
		}
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			return Policy{}, mpcerr.InvalidManifest(path, "invalid JSON policy", err)
		}
	}
	if len(p.Rules) == 0 {
		return Policy{}, mpcerr.InvalidManifest(path, "policy file defines no rules", nil)
	}
	return p, nil
}
