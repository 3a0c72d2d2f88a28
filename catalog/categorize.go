package catalog

import (
	"fmt"
	"strings"

	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/policy"
	"github.com/miktex/mpc/tds"
)

// edge is a (dependent, dependency) pair collected during phase one of
// the categorizer, before any mutation happens — this is the "collect
// edges, then apply" two-phase design spec.md §9 requires to avoid
// iterator invalidation and non-determinism.
type edge struct {
	from, to string // from requires to
}

// Categorize runs the single categorizer pass over t: it builds
// RequiredBy as the transpose of RequiredPackages (warning on unknown
// referents), then attaches every orphan package (empty RequiredBy) to
// the first matching umbrella rule in pol, provided that umbrella
// package exists in t.
func Categorize(t *Table, pol policy.Policy, l event.Listener) {
	var edges []edge
	for _, id := range t.IDs() {
		p := t.Get(id)
		for _, req := range p.RequiredPackages {
			if t.Get(req) == nil {
				event.Emit(l, event.Warning{Message: fmt.Sprintf("dependency problem: %s is required by %s", req, id)})
				continue
			}
			edges = append(edges, edge{from: id, to: req})
		}
	}
	for _, e := range edges {
		to := t.Get(e.to)
		to.RequiredBy = append(to.RequiredBy, e.from)
		event.Emit(l, event.Categorized{PackageID: e.to, RequiredBy: e.from})
	}

	var umbrellaEdges []edge
	for _, id := range t.IDs() {
		p := t.Get(id)
		if len(p.RequiredBy) != 0 {
			continue
		}
		umbrella := matchUmbrella(t, p, pol)
		if umbrella == "" {
			continue
		}
		umbrellaEdges = append(umbrellaEdges, edge{from: id, to: umbrella})
	}
	for _, e := range umbrellaEdges {
		child := t.Get(e.from)
		parent := t.Get(e.to)
		parent.RequiredPackages = append(parent.RequiredPackages, child.ID)
		child.RequiredBy = append(child.RequiredBy, parent.ID)
		event.Emit(l, event.Categorized{PackageID: child.ID, RequiredBy: parent.ID, Umbrella: true})
	}
}

func matchUmbrella(t *Table, p *tds.PackageInfo, pol policy.Policy) string {
	for _, rule := range pol.Rules {
		if !strings.HasPrefix(p.CTANPath, rule.CTANPrefix) {
			continue
		}
		if len(rule.FontDirs) > 0 && !anyRunFileUnder(p, rule.FontDirs) {
			continue
		}
		if t.Get(rule.Umbrella) == nil {
			continue
		}
		return rule.Umbrella
	}
	return ""
}

func anyRunFileUnder(p *tds.PackageInfo, dirs []string) bool {
	for _, f := range p.RunFiles {
		for _, dir := range dirs {
			if strings.HasPrefix(f, dir) {
				return true
			}
		}
	}
	return false
}
