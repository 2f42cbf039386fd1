package analyzer

import (
	"github.com/blackwell-systems/brewdeps/internal/brew"
)

// Orphans returns the formulae `brew autoremove` would remove: those
// installed as dependencies that no remaining package needs. Removal is
// applied repeatedly, so a dependency needed only by orphans is an orphan
// too. Build-time edges do not keep a package installed. Formulae that
// only depend on each other in a cycle are kept.
func (a *Analyzer) Orphans() []brew.ID {
	neededBy := make(map[brew.ID][]brew.ID)
	for _, e := range a.graph.Edges() {
		if e.Type == brew.DepBuild {
			continue
		}
		neededBy[e.To] = append(neededBy[e.To], e.From)
	}

	removed := make(map[brew.ID]bool)
	for changed := true; changed; {
		changed = false
		for _, id := range a.graph.Nodes() {
			if removed[id] || id.Kind != brew.KindFormula {
				continue
			}
			record, err := a.graph.Record(id)
			if err != nil || record.OnRequest() {
				continue
			}
			if stillNeeded(neededBy[id], removed) {
				continue
			}
			removed[id] = true
			changed = true
		}
	}

	orphans := make([]brew.ID, 0, len(removed))
	for id := range removed {
		orphans = append(orphans, id)
	}
	sortIDs(orphans)
	return orphans
}

func stillNeeded(dependents []brew.ID, removed map[brew.ID]bool) bool {
	for _, d := range dependents {
		if !removed[d] {
			return true
		}
	}
	return false
}
