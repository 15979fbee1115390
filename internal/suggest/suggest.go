// Package suggest finds the closest known name to an unresolved reference,
// for "did you mean" hints on UnknownRecipeError and similar diagnostics.
package suggest

import "github.com/lithammer/fuzzysearch/fuzzy"

// Nearest returns the candidate closest to name by fuzzy rank, provided it
// clears a minimal similarity bar. Returns ok=false when candidates is
// empty or nothing is close enough to be worth suggesting.
func Nearest(name string, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	ranked := fuzzy.RankFindNormalizedFold(name, candidates)
	if len(ranked) == 0 {
		return "", false
	}
	best := ranked[0]
	for _, r := range ranked[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	if best.Distance > len(name)+2 {
		return "", false
	}
	return best.Target, true
}
