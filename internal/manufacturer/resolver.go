// Package manufacturer resolves free-text manufacturer names to canonical
// manufacturer ids used to disambiguate ambiguous part searches.
package manufacturer

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxCandidates bounds how many ids a resolution returns, which in turn
// bounds the search retry fan-out.
const maxCandidates = 5

// minSimilarity is the lowest similarity ratio accepted by fuzzy matching.
const minSimilarity = 0.6

// Resolver maps free-text manufacturer names to ranked canonical ids.
// A nil or empty directory makes every resolution return no candidates,
// degrading manufacturer filtering gracefully.
type Resolver struct {
	// directory maps normalized manufacturer name -> id.
	directory map[string]int
	// names holds directory keys in deterministic order.
	names []string
	// aliases maps a normalized canonical/abbreviated name to its known
	// synonyms (corporate renames, acquisitions, abbreviations).
	aliases map[string][]string
}

// NewResolver builds a resolver over the given directory and alias table.
// Keys and values are matched case-insensitively.
func NewResolver(directory map[string]int, aliases map[string][]string) *Resolver {
	r := &Resolver{
		directory: make(map[string]int, len(directory)),
		aliases:   make(map[string][]string, len(aliases)),
	}
	for name, id := range directory {
		n := normalize(name)
		r.directory[n] = id
		r.names = append(r.names, n)
	}
	sort.Strings(r.names)
	for key, synonyms := range aliases {
		norm := make([]string, len(synonyms))
		for i, s := range synonyms {
			norm[i] = normalize(s)
		}
		r.aliases[normalize(key)] = norm
	}
	return r
}

// Resolve returns up to five manufacturer ids for name, ordered by match
// priority: alias table, exact match, fuzzy similarity, substring and
// initials heuristics. Duplicates are removed preserving priority order.
func (r *Resolver) Resolve(name string) []int {
	if r == nil || len(r.directory) == 0 {
		return nil
	}
	query := normalize(name)
	if query == "" {
		return nil
	}

	var ids []int
	seen := make(map[int]bool)
	add := func(candidates ...string) bool {
		for _, c := range candidates {
			id, ok := r.directory[c]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			if len(ids) >= maxCandidates {
				return true
			}
		}
		return false
	}

	// 1. Alias table, both directions.
	if add(r.aliasMatches(query)...) {
		return ids
	}

	// 2. Exact case-insensitive match.
	if add(query) {
		return ids
	}

	// 3. Fuzzy similarity, best matches first.
	if add(r.fuzzyMatches(query)...) {
		return ids
	}

	// 4. Substring containment and initials heuristic.
	add(r.heuristicMatches(query)...)

	return ids
}

// aliasMatches returns directory names reachable through the alias table.
// The query may match an alias key (returning its synonyms) or a synonym
// (returning the key and the remaining synonyms).
func (r *Resolver) aliasMatches(query string) []string {
	var out []string
	if synonyms, ok := r.aliases[query]; ok {
		out = append(out, synonyms...)
	}
	for key, synonyms := range r.aliases {
		for _, s := range synonyms {
			if s == query {
				out = append(out, key)
				out = append(out, synonyms...)
				break
			}
		}
	}
	return out
}

// fuzzyMatches returns directory names whose similarity ratio with the
// query is at least minSimilarity, best first. Ties break alphabetically
// so results are deterministic.
func (r *Resolver) fuzzyMatches(query string) []string {
	type scored struct {
		name  string
		score float64
	}
	var matches []scored
	for _, name := range r.names {
		if s := similarity(query, name); s >= minSimilarity {
			matches = append(matches, scored{name, s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

// heuristicMatches returns directory names containing the query (or vice
// versa), plus names whose word initials spell the query ("TI" for
// "TEXAS INSTRUMENTS").
func (r *Resolver) heuristicMatches(query string) []string {
	var out []string
	for _, name := range r.names {
		if strings.Contains(name, query) || strings.Contains(query, name) {
			out = append(out, name)
			continue
		}
		if initials(name) == query {
			out = append(out, name)
		}
	}
	return out
}

// similarity is the normalized levenshtein ratio in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

func initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		if len(r) > 0 {
			b.WriteRune(r[0])
		}
	}
	return b.String()
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
