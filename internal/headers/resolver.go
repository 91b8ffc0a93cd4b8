// =============================================================================
// GDEC Price Checker - Header Resolver
// =============================================================================
//
// Marketplace exports rename columns between template versions ("Shop Sku"
// vs "Shop SKU", trailing spaces, added suffixes). The resolver maps each
// logical field to the closest actual header using the Ratcliff/Obershelp
// similarity ratio, with a 0.6 acceptance cutoff.
//
// MATCHING RULES:
//   - Case-sensitive, character-level comparison
//   - The highest ratio at or above Cutoff wins
//   - Ties go to the header that appears first
//   - No candidate at or above Cutoff means "no match"
//
// =============================================================================

package headers

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// Cutoff is the minimum similarity ratio for a header to be accepted.
const Cutoff = 0.6

// Match is a resolved header and how similar it was to the expected text.
type Match struct {
	Header string
	Ratio  float64
}

// Exact reports whether the header matched the expected text verbatim.
func (m Match) Exact() bool {
	return m.Ratio == 1
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve returns the header in available most similar to target.
//
// PARAMETERS:
//   - available: the headers present in a dataset, in column order
//   - target: the expected header text
//
// RETURNS:
//   - the best match, and false if no header reaches Cutoff
func Resolve(available []string, target string) (Match, bool) {
	matcher := difflib.NewMatcher(nil, chars(target))

	best := Match{}
	found := false
	for _, candidate := range available {
		matcher.SetSeq1(chars(candidate))
		if matcher.RealQuickRatio() < Cutoff || matcher.QuickRatio() < Cutoff {
			continue
		}
		ratio := matcher.Ratio()
		if ratio < Cutoff {
			continue
		}
		if !found || ratio > best.Ratio {
			best = Match{Header: candidate, Ratio: ratio}
			found = true
		}
	}
	return best, found
}

// Resolution is the outcome of resolving every field of a dataset.
type Resolution struct {
	Mapping types.Mapping

	// Fuzzy lists fields whose header was not an exact match.
	Fuzzy map[types.Field]Match
}

// ResolveAll resolves every field spec against available, in order, and fails
// on the first field that has no match.
//
// PARAMETERS:
//   - dataset: name used in error messages ("target", "promotion")
//   - available: the headers present in the dataset
//   - specs: the logical fields and their expected header text
//
// RETURNS:
//   - the mapping, or a *errs.MissingFieldError naming the unresolved field
func ResolveAll(dataset string, available []string, specs []types.FieldSpec) (*Resolution, error) {
	res := &Resolution{
		Mapping: make(types.Mapping, len(specs)),
		Fuzzy:   make(map[types.Field]Match),
	}
	for _, spec := range specs {
		m, ok := Resolve(available, spec.Header)
		if !ok {
			return nil, errs.NewMissingFieldError(dataset, string(spec.Field), spec.Header)
		}
		res.Mapping[spec.Field] = m.Header
		if !m.Exact() {
			res.Fuzzy[spec.Field] = m
		}
	}
	return res, nil
}

// chars splits s into one element per rune.
func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
