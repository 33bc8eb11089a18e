package normalize

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"carecount/internal/arbitrate"
	"carecount/internal/catalog"
	"carecount/internal/extract"
	"carecount/internal/textutil"
)

const (
	// fuzzyMatchPenalty discounts candidates that reached the catalog through
	// an edit-distance match, so exact catalog hits win arbitration ties.
	fuzzyMatchPenalty = 0.9
	// maxNameLength clamps candidate names to the inventory store's column width.
	maxNameLength = 120
)

// sizeTokenPattern matches quantity/size tokens like "500ml", "1.5l", "12x", "2%".
var sizeTokenPattern = regexp.MustCompile(`^\d+([.,]\d+)?(ml|l|g|kg|oz|lb|ct|pk|x|%)?$`)

// Normalizer turns one extraction result into at most one candidate.
type Normalizer struct {
	cat    *catalog.Catalog
	brands []string
	titler cases.Caser
}

// New builds a Normalizer over the supplied catalog.
func New(cat *catalog.Catalog) *Normalizer {
	brands := cat.Brands()
	// Longest-first so "kellogg's" is stripped before "kelloggs" can match a
	// substring, and the strip order is deterministic.
	sort.Slice(brands, func(i, j int) bool {
		if len(brands[i]) != len(brands[j]) {
			return len(brands[i]) > len(brands[j])
		}
		return brands[i] < brands[j]
	})
	return &Normalizer{
		cat:    cat,
		brands: brands,
		titler: cases.Title(language.English),
	}
}

// Normalize canonicalizes one extraction into a candidate. Returns false when
// no alphabetic content survives stripping. Normalizing the same result twice
// yields the same candidate.
func (n *Normalizer) Normalize(res extract.Result) (arbitrate.Candidate, bool) {
	cleaned := n.clean(res.Text)
	if !textutil.HasLetter(cleaned) {
		return arbitrate.Candidate{}, false
	}

	// A catalog name embedded in a longer phrase is still an exact hit:
	// "a jar of peanut butter" names peanut butter.
	if name, ok := n.cat.Contains(cleaned); ok {
		return arbitrate.Candidate{
			Name:       name,
			Confidence: res.Confidence,
			Source:     res.Source,
		}, true
	}

	if match, ok := n.cat.Lookup(cleaned); ok {
		confidence := res.Confidence
		if !match.Exact {
			confidence *= fuzzyMatchPenalty
		}
		return arbitrate.Candidate{
			Name:       match.Name,
			Confidence: confidence,
			Source:     res.Source,
		}, true
	}

	// Uncataloged but legible: pass the cleaned phrase through title-cased so
	// the volunteer sees something presentable to confirm or correct.
	return arbitrate.Candidate{
		Name:       textutil.Clamp(n.titler.String(cleaned), maxNameLength),
		Confidence: res.Confidence,
		Source:     res.Source,
	}, true
}

func (n *Normalizer) clean(raw string) string {
	text := strings.ToLower(textutil.StripMarks(raw))
	text = textutil.FoldSpace(text)
	for _, brand := range n.brands {
		text = strings.ReplaceAll(text, brand, " ")
	}

	tokens := strings.Fields(text)
	kept := tokens[:0]
	for _, token := range tokens {
		trimmed := strings.Trim(token, ".,;:!()[]")
		if trimmed == "" {
			continue
		}
		if n.cat.IsNoise(trimmed) {
			continue
		}
		if sizeTokenPattern.MatchString(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}
