package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"carecount/internal/textutil"
)

//go:embed default_catalog.toml
var defaultCatalog []byte

// Entry is one canonical catalog item with its accepted synonyms.
type Entry struct {
	Name     string   `toml:"name"`
	Synonyms []string `toml:"synonyms"`
}

type catalogFile struct {
	Brands []string `toml:"brands"`
	Noise  []string `toml:"noise"`
	Items  []Entry  `toml:"items"`
}

// Catalog resolves raw item text to canonical names.
type Catalog struct {
	canonical []string
	// aliases maps every lowercase name and synonym to its canonical name.
	aliases map[string]string
	brands  map[string]struct{}
	noise   map[string]struct{}
}

// Match describes a catalog lookup hit.
type Match struct {
	Name  string
	Exact bool
}

// Load builds the catalog from the embedded defaults, overlaid with the
// optional site file at path. An empty path loads defaults only.
func Load(path string) (*Catalog, error) {
	cat := &Catalog{
		aliases: make(map[string]string),
		brands:  make(map[string]struct{}),
		noise:   make(map[string]struct{}),
	}
	var base catalogFile
	if err := toml.Unmarshal(defaultCatalog, &base); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}
	cat.merge(base)

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var overlay catalogFile
		if err := toml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		cat.merge(overlay)
	}

	if len(cat.canonical) == 0 {
		return nil, errors.New("catalog has no items")
	}
	return cat, nil
}

func (c *Catalog) merge(file catalogFile) {
	for _, brand := range file.Brands {
		if b := strings.ToLower(strings.TrimSpace(brand)); b != "" {
			c.brands[b] = struct{}{}
		}
	}
	for _, tok := range file.Noise {
		if n := strings.ToLower(strings.TrimSpace(tok)); n != "" {
			c.noise[n] = struct{}{}
		}
	}
	for _, entry := range file.Items {
		name := strings.ToLower(textutil.FoldSpace(entry.Name))
		if name == "" {
			continue
		}
		if _, seen := c.aliases[name]; !seen {
			c.canonical = append(c.canonical, name)
		}
		c.aliases[name] = name
		for _, syn := range entry.Synonyms {
			if s := strings.ToLower(textutil.FoldSpace(syn)); s != "" {
				c.aliases[s] = name
			}
		}
	}
}

// Lookup maps raw text to a canonical catalog name. Exact alias hits win; a
// fuzzy pass over all aliases follows, accepting the smallest edit distance
// within fuzzyThreshold of the query length.
func (c *Catalog) Lookup(raw string) (Match, bool) {
	query := strings.ToLower(textutil.FoldSpace(raw))
	if query == "" {
		return Match{}, false
	}
	if name, ok := c.aliases[query]; ok {
		return Match{Name: name, Exact: true}, true
	}

	limit := fuzzyThreshold(len([]rune(query)))
	bestDistance := limit + 1
	var bestAlias, bestName string
	for alias, name := range c.aliases {
		distance := textutil.Levenshtein(query, alias)
		// Break distance ties on the alias so map order cannot change the
		// answer between runs.
		if distance < bestDistance || (distance == bestDistance && alias < bestAlias) {
			bestDistance = distance
			bestAlias = alias
			bestName = name
		}
	}
	if bestDistance <= limit {
		return Match{Name: bestName}, true
	}
	return Match{}, false
}

// Contains reports whether any catalog name appears as a whole-word substring
// of the text. Used to pull a generic type out of a longer caption, e.g.
// "a jar of peanut butter" -> "peanut butter".
func (c *Catalog) Contains(text string) (string, bool) {
	padded := " " + strings.ToLower(textutil.FoldSpace(text)) + " "
	var hit string
	for _, name := range c.canonical {
		if strings.Contains(padded, " "+name+" ") {
			// Prefer the longest hit so "peanut butter" beats "butter".
			if len(name) > len(hit) {
				hit = name
			}
		}
	}
	return hit, hit != ""
}

// IsBrand reports whether the phrase is a known brand.
func (c *Catalog) IsBrand(phrase string) bool {
	_, ok := c.brands[strings.ToLower(strings.TrimSpace(phrase))]
	return ok
}

// Brands returns the known brand list, for prefix stripping.
func (c *Catalog) Brands() []string {
	out := make([]string, 0, len(c.brands))
	for brand := range c.brands {
		out = append(out, brand)
	}
	return out
}

// IsNoise reports whether the token is packaging boilerplate.
func (c *Catalog) IsNoise(token string) bool {
	_, ok := c.noise[strings.ToLower(strings.TrimSpace(token))]
	return ok
}

// fuzzyThreshold scales the accepted edit distance with query length: 2 edits
// up to 10 runes, then one extra edit per 5 runes.
func fuzzyThreshold(length int) int {
	if length <= 10 {
		return 2
	}
	return length / 5
}
