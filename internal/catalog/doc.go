// Package catalog holds the canonical item names a pantry tracks, the
// synonyms that map onto them, and the brand and packaging-noise token lists
// used during normalization. A built-in catalog ships embedded; sites can
// overlay their own via the catalog.path config entry.
package catalog
