// Package normalize canonicalizes raw OCR and caption text into catalog item
// candidates: packaging noise and brand prefixes are stripped, synonyms are
// mapped through the catalog, and the source confidence carries through with
// a penalty when the catalog hit was fuzzy.
package normalize
