// Package textutil provides small text helpers shared by the normalization
// and catalog packages: whitespace folding, length clamping, and edit distance.
package textutil
