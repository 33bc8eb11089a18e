// Package arbitrate decides the single best item-name candidate from the
// normalized outputs of the OCR and vision modalities. The policy is an
// explicit ranked-rule evaluator: legible packaging text first, cross-source
// agreement second, highest confidence with a tie-break margin third, manual
// entry last.
package arbitrate
