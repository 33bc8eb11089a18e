// Package services holds cross-cutting helpers shared by carecount components:
// the sentinel error taxonomy with classification-preserving wrapping, and the
// context annotations used to thread request metadata into structured logs.
package services
