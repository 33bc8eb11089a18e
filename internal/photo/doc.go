// Package photo defines the ephemeral image payload handed to the
// identification pipeline and its decode-time validation. Payloads are owned
// by the caller for the duration of one resolution call and are never
// persisted.
package photo
