// Package query normalizes caller-supplied queries, projections and update
// payloads into the form the store executes.
//
// Every function returns a fresh value and leaves its input untouched, so
// callers may reuse their maps across operations.
package query
