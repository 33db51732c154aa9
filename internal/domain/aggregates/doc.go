// Package aggregates defines domain-facing aggregate contracts for the form
// answer engine: binding writes onto a technology, question revisions, and
// submission records.
//
// Contracts avoid persistence details and mark the write boundaries where
// invariants are enforced atomically.
package aggregates
