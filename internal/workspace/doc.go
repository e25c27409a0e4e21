// Package workspace owns the on-disk work directory for a dubbing run: the
// fixed directory layout, the single-writer lock, and the progress ledger
// that makes multi-hour jobs resumable.
package workspace
