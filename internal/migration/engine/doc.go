// Package engine runs migrations against an FDML document. The Runner plans
// a batch from the migration directory and the persisted state, takes one
// backup of the target file, mutates an in-memory copy of the document, and
// persists the document and the state only when every migration in the
// batch succeeded.
package engine
