// Package handlers provides ready-made settings collaborators for the step
// wrappers: file-system backed CSV/JSON asset I/O, HTTP asset fetching,
// Postgres output, and a checksum-based asset analyzer. A deployment binds
// one of these (or its own implementation) to the run context; the runtime
// package never depends on any of them.
package handlers
