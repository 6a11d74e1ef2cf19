package scenegraph

import "errors"

// Structural error taxonomy. All of these indicate caller mistakes: they are
// reported immediately and are never retried by the graph itself. Errors
// returned by Graph operations wrap one of these sentinels together with the
// offending node id, so callers can match with errors.Is and still surface
// the id in editor diagnostics.
var (
	// ErrInvalidParent is returned when an operation names a parent node that
	// does not exist in the graph.
	ErrInvalidParent = errors.New("invalid parent node")

	// ErrNotFound is returned when an operation names a node id that is not
	// live in the graph (never created, already removed, or stale generation).
	ErrNotFound = errors.New("node not found")

	// ErrCycleDetected is returned by Reparent when the new parent is the node
	// itself or one of its descendants. The graph is left unchanged.
	ErrCycleDetected = errors.New("reparent would create a cycle")
)
