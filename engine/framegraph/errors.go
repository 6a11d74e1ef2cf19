package framegraph

import "errors"

var (
	// ErrCyclicDependency is returned by Resolve when the declared
	// read/write edges contain a cycle. This is a pass registration bug,
	// never a transient condition; callers must not retry.
	ErrCyclicDependency = errors.New("cyclic pass dependency")

	// ErrPassExecutionFailed wraps a pass execution error. The failing
	// pass name is carried in the wrapping message; the frame is aborted
	// and the caller may try again next frame.
	ErrPassExecutionFailed = errors.New("pass execution failed")

	// ErrInvalidState is returned when a method is called outside the
	// Building -> Resolved -> Executing -> Retired order.
	ErrInvalidState = errors.New("invalid frame graph state")

	// ErrUnknownResource is returned when a pass declares a resource
	// name that was never imported or created on the graph.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrUndeclaredResource is returned when a pass accesses a resource
	// it did not declare in its reads or writes.
	ErrUndeclaredResource = errors.New("resource not declared by pass")
)
