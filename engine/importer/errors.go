package importer

import "errors"

var (
	// ErrImportPending is returned by Commit while texture decodes or
	// slot allocations are still outstanding. Commit again after the
	// next upload queue drain.
	ErrImportPending = errors.New("import still pending")

	// ErrAlreadyCommitted is returned when Commit is called twice on the
	// same pending import.
	ErrAlreadyCommitted = errors.New("import already committed")
)
