package importer

// ImporterOption configures an importer during construction.
type ImporterOption func(*importerImpl)

// WithDecodeWorkers sets the size of the texture decode worker pool.
//
// Parameters:
//   - n: the worker count (values below 1 are clamped to 1).
//
// Returns:
//   - ImporterOption: the option to apply.
func WithDecodeWorkers(n int) ImporterOption {
	return func(im *importerImpl) {
		if n < 1 {
			n = 1
		}
		im.decodeWorkers = n
	}
}
