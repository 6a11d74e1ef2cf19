package loader

// LoaderOption configures optional loader behavior.
type LoaderOption func(*loader)

// WithoutCache disables model caching; every Load re-parses the file.
// Useful in asset-editing workflows where files change on disk.
//
// Returns:
//   - LoaderOption: the option function.
func WithoutCache() LoaderOption {
	return func(l *loader) {
		l.caching = false
	}
}
