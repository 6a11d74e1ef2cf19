package picking

// ServiceOption configures a picking service during construction.
type ServiceOption func(*service)

// WithMaxDistance caps how far along the ray hits are accepted; shapes
// beyond the cap are ignored.
//
// Parameters:
//   - d: the maximum hit distance in world units.
//
// Returns:
//   - ServiceOption: the option to apply.
func WithMaxDistance(d float32) ServiceOption {
	return func(s *service) {
		s.maxDistance = d
	}
}
