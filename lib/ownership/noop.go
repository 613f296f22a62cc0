package ownership

// NoopRegistry is used when multi-tenancy is disabled. Queries answer
// Unknown, which callers already treat as "do not delete shared state";
// the adapter bypasses the registry entirely in single-instance mode.
type NoopRegistry struct{}

// NewNoopRegistry creates a NoopRegistry.
func NewNoopRegistry() NoopRegistry { return NoopRegistry{} }

// Claim implements Registry.
func (NoopRegistry) Claim(string) {}

// IsOwnedByMe implements Registry.
func (NoopRegistry) IsOwnedByMe(string) Tristate { return Unknown }

// Release implements Registry.
func (NoopRegistry) Release(string) Tristate { return Unknown }

// TestConnection implements Registry.
func (NoopRegistry) TestConnection() error { return nil }

// Close implements Registry.
func (NoopRegistry) Close() {}
