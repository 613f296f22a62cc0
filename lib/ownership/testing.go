package ownership

import "sync"

// TestRegistry is a thread-safe, in-memory Registry for testing purposes.
type TestRegistry struct {
	sync.Mutex
	tag    string
	owners map[string]map[string]bool

	// Unavailable forces every operation to degrade as if the backing
	// store were down.
	Unavailable bool
}

// NewTestRegistry returns a TestRegistry for the given instance tag.
func NewTestRegistry(tag string) *TestRegistry {
	return &TestRegistry{tag: tag, owners: make(map[string]map[string]bool)}
}

// AddOwner seeds an owner set out-of-band, simulating a peer instance.
func (r *TestRegistry) AddOwner(key, tag string) {
	r.Lock()
	defer r.Unlock()
	if r.owners[key] == nil {
		r.owners[key] = make(map[string]bool)
	}
	r.owners[key][tag] = true
}

// Claim implements Registry.
func (r *TestRegistry) Claim(key string) {
	if r.Unavailable {
		return
	}
	r.AddOwner(key, r.tag)
}

// IsOwnedByMe implements Registry.
func (r *TestRegistry) IsOwnedByMe(key string) Tristate {
	r.Lock()
	defer r.Unlock()
	if r.Unavailable {
		return Unknown
	}
	if r.owners[key][r.tag] {
		return Yes
	}
	return No
}

// Release implements Registry.
func (r *TestRegistry) Release(key string) Tristate {
	r.Lock()
	defer r.Unlock()
	if r.Unavailable {
		return Unknown
	}
	delete(r.owners[key], r.tag)
	if len(r.owners[key]) == 0 {
		delete(r.owners, key)
		return Yes
	}
	return No
}

// TestConnection implements Registry.
func (r *TestRegistry) TestConnection() error { return nil }

// Close implements Registry.
func (r *TestRegistry) Close() {}
