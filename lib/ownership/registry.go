// Package ownership coordinates adapter instances sharing one Seedr account.
// Each grabbed release has a set of owning instance tags keyed by info-hash;
// an instance may only delete shared cloud state once it is the last owner.
package ownership

import (
	"errors"
	"fmt"
	"regexp"
)

// Tristate is the result of registry queries. Unknown means the registry
// could not answer; callers must treat Unknown as "do not delete".
type Tristate int

// Tristate values.
const (
	Unknown Tristate = iota
	No
	Yes
)

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	}
	return "unknown"
}

// Registry tracks which instances own which releases. Implementations never
// propagate transport errors to callers; failures degrade to Unknown.
type Registry interface {
	// Claim adds this instance to the owner set of key and refreshes its
	// TTL. Errors are logged and swallowed.
	Claim(key string)

	// IsOwnedByMe reports whether this instance is in the owner set of key.
	IsOwnedByMe(key string) Tristate

	// Release removes this instance from the owner set of key. Yes means
	// this instance was the last owner and the set is gone.
	Release(key string) Tristate

	// TestConnection probes registry health.
	TestConnection() error

	Close()
}

var tagRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateTag checks an instance tag against the allowed alphabet.
func ValidateTag(tag string) error {
	if tag == "" {
		return errors.New("instance tag is empty")
	}
	if !tagRegexp.MatchString(tag) {
		return fmt.Errorf("instance tag %q contains characters outside [A-Za-z0-9_-]", tag)
	}
	return nil
}

func ownerSetKey(key string) string {
	return fmt.Sprintf("seedr:owners:%s", key)
}
