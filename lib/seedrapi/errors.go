package seedrapi

import (
	"fmt"

	"github.com/lumenarr/seedr/utils/httputil"
)

// ProtocolError occurs when Seedr answers with a well-formed HTTP response
// whose body violates the API contract (empty, unparseable, or result!=true).
type ProtocolError struct {
	Op  string
	Msg string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("seedr protocol error in %s: %s", e.Op, e.Msg)
}

// IsProtocolError returns true if err is a ProtocolError.
func IsProtocolError(err error) bool {
	_, ok := err.(ProtocolError)
	return ok
}

// IsAuthError returns true if err indicates rejected credentials.
func IsAuthError(err error) bool {
	return httputil.IsAuthError(err)
}

// IsNotFound returns true if err indicates a missing cloud object.
func IsNotFound(err error) bool {
	return httputil.IsNotFound(err)
}
