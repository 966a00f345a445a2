package xen

import "github.com/google/uuid"

// newID mints the default channel identifier used in trace messages (spec
// §2.1 domain stack: github.com/google/uuid). A Server replaces it with the
// peer's remote address, which is also the key of its peer set.
func newID() string {
	return uuid.NewString()
}
