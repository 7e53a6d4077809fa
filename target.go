package warp

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/go-warp/warp/errors"
)

// Target identifies the interface type and host a bound client points at.
// It is immutable; identity is the (Type, Host) pair, so two independently
// bound clients for the same interface and host compare equal.
type Target struct {
	name     string
	host     string
	typeName string
}

// NewTarget creates a Target for the given interface type identifier and
// host (scheme and authority). The name defaults to the host.
func NewTarget(typeName, host string) (Target, error) {
	return NewNamedTarget(typeName, host, host)
}

// NewNamedTarget is NewTarget with an explicit display name.
func NewNamedTarget(typeName, host, name string) (Target, error) {
	if typeName == "" {
		return Target{}, &errors.ConfigurationError{Message: "a target type is required"}
	}
	if host == "" {
		return Target{}, &errors.ConfigurationError{Message: "a target host is required"}
	}
	if name == "" {
		name = host
	}
	return Target{name: name, host: strings.TrimSuffix(host, "/"), typeName: typeName}, nil
}

// Name returns the display name of the target.
func (t Target) Name() string { return t.name }

// Host returns the scheme and authority all methods are submitted to.
func (t Target) Host() string { return t.host }

// Type returns the interface type identifier.
func (t Target) Type() string { return t.typeName }

// Equal reports whether both targets identify the same interface type and
// host. The name does not participate in identity.
func (t Target) Equal(o Target) bool {
	return t.typeName == o.typeName && t.host == o.host
}

// Hash returns a hash consistent with Equal.
func (t Target) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(t.typeName))
	h.Write([]byte{0})
	h.Write([]byte(t.host))
	return h.Sum64()
}

// String returns the fixed display form of the target.
func (t Target) String() string {
	return fmt.Sprintf("Target(type=%s, url=%s)", t.typeName, t.host)
}
