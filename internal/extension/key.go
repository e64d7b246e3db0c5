package extension

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Class is the invocation class of a function.
type Class int

const (
	ClassScalar Class = iota
	ClassAggregate
	ClassWindow
)

// String returns the class name used in catalogs and manifests.
func (c Class) String() string {
	switch c {
	case ClassScalar:
		return "scalar"
	case ClassAggregate:
		return "aggregate"
	case ClassWindow:
		return "window"
	default:
		return "unknown"
	}
}

// ParseClass parses a class name.
func ParseClass(s string) (Class, bool) {
	switch strings.ToLower(s) {
	case "scalar":
		return ClassScalar, true
	case "aggregate":
		return ClassAggregate, true
	case "window":
		return ClassWindow, true
	}
	return 0, false
}

// Key identifies a function in a catalog: the namespace it is declared in,
// its name and its signature suffix. A key with an empty Signature names a
// function without choosing an overload.
type Key struct {
	Namespace string
	Name      string
	Signature string
}

// ParseKey builds a key from a namespace and a compound name "name:sig".
// A compound name without a colon yields a key with no signature.
func ParseKey(namespace, compound string) Key {
	name, sig, _ := strings.Cut(compound, ":")
	return Key{
		Namespace: normalize(namespace),
		Name:      normalize(name),
		Signature: sig,
	}
}

// Compound renders the key as "name:sig", or just the name when the key
// has no signature.
func (k Key) Compound() string {
	if k.Signature == "" {
		return k.Name
	}
	return k.Name + ":" + k.Signature
}

// String renders the key as "namespace#name:sig".
func (k Key) String() string {
	if k.Namespace == "" {
		return k.Compound()
	}
	return k.Namespace + "#" + k.Compound()
}

// normalized returns k with NFC-normalized namespace and name.
func (k Key) normalized() Key {
	k.Namespace = normalize(k.Namespace)
	k.Name = normalize(k.Name)
	return k
}

// normalize applies NFC so visually identical names compare equal.
func normalize(s string) string {
	return norm.NFC.String(s)
}
