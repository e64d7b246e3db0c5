package extension

import (
	"fmt"
	"sort"
)

// Collection is an immutable set of function declarations, indexed by key
// and by name. Build one with NewCollection or Merge.
//
// A Collection is safe for concurrent use. Declarations it returns must not
// be modified.
type Collection struct {
	decls  []*Declaration
	byKey  map[Key]*Declaration
	byName map[Class]map[string][]*Declaration
}

// NewCollection builds a collection from declarations. Names and
// namespaces are NFC-normalized. Two declarations with the same key are an
// error.
func NewCollection(decls ...Declaration) (*Collection, error) {
	c := &Collection{
		byKey:  make(map[Key]*Declaration, len(decls)),
		byName: make(map[Class]map[string][]*Declaration),
	}
	for i := range decls {
		if err := c.add(decls[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustCollection is like NewCollection but panics on error.
func MustCollection(decls ...Declaration) *Collection {
	c, err := NewCollection(decls...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Collection) add(d Declaration) error {
	d.Namespace = normalize(d.Namespace)
	d.Name = normalize(d.Name)
	if d.Name == "" {
		return fmt.Errorf("declaration in %q has no name", d.Namespace)
	}
	if d.Variadic != nil && len(d.Params) == 0 {
		return fmt.Errorf("%s: variadic declaration needs at least one parameter", d.Name)
	}

	// Copy slices so later changes by the caller cannot leak in.
	d.Params = append([]Param(nil), d.Params...)
	if d.Variadic != nil {
		v := *d.Variadic
		d.Variadic = &v
	}

	key := d.Key()
	if _, dup := c.byKey[key]; dup {
		return fmt.Errorf("duplicate declaration %s", key)
	}

	decl := &d
	c.decls = append(c.decls, decl)
	c.byKey[key] = decl
	if c.byName[d.Class] == nil {
		c.byName[d.Class] = make(map[string][]*Declaration)
	}
	c.byName[d.Class][d.Name] = append(c.byName[d.Class][d.Name], decl)
	return nil
}

// Merge returns a new collection holding the declarations of c followed by
// those of others. Duplicate keys are an error.
func (c *Collection) Merge(others ...*Collection) (*Collection, error) {
	var all []Declaration
	for _, d := range c.decls {
		all = append(all, *d)
	}
	for _, o := range others {
		if o == nil {
			continue
		}
		for _, d := range o.decls {
			all = append(all, *d)
		}
	}
	return NewCollection(all...)
}

// Lookup finds the declaration with exactly the given key.
func (c *Collection) Lookup(k Key) (*Declaration, bool) {
	if c == nil {
		return nil, false
	}
	d, ok := c.byKey[k.normalized()]
	return d, ok
}

// Candidates returns the declarations of a class with the given name. An
// empty namespace matches every namespace.
func (c *Collection) Candidates(class Class, namespace, name string) []*Declaration {
	if c == nil {
		return nil
	}
	all := c.byName[class][normalize(name)]
	if namespace == "" {
		return all
	}
	namespace = normalize(namespace)
	var out []*Declaration
	for _, d := range all {
		if d.Namespace == namespace {
			out = append(out, d)
		}
	}
	return out
}

// Functions returns the declarations of a class in insertion order.
func (c *Collection) Functions(class Class) []*Declaration {
	if c == nil {
		return nil
	}
	var out []*Declaration
	for _, d := range c.decls {
		if d.Class == class {
			out = append(out, d)
		}
	}
	return out
}

// ScalarFunctions returns the scalar declarations.
func (c *Collection) ScalarFunctions() []*Declaration { return c.Functions(ClassScalar) }

// AggregateFunctions returns the aggregate declarations.
func (c *Collection) AggregateFunctions() []*Declaration { return c.Functions(ClassAggregate) }

// WindowFunctions returns the window declarations.
func (c *Collection) WindowFunctions() []*Declaration { return c.Functions(ClassWindow) }

// All returns every declaration in insertion order.
func (c *Collection) All() []*Declaration {
	if c == nil {
		return nil
	}
	return append([]*Declaration(nil), c.decls...)
}

// Namespaces returns the distinct namespaces, sorted.
func (c *Collection) Namespaces() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, d := range c.decls {
		if !seen[d.Namespace] {
			seen[d.Namespace] = true
			out = append(out, d.Namespace)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of declarations.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.decls)
}
