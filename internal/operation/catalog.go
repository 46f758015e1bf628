package operation

import "fmt"

// Catalog is the registry of operation specs. It is built once at startup
// and read-only after Freeze.
type Catalog struct {
	specs  []Spec
	byID   map[ID]int
	frozen bool
}

func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[ID]int)}
}

// Register adds a spec. Registering after Freeze, a duplicate ID or a spec
// without a handler is a programming error and panics.
func (c *Catalog) Register(s Spec) {
	if c.frozen {
		panic(fmt.Sprintf("operation: register %s after freeze", s.ID))
	}
	if _, dup := c.byID[s.ID]; dup {
		panic(fmt.Sprintf("operation: duplicate spec %s", s.ID))
	}
	if s.Handle == nil {
		panic(fmt.Sprintf("operation: spec %s has no handler", s.ID))
	}
	c.byID[s.ID] = len(c.specs)
	c.specs = append(c.specs, s)
}

// Freeze forbids further registration and returns the catalog.
func (c *Catalog) Freeze() *Catalog {
	c.frozen = true
	return c
}

// Lookup returns the spec for id.
func (c *Catalog) Lookup(id ID) (Spec, error) {
	i, ok := c.byID[id]
	if !ok {
		return Spec{}, &Error{Kind: KindUnknownOperation, Op: string(id)}
	}
	return c.specs[i], nil
}

// Has reports whether id is registered.
func (c *Catalog) Has(id ID) bool {
	_, ok := c.byID[id]
	return ok
}

// Specs returns the specs in registration order.
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, len(c.specs))
	copy(out, c.specs)
	return out
}

// IDs returns the registered identifiers in registration order.
func (c *Catalog) IDs() []ID {
	ids := make([]ID, len(c.specs))
	for i, s := range c.specs {
		ids[i] = s.ID
	}
	return ids
}
