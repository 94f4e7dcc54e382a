package module

import "github.com/armon/go-radix"

// nameIndex is a typed wrapper around a radix tree keyed by module name,
// the same wrapping shape the teacher uses in typed_radix.go to avoid type
// assertions scattered through calling code. It backs Container's
// by-name lookups (Find/FindSubject/FindFields all narrow by name first)
// so a container holding many repositories' worth of builds doesn't pay
// for a full scan on every query.
type nameIndex struct {
	t *radix.Tree
}

func newNameIndex() nameIndex {
	return nameIndex{t: radix.New()}
}

// insert appends p to the list of builds recorded under p.Name().
func (idx nameIndex) insert(p *ModulePackage) {
	var list []*ModulePackage
	if v, ok := idx.t.Get(p.Name()); ok {
		list = v.([]*ModulePackage)
	}
	idx.t.Insert(p.Name(), append(list, p))
}

// get returns every build recorded under name, in insertion order.
func (idx nameIndex) get(name string) []*ModulePackage {
	if v, ok := idx.t.Get(name); ok {
		return v.([]*ModulePackage)
	}
	return nil
}

// names returns every distinct module name in the index, in radix
// (lexicographic) walk order.
func (idx nameIndex) names() []string {
	var out []string
	idx.t.Walk(func(s string, v interface{}) bool {
		out = append(out, s)
		return false
	})
	return out
}

// len reports how many distinct module names are indexed.
func (idx nameIndex) len() int { return idx.t.Len() }
