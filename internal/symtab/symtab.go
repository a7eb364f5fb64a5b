// Package symtab implements the Symbol Tables (C3): per-class member
// lookup, global-scope functions/variables (including class-qualified
// constants stored under a mangled "Class::name" key), per-file
// "using" imports, and the import-path map (the latter lives in
// package session; symtab only tracks the per-file using-set).
package symtab

import (
	"fmt"
	"strings"

	"github.com/jewelscript-go/jilc/internal/types"
)

// Global is the module-wide symbol table: top-level functions,
// top-level variables, and class-qualified constants addressed via a
// mangled "Class::name" key (spec.md §4.3, and the Open Question in
// SPEC_FULL.md/DESIGN.md about per-class constant tables vs. a shared
// mangled-key global object — this repo keeps the mangled-key model
// since it is what makes `Class::name` resolvable from arbitrary user
// code without extra plumbing).
type Global struct {
	funcs map[string][]*types.Function // name -> overload set
	vars  map[string]*types.Variable   // plain globals and mangled "Class::name" constants
	order []string                     // declaration order, for deterministic __init generation
}

func NewGlobal() *Global {
	return &Global{funcs: map[string][]*types.Function{}, vars: map[string]*types.Variable{}}
}

// MangledKey builds the "Class::name" key used for class-qualified
// constants living in the shared global object (spec.md §4.3, §4.6).
func MangledKey(class, name string) string { return class + "::" + name }

func (g *Global) AddFunction(f *types.Function) {
	g.funcs[f.Name] = append(g.funcs[f.Name], f)
}

// Functions returns the overload set for name in global scope.
func (g *Global) Functions(name string) []*types.Function { return g.funcs[name] }

// AddVariable registers a global variable (or mangled class constant)
// in declaration order.
func (g *Global) AddVariable(v *types.Variable) error {
	if _, exists := g.vars[v.Name]; exists {
		return fmt.Errorf("symtab: global %q already declared", v.Name)
	}
	g.vars[v.Name] = v
	g.order = append(g.order, v.Name)
	return nil
}

// Variable looks up a global or mangled-key constant by name.
func (g *Global) Variable(name string) (*types.Variable, bool) {
	v, ok := g.vars[name]
	return v, ok
}

// InDeclarationOrder returns every registered global in the order it
// was added, used by the driver (C11) to build __init deterministically
// (spec.md §5: "Global initializers run in declaration order").
func (g *Global) InDeclarationOrder() []*types.Variable {
	out := make([]*types.Variable, 0, len(g.order))
	for _, n := range g.order {
		out = append(out, g.vars[n])
	}
	return out
}

// Class is a per-class symbol table view over a types.Class's member
// variables and function list, adding name-based lookup on top of the
// registry's slot-indexed storage.
type Class struct {
	c *types.Class
}

func NewClass(c *types.Class) *Class { return &Class{c: c} }

func (c *Class) Member(name string) (*types.Variable, int, bool) {
	idx := c.c.MemberIndex(name)
	if idx < 0 {
		return nil, -1, false
	}
	return &c.c.Members[idx], idx, true
}

func (c *Class) Functions(name string) []*types.Function {
	var out []*types.Function
	for _, f := range c.c.Functions {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// FileScope is the per-translation-unit symbol table: the set of
// classes named in `using` statements, consulted as the third
// fan-out in function lookup (spec.md §4.3).
type FileScope struct {
	reg       *types.Registry
	using     []types.TypeId
	usingName map[string]bool
}

func NewFileScope(reg *types.Registry) *FileScope {
	return &FileScope{reg: reg, usingName: map[string]bool{}}
}

// AddUsing registers a class named in a `using ClassName;` statement.
func (f *FileScope) AddUsing(name string) error {
	id, ok := f.reg.FindByName(name)
	if !ok {
		return fmt.Errorf("symtab: using: unknown class %q", name)
	}
	if f.usingName[name] {
		return nil
	}
	f.using = append(f.using, id)
	f.usingName[name] = true
	return nil
}

func (f *FileScope) Using() []types.TypeId { return f.using }

// Ambiguous is returned by Lookup when more than one scope yields a
// match for a function name (spec.md §4.3: "If more than one scope
// yields matches, the call is ambiguous").
type Ambiguous struct {
	Name   string
	Scopes []string
}

func (a *Ambiguous) Error() string {
	return fmt.Sprintf("symtab: call to %q is ambiguous between %s", a.Name, strings.Join(a.Scopes, ", "))
}

// Lookup implements the three-fan-out function resolution of spec.md
// §4.3: (i) the current class and its Parent chain (implicit `this`
// scope), (ii) global scope, (iii) each class in the file's `using`
// set. currentClass may be types.Null when compiling outside any
// class (a free function body). The class chain stops before the
// Global pseudo-class, whose functions step (ii) already covers.
func Lookup(reg *types.Registry, global *Global, currentClass types.TypeId, file *FileScope, name string) ([]*types.Function, error) {
	var found [][]*types.Function
	var scopeNames []string

	for cur := currentClass; cur != types.Null && cur != types.Global; {
		c := reg.Class(cur)
		if c == nil {
			break
		}
		cs := NewClass(c)
		if fs := cs.Functions(name); len(fs) > 0 {
			found = append(found, fs)
			scopeNames = append(scopeNames, c.Name)
		}
		cur = c.Parent
	}

	if fs := global.Functions(name); len(fs) > 0 {
		found = append(found, fs)
		scopeNames = append(scopeNames, "global")
	}

	for _, cid := range file.Using() {
		c := reg.Class(cid)
		if c == nil {
			continue
		}
		cs := NewClass(c)
		if fs := cs.Functions(name); len(fs) > 0 {
			found = append(found, fs)
			scopeNames = append(scopeNames, c.Name)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("symtab: undefined function %q", name)
	case 1:
		return found[0], nil
	default:
		return nil, &Ambiguous{Name: name, Scopes: scopeNames}
	}
}
