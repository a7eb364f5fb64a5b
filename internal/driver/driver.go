// Package driver implements the Two-Pass Driver (C11): it walks one or
// more translation units through the Statement & Declaration Parser's
// Precompile/Compile passes, resolving `import`/`forward-class`
// declarations recursively (spec.md §4.11). A Driver owns the single
// long-lived *parser.Parser for a compile session, since globals like
// the shared __init function must be visible across every unit the
// session ever compiles, not reset per import.
package driver

import (
	"fmt"
	"strings"

	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/loader"
	"github.com/jewelscript-go/jilc/internal/parser"
	"github.com/jewelscript-go/jilc/internal/session"
	"github.com/jewelscript-go/jilc/internal/symtab"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// Driver drives the two-pass compile of a session's translation units
// and implements parser.Importer so the parser can recurse into
// `import`/`forward-class` declarations without depending on this
// package (spec.md §4.11 "generates and can reopen __init", "imports
// are resolved recursively").
type Driver struct {
	Reg         *types.Registry
	Global      *symtab.Global
	Sink        *diag.Sink
	Opts        session.Options
	ImportPaths *session.ImportPaths
	Loader      loader.TextLoader

	P *parser.Parser

	imported map[string]bool
}

// New creates a Driver over a shared Registry/Global/Sink for one
// compile session, wiring itself as the parser's Importer.
func New(reg *types.Registry, global *symtab.Global, sink *diag.Sink, opts session.Options, paths *session.ImportPaths, ld loader.TextLoader) *Driver {
	if ld == nil {
		ld = loader.Default{}
	}
	if paths == nil {
		paths = session.NewImportPaths()
	}
	d := &Driver{
		Reg: reg, Global: global, Sink: sink, Opts: opts,
		ImportPaths: paths, Loader: ld,
		imported: map[string]bool{},
	}
	d.P = parser.New(reg, global, sink, opts)
	d.P.Importer = d
	return d
}

// CompileUnit drives both passes of one translation unit named unit
// over source src (spec.md §4.11: "drives precompile then compile
// across units and their imports"). unit may be recompiled later (the
// `all` native import and a reopened __init rely on this), but two
// distinct calls are never interleaved: CompileUnit fully precompiles
// then fully compiles before returning.
func (d *Driver) CompileUnit(unit, src string) error {
	savedPending := d.P.PendingBodies
	d.P.PendingBodies = nil
	d.P.BeginUnit(unit)
	defer d.P.EndUnit()

	lex := token.New(unit, src)
	if err := d.P.Precompile(lex); err != nil {
		d.P.PendingBodies = savedPending
		return fmt.Errorf("driver: precompile %s: %w", unit, err)
	}
	if err := d.P.Compile(src); err != nil {
		d.P.PendingBodies = savedPending
		return fmt.Errorf("driver: compile %s: %w", unit, err)
	}
	d.P.PendingBodies = savedPending
	return nil
}

// resolvePath maps a dotted import name to the filesystem path the
// loader should fetch, via the longest-registered-prefix ImportPaths
// map, falling back to dotted-to-slash conversion under the session's
// configured file-extension (spec.md §6 add-import-path, file-extension).
func (d *Driver) resolvePath(dotted string) string {
	if path, ok := d.ImportPaths.Resolve(dotted); ok {
		return path
	}
	ext := d.Opts.FileExtension
	if ext == "" {
		ext = "jc"
	}
	return strings.ReplaceAll(dotted, ".", "/") + "." + ext
}

// lastSegment returns the final dotted-name component, the bare class
// name a native/forwarded stub is registered under.
func lastSegment(dotted string) string {
	if i := strings.LastIndex(dotted, "."); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}

// ImportClass implements parser.Importer: it resolves dotted to either
// a script translation unit (recursively compiled through both passes)
// or, when no source is available, a native class stub registered by
// name only (spec.md §6 import-class: "register its prototypes without
// opening its body for pass-2 compilation"). Re-importing an
// already-resolved name is a no-op, matching the "all" native import's
// idempotence requirement.
func (d *Driver) ImportClass(dotted string) error {
	if d.imported[dotted] {
		return nil
	}
	d.imported[dotted] = true

	if !d.Opts.AllowFileImport {
		return d.ForwardClass(lastSegment(dotted))
	}

	path := d.resolvePath(dotted)
	src, err := d.Loader.Load(path)
	if err != nil {
		// No source at the resolved path: treat dotted as a native
		// class known to the embedding VM, forward-declared so the
		// parser can resolve references to it without a body.
		return d.ForwardClass(lastSegment(dotted))
	}
	return d.CompileUnit(dotted, src)
}

// ForwardClass implements parser.Importer: it registers name as a
// class known only by identity, deferring member/method resolution to
// whatever later precompile (native registration or a real import)
// fills it in (spec.md §6 forward-class). Forwarding an already-known
// class is a no-op.
func (d *Driver) ForwardClass(name string) error {
	if _, ok := d.Reg.FindByName(name); ok {
		return nil
	}
	id, err := d.Reg.CreateType(name, types.Global, types.FamilyClass, true)
	if err != nil {
		return fmt.Errorf("driver: forward-class %q: %w", name, err)
	}
	d.Reg.Class(id).State = types.StateForwarded
	return nil
}
