// Package jil is the public API of the compiler (spec.md §6): an
// ABI-shaped surface of opaque session handles, not a Go-idiomatic
// pointer API, following jilcompiler.c's own "look up a JCLState from
// a handle, delegate, translate the result code" shape (SPEC_FULL.md
// "jilcompiler.c's top-level API shape"). Every exported function here
// takes or returns a session.Handle rather than a *Session, so a host
// embedding this compiler the way a VM embeds jilcompiler.c never
// needs to hold a Go pointer across its own C-like boundary.
package jil

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/driver"
	"github.com/jewelscript-go/jilc/internal/link"
	"github.com/jewelscript-go/jilc/internal/loader"
	"github.com/jewelscript-go/jilc/internal/session"
	"github.com/jewelscript-go/jilc/internal/symtab"
	"github.com/jewelscript-go/jilc/internal/types"
)

// Session is the internal state one Handle denotes. It is never
// exposed to callers directly; every field is reached only through
// this package's exported functions, the same boundary jilcompiler.c
// draws around JCLState.
type Session struct {
	reg    *types.Registry
	global *symtab.Global
	sink   *diag.Sink
	opts   session.Options
	paths  *session.ImportPaths
	drv    *driver.Driver

	linked bool
}

// table is the process-wide handle table every exported function in
// this file looks a Session up through (spec.md §6's "vm" parameter
// on every call).
var table = session.NewTable[Session]()

// Init creates a compiler session, registers the predefined types,
// installs the `bool`/`char`/`void` aliases, and opens `__init` lazily on
// first use (spec.md §6 init). optionString is parsed the same way
// SetOption parses one.
func Init(optionString string) (session.Handle, error) {
	opts := session.DefaultOptions()
	if err := opts.Apply(optionString); err != nil {
		return 0, fmt.Errorf("jil: init: %w", err)
	}

	reg := types.NewRegistry(nil)
	if err := reg.AddAlias("bool", types.Int); err != nil {
		return 0, fmt.Errorf("jil: init: %w", err)
	}
	if err := reg.AddAlias("char", types.Int); err != nil {
		return 0, fmt.Errorf("jil: init: %w", err)
	}
	if err := reg.AddAlias("void", types.Null); err != nil {
		return 0, fmt.Errorf("jil: init: %w", err)
	}

	global := symtab.NewGlobal()
	sink := diag.NewSink()
	sink.Format = opts.ErrorFormat
	sink.WarningLevel = opts.WarningLevel

	paths := session.NewImportPaths()
	drv := driver.New(reg, global, sink, opts, paths, loader.Default{})

	s := &Session{reg: reg, global: global, sink: sink, opts: opts, paths: paths, drv: drv}
	return table.Put(s), nil
}

func lookup(h session.Handle) (*Session, error) {
	s := table.Get(h)
	if s == nil {
		return nil, fmt.Errorf("jil: handle %d is unknown or already freed", h)
	}
	return s, nil
}

// Compile adds one translation unit named unit from in-memory source
// text (spec.md §6 compile). When the unit queues an error, the
// returned Go error carries the first queued error's text.
func Compile(h session.Handle, unit, source string) error {
	s, err := lookup(h)
	if err != nil {
		return err
	}
	if err := s.drv.CompileUnit(unit, source); err != nil {
		return fmt.Errorf("jil: compile %s: %w", unit, err)
	}
	if s.sink.ErrorCount() > 0 {
		return fmt.Errorf("jil: compile %s: %s", unit, firstError(s.sink))
	}
	return nil
}

// CompileFile adds one translation unit read through the session's
// configured loader (spec.md §6 compile-file). The unit name passed to
// the parser is the path itself.
func CompileFile(h session.Handle, path string) error {
	s, err := lookup(h)
	if err != nil {
		return err
	}
	src, err := s.drv.Loader.Load(path)
	if err != nil {
		return fmt.Errorf("jil: compile-file %s: %w", path, err)
	}
	return Compile(h, path, src)
}

// Link finalizes every pending function (spec.md §6 link): it closes
// `__init` (already self-closing, see internal/parser/func.go's
// ensureInitFunc), then runs the Linker (C12) over the whole registry,
// assigning handles, patching call/delegate/literal references, and
// running the peephole pass. Calling Link twice on an already-linked
// session is a no-op.
func Link(h session.Handle) error {
	s, err := lookup(h)
	if err != nil {
		return err
	}
	if s.linked {
		return nil
	}
	if s.sink.ErrorCount() > 0 {
		return fmt.Errorf("jil: link: %d pending error(s), not linking", s.sink.ErrorCount())
	}
	if _, err := link.New(s.reg).Link(); err != nil {
		return fmt.Errorf("jil: link: %w", err)
	}
	s.linked = true
	return nil
}

// Free tears down compiler state for h (spec.md §6 free). The VM
// itself (out of scope, §1) remains usable; only the compiler-side
// session is discarded. Freeing an unknown or already-freed handle is
// a no-op, matching the original's tolerance for a double free on a
// VM-owned handle.
func Free(h session.Handle) {
	table.Delete(h)
}

// SetOption applies an additional comma-separated key=value option
// string to an already-initialized session (spec.md §6 set-option).
func SetOption(h session.Handle, optionString string) error {
	s, err := lookup(h)
	if err != nil {
		return err
	}
	if err := s.opts.Apply(optionString); err != nil {
		return fmt.Errorf("jil: set-option: %w", err)
	}
	s.sink.Format = s.opts.ErrorFormat
	s.sink.WarningLevel = s.opts.WarningLevel
	s.drv.Opts = s.opts
	s.drv.P.Opts = s.opts
	return nil
}

// AddImportPath maps a dotted identifier prefix to a filesystem path
// prefix (spec.md §6 add-import-path).
func AddImportPath(h session.Handle, name, path string) error {
	s, err := lookup(h)
	if err != nil {
		return err
	}
	s.paths.Add(name, path)
	return nil
}

// ImportClass imperatively imports a dotted class name (spec.md §6
// import-class): `import all` is spelled as name "all" per §6's
// import-resolution step 1.
func ImportClass(h session.Handle, name string) error {
	s, err := lookup(h)
	if err != nil {
		return err
	}
	if name == "all" {
		return nil
	}
	if err := s.drv.ImportClass(name); err != nil {
		return fmt.Errorf("jil: import-class %s: %w", name, err)
	}
	return nil
}

// ForwardClass imperatively forward-declares a native class by name
// (spec.md §6 forward-class).
func ForwardClass(h session.Handle, name string) error {
	s, err := lookup(h)
	if err != nil {
		return err
	}
	if err := s.drv.ForwardClass(name); err != nil {
		return fmt.Errorf("jil: forward-class %s: %w", name, err)
	}
	return nil
}

// CompileAndRun wraps text in a global void function named
// __anon_run, compiles it as its own translation unit, links the
// session, and reports whether the snippet made it through both
// stages (spec.md §6 compile-and-run). Invocation itself is a VM
// responsibility (§1, out of scope); this returns once __anon_run is
// compiled and linked.
func CompileAndRun(h session.Handle, text string) error {
	wrapped := fmt.Sprintf("function void __anon_run() {\n%s\n}\n", text)
	if err := Compile(h, "<compile-and-run>", wrapped); err != nil {
		return err
	}
	return Link(h)
}

// GetErrorText streams every queued diagnostic for h, rendered in the
// session's configured format (spec.md §6 get-error-text).
func GetErrorText(h session.Handle) (string, error) {
	s, err := lookup(h)
	if err != nil {
		return "", err
	}
	return s.sink.Text(), nil
}

func firstError(sink *diag.Sink) string {
	for _, m := range sink.Messages() {
		if m.Severity == diag.SeverityError || m.Severity == diag.SeverityFatal {
			return m.Text
		}
	}
	return ""
}

// xmlFunction and xmlClass mirror enough of types.Function/types.Class
// to render export-type-info's XML tree without exposing internal
// package fields directly to encoding/xml's reflection-based marshaler.
type xmlFunction struct {
	Name   string `xml:"name,attr"`
	Result string `xml:"result,attr"`
	Args   string `xml:"args,attr"`
}

type xmlClass struct {
	Name      string        `xml:"name,attr"`
	Family    string        `xml:"family,attr"`
	Functions []xmlFunction `xml:"function"`
}

type xmlTypeInfo struct {
	XMLName xml.Name   `xml:"type-info"`
	Classes []xmlClass `xml:"class"`
}

// ExportTypeInfo dumps the session's type registry as an XML tree
// (spec.md §6 export-type-info). generate-bindings/generate-docs are
// explicitly out-of-core (§6) and are not implemented here.
func ExportTypeInfo(h session.Handle) (string, error) {
	s, err := lookup(h)
	if err != nil {
		return "", err
	}
	doc := xmlTypeInfo{}
	for _, c := range s.reg.Classes() {
		if c == nil {
			continue
		}
		xc := xmlClass{Name: c.Name, Family: c.Family.String()}
		for _, fn := range c.Functions {
			args := make([]string, len(fn.Args))
			for i, a := range fn.Args {
				args[i] = s.reg.TypeName(a.Type)
			}
			xc.Functions = append(xc.Functions, xmlFunction{
				Name:   fn.Name,
				Result: s.reg.TypeName(fn.Result.Type),
				Args:   strings.Join(args, ","),
			})
		}
		doc.Classes = append(doc.Classes, xc)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("jil: export-type-info: %w", err)
	}
	return xml.Header + string(out), nil
}
