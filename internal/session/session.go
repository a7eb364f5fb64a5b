// Package session holds the ambient per-compile-session state: parsed
// options (spec.md §6 set-option), the import-path map, and the
// opaque Handle/table indirection the public API in jilc.go uses to
// stand in for the original's "opaque VM handle" ABI shape
// (SPEC_FULL.md "jilcompiler.c's top-level API shape").
package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/jewelscript-go/jilc/internal/diag"
)

// SupportedABI is the newest VM ABI this compiler targets (spec.md §6).
// Options.Apply rejects an `abi-version` value that is not valid semver
// or compares newer than this (any newer version, not only a newer
// major) and stores an accepted one as `vm.abi-version`; a
// `vm.abi-version` key given directly is forwarded unchecked.
const SupportedABI = "v1.0.0"

// LocalVarMode selects where the code generator prefers to place new
// locals (spec.md §6 "local-var-mode").
type LocalVarMode int

const (
	LocalVarAuto LocalVarMode = iota
	LocalVarStack
	LocalVarRegister
)

// Options holds the parsed form of a set-option string (spec.md §6):
// "warning-level ∈ {0..5}, error-format ∈ {default, ms}, verbose ∈
// {on,off}, optimize ∈ {0..3}, file-extension, allow-file-import,
// use-rtchk, local-var-mode ∈ {auto,stack,register}, stack-locals,
// plus any option beginning with the VM's namespace".
//
// Grounded on the teacher's compile/internal/gc package, which holds
// `Debug DebugFlags` and assorted flag_* package vars — this repo
// scopes the same data to one struct per Session instead of process
// globals, since a single process may run more than one compile
// session concurrently.
type Options struct {
	WarningLevel    int
	ErrorFormat     diag.Format
	Verbose         bool
	Optimize        int
	FileExtension   string
	AllowFileImport bool
	UseRtchk        bool
	LocalVarMode    LocalVarMode
	StackLocals     bool

	// VMOptions holds every option whose key begins with the VM's
	// namespace (spec.md §6: "forwarded to the VM"), keyed by the
	// full dotted name including the namespace prefix.
	VMOptions map[string]string
}

// DefaultOptions returns the compiler's baseline option set.
func DefaultOptions() Options {
	return Options{
		WarningLevel:  1,
		ErrorFormat:   diag.FormatDefault,
		Optimize:      1,
		FileExtension: "jc",
		UseRtchk:      true,
		LocalVarMode:  LocalVarAuto,
		VMOptions:     map[string]string{},
	}
}

// vmNamespace is the prefix (configurable by the host) identifying an
// option meant to be forwarded to the VM untouched.
const vmNamespace = "vm."

// Apply parses a comma-separated key=value option string and merges
// it into o, per spec.md §6 set-option.
func (o *Options) Apply(optionString string) error {
	if strings.TrimSpace(optionString) == "" {
		return nil
	}
	for _, pair := range strings.Split(optionString, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key := strings.TrimSpace(kv[0])
		val := ""
		if len(kv) == 2 {
			val = strings.TrimSpace(kv[1])
		}
		if strings.HasPrefix(key, vmNamespace) {
			if o.VMOptions == nil {
				o.VMOptions = map[string]string{}
			}
			o.VMOptions[key] = val
			continue
		}
		if err := o.applyOne(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) applyOne(key, val string) error {
	switch key {
	case "warning-level":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 || n > 5 {
			return fmt.Errorf("session: warning-level must be 0..5, got %q", val)
		}
		o.WarningLevel = n
	case "error-format":
		switch val {
		case "default":
			o.ErrorFormat = diag.FormatDefault
		case "ms":
			o.ErrorFormat = diag.FormatMS
		default:
			return fmt.Errorf("session: error-format must be default|ms, got %q", val)
		}
	case "verbose":
		o.Verbose = val == "on"
	case "optimize":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 || n > 3 {
			return fmt.Errorf("session: optimize must be 0..3, got %q", val)
		}
		o.Optimize = n
	case "file-extension":
		o.FileExtension = val
	case "allow-file-import":
		o.AllowFileImport = val == "" || val == "on" || val == "true"
	case "use-rtchk":
		o.UseRtchk = val == "" || val == "on" || val == "true"
	case "local-var-mode":
		switch val {
		case "auto":
			o.LocalVarMode = LocalVarAuto
		case "stack":
			o.LocalVarMode = LocalVarStack
		case "register":
			o.LocalVarMode = LocalVarRegister
		default:
			return fmt.Errorf("session: local-var-mode must be auto|stack|register, got %q", val)
		}
	case "stack-locals":
		o.StackLocals = val == "" || val == "on" || val == "true"
	case "abi-version":
		if !semver.IsValid(val) {
			return fmt.Errorf("session: abi-version %q is not a valid semantic version", val)
		}
		if semver.Compare(val, SupportedABI) > 0 {
			return fmt.Errorf("session: abi-version %q is newer than the compiler's supported %q", val, SupportedABI)
		}
		if o.VMOptions == nil {
			o.VMOptions = map[string]string{}
		}
		o.VMOptions[vmNamespace+"abi-version"] = val
	default:
		return fmt.Errorf("session: unrecognized option %q", key)
	}
	return nil
}

// ImportPaths maps an identifier-prefix to a filesystem path prefix
// (spec.md §4.3, §6 add-import-path).
type ImportPaths struct {
	mu    sync.RWMutex
	paths map[string]string
}

func NewImportPaths() *ImportPaths { return &ImportPaths{paths: map[string]string{}} }

func (p *ImportPaths) Add(name, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paths == nil {
		p.paths = map[string]string{}
	}
	p.paths[name] = path
}

// Resolve finds the longest registered prefix of dottedName and
// substitutes it, returning the mapped filesystem path and true, or
// ("", false) if no prefix matches.
func (p *ImportPaths) Resolve(dottedName string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	best := ""
	bestPath := ""
	for prefix, path := range p.paths {
		if (dottedName == prefix || strings.HasPrefix(dottedName, prefix+".")) && len(prefix) > len(best) {
			best, bestPath = prefix, path
		}
	}
	if best == "" {
		return "", false
	}
	rest := strings.TrimPrefix(dottedName, best)
	rest = strings.TrimPrefix(rest, ".")
	rest = strings.ReplaceAll(rest, ".", "/")
	if rest == "" {
		return bestPath, true
	}
	return bestPath + "/" + rest, true
}
