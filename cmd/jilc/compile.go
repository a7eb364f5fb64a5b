package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	jil "github.com/jewelscript-go/jilc"
	"github.com/jewelscript-go/jilc/internal/session"
)

// sessionFlags are the flag set every subcommand that opens a session
// shares (spec.md §6 init/set-option/add-import-path).
type sessionFlags struct {
	options     string
	importPaths []string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.options, "options", "", "comma-separated key=value set-option string")
	cmd.Flags().StringArrayVar(&f.importPaths, "import-path", nil, "name=path import-path mapping, repeatable")
}

// openSession runs spec.md §6 init followed by any add-import-path
// calls the --import-path flag named.
func openSession(f *sessionFlags) (session.Handle, error) {
	h, err := jil.Init(f.options)
	if err != nil {
		return 0, err
	}
	for _, mapping := range f.importPaths {
		name, path, ok := strings.Cut(mapping, "=")
		if !ok {
			jil.Free(h)
			return 0, fmt.Errorf("--import-path %q must be name=path", mapping)
		}
		if err := jil.AddImportPath(h, name, path); err != nil {
			jil.Free(h)
			return 0, err
		}
	}
	return h, nil
}

// compileAndLink compiles every file in args into one session, links
// it when link is true, and prints queued diagnostics to stderr.
func compileAndLink(f *sessionFlags, args []string, link bool) error {
	h, err := openSession(f)
	if err != nil {
		return err
	}
	defer jil.Free(h)

	for _, path := range args {
		if err := jil.CompileFile(h, path); err != nil {
			printDiagnostics(h)
			return err
		}
	}
	if link {
		if err := jil.Link(h); err != nil {
			printDiagnostics(h)
			return err
		}
	}
	printDiagnostics(h)
	return nil
}

func printDiagnostics(h session.Handle) {
	text, err := jil.GetErrorText(h)
	if err != nil || text == "" {
		return
	}
	fmt.Fprint(os.Stderr, text)
}

func newCompileCmd() *cobra.Command {
	flags := &sessionFlags{}
	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Compile and link one or more translation units",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return compileAndLink(flags, args, true)
		},
	}
	flags.register(cmd)
	return cmd
}
